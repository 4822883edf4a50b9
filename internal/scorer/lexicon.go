package scorer

import (
	"context"
	"strings"
	"unicode"

	"github.com/pscheid92/chatrelay/internal/domain"
)

var defaultPositive = []string{
	"love", "loved", "great", "awesome", "amazing", "nice", "good", "best", "happy",
	"lol", "haha", "wow", "cool", "gg", "ggs", "pog", "poggers", "pogchamp", "w",
	"hype", "clutch", "insane", "beautiful", "thanks", "ty", "<3", "wholesome",
}

var defaultNegative = []string{
	"hate", "hated", "bad", "awful", "terrible", "worst", "boring", "trash", "sad",
	"angry", "cringe", "ugly", "stupid", "l", "ff", "rip", "lame", "wtf", "toxic",
	"residentsleeper", "biblethump", "sucks", "fail", "throw", "unlucky",
}

// Lexicon is a dependency-free word list classifier. Confidence is the share
// of matched words that agree with the winning label.
type Lexicon struct {
	positive map[string]struct{}
	negative map[string]struct{}
}

var _ Classifier = (*Lexicon)(nil)

// NewLexicon builds a classifier from the given word lists; nil lists fall
// back to the built-in chat vocabulary.
func NewLexicon(positive, negative []string) *Lexicon {
	if positive == nil {
		positive = defaultPositive
	}
	if negative == nil {
		negative = defaultNegative
	}
	return &Lexicon{positive: wordSet(positive), negative: wordSet(negative)}
}

func (l *Lexicon) Classify(_ context.Context, text string) (domain.Score, error) {
	var pos, neg int
	for _, tok := range tokenize(text) {
		if _, ok := l.positive[tok]; ok {
			pos++
		}
		if _, ok := l.negative[tok]; ok {
			neg++
		}
	}

	total := pos + neg
	switch {
	case total == 0:
		return domain.Score{Label: domain.LabelNeutral, Confidence: 0.5}, nil
	case pos > neg:
		return domain.Score{Label: domain.LabelPositive, Confidence: float64(pos) / float64(total)}, nil
	case neg > pos:
		return domain.Score{Label: domain.LabelNegative, Confidence: float64(neg) / float64(total)}, nil
	default:
		return domain.Score{Label: domain.LabelNeutral, Confidence: 0.5}, nil
	}
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return unicode.IsSpace(r) || (unicode.IsPunct(r) && r != '\'')
	})
}

func wordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = struct{}{}
	}
	return set
}
