package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pscheid92/chatrelay/internal/domain"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"
)

const (
	breakerMinRequests  = 5
	breakerFailureRatio = 0.6
	breakerOpenTimeout  = 30 * time.Second
	breakerInterval     = 60 * time.Second
	maxResponseBytes    = 64 << 10
)

// HTTPScorer delegates classification to a remote model server. Identical
// texts scored concurrently share one request, and a circuit breaker stops
// calling the server while it keeps failing.
type HTTPScorer struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	group   singleflight.Group
}

var _ Classifier = (*HTTPScorer)(nil)

func NewHTTPScorer(url string, timeout time.Duration, client *http.Client) *HTTPScorer {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPScorer{
		url:    url,
		client: client,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "scorer",
			MaxRequests: 1,
			Interval:    breakerInterval,
			Timeout:     breakerOpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				if counts.Requests < breakerMinRequests {
					return false
				}
				return float64(counts.TotalFailures)/float64(counts.Requests) >= breakerFailureRatio
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("Scorer circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

type scoreRequest struct {
	Text string `json:"text"`
}

// scoreResult accepts both {label, confidence} and the {label, score} shape
// emitted by common sentiment model servers.
type scoreResult struct {
	Label      string   `json:"label"`
	Confidence *float64 `json:"confidence"`
	Score      *float64 `json:"score"`
}

func (s *HTTPScorer) Classify(ctx context.Context, text string) (domain.Score, error) {
	v, err, _ := s.group.Do(text, func() (any, error) {
		return s.breaker.Execute(func() (any, error) {
			return s.call(ctx, text)
		})
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return domain.Score{}, fmt.Errorf("scorer unavailable: %w", err)
		}
		return domain.Score{}, err
	}
	return v.(domain.Score), nil
}

// State exposes the breaker state for health reporting.
func (s *HTTPScorer) State() gobreaker.State {
	return s.breaker.State()
}

func (s *HTTPScorer) call(ctx context.Context, text string) (domain.Score, error) {
	body, err := json.Marshal(scoreRequest{Text: text})
	if err != nil {
		return domain.Score{}, fmt.Errorf("failed to encode score request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return domain.Score{}, fmt.Errorf("failed to build score request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return domain.Score{}, fmt.Errorf("score request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.Score{}, fmt.Errorf("failed to read score response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.Score{}, fmt.Errorf("scorer returned status %d", resp.StatusCode)
	}
	return decodeScore(raw)
}

// decodeScore reads a single result object or a list of candidates, in which
// case the most confident one wins.
func decodeScore(raw []byte) (domain.Score, error) {
	raw = bytes.TrimSpace(raw)
	var candidates []scoreResult
	switch {
	case bytes.HasPrefix(raw, []byte("[[")):
		var nested [][]scoreResult
		if err := json.Unmarshal(raw, &nested); err != nil {
			return domain.Score{}, fmt.Errorf("failed to decode score response: %w", err)
		}
		for _, group := range nested {
			candidates = append(candidates, group...)
		}
	case bytes.HasPrefix(raw, []byte("[")):
		if err := json.Unmarshal(raw, &candidates); err != nil {
			return domain.Score{}, fmt.Errorf("failed to decode score response: %w", err)
		}
	default:
		var single scoreResult
		if err := json.Unmarshal(raw, &single); err != nil {
			return domain.Score{}, fmt.Errorf("failed to decode score response: %w", err)
		}
		candidates = []scoreResult{single}
	}
	if len(candidates) == 0 {
		return domain.Score{}, errors.New("score response contained no result")
	}

	best := domain.Score{Confidence: -1}
	for _, c := range candidates {
		conf := 0.0
		switch {
		case c.Confidence != nil:
			conf = *c.Confidence
		case c.Score != nil:
			conf = *c.Score
		}
		if conf > best.Confidence {
			best = domain.Score{Label: normalizeLabel(c.Label), Confidence: conf}
		}
	}
	return best, nil
}

// normalizeLabel maps model specific labels onto the three domain labels.
// Unknown labels are passed through and rejected by Safe.
func normalizeLabel(label string) domain.Label {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "positive", "pos", "label_2":
		return domain.LabelPositive
	case "neutral", "neu", "label_1":
		return domain.LabelNeutral
	case "negative", "neg", "label_0":
		return domain.LabelNegative
	default:
		return domain.Label(label)
	}
}
