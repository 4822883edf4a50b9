package scorer

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/chatrelay/internal/adapter/metrics"
	"github.com/pscheid92/chatrelay/internal/domain"
)

// Classifier is a scorer that is allowed to fail.
type Classifier interface {
	Classify(ctx context.Context, text string) (domain.Score, error)
}

// Safe wraps a Classifier so that errors, panics and malformed results all
// become domain.NeutralScore.
type Safe struct {
	inner   Classifier
	clock   clockwork.Clock
	metrics *metrics.ScorerMetrics
}

var _ domain.Scorer = (*Safe)(nil)

// NewSafe wraps inner. A nil clock means the real clock; m may be nil.
func NewSafe(inner Classifier, clock clockwork.Clock, m *metrics.ScorerMetrics) *Safe {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Safe{inner: inner, clock: clock, metrics: m}
}

func (s *Safe) Score(ctx context.Context, text string) domain.Score {
	start := s.clock.Now()
	score, cause := s.classify(ctx, text)
	if s.metrics != nil {
		s.metrics.Duration.Observe(s.clock.Since(start).Seconds())
	}

	if cause != "" {
		if s.metrics != nil {
			s.metrics.Fallbacks.WithLabelValues(cause).Inc()
			s.metrics.Scores.WithLabelValues(string(domain.LabelNeutral)).Inc()
		}
		return domain.NeutralScore
	}

	if s.metrics != nil {
		s.metrics.Scores.WithLabelValues(string(score.Label)).Inc()
	}
	return score
}

// classify returns a non-empty cause when the result must be discarded.
func (s *Safe) classify(ctx context.Context, text string) (score domain.Score, cause string) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "Scorer panicked", "panic", fmt.Sprint(r))
			score, cause = domain.NeutralScore, "panic"
		}
	}()

	score, err := s.inner.Classify(ctx, text)
	if err != nil {
		slog.DebugContext(ctx, "Scorer failed, using neutral", "error", err)
		return domain.NeutralScore, "error"
	}
	if !score.Label.Valid() || math.IsNaN(score.Confidence) {
		slog.WarnContext(ctx, "Scorer returned invalid result", "label", score.Label, "confidence", score.Confidence)
		return domain.NeutralScore, "invalid"
	}
	score.Confidence = min(max(score.Confidence, 0), 1)
	return score, ""
}
