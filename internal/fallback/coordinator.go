package fallback

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/i474232898/agritech-envdata/internal/observability"
)

// ErrNoData is wrapped by ExhaustedError when the coordinator has no tiers.
var ErrNoData = errors.New("no data available")

// ExhaustedError reports that every tier of a domain failed. Err is the last
// tier's error.
type ExhaustedError struct {
	Domain string
	Err    error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: all providers failed: %v", e.Domain, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Tier is one provider in the fallback chain.
type Tier[P, T any] struct {
	Name  string
	Fetch func(ctx context.Context, params P) (T, error)
}

// Coordinator tries its tiers strictly in order and returns the first success.
type Coordinator[P, T any] struct {
	domain  string
	tiers   []Tier[P, T]
	logger  *zap.Logger
	metrics *observability.Metrics
}

// New builds a coordinator for domain. metrics may be nil.
func New[P, T any](domain string, logger *zap.Logger, metrics *observability.Metrics, tiers ...Tier[P, T]) *Coordinator[P, T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator[P, T]{
		domain:  domain,
		tiers:   tiers,
		logger:  logger.With(zap.String("domain", domain)),
		metrics: metrics,
	}
}

func (c *Coordinator[P, T]) Domain() string { return c.domain }

// Resolve returns the first tier's successful result. A failing tier is logged
// and skipped; once all tiers failed an *ExhaustedError is returned. Tiers are
// never retried and never run concurrently.
func (c *Coordinator[P, T]) Resolve(ctx context.Context, params P) (T, error) {
	var zero T
	lastErr := ErrNoData

	for i, tier := range c.tiers {
		if err := ctx.Err(); err != nil {
			return zero, &ExhaustedError{Domain: c.domain, Err: err}
		}

		result, err := tier.Fetch(ctx, params)
		if err == nil {
			c.record(tier.Name, "success")
			if i > 0 {
				c.logger.Info("served by fallback tier", zap.String("tier", tier.Name), zap.Int("position", i))
			}
			return result, nil
		}

		c.record(tier.Name, "failure")
		c.logger.Warn("provider tier failed",
			zap.String("tier", tier.Name),
			zap.Int("position", i),
			zap.Error(err),
		)
		lastErr = err
	}

	if c.metrics != nil {
		c.metrics.Exhausted.WithLabelValues(c.domain).Inc()
	}
	return zero, &ExhaustedError{Domain: c.domain, Err: lastErr}
}

func (c *Coordinator[P, T]) record(tier, outcome string) {
	if c.metrics == nil {
		return
	}
	c.metrics.TierAttempts.WithLabelValues(c.domain, tier, outcome).Inc()
}
