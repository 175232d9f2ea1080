package acquisition

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/agritech-envdata/internal/observability"
	"github.com/i474232898/agritech-envdata/internal/store"
)

// Source combines key derivation, the freshness cache and a resolver for one
// domain. It satisfies binding.Source.
type Source[P, T any] struct {
	domain  string
	key     func(P) string
	ttl     time.Duration
	cache   *store.MemoryStore[T]
	resolve func(ctx context.Context, params P) (T, error)
	logger  *zap.Logger
	metrics *observability.Metrics
}

func NewSource[P, T any](
	domain string,
	key func(P) string,
	ttl time.Duration,
	cache *store.MemoryStore[T],
	resolve func(ctx context.Context, params P) (T, error),
	logger *zap.Logger,
	metrics *observability.Metrics,
) *Source[P, T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source[P, T]{
		domain:  domain,
		key:     key,
		ttl:     ttl,
		cache:   cache,
		resolve: resolve,
		logger:  logger.With(zap.String("domain", domain)),
		metrics: metrics,
	}
}

func (s *Source[P, T]) Domain() string { return s.domain }

// Key returns the cache key for params.
func (s *Source[P, T]) Key(params P) string { return s.key(params) }

// Cached returns the entry for params only while it is younger than the TTL.
func (s *Source[P, T]) Cached(params P) (T, bool) {
	var zero T
	e, ok := s.cache.Get(s.key(params))
	switch {
	case !ok:
		s.lookup("miss")
		return zero, false
	case !e.FreshAt(s.cache.Clock().Now(), s.ttl):
		s.lookup("stale")
		return zero, false
	default:
		s.lookup("hit")
		return e.Data, true
	}
}

// Latest returns the last successful result for params regardless of age.
func (s *Source[P, T]) Latest(params P) (T, bool) {
	e, ok := s.cache.Get(s.key(params))
	return e.Data, ok
}

// Resolve runs the resolver and overwrites the cache entry on success. A
// failure leaves any existing entry untouched.
func (s *Source[P, T]) Resolve(ctx context.Context, params P) (T, error) {
	start := time.Now()
	result, err := s.resolve(ctx, params)
	if s.metrics != nil {
		s.metrics.ResolveDuration.WithLabelValues(s.domain).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return result, err
	}

	key := s.key(params)
	s.cache.Put(key, result)
	s.logger.Debug("cached result", zap.String("key", key))
	return result, nil
}

func (s *Source[P, T]) lookup(result string) {
	if s.metrics == nil {
		return
	}
	s.metrics.CacheLookups.WithLabelValues(s.domain, result).Inc()
}
