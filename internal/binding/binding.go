package binding

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/i474232898/agritech-envdata/internal/observability"
)

// State is what subscribers observe. Data is nil until a fetch succeeds and
// again after a fetch exhausts every provider. Values behind Data are never
// mutated once published.
type State[T any] struct {
	Data    *T     `json:"data"`
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
}

// Source is the cache-aware resolver a binding drives.
type Source[P, T any] interface {
	Domain() string
	// Cached returns a fresh cached value without any network activity.
	Cached(params P) (T, bool)
	// Resolve runs the fallback chain and writes successful results to the cache.
	Resolve(ctx context.Context, params P) (T, error)
}

// Binding owns one RequestState and exposes it to subscribers. Concurrent
// Refetch calls are not deduplicated; only the most recently started one may
// publish its completion.
type Binding[P, T any] struct {
	id      string
	source  Source[P, T]
	logger  *zap.Logger
	metrics *observability.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	state       State[T]
	generation  uint64
	closed      bool
	subscribers map[uint64]func(State[T])
	nextSub     uint64

	// published is stamped under mu. delivered counts publications whose
	// callbacks have finished; notifyMu and notified guard it.
	published uint64
	notifyMu  sync.Mutex
	notified  *sync.Cond
	delivered uint64
}

// New creates a binding over source. When initial is given, a refetch for
// initial[0] starts immediately and the returned binding already reports
// Loading. metrics may be nil.
func New[P, T any](source Source[P, T], logger *zap.Logger, metrics *observability.Metrics, initial ...P) *Binding[P, T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()

	b := &Binding[P, T]{
		id:          id,
		source:      source,
		logger:      logger.With(zap.String("binding_id", id), zap.String("domain", source.Domain())),
		metrics:     metrics,
		ctx:         ctx,
		cancel:      cancel,
		subscribers: make(map[uint64]func(State[T])),
	}
	b.notified = sync.NewCond(&b.notifyMu)

	if len(initial) > 0 {
		b.state.Loading = true
		params := initial[0]
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.Refetch(ctx, params)
		}()
	}
	return b
}

// ID identifies the binding in logs.
func (b *Binding[P, T]) ID() string { return b.id }

// State returns the current state.
func (b *Binding[P, T]) State() State[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Subscribe registers fn to be called with every published state and returns
// a function that removes it. fn runs synchronously on the publishing
// goroutine with no lock held. It may call State or the unsubscribe func; it
// must not call Refetch or Close on the same binding directly.
func (b *Binding[P, T]) Subscribe(fn func(State[T])) func() {
	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subscribers[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, id)
			b.mu.Unlock()
		})
	}
}

// Refetch loads params and returns the state it left behind. Loading is
// published before any lookup. A fresh cache entry completes without network
// activity; otherwise the source resolves, and exhaustion clears Data and sets
// Error. A completion superseded by a newer Refetch or by Close is discarded.
func (b *Binding[P, T]) Refetch(ctx context.Context, params P) State[T] {
	b.mu.Lock()
	if b.closed {
		s := b.state
		b.mu.Unlock()
		return s
	}
	b.generation++
	gen := b.generation
	b.state.Loading = true
	b.state.Error = ""
	b.publishAndUnlock()

	if b.metrics != nil {
		b.metrics.Refetches.WithLabelValues(b.source.Domain()).Inc()
	}

	if data, ok := b.source.Cached(params); ok {
		b.logger.Debug("served from cache", zap.Uint64("generation", gen))
		return b.complete(gen, &data, "")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(b.ctx, cancel)
	defer stop()

	data, err := b.source.Resolve(ctx, params)
	if err != nil {
		b.logger.Warn("refetch failed", zap.Uint64("generation", gen), zap.Error(err))
		return b.complete(gen, nil, err.Error())
	}
	return b.complete(gen, &data, "")
}

func (b *Binding[P, T]) complete(gen uint64, data *T, errMsg string) State[T] {
	b.mu.Lock()
	if b.closed || gen != b.generation {
		s := b.state
		b.mu.Unlock()
		b.logger.Debug("discarding stale completion", zap.Uint64("generation", gen))
		if b.metrics != nil {
			b.metrics.StaleDiscards.WithLabelValues(b.source.Domain()).Inc()
		}
		return s
	}
	b.state = State[T]{Data: data, Loading: false, Error: errMsg}
	s := b.state
	b.publishAndUnlock()
	return s
}

// publishAndUnlock must be called with mu held. It stamps the publication
// with a sequence number, releases mu, then waits for every earlier
// publication to be delivered before calling subscribers.
func (b *Binding[P, T]) publishAndUnlock() {
	snapshot := b.state
	subs := make([]func(State[T]), 0, len(b.subscribers))
	for _, fn := range b.subscribers {
		subs = append(subs, fn)
	}
	seq := b.published
	b.published++
	b.mu.Unlock()

	b.notifyMu.Lock()
	for b.delivered != seq {
		b.notified.Wait()
	}
	b.notifyMu.Unlock()

	defer func() {
		b.notifyMu.Lock()
		b.delivered++
		b.notified.Broadcast()
		b.notifyMu.Unlock()
	}()

	if b.isClosed() {
		return
	}
	for _, fn := range subs {
		fn(snapshot)
	}
}

func (b *Binding[P, T]) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Close cancels in-flight work, drops subscribers and waits for the initial
// refetch goroutine. No state is published afterwards.
func (b *Binding[P, T]) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.subscribers = make(map[uint64]func(State[T]))
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()
}
