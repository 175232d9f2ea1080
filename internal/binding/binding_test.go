package binding

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/i474232898/agritech-envdata/internal/observability"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeSource answers Resolve from per-param channels when gated, otherwise
// from results/errs immediately.
type fakeSource struct {
	mu       sync.Mutex
	cache    map[string]int
	results  map[string]int
	errs     map[string]error
	gates    map[string]chan struct{}
	resolves int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		cache:   map[string]int{},
		results: map[string]int{},
		errs:    map[string]error{},
		gates:   map[string]chan struct{}{},
	}
}

func (f *fakeSource) Domain() string { return "test" }

func (f *fakeSource) Cached(p string) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.cache[p]
	return v, ok
}

func (f *fakeSource) Resolve(ctx context.Context, p string) (int, error) {
	f.mu.Lock()
	f.resolves++
	gate := f.gates[p]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[p]; err != nil {
		return 0, err
	}
	v := f.results[p]
	f.cache[p] = v
	return v, nil
}

func (f *fakeSource) resolveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resolves
}

func TestRefetch_Success(t *testing.T) {
	src := newFakeSource()
	src.results["paris"] = 18

	b := New[string, int](src, zaptest.NewLogger(t), nil)
	defer b.Close()

	var seen []State[int]
	unsubscribe := b.Subscribe(func(s State[int]) { seen = append(seen, s) })
	defer unsubscribe()

	s := b.Refetch(context.Background(), "paris")
	require.NotNil(t, s.Data)
	assert.Equal(t, 18, *s.Data)
	assert.False(t, s.Loading)
	assert.Empty(t, s.Error)

	require.Len(t, seen, 2)
	assert.True(t, seen[0].Loading, "loading is published before the fetch")
	assert.Empty(t, seen[0].Error)
	assert.False(t, seen[1].Loading)
}

func TestRefetch_CacheHitSkipsResolve(t *testing.T) {
	src := newFakeSource()
	src.cache["paris"] = 21

	b := New[string, int](src, nil, nil)
	defer b.Close()

	s := b.Refetch(context.Background(), "paris")
	require.NotNil(t, s.Data)
	assert.Equal(t, 21, *s.Data)
	assert.Equal(t, 0, src.resolveCount())
}

func TestRefetch_FailureClearsDataAndSetsError(t *testing.T) {
	src := newFakeSource()
	src.results["ok"] = 1
	src.errs["bad"] = errors.New("airquality: all providers failed: backend down")

	b := New[string, int](src, nil, nil)
	defer b.Close()

	b.Refetch(context.Background(), "ok")
	s := b.Refetch(context.Background(), "bad")

	assert.Nil(t, s.Data)
	assert.False(t, s.Loading)
	assert.Equal(t, "airquality: all providers failed: backend down", s.Error)
}

func TestRefetch_ResetsErrorWhenRestarting(t *testing.T) {
	src := newFakeSource()
	src.errs["p"] = errors.New("down")

	b := New[string, int](src, nil, nil)
	defer b.Close()

	b.Refetch(context.Background(), "p")
	require.NotEmpty(t, b.State().Error)

	src.mu.Lock()
	delete(src.errs, "p")
	src.results["p"] = 5
	src.mu.Unlock()

	var first State[int]
	var once sync.Once
	unsubscribe := b.Subscribe(func(s State[int]) { once.Do(func() { first = s }) })
	defer unsubscribe()

	b.Refetch(context.Background(), "p")
	assert.True(t, first.Loading)
	assert.Empty(t, first.Error)
}

func TestNew_InitialParamsTriggerFetch(t *testing.T) {
	src := newFakeSource()
	src.results["paris"] = 18
	gate := make(chan struct{})
	src.gates["paris"] = gate

	b := New[string, int](src, nil, nil, "paris")
	defer b.Close()

	assert.True(t, b.State().Loading, "loading is visible right after construction")

	done := make(chan struct{})
	unsubscribe := b.Subscribe(func(s State[int]) {
		if !s.Loading {
			close(done)
		}
	})
	defer unsubscribe()

	close(gate)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("initial fetch did not complete")
	}
	require.NotNil(t, b.State().Data)
	assert.Equal(t, 18, *b.State().Data)
}

func TestRefetch_NewestGenerationWins(t *testing.T) {
	src := newFakeSource()
	src.results["slow"] = 1
	src.results["fast"] = 2
	slowGate := make(chan struct{})
	src.gates["slow"] = slowGate

	metrics := observability.NewMetricsForTesting()
	b := New[string, int](src, nil, metrics)
	defer b.Close()

	slowDone := make(chan State[int])
	go func() { slowDone <- b.Refetch(context.Background(), "slow") }()

	require.Eventually(t, func() bool { return src.resolveCount() == 1 }, time.Second, time.Millisecond)

	fast := b.Refetch(context.Background(), "fast")
	require.NotNil(t, fast.Data)
	assert.Equal(t, 2, *fast.Data)

	close(slowGate)
	stale := <-slowDone
	require.NotNil(t, stale.Data)
	assert.Equal(t, 2, *stale.Data, "the slow completion is discarded")
	assert.Equal(t, 2, *b.State().Data)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StaleDiscards.WithLabelValues("test")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Refetches.WithLabelValues("test")))
}

func TestClose_CancelsInFlightAndDropsUpdates(t *testing.T) {
	src := newFakeSource()
	src.gates["paris"] = make(chan struct{}) // never released

	b := New[string, int](src, nil, nil, "paris")
	require.Eventually(t, func() bool { return src.resolveCount() == 1 }, time.Second, time.Millisecond)

	var mu sync.Mutex
	var notified int
	b.Subscribe(func(State[int]) {
		mu.Lock()
		notified++
		mu.Unlock()
	})

	b.Close()

	mu.Lock()
	assert.Equal(t, 0, notified, "no update after teardown")
	mu.Unlock()
	assert.True(t, b.State().Loading, "state is frozen at teardown")

	s := b.Refetch(context.Background(), "paris")
	assert.True(t, s.Loading)
	assert.Equal(t, 1, src.resolveCount(), "refetch after close is a no-op")

	b.Close()
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	src := newFakeSource()
	src.results["p"] = 1

	b := New[string, int](src, nil, nil)
	defer b.Close()

	var calls int
	unsubscribe := b.Subscribe(func(State[int]) { calls++ })
	b.Refetch(context.Background(), "p")
	assert.Equal(t, 2, calls)

	unsubscribe()
	unsubscribe()
	b.Refetch(context.Background(), "p")
	assert.Equal(t, 2, calls)
}

func TestSubscribe_CallbackReadsStateDuringConcurrentRefetch(t *testing.T) {
	src := newFakeSource()
	src.cache["a"] = 7

	b := New[string, int](src, nil, nil)
	defer b.Close()

	var reads sync.WaitGroup
	b.Subscribe(func(State[int]) {
		time.Sleep(time.Millisecond)
		_ = b.State()
	})

	var unsubscribe func()
	unsubscribe = b.Subscribe(func(State[int]) {
		reads.Add(1)
		defer reads.Done()
		unsubscribe()
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 20 {
					b.Refetch(context.Background(), "a")
				}
			}()
		}
		wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("concurrent refetch with a state-reading subscriber never returned")
	}
	reads.Wait()

	s := b.State()
	require.NotNil(t, s.Data)
	assert.Equal(t, 7, *s.Data)
	assert.False(t, s.Loading)
}

func TestSubscribe_DeliversInPublicationOrder(t *testing.T) {
	src := newFakeSource()
	src.results["p"] = 3

	b := New[string, int](src, nil, nil)
	defer b.Close()

	var mu sync.Mutex
	var loading []bool
	unsubscribe := b.Subscribe(func(s State[int]) {
		mu.Lock()
		loading = append(loading, s.Loading)
		mu.Unlock()
	})
	defer unsubscribe()

	for range 3 {
		b.Refetch(context.Background(), "p")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, false, true, false, true, false}, loading)
}
