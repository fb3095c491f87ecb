package consolefwd

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestInterceptor builds an interceptor on a recording console with a fake clock
func newTestInterceptor(t *testing.T, opts Options) (*Interceptor, *Console, *callLog, *recordingSender, *fakeClock) {
	t.Helper()
	console, calls := newRecordingConsole(t)
	sender := &recordingSender{}
	icpt, err := NewInterceptor(console, sender, opts)
	require.NoError(t, err)
	clock := withFakeClock(icpt)
	t.Cleanup(icpt.Destroy)
	return icpt, console, calls, sender, clock
}

func TestInterceptorCallsOriginalFirst(t *testing.T) {
	console, calls := newRecordingConsole(t)
	var seenAtSend int
	sender := &recordingSender{}
	sender.onSend = func([]LogEntry) { seenAtSend = len(calls.all()) }

	icpt, err := NewInterceptor(console, sender, Options{BatchSize: intPtr(1)})
	require.NoError(t, err)
	defer icpt.Destroy()

	payload := map[string]any{"k": 1}
	console.Log("hello", payload, 7)

	got := calls.at(LevelLog)
	require.Len(t, got, 1)
	assert.Equal(t, []any{"hello", payload, 7}, got[0].args)
	assert.Equal(t, 1, seenAtSend, "original must run before the batch is sent")
}

func TestInterceptorEntryShape(t *testing.T) {
	icpt, console, _, sender, _ := newTestInterceptor(t, Options{BatchSize: intPtr(1)})

	console.Info("user", map[string]any{"id": 5}, true)

	batches := sender.all()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 1)
	e := batches[0][0]
	assert.Equal(t, LevelInfo, e.Level)
	assert.Equal(t, `user {"id":5} true`, e.Message)
	assert.Equal(t, []any{"user", map[string]any{"id": float64(5)}, true}, e.Args)
	assert.Equal(t, SourceRenderer, e.Source)
	assert.Equal(t, int64(1700000000001), e.Timestamp)
	assert.Empty(t, e.Stack)
	assert.Equal(t, uint64(1), icpt.Stats().Captured)
}

func TestInterceptorErrorStack(t *testing.T) {
	_, console, _, sender, _ := newTestInterceptor(t, Options{BatchSize: intPtr(1)})

	console.Error("failed", errors.New("boom"))

	batches := sender.all()
	require.Len(t, batches, 1)
	e := batches[0][0]
	assert.Equal(t, "failed boom", e.Message)
	require.True(t, strings.HasPrefix(e.Stack, "Error\n    at "), e.Stack)
	assert.Contains(t, e.Stack, "TestInterceptorErrorStack")
	assert.NotContains(t, e.Stack, "(*Interceptor)")
	assert.NotContains(t, e.Stack, "(*Console)")

	rec, ok := e.Args[1].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "boom", rec["message"])

	console.Warn("no stack here")
	assert.Empty(t, sender.all()[1][0].Stack)
}

func TestInterceptorFlushOnBatchSize(t *testing.T) {
	icpt, console, _, sender, clock := newTestInterceptor(t, Options{BatchSize: intPtr(3)})

	console.Log("1")
	console.Log("2")
	assert.Empty(t, sender.all())
	require.Equal(t, 1, clock.count(), "first capture arms one timer")
	assert.Equal(t, DefaultBatchTimeout, clock.timer(0).d)

	console.Log("3")
	assert.Equal(t, [][]string{{"1", "2", "3"}}, sender.messages())
	assert.True(t, clock.timer(0).stopped, "size flush cancels the pending timer")

	stats := icpt.Stats()
	assert.Equal(t, uint64(3), stats.Captured)
	assert.Equal(t, uint64(1), stats.Batches)
	assert.Equal(t, uint64(3), stats.Flushed)
}

func TestInterceptorFlushOnTimeout(t *testing.T) {
	_, console, _, sender, clock := newTestInterceptor(t, Options{
		BatchSize:    intPtr(10),
		BatchTimeout: durPtr(250 * time.Millisecond),
	})

	console.Log("a")
	console.Warn("b")
	require.Equal(t, 1, clock.count(), "a pending timer is not re-armed")
	assert.Equal(t, 250*time.Millisecond, clock.timer(0).d)

	clock.fire(0)
	assert.Equal(t, [][]string{{"a", "b"}}, sender.messages())

	console.Log("c")
	require.Equal(t, 2, clock.count(), "next capture arms a new timer")
	clock.fire(1)
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, sender.messages())
}

func TestInterceptorStaleTimerIgnored(t *testing.T) {
	_, console, _, sender, clock := newTestInterceptor(t, Options{BatchSize: intPtr(2)})

	console.Log("a")
	console.Log("b")
	console.Log("c")
	require.Equal(t, [][]string{{"a", "b"}}, sender.messages())

	// The first timer was cancelled by the size flush; simulate it firing anyway
	clock.timer(0).f()
	assert.Equal(t, [][]string{{"a", "b"}}, sender.messages(), "stale timer must not flush 'c'")

	require.Equal(t, 2, clock.count())
	clock.fire(1)
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, sender.messages())
}

func TestInterceptorEmptyFlushIsNoop(t *testing.T) {
	icpt, _, _, sender, _ := newTestInterceptor(t, Options{})
	icpt.Flush()
	assert.Empty(t, sender.all())
	assert.Zero(t, icpt.Stats().Batches)
}

func TestInterceptorOnlyConfiguredLevels(t *testing.T) {
	_, console, calls, sender, _ := newTestInterceptor(t, Options{
		Levels:    []Level{LevelWarn, LevelError},
		BatchSize: intPtr(1),
	})

	assert.True(t, console.Patched(LevelWarn))
	assert.False(t, console.Patched(LevelLog))
	assert.False(t, console.Patched(LevelTrace), "trace is not intercepted by default")

	console.Log("local only")
	console.Warn("forwarded")
	assert.Len(t, calls.all(), 2)
	assert.Equal(t, [][]string{{"forwarded"}}, sender.messages())
}

func TestInterceptorEmptyLevelList(t *testing.T) {
	_, console, _, sender, _ := newTestInterceptor(t, Options{Levels: []Level{}, BatchSize: intPtr(1)})
	for _, level := range allLevels {
		assert.False(t, console.Patched(level))
	}
	console.Error("x")
	assert.Empty(t, sender.all())
}

func TestInterceptorSkipsMissingLevels(t *testing.T) {
	console, _ := newRecordingConsole(t, LevelLog, LevelWarn)
	icpt, err := NewInterceptor(console, &recordingSender{}, Options{})
	require.NoError(t, err)
	defer icpt.Destroy()

	assert.True(t, console.Patched(LevelLog))
	assert.False(t, console.Has(LevelDebug))
	assert.False(t, console.Patched(LevelDebug))
	assert.NotPanics(t, func() { console.Debug("nothing") })
}

func TestInterceptorDisabled(t *testing.T) {
	console, calls := newRecordingConsole(t)
	sender := &recordingSender{}
	icpt, err := NewInterceptor(console, sender, Options{Enabled: boolPtr(false), BatchSize: intPtr(1)})
	require.NoError(t, err)

	for _, level := range allLevels {
		assert.False(t, console.Patched(level))
	}
	console.Log("plain")
	icpt.Flush()
	icpt.Destroy()

	assert.Len(t, calls.all(), 1)
	assert.Empty(t, sender.all())
	assert.Zero(t, icpt.Stats().Captured)
}

func TestInterceptorDisabledIgnoresInvalidOptions(t *testing.T) {
	console, _ := newRecordingConsole(t)
	icpt, err := NewInterceptor(console, nil, Options{
		Enabled:   boolPtr(false),
		BatchSize: intPtr(-1),
		Levels:    []Level{"verbose"},
	})
	require.NoError(t, err)
	assert.False(t, console.Patched(LevelLog))

	console.Log("x")
	icpt.Flush()
	icpt.Destroy()
	assert.Zero(t, icpt.Stats().Captured)
}

func TestInterceptorDestroy(t *testing.T) {
	console, calls := newRecordingConsole(t)
	sender := &recordingSender{}
	icpt, err := NewInterceptor(console, sender, Options{})
	require.NoError(t, err)
	clock := withFakeClock(icpt)

	console.Log("pending")
	require.Equal(t, 1, clock.count())

	icpt.Destroy()
	assert.Equal(t, [][]string{{"pending"}}, sender.messages(), "destroy flushes the remainder")
	assert.True(t, clock.timer(0).stopped)
	for _, level := range allLevels {
		assert.False(t, console.Patched(level))
	}

	console.Log("after")
	assert.Len(t, calls.all(), 2, "restored original still runs")
	assert.Len(t, sender.all(), 1)

	icpt.Destroy()
	assert.Len(t, sender.all(), 1)
}

func TestInterceptorDestroyWaitsForRunningDelivery(t *testing.T) {
	console, _ := newRecordingConsole(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	var first sync.Once
	sender := &recordingSender{}
	sender.onSend = func([]LogEntry) {
		first.Do(func() {
			close(entered)
			<-release
		})
	}

	icpt, err := NewInterceptor(console, sender, Options{})
	require.NoError(t, err)
	clock := withFakeClock(icpt)

	console.Log("a")
	go clock.fire(0)
	<-entered

	console.Log("b")
	destroyed := make(chan struct{})
	go func() {
		icpt.Destroy()
		close(destroyed)
	}()

	select {
	case <-destroyed:
		t.Fatal("destroy returned while the final batch was still queued")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-destroyed:
	case <-time.After(2 * time.Second):
		t.Fatal("destroy did not return")
	}
	assert.Equal(t, [][]string{{"a"}, {"b"}}, sender.messages())
}

func TestInterceptorNilCapabilityWarnsThroughOriginal(t *testing.T) {
	console, calls := newRecordingConsole(t)
	icpt, err := NewInterceptor(console, nil, Options{BatchSize: intPtr(1)})
	require.NoError(t, err)
	defer icpt.Destroy()

	console.Log("lost")

	warns := calls.at(LevelWarn)
	require.Len(t, warns, 1)
	assert.Contains(t, warns[0].args[0], "sendLogs capability not available")

	stats := icpt.Stats()
	assert.Equal(t, uint64(1), stats.Captured, "the warning itself is not captured")
	assert.Equal(t, uint64(1), stats.Dropped)
	assert.Zero(t, stats.Flushed)
}

func TestInterceptorReentrantSend(t *testing.T) {
	console, _ := newRecordingConsole(t)
	sender := &recordingSender{}
	var once sync.Once
	sender.onSend = func([]LogEntry) {
		once.Do(func() { console.Log("from inside send") })
	}

	icpt, err := NewInterceptor(console, sender, Options{BatchSize: intPtr(1)})
	require.NoError(t, err)
	defer icpt.Destroy()

	done := make(chan struct{})
	go func() {
		console.Log("outer")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("re-entrant log deadlocked")
	}
	assert.Equal(t, [][]string{{"outer"}, {"from inside send"}}, sender.messages())
}

func TestInterceptorLevelOwned(t *testing.T) {
	console, _ := newRecordingConsole(t)

	first, err := NewInterceptor(console, &recordingSender{}, Options{Levels: []Level{LevelWarn}})
	require.NoError(t, err)
	defer first.Destroy()

	_, err = NewInterceptor(console, &recordingSender{}, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLevelOwned)

	assert.False(t, console.Patched(LevelLog), "partial patch is rolled back")
	assert.True(t, console.Patched(LevelWarn), "first owner keeps its patch")
}

func TestInterceptorInvalidOptions(t *testing.T) {
	console, _ := newRecordingConsole(t)

	_, err := NewInterceptor(console, nil, Options{BatchSize: intPtr(0)})
	assert.Error(t, err)

	_, err = NewInterceptor(nil, nil, Options{})
	assert.Error(t, err)
}

func TestInterceptorConcurrentCapture(t *testing.T) {
	console, _ := newRecordingConsole(t)
	sender := &recordingSender{}
	icpt, err := NewInterceptor(console, sender, Options{BatchSize: intPtr(7)})
	require.NoError(t, err)

	const goroutines, perGoroutine = 8, 50
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < perGoroutine; n++ {
				console.Log("x", n)
			}
		}()
	}
	wg.Wait()
	icpt.Destroy()

	total := 0
	for _, b := range sender.all() {
		assert.LessOrEqual(t, len(b), 7)
		total += len(b)
	}
	assert.Equal(t, goroutines*perGoroutine, total)
	assert.Equal(t, uint64(total), icpt.Stats().Flushed)
}
