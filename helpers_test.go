package consolefwd

import (
	"sync"
	"testing"
	"time"
)

// consoleCall is one invocation of an original console method
type consoleCall struct {
	level Level
	args  []any
}

// callLog records calls reaching the original console methods
type callLog struct {
	mu    sync.Mutex
	calls []consoleCall
}

func (l *callLog) all() []consoleCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]consoleCall(nil), l.calls...)
}

func (l *callLog) at(level Level) []consoleCall {
	var out []consoleCall
	for _, c := range l.all() {
		if c.level == level {
			out = append(out, c)
		}
	}
	return out
}

// newRecordingConsole builds a console whose methods only record; no levels means all levels
func newRecordingConsole(t *testing.T, levels ...Level) (*Console, *callLog) {
	t.Helper()
	if len(levels) == 0 {
		levels = allLevels
	}
	log := &callLog{}
	methods := make(map[Level]Method, len(levels))
	for _, level := range levels {
		level := level
		methods[level] = func(args ...any) {
			log.mu.Lock()
			defer log.mu.Unlock()
			log.calls = append(log.calls, consoleCall{level: level, args: args})
		}
	}
	return NewConsole(methods), log
}

// recordingSender collects delivered batches
type recordingSender struct {
	mu      sync.Mutex
	batches [][]LogEntry
	onSend  func(entries []LogEntry)
}

func (s *recordingSender) SendLogs(entries []LogEntry) {
	s.mu.Lock()
	s.batches = append(s.batches, entries)
	hook := s.onSend
	s.mu.Unlock()
	if hook != nil {
		hook(entries)
	}
}

func (s *recordingSender) all() [][]LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]LogEntry(nil), s.batches...)
}

// messages flattens delivered batches into their messages
func (s *recordingSender) messages() [][]string {
	var out [][]string
	for _, b := range s.all() {
		var msgs []string
		for _, e := range b {
			msgs = append(msgs, e.Message)
		}
		out = append(out, msgs)
	}
	return out
}

// fakeTimer is a manually fired timer
type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

// fakeClock hands out fake timers in creation order
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
	now    int64
}

func (c *fakeClock) afterFunc(d time.Duration, f func()) timerHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) nowMillis() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now++
	return c.now
}

func (c *fakeClock) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

func (c *fakeClock) timer(i int) *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timers[i]
}

// fire runs timer i if it was not stopped
func (c *fakeClock) fire(i int) {
	t := c.timer(i)
	if !t.stopped {
		t.f()
	}
}

// withFakeClock swaps the interceptor's timer and time sources
func withFakeClock(i *Interceptor) *fakeClock {
	clock := &fakeClock{now: 1700000000000}
	i.afterFunc = clock.afterFunc
	i.now = clock.nowMillis
	return clock
}

func intPtr(n int) *int                     { return &n }
func boolPtr(b bool) *bool                  { return &b }
func strPtr(s string) *string               { return &s }
func durPtr(d time.Duration) *time.Duration { return &d }
