package consolefwd

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/lixenwraith/consolefwd/serializer"
)

// LogSender is the capability exposed into the isolated context.
// SendLogs is fire-and-forget; it must not block on delivery.
type LogSender interface {
	SendLogs(entries []LogEntry)
}

// stackTrim drops this package's wrapper and console frames from captured stacks
var stackTrim = []string{
	"github.com/lixenwraith/consolefwd.(*Interceptor).",
	"github.com/lixenwraith/consolefwd.(*Console).",
}

// timerHandle is the part of *time.Timer the interceptor uses
type timerHandle interface {
	Stop() bool
}

// afterFunc is the production timer source
func afterFunc(d time.Duration, f func()) timerHandle {
	return time.AfterFunc(d, f)
}

// InterceptorStats are cumulative counters since construction
type InterceptorStats struct {
	Captured uint64 // Entries appended to the buffer
	Batches  uint64 // Non-empty flushes
	Flushed  uint64 // Entries handed to the capability
	Dropped  uint64 // Entries dropped for lack of a capability
}

// Interceptor patches console levels, buffers every call and flushes batches to a LogSender.
// It owns its buffer and at most one pending flush timer.
type Interceptor struct {
	console *Console
	api     LogSender
	cfg     *Config

	mu         sync.Mutex
	buffer     []LogEntry
	timer      timerHandle // Pending flush timer, nil when none
	timerGen   uint64      // Bumped on each drain so a stale timer callback is ignored
	queue      [][]LogEntry
	delivering bool
	idle       *sync.Cond // Signalled when a delivery loop exits
	patched    []Level
	destroyed  bool

	afterFunc func(time.Duration, func()) timerHandle
	now       func() int64

	captured atomic.Uint64
	batches  atomic.Uint64
	flushed  atomic.Uint64
	dropped  atomic.Uint64
}

// NewInterceptor resolves opts against the hard defaults and patches every configured level
// that is callable on c. A disabled configuration patches nothing.
// api may be nil, batches are then dropped with a warning.
// Patching a level already owned by another interceptor fails with ErrLevelOwned.
func NewInterceptor(c *Console, api LogSender, opts Options) (*Interceptor, error) {
	if c == nil {
		return nil, fmtErrorf("console cannot be nil")
	}

	cfg, err := Resolve(opts, nil)
	if err != nil {
		return nil, err
	}

	i := &Interceptor{
		console:   c,
		api:       api,
		cfg:       cfg,
		afterFunc: afterFunc,
		now:       nowMillis,
	}
	i.idle = sync.NewCond(&i.mu)

	if !cfg.Enabled {
		return i, nil
	}
	i.buffer = make([]LogEntry, 0, cfg.BatchSize)

	if err := i.patch(); err != nil {
		return nil, err
	}
	return i, nil
}

// Config returns a copy of the resolved configuration
func (i *Interceptor) Config() *Config {
	return i.cfg.Clone()
}

// Stats returns the current counters
func (i *Interceptor) Stats() InterceptorStats {
	return InterceptorStats{
		Captured: i.captured.Load(),
		Batches:  i.batches.Load(),
		Flushed:  i.flushed.Load(),
		Dropped:  i.dropped.Load(),
	}
}

// patch installs one wrapper per callable level, rolling back on conflict
func (i *Interceptor) patch() error {
	for _, level := range i.cfg.Levels {
		original, err := i.console.install(level, i, i.wrap(level))
		if err != nil {
			i.unpatch()
			return fmtErrorf("cannot patch level '%s': %w", level, err)
		}
		if original != nil {
			i.patched = append(i.patched, level)
		}
	}
	return nil
}

// unpatch restores every level this interceptor installed
func (i *Interceptor) unpatch() {
	for _, level := range i.patched {
		i.console.restore(level, i)
	}
	i.patched = nil
}

// wrap builds the replacement for level: original behavior first, then capture
func (i *Interceptor) wrap(level Level) func(original Method) Method {
	return func(original Method) Method {
		return func(args ...any) {
			original(args...)
			i.capture(level, args)
		}
	}
}

// capture records one call and flushes when the buffer reaches the batch size
func (i *Interceptor) capture(level Level, args []any) {
	entry := LogEntry{
		Level:     level,
		Message:   serializer.Message(args),
		Args:      serializer.Args(args),
		Timestamp: i.now(),
		Source:    SourceRenderer,
	}
	if level == LevelError {
		entry.Stack = serializer.Stack(0, stackTrim...)
	}

	i.mu.Lock()
	if i.destroyed {
		i.mu.Unlock()
		return
	}
	i.buffer = append(i.buffer, entry)
	i.captured.Add(1)

	if len(i.buffer) >= i.cfg.BatchSize {
		i.enqueueLocked(i.drainLocked())
		i.mu.Unlock()
		i.deliver()
		return
	}

	if i.timer == nil {
		gen := i.timerGen
		i.timer = i.afterFunc(i.cfg.BatchTimeout, func() { i.onTimer(gen) })
	}
	i.mu.Unlock()
}

// onTimer flushes a partial batch unless a drain already superseded this timer
func (i *Interceptor) onTimer(gen uint64) {
	i.mu.Lock()
	if gen != i.timerGen {
		i.mu.Unlock()
		return
	}
	i.timer = nil
	i.enqueueLocked(i.drainLocked())
	i.mu.Unlock()
	i.deliver()
}

// Flush drains the buffer immediately; an empty buffer is a no-op
func (i *Interceptor) Flush() {
	i.mu.Lock()
	i.enqueueLocked(i.drainLocked())
	i.mu.Unlock()
	i.deliver()
}

// drainLocked snapshots and clears the buffer and cancels the pending timer
func (i *Interceptor) drainLocked() []LogEntry {
	if len(i.buffer) == 0 {
		return nil
	}

	logs := i.buffer
	i.buffer = make([]LogEntry, 0, i.cfg.BatchSize)

	if i.timer != nil {
		i.timer.Stop()
		i.timer = nil
	}
	i.timerGen++

	return logs
}

func (i *Interceptor) enqueueLocked(logs []LogEntry) {
	if len(logs) > 0 {
		i.queue = append(i.queue, logs)
	}
}

// deliver hands queued batches to the capability in drain order, outside the lock.
// Only one goroutine delivers at a time; a flush triggered from inside SendLogs
// is queued and picked up by the running loop.
func (i *Interceptor) deliver() {
	i.mu.Lock()
	if i.delivering {
		i.mu.Unlock()
		return
	}
	i.delivering = true

	for len(i.queue) > 0 {
		logs := i.queue[0]
		i.queue[0] = nil
		i.queue = i.queue[1:]
		i.mu.Unlock()

		i.send(LogBatch{Logs: logs, Timestamp: i.now()})

		i.mu.Lock()
	}

	i.delivering = false
	i.idle.Broadcast()
	i.mu.Unlock()
}

// send passes one batch across the boundary without awaiting any result
func (i *Interceptor) send(batch LogBatch) {
	i.batches.Add(1)

	if i.api == nil {
		i.dropped.Add(uint64(len(batch.Logs)))
		// The original method bypasses the wrapper so the warning is not captured
		if warn := i.console.original(LevelWarn); warn != nil {
			warn("consolefwd: sendLogs capability not available, dropped", len(batch.Logs), "entries")
		}
		return
	}

	i.flushed.Add(uint64(len(batch.Logs)))
	i.api.SendLogs(batch.Logs)
}

// Destroy restores every patched level, flushes remaining entries and cancels the timer.
// It returns only after every drained batch was handed to the capability, including
// batches queued behind a delivery already running on another goroutine.
// Safe to call more than once; must not be called from inside SendLogs.
func (i *Interceptor) Destroy() {
	i.mu.Lock()
	if i.destroyed {
		i.mu.Unlock()
		return
	}
	i.destroyed = true
	i.mu.Unlock()

	i.unpatch()
	i.Flush()

	i.mu.Lock()
	for i.delivering || len(i.queue) > 0 {
		i.idle.Wait()
	}
	if i.timer != nil {
		i.timer.Stop()
		i.timer = nil
	}
	i.timerGen++
	i.mu.Unlock()
}
