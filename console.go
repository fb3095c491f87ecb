package consolefwd

import (
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/lixenwraith/consolefwd/formatter"
	"github.com/lixenwraith/consolefwd/serializer"
)

// Method is the callable contract shared by every console level
type Method func(args ...any)

// ErrLevelOwned is returned when a level is already patched by another interceptor
var ErrLevelOwned = errors.New("consolefwd: level already patched by another interceptor")

// Console is the logging surface handed to an interceptor.
// Each level is backed by a replaceable Method; a level with no Method is not callable.
type Console struct {
	mu      sync.RWMutex
	methods map[Level]Method
	patches map[Level]*patch
}

// patch records the single owner of a level and the method it replaced
type patch struct {
	owner    any
	original Method
}

// NewConsole creates a console from a per-level method table; nil methods are skipped
func NewConsole(methods map[Level]Method) *Console {
	c := &Console{
		methods: make(map[Level]Method, len(methods)),
		patches: make(map[Level]*patch),
	}
	for level, m := range methods {
		if m != nil {
			c.methods[level] = m
		}
	}
	return c
}

// NewWriterConsole creates a console for every level that renders with f.
// warn and error go to stderr, all other levels to stdout.
func NewWriterConsole(stdout, stderr io.Writer, f *formatter.Formatter) *Console {
	if f == nil {
		f = formatter.New()
	}
	w := &lineWriter{f: f}

	methods := make(map[Level]Method, len(allLevels))
	for _, level := range allLevels {
		out := stdout
		if level == LevelWarn || level == LevelError {
			out = stderr
		}
		methods[level] = w.method(level, out)
	}
	return NewConsole(methods)
}

// StdConsole writes txt lines to the process stdout and stderr
func StdConsole() *Console {
	return NewWriterConsole(os.Stdout, os.Stderr, formatter.New())
}

// NopConsole accepts every level and discards it
func NopConsole() *Console {
	methods := make(map[Level]Method, len(allLevels))
	for _, level := range allLevels {
		methods[level] = func(...any) {}
	}
	return NewConsole(methods)
}

// Log calls the log level
func (c *Console) Log(args ...any) { c.Call(LevelLog, args...) }

// Info calls the info level
func (c *Console) Info(args ...any) { c.Call(LevelInfo, args...) }

// Warn calls the warn level
func (c *Console) Warn(args ...any) { c.Call(LevelWarn, args...) }

// Error calls the error level
func (c *Console) Error(args ...any) { c.Call(LevelError, args...) }

// Debug calls the debug level
func (c *Console) Debug(args ...any) { c.Call(LevelDebug, args...) }

// Trace calls the trace level
func (c *Console) Trace(args ...any) { c.Call(LevelTrace, args...) }

// Call invokes the current method for level, patched or not
func (c *Console) Call(level Level, args ...any) {
	c.mu.RLock()
	m := c.methods[level]
	c.mu.RUnlock()
	if m != nil {
		m(args...)
	}
}

// Has reports whether level is callable
func (c *Console) Has(level Level) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.methods[level] != nil
}

// Patched reports whether level currently carries a wrapper
func (c *Console) Patched(level Level) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.patches[level] != nil
}

// install replaces level with wrap(original) on behalf of owner and returns the original.
// A level that is not callable returns a nil original and no error.
// Installing twice for the same owner keeps the first wrapper.
func (c *Console) install(level Level, owner any, wrap func(original Method) Method) (Method, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p := c.patches[level]; p != nil {
		if p.owner != owner {
			return nil, ErrLevelOwned
		}
		return p.original, nil
	}

	original := c.methods[level]
	if original == nil {
		return nil, nil
	}

	c.patches[level] = &patch{owner: owner, original: original}
	c.methods[level] = wrap(original)
	return original, nil
}

// restore reinstalls the original method if owner holds the patch on level
func (c *Console) restore(level Level, owner any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.patches[level]
	if p == nil || p.owner != owner {
		return false
	}
	c.methods[level] = p.original
	delete(c.patches, level)
	return true
}

// original returns the unpatched method for level, nil if not callable
func (c *Console) original(level Level) Method {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if p := c.patches[level]; p != nil {
		return p.original
	}
	return c.methods[level]
}

// lineWriter serializes formatter access across levels
type lineWriter struct {
	mu sync.Mutex
	f  *formatter.Formatter
}

func (w *lineWriter) method(level Level, out io.Writer) Method {
	return func(args ...any) {
		if level == LevelTrace {
			args = append(append([]any{}, args...), serializer.Stack(2))
		}
		w.mu.Lock()
		defer w.mu.Unlock()
		_, _ = out.Write(w.f.Format(time.Now(), string(level), args))
	}
}
