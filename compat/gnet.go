package compat

import (
	"fmt"
	"os"

	"github.com/lixenwraith/consolefwd"
)

// GnetAdapter implements the gnet logging.Logger interface on a consolefwd.Console
type GnetAdapter struct {
	console *consolefwd.Console
	onFatal func(msg string) // os.Exit(1) unless replaced
}

// GnetOption customizes a GnetAdapter
type GnetOption func(*GnetAdapter)

// WithFatalHandler replaces the process exit performed after Fatalf
func WithFatalHandler(handler func(msg string)) GnetOption {
	return func(a *GnetAdapter) {
		a.onFatal = handler
	}
}

// NewGnetAdapter creates a gnet logger; nil selects consolefwd.StdConsole
func NewGnetAdapter(console *consolefwd.Console, opts ...GnetOption) *GnetAdapter {
	if console == nil {
		console = consolefwd.StdConsole()
	}
	a := &GnetAdapter{
		console: console,
		onFatal: func(string) { os.Exit(1) },
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *GnetAdapter) logf(level consolefwd.Level, format string, args []any) string {
	msg := fmt.Sprintf(format, args...)
	a.console.Call(level, sourceGnet, msg)
	return msg
}

func (a *GnetAdapter) Debugf(format string, args ...any) { a.logf(consolefwd.LevelDebug, format, args) }
func (a *GnetAdapter) Infof(format string, args ...any)  { a.logf(consolefwd.LevelInfo, format, args) }
func (a *GnetAdapter) Warnf(format string, args ...any)  { a.logf(consolefwd.LevelWarn, format, args) }
func (a *GnetAdapter) Errorf(format string, args ...any) { a.logf(consolefwd.LevelError, format, args) }

// Fatalf logs at error level, then runs the fatal handler
func (a *GnetAdapter) Fatalf(format string, args ...any) {
	msg := a.logf(consolefwd.LevelError, "fatal: "+format, args)
	if a.onFatal != nil {
		a.onFatal(msg)
	}
}
