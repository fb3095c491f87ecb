package compat

import (
	"fmt"
	"strings"

	"github.com/lixenwraith/consolefwd"
)

// Tags prepended to adapted messages
const (
	sourceGnet     = "[gnet]"
	sourceFastHTTP = "[fasthttp]"
)

// levelKeywords maps message fragments to a console level, checked in order
var levelKeywords = []struct {
	level    consolefwd.Level
	keywords []string
}{
	{consolefwd.LevelError, []string{"error", "failed", "fatal", "panic"}},
	{consolefwd.LevelWarn, []string{"warn", "deprecated"}},
	{consolefwd.LevelDebug, []string{"debug", "trace"}},
}

// FastHTTPAdapter implements the fasthttp Logger interface on a consolefwd.Console.
// fasthttp logs through a single Printf, so the level is guessed from the text.
type FastHTTPAdapter struct {
	console *consolefwd.Console
}

// NewFastHTTPAdapter creates a fasthttp logger; nil selects consolefwd.StdConsole
func NewFastHTTPAdapter(console *consolefwd.Console) *FastHTTPAdapter {
	if console == nil {
		console = consolefwd.StdConsole()
	}
	return &FastHTTPAdapter{console: console}
}

// Printf implements fasthttp's Logger interface
func (a *FastHTTPAdapter) Printf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	a.console.Call(DetectLogLevel(msg), sourceFastHTTP, msg)
}

// DetectLogLevel guesses a console level from message content, info when nothing matches
func DetectLogLevel(msg string) consolefwd.Level {
	lower := strings.ToLower(msg)
	for _, rule := range levelKeywords {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.level
			}
		}
	}
	return consolefwd.LevelInfo
}
