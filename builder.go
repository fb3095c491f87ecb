package consolefwd

import (
	"time"
)

// Builder provides a fluent API for assembling Options.
// Only fields touched by a setter become explicit.
type Builder struct {
	opts Options
	err  error // Accumulate errors for deferred handling
}

// NewBuilder creates a builder with every option unset
func NewBuilder() *Builder {
	return &Builder{}
}

// Options returns the assembled options or the first deferred error
func (b *Builder) Options() (Options, error) {
	if b.err != nil {
		return Options{}, b.err
	}
	opts := b.opts
	if b.opts.Levels != nil {
		opts.Levels = append([]Level{}, b.opts.Levels...)
	}
	return opts, nil
}

// Config resolves the assembled options against lookup and the hard defaults
func (b *Builder) Config(lookup LookupFunc) (*Config, error) {
	opts, err := b.Options()
	if err != nil {
		return nil, err
	}
	return Resolve(opts, lookup)
}

// Enabled sets the global kill switch.
func (b *Builder) Enabled(enabled bool) *Builder {
	b.opts.Enabled = &enabled
	return b
}

// Endpoint sets the path appended to the dev server URL.
func (b *Builder) Endpoint(endpoint string) *Builder {
	b.opts.Endpoint = &endpoint
	return b
}

// Levels sets the intercepted levels.
func (b *Builder) Levels(levels ...Level) *Builder {
	b.opts.Levels = append([]Level{}, levels...)
	return b
}

// LevelsString sets the intercepted levels from a comma separated list.
func (b *Builder) LevelsString(list string) *Builder {
	if b.err != nil {
		return b
	}
	levels, err := ParseLevels(list)
	if err != nil {
		b.err = err
		return b
	}
	b.opts.Levels = levels
	return b
}

// DevServerURL sets the sink base URL, taking precedence over the environment.
func (b *Builder) DevServerURL(url string) *Builder {
	b.opts.DevServerURL = &url
	return b
}

// BatchSize sets the entry count that triggers a flush.
func (b *Builder) BatchSize(size int) *Builder {
	b.opts.BatchSize = &size
	return b
}

// BatchTimeout sets the inactivity delay before a partial batch flushes.
func (b *Builder) BatchTimeout(timeout time.Duration) *Builder {
	b.opts.BatchTimeout = &timeout
	return b
}

// Override applies "key=value" strings, deferring any error.
func (b *Builder) Override(overrides ...string) *Builder {
	if b.err != nil {
		return b
	}
	if err := b.opts.ApplyOverride(overrides...); err != nil {
		b.err = err
	}
	return b
}

// Example usage:
// opts, err := consolefwd.NewBuilder().
//
//	LevelsString("log,warn,error").
//	BatchSize(20).
//	BatchTimeout(500 * time.Millisecond).
//	Options()
//
// if err == nil {
//
//	 interceptor, err := consolefwd.NewInterceptor(console, api, opts)
//
// }
