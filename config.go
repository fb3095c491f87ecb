package consolefwd

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/lixenwraith/config"
)

// Options holds construction-time settings; a nil field is unset and resolves
// from the environment (dev server URL only) or the hard default
type Options struct {
	Enabled      *bool
	Endpoint     *string
	Levels       []Level // nil is unset, an explicit empty list patches nothing
	DevServerURL *string
	BatchSize    *int
	BatchTimeout *time.Duration
}

// Config is the fully resolved configuration, every field concrete
type Config struct {
	Enabled      bool
	Endpoint     string
	Levels       []Level
	DevServerURL string
	BatchSize    int
	BatchTimeout time.Duration
}

// defaultConfig is the single source for all hard default values
var defaultConfig = Config{
	Enabled:      true,
	Endpoint:     DefaultEndpoint,
	Levels:       nil, // DefaultLevels() on copy
	DevServerURL: DefaultDevServerURL,
	BatchSize:    DefaultBatchSize,
	BatchTimeout: DefaultBatchTimeout,
}

// DefaultLevels returns the levels intercepted when none are configured
func DefaultLevels() []Level {
	return []Level{LevelLog, LevelWarn, LevelError, LevelInfo, LevelDebug}
}

// DefaultConfig returns a copy of the hard defaults
func DefaultConfig() *Config {
	copiedConfig := defaultConfig
	copiedConfig.Levels = DefaultLevels()
	return &copiedConfig
}

// Resolve merges explicit options over environment discovery over hard defaults.
// lookup may be nil, in which case no environment is consulted.
// Resolve has no side effects and returns the same result for the same inputs.
// A disabled configuration is returned unvalidated, since nothing consumes it.
func Resolve(opts Options, lookup LookupFunc) (*Config, error) {
	cfg := DefaultConfig()

	if opts.Enabled != nil {
		cfg.Enabled = *opts.Enabled
	}
	if opts.Endpoint != nil {
		cfg.Endpoint = *opts.Endpoint
	}
	if opts.Levels != nil {
		cfg.Levels = dedupeLevels(opts.Levels)
	}
	if opts.DevServerURL != nil {
		cfg.DevServerURL = *opts.DevServerURL
	} else if discovered, ok := DiscoverDevServerURL(lookup); ok {
		cfg.DevServerURL = discovered
	}
	cfg.DevServerURL = strings.TrimRight(cfg.DevServerURL, "/")
	if opts.BatchSize != nil {
		cfg.BatchSize = *opts.BatchSize
	}
	if opts.BatchTimeout != nil {
		cfg.BatchTimeout = *opts.BatchTimeout
	}

	if !cfg.Enabled {
		return cfg, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks a resolved configuration
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Endpoint, "/") {
		return fmtErrorf("endpoint must start with '/': '%s'", c.Endpoint)
	}

	u, err := url.Parse(c.DevServerURL)
	if err != nil {
		return fmtErrorf("invalid dev_server_url '%s': %w", c.DevServerURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmtErrorf("dev_server_url must be an absolute http(s) URL: '%s'", c.DevServerURL)
	}

	if c.BatchSize <= 0 {
		return fmtErrorf("batch_size must be positive: %d", c.BatchSize)
	}
	if c.BatchTimeout <= 0 {
		return fmtErrorf("batch_timeout must be positive: %v", c.BatchTimeout)
	}

	for _, level := range c.Levels {
		if !level.valid() {
			return fmtErrorf("unknown level '%s' (use %s)", level, levelNames())
		}
	}

	return nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	copiedConfig := *c
	copiedConfig.Levels = append([]Level(nil), c.Levels...)
	return &copiedConfig
}

// URL returns the sink target, dev server base plus endpoint
func (c *Config) URL() string {
	return c.DevServerURL + c.Endpoint
}

// dedupeLevels keeps the first occurrence of each level
func dedupeLevels(levels []Level) []Level {
	out := make([]Level, 0, len(levels))
	seen := make(map[Level]bool, len(levels))
	for _, level := range levels {
		if seen[level] {
			continue
		}
		seen[level] = true
		out = append(out, level)
	}
	return out
}

// fileOptions mirrors the [forward] table of a TOML options file.
// dev_server_url defaults to "" so an absent key stays distinguishable from an explicit default.
type fileOptions struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Levels         string `toml:"levels"` // Comma separated
	DevServerURL   string `toml:"dev_server_url"`
	BatchSize      int64  `toml:"batch_size"`
	BatchTimeoutMs int64  `toml:"batch_timeout_ms"`
}

// fileOptionsPrefix is the table holding forwarding keys
const fileOptionsPrefix = "forward."

// NewOptionsFromFile loads options from a TOML file.
// A missing file yields empty Options. Keys left at their default value are treated as unset.
func NewOptionsFromFile(path string) (Options, error) {
	defaults := fileOptions{
		Enabled:        defaultConfig.Enabled,
		Endpoint:       defaultConfig.Endpoint,
		Levels:         joinLevels(DefaultLevels()),
		DevServerURL:   "",
		BatchSize:      int64(defaultConfig.BatchSize),
		BatchTimeoutMs: defaultConfig.BatchTimeout.Milliseconds(),
	}

	loader := config.New()
	if err := loader.RegisterStruct(fileOptionsPrefix, defaults); err != nil {
		return Options{}, fmtErrorf("failed to register options struct: %w", err)
	}

	if err := loader.Load(path, nil); err != nil {
		if errors.Is(err, config.ErrConfigNotFound) {
			return Options{}, nil
		}
		return Options{}, fmtErrorf("failed to load options from %s: %w", path, err)
	}

	var opts Options
	var errs []error
	for _, key := range []string{"enabled", "endpoint", "levels", "dev_server_url", "batch_size", "batch_timeout_ms"} {
		val, found := loader.Get(fileOptionsPrefix + key)
		if !found {
			continue
		}
		if err := applyFileValue(&opts, defaults, key, val); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return Options{}, combineConfigErrors(errs)
	}

	return opts, nil
}

// applyFileValue sets one option from a loaded value when it differs from the registered default
func applyFileValue(opts *Options, defaults fileOptions, key string, val any) error {
	switch key {
	case "enabled":
		b, ok := val.(bool)
		if !ok {
			return fmtErrorf("enabled must be bool, got %T", val)
		}
		if b != defaults.Enabled {
			opts.Enabled = &b
		}
	case "endpoint", "levels", "dev_server_url":
		s, ok := val.(string)
		if !ok {
			return fmtErrorf("%s must be string, got %T", key, val)
		}
		var def string
		switch key {
		case "endpoint":
			def = defaults.Endpoint
		case "levels":
			def = defaults.Levels
		case "dev_server_url":
			def = defaults.DevServerURL
		}
		if s == def {
			return nil
		}
		return applyOptionField(opts, key, s)
	case "batch_size", "batch_timeout_ms":
		n, err := toInt64(val)
		if err != nil {
			return fmtErrorf("%s: %w", key, err)
		}
		if key == "batch_size" && n != defaults.BatchSize {
			size := int(n)
			opts.BatchSize = &size
		}
		if key == "batch_timeout_ms" && n != defaults.BatchTimeoutMs {
			d := time.Duration(n) * time.Millisecond
			opts.BatchTimeout = &d
		}
	}
	return nil
}

// toInt64 accepts the integer shapes a TOML decoder produces
func toInt64(val any) (int64, error) {
	switch v := val.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		if v != float64(int64(v)) {
			return 0, fmt.Errorf("expected integer, got %v", v)
		}
		return int64(v), nil
	default:
		return 0, fmt.Errorf("expected int64, got %T", val)
	}
}
