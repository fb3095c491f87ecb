package consolefwd

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ApplyOverride sets options from "key=value" strings.
// Every override is attempted; failures are reported together.
//
// Example:
//
//	var opts consolefwd.Options
//	err := opts.ApplyOverride(
//	    "dev_server_url=http://localhost:5173",
//	    "levels=warn,error",
//	    "batch_timeout=250ms",
//	)
func (o *Options) ApplyOverride(overrides ...string) error {
	var errors []error

	for _, override := range overrides {
		key, value, err := parseKeyValue(override)
		if err != nil {
			errors = append(errors, err)
			continue
		}

		if err := applyOptionField(o, key, value); err != nil {
			errors = append(errors, err)
		}
	}

	if len(errors) > 0 {
		return combineConfigErrors(errors)
	}
	return nil
}

// combineConfigErrors combines multiple configuration errors into a single error.
func combineConfigErrors(errors []error) error {
	if len(errors) == 0 {
		return nil
	}
	if len(errors) == 1 {
		return errors[0]
	}

	var sb strings.Builder
	sb.WriteString("consolefwd: multiple configuration errors:")
	for i, err := range errors {
		errMsg := strings.TrimPrefix(err.Error(), "consolefwd: ")
		sb.WriteString(fmt.Sprintf("\n  %d. %s", i+1, errMsg))
	}
	return fmt.Errorf("%s", sb.String())
}

// applyOptionField applies a single key-value override to Options
func applyOptionField(o *Options, key, value string) error {
	switch key {
	case "enabled":
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			return fmtErrorf("invalid boolean value for enabled '%s': %w", value, err)
		}
		o.Enabled = &boolVal
	case "endpoint":
		o.Endpoint = &value
	case "levels":
		levels, err := ParseLevels(value)
		if err != nil {
			return fmtErrorf("invalid levels value '%s': %w", value, err)
		}
		o.Levels = levels
	case "dev_server_url":
		o.DevServerURL = &value
	case "batch_size":
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return fmtErrorf("invalid integer value for batch_size '%s': %w", value, err)
		}
		o.BatchSize = &intVal
	case "batch_timeout", "batch_timeout_ms":
		d, err := parseDurationMs(value)
		if err != nil {
			return fmtErrorf("invalid duration value for %s '%s': %w", key, value, err)
		}
		o.BatchTimeout = &d
	default:
		return fmtErrorf("unknown configuration key '%s'", key)
	}

	return nil
}

// parseDurationMs accepts a Go duration ("250ms") or a bare integer of milliseconds
func parseDurationMs(value string) (time.Duration, error) {
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(value)
}
