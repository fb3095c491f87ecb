package consolefwd

import (
	"fmt"
	"strings"
)

// fmtErrorf wrapper
func fmtErrorf(format string, args ...any) error {
	if !strings.HasPrefix(format, "consolefwd: ") {
		format = "consolefwd: " + format
	}
	return fmt.Errorf(format, args...)
}

// parseKeyValue splits a "key=value" string.
func parseKeyValue(arg string) (string, string, error) {
	parts := strings.SplitN(strings.TrimSpace(arg), "=", 2)
	if len(parts) != 2 {
		return "", "", fmtErrorf("invalid format in override string '%s', expected key=value", arg)
	}
	key := strings.TrimSpace(parts[0])
	value := strings.TrimSpace(parts[1])
	if key == "" {
		return "", "", fmtErrorf("key cannot be empty in override string '%s'", arg)
	}
	return key, value, nil
}

// ParseLevel converts a level name to a Level, case-insensitive
func ParseLevel(levelStr string) (Level, error) {
	level := Level(strings.ToLower(strings.TrimSpace(levelStr)))
	if !level.valid() {
		return "", fmtErrorf("invalid level string: '%s' (use %s)", levelStr, levelNames())
	}
	return level, nil
}

// ParseLevels converts a comma separated list; an empty string yields an empty list
func ParseLevels(list string) ([]Level, error) {
	levels := []Level{}
	for _, part := range strings.Split(list, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		level, err := ParseLevel(part)
		if err != nil {
			return nil, err
		}
		levels = append(levels, level)
	}
	return levels, nil
}

// valid reports whether l is a recognized level
func (l Level) valid() bool {
	for _, known := range allLevels {
		if l == known {
			return true
		}
	}
	return false
}

// levelNames lists recognized levels for error messages
func levelNames() string {
	return strings.Join(levelStrings(allLevels), ", ")
}

// joinLevels renders levels as a comma separated list
func joinLevels(levels []Level) string {
	return strings.Join(levelStrings(levels), ",")
}

func levelStrings(levels []Level) []string {
	out := make([]string, len(levels))
	for i, l := range levels {
		out[i] = string(l)
	}
	return out
}
