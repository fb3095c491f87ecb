// Package formatter renders a single console call as a txt or json line.
package formatter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"

	"github.com/lixenwraith/consolefwd/sanitizer"
)

// Output formats
const (
	FormatTxt  = "txt"
	FormatJSON = "json"
)

// dumper renders values with no dedicated case; it tolerates cycles and deep graphs
var dumper = &spew.ConfigState{
	Indent:                  " ",
	MaxDepth:                10,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// Formatter holds rendering options and a reusable buffer.
// A Formatter is not safe for concurrent use; callers serialize access.
type Formatter struct {
	format          string
	timestampFormat string
	showTimestamp   bool
	showLevel       bool
	mode            sanitizer.Mode
	buf             []byte
}

// New creates a txt formatter with timestamps, levels and hex-encoding of control characters
func New() *Formatter {
	return &Formatter{
		format:          FormatTxt,
		timestampFormat: time.RFC3339Nano,
		showTimestamp:   true,
		showLevel:       true,
		mode:            sanitizer.HexEncode,
		buf:             make([]byte, 0, 1024),
	}
}

// Type sets the output format ("txt" or "json")
func (f *Formatter) Type(format string) *Formatter {
	if format == FormatJSON {
		f.format = FormatJSON
	} else {
		f.format = FormatTxt
	}
	return f
}

// TimestampFormat sets the timestamp layout, empty keeps the current one
func (f *Formatter) TimestampFormat(layout string) *Formatter {
	if layout != "" {
		f.timestampFormat = layout
	}
	return f
}

// ShowTimestamp toggles the timestamp column
func (f *Formatter) ShowTimestamp(show bool) *Formatter {
	f.showTimestamp = show
	return f
}

// ShowLevel toggles the level column
func (f *Formatter) ShowLevel(show bool) *Formatter {
	f.showLevel = show
	return f
}

// Sanitize sets the control character policy for txt output.
// JSON output always escapes.
func (f *Formatter) Sanitize(mode sanitizer.Mode) *Formatter {
	f.mode = mode
	return f
}

// Format renders one line terminated by '\n'.
// The returned slice is only valid until the next call.
func (f *Formatter) Format(timestamp time.Time, level string, args []any) []byte {
	f.buf = f.buf[:0]
	if f.format == FormatJSON {
		return f.formatJSON(timestamp, level, args)
	}
	return f.formatTxt(timestamp, level, args)
}

// FormatArgs renders args space-separated without metadata or newline
func (f *Formatter) FormatArgs(args ...any) string {
	f.buf = f.buf[:0]
	for i, arg := range args {
		if i > 0 {
			f.buf = append(f.buf, ' ')
		}
		f.buf = sanitizer.Append(f.buf, textOf(arg, f.timestampFormat), f.mode)
	}
	return string(f.buf)
}

func (f *Formatter) formatTxt(timestamp time.Time, level string, args []any) []byte {
	needsSpace := false

	if f.showTimestamp {
		f.buf = timestamp.AppendFormat(f.buf, f.timestampFormat)
		needsSpace = true
	}

	if f.showLevel {
		if needsSpace {
			f.buf = append(f.buf, ' ')
		}
		f.buf = append(f.buf, strings.ToUpper(level)...)
		needsSpace = true
	}

	for _, arg := range args {
		if needsSpace {
			f.buf = append(f.buf, ' ')
		}
		f.buf = sanitizer.Append(f.buf, textOf(arg, f.timestampFormat), f.mode)
		needsSpace = true
	}

	f.buf = append(f.buf, '\n')
	return f.buf
}

func (f *Formatter) formatJSON(timestamp time.Time, level string, args []any) []byte {
	f.buf = append(f.buf, '{')
	needsComma := false

	if f.showTimestamp {
		f.buf = append(f.buf, `"time":"`...)
		f.buf = timestamp.AppendFormat(f.buf, f.timestampFormat)
		f.buf = append(f.buf, '"')
		needsComma = true
	}

	if f.showLevel {
		if needsComma {
			f.buf = append(f.buf, ',')
		}
		f.buf = append(f.buf, `"level":"`...)
		f.buf = append(f.buf, strings.ToUpper(level)...)
		f.buf = append(f.buf, '"')
		needsComma = true
	}

	if needsComma {
		f.buf = append(f.buf, ',')
	}
	f.buf = append(f.buf, `"fields":[`...)
	for i, arg := range args {
		if i > 0 {
			f.buf = append(f.buf, ',')
		}
		f.appendJSONValue(arg)
	}
	f.buf = append(f.buf, ']', '}', '\n')
	return f.buf
}

// appendJSONValue writes numbers, booleans and null bare, everything else as a string
func (f *Formatter) appendJSONValue(v any) {
	switch val := v.(type) {
	case nil:
		f.buf = append(f.buf, "null"...)
	case bool:
		f.buf = strconv.AppendBool(f.buf, val)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		f.buf = fmt.Append(f.buf, val)
	case float32, float64:
		s := textOf(val, f.timestampFormat)
		if s == "NaN" || strings.HasSuffix(s, "Inf") {
			f.appendJSONString(s)
			return
		}
		f.buf = append(f.buf, s...)
	default:
		f.appendJSONString(textOf(v, f.timestampFormat))
	}
}

func (f *Formatter) appendJSONString(s string) {
	f.buf = append(f.buf, '"')
	f.buf = sanitizer.Append(f.buf, s, sanitizer.Escape)
	f.buf = append(f.buf, '"')
}

// textOf converts a value to its display text
func textOf(v any, timestampFormat string) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return "nil"
	case time.Time:
		return val.Format(timestampFormat)
	case error:
		return val.Error()
	case fmt.Stringer:
		return val.String()
	default:
		return dumper.Sprint(val)
	}
}
