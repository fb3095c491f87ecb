package serializer

import (
	"path/filepath"
	"reflect"
	"runtime"
	"strconv"
	"strings"
	"unicode"
)

// maxStackFrames bounds the frames captured for error-level entries
const maxStackFrames = 32

// FuncName returns the short name of a function value, "anonymous" for closures and unknown functions
func FuncName(fn any) string {
	if !IsCallable(fn) {
		return "anonymous"
	}
	v := reflect.ValueOf(fn)
	if v.IsNil() {
		return "anonymous"
	}
	f := runtime.FuncForPC(v.Pointer())
	if f == nil {
		return "anonymous"
	}
	return shortName(f.Name())
}

// shortName reduces a fully qualified runtime name to its last element.
// "pkg.outer.func1" is a closure and becomes "anonymous"; "pkg.(*T).Run-fm" becomes "Run".
func shortName(full string) string {
	base := filepath.Base(full)
	parts := strings.Split(base, ".")
	last := strings.TrimSuffix(parts[len(parts)-1], "-fm")
	if last == "" || isClosure(last) || isDigits(last) {
		return "anonymous"
	}
	return last
}

// isClosure matches the compiler's "funcN" naming of anonymous functions
func isClosure(name string) bool {
	if !strings.HasPrefix(name, "func") || len(name) == 4 {
		return false
	}
	return isDigits(name[4:])
}

// isDigits matches the numeric suffix of nested closures ("outer.func1.2")
func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

// Stack captures the calling goroutine's stack, skipping skip frames above the caller of Stack.
// Leading frames whose function name starts with any of trim are dropped as well.
// Output mirrors a browser console trace: an "Error" header then one "    at" line per frame.
func Stack(skip int, trim ...string) string {
	pc := make([]uintptr, maxStackFrames)
	n := runtime.Callers(skip+2, pc) // +2 for runtime.Callers and Stack itself
	if n == 0 {
		return "Error"
	}
	frames := runtime.CallersFrames(pc[:n])

	var sb strings.Builder
	sb.WriteString("Error")
	leading := true
	for {
		frame, more := frames.Next()
		if leading && hasAnyPrefix(frame.Function, trim) {
			if !more {
				break
			}
			continue
		}
		leading = false
		name := frame.Function
		if name == "" {
			name = "(unknown)"
		}
		sb.WriteString("\n    at ")
		sb.WriteString(name)
		sb.WriteString(" (")
		sb.WriteString(frame.File)
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(frame.Line))
		sb.WriteByte(')')
		if !more {
			break
		}
	}
	return sb.String()
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
