// Package serializer converts console call arguments into the two forms carried
// by a log entry: a flat message string and a JSON-safe argument list.
package serializer

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/davecgh/go-spew/spew"
)

// NonSerializable replaces an argument whose structural copy failed
const NonSerializable = "[Circular or Non-Serializable]"

// coercer is the default string coercion for values JSON cannot encode
var coercer = &spew.ConfigState{
	MaxDepth:                10,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// Stacker is implemented by errors that carry their own stack text
type Stacker interface {
	Stack() string
}

// Namer is implemented by errors that report a display name
type Namer interface {
	Name() string
}

// Message joins the text form of each argument with a single space
func Message(args []any) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = messageToken(arg)
	}
	return strings.Join(parts, " ")
}

// Args returns a transformed copy of args, one element per original argument
func Args(args []any) []any {
	out := make([]any, len(args))
	for i, arg := range args {
		out[i] = argValue(arg)
	}
	return out
}

// messageToken stringifies one argument; a panicking String/Error/MarshalJSON yields the coercion.
// Functions have no JSON form and contribute an empty token; Args keeps their label.
func messageToken(arg any) (token string) {
	defer func() {
		if r := recover(); r != nil {
			token = coerce(arg)
		}
	}()

	switch v := arg.(type) {
	case string:
		return v
	case error:
		return v.Error()
	}
	if IsCallable(arg) {
		return ""
	}
	b, err := json.Marshal(arg)
	if err != nil {
		return coerce(arg)
	}
	return string(b)
}

// argValue converts one argument to its JSON-safe form
func argValue(arg any) (value any) {
	defer func() {
		if r := recover(); r != nil {
			value = NonSerializable
		}
	}()

	if err, ok := arg.(error); ok {
		return ErrorRecord(err)
	}
	if IsCallable(arg) {
		return FunctionLabel(arg)
	}
	if IsPrimitive(arg) {
		return arg
	}
	return roundTrip(arg)
}

// roundTrip deep-copies v through JSON, failing to the sentinel on cycles or unsupported kinds
func roundTrip(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return NonSerializable
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return NonSerializable
	}
	return out
}

// coerce is the fallback text form, safe on cyclic values
func coerce(v any) (s string) {
	defer func() {
		if r := recover(); r != nil {
			s = fmt.Sprintf("%T", v)
		}
	}()
	return coercer.Sprint(v)
}

// ErrorRecord flattens an error into {name, message, stack}
func ErrorRecord(err error) map[string]any {
	return map[string]any{
		"name":    ErrorName(err),
		"message": err.Error(),
		"stack":   ErrorStack(err),
	}
}

// ErrorName reports Name() when implemented, otherwise the exported type name, otherwise "Error"
func ErrorName(err error) string {
	if n, ok := err.(Namer); ok {
		if name := n.Name(); name != "" {
			return name
		}
	}
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	name := t.Name()
	if name == "" || !unicode.IsUpper([]rune(name)[0]) {
		return "Error"
	}
	return name
}

// ErrorStack returns the stack an error carries, or "" when it has none.
// Errors formatting themselves under %+v (github.com/pkg/errors and similar) are detected by output.
func ErrorStack(err error) string {
	if s, ok := err.(Stacker); ok {
		return s.Stack()
	}
	if _, ok := err.(fmt.Formatter); ok {
		verbose := fmt.Sprintf("%+v", err)
		if verbose != err.Error() {
			return verbose
		}
	}
	return ""
}

// IsCallable reports whether v is a non-nil-typed function value
func IsCallable(v any) bool {
	return v != nil && reflect.TypeOf(v).Kind() == reflect.Func
}

// IsPrimitive reports whether v is nil, a boolean, a number or a string
func IsPrimitive(v any) bool {
	if v == nil {
		return true
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// FunctionLabel renders a function value as "[Function: <name>]"
func FunctionLabel(fn any) string {
	return "[Function: " + FuncName(fn) + "]"
}
