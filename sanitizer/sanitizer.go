// Package sanitizer neutralizes control characters in console text before it
// reaches a terminal or a JSON line.
package sanitizer

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"unicode/utf8"
)

// Mode selects how a non-printable rune is rewritten
type Mode int

const (
	None      Mode = iota // Passthrough
	HexEncode             // Rune bytes as "<xxyy>"
	Strip                 // Rune removed
	Escape                // JSON-style backslash escape
)

// ParseMode converts a mode name ("none", "hex", "strip", "escape")
func ParseMode(name string) (Mode, error) {
	switch name {
	case "none", "":
		return None, nil
	case "hex":
		return HexEncode, nil
	case "strip":
		return Strip, nil
	case "escape":
		return Escape, nil
	default:
		return None, fmt.Errorf("sanitizer: unknown mode '%s' (use none, hex, strip, escape)", name)
	}
}

// Sanitize rewrites s according to mode.
// Newlines and tabs are kept by HexEncode and Strip so multi-line console output stays readable.
func Sanitize(s string, mode Mode) string {
	if mode == None || clean(s, mode) {
		return s
	}
	buf := make([]byte, 0, len(s)+8)
	return string(Append(buf, s, mode))
}

// Append sanitizes s into buf and returns the extended buffer
func Append(buf []byte, s string, mode Mode) []byte {
	if mode == None {
		return append(buf, s...)
	}
	for _, r := range s {
		if !matches(r, mode) {
			buf = utf8.AppendRune(buf, r)
			continue
		}
		switch mode {
		case HexEncode:
			var rb [utf8.UTFMax]byte
			n := utf8.EncodeRune(rb[:], r)
			buf = append(buf, '<')
			buf = hex.AppendEncode(buf, rb[:n])
			buf = append(buf, '>')
		case Strip:
			// dropped
		case Escape:
			buf = appendEscaped(buf, r)
		}
	}
	return buf
}

// clean reports whether s contains nothing mode would rewrite
func clean(s string, mode Mode) bool {
	for _, r := range s {
		if matches(r, mode) {
			return false
		}
	}
	return true
}

func matches(r rune, mode Mode) bool {
	switch mode {
	case HexEncode, Strip:
		if r == '\n' || r == '\t' {
			return false
		}
		return !strconv.IsPrint(r)
	case Escape:
		return r < 0x20 || r == 0x7f || r == '"' || r == '\\'
	}
	return false
}

func appendEscaped(buf []byte, r rune) []byte {
	switch r {
	case '\n':
		return append(buf, '\\', 'n')
	case '\r':
		return append(buf, '\\', 'r')
	case '\t':
		return append(buf, '\\', 't')
	case '\b':
		return append(buf, '\\', 'b')
	case '\f':
		return append(buf, '\\', 'f')
	case '"':
		return append(buf, '\\', '"')
	case '\\':
		return append(buf, '\\', '\\')
	default:
		return fmt.Appendf(buf, "\\u%04x", r)
	}
}
