// Package keymap holds the reference US ANSI layout used to turn characters into
// macOS virtual key presses.
package keymap

import (
	"fmt"
	"sort"
	"strings"
)

// Entry describes how a character is typed: the key to press and whether Shift
// has to be held while pressing it.
type Entry struct {
	Code  KeyCode
	Shift bool
}

// Lookup returns the key entry for r. Characters outside the table return false;
// callers fall back to unicode-only injection for those.
func Lookup(r rune) (Entry, bool) {
	code, ok := CharToKey[r]
	if !ok {
		return Entry{}, false
	}
	return Entry{Code: code, Shift: ShiftChars[r]}, true
}

// Whitespace returns the dedicated key for newline, tab and space.
func Whitespace(r rune) (KeyCode, bool) {
	code, ok := whitespace[r]
	return code, ok
}

// Named resolves a key name such as "escape", "F12" or "0x35" to its code.
// Name lookup is case-insensitive.
func Named(name string) (KeyCode, bool) {
	n := strings.TrimSpace(name)
	if n == "" {
		return 0, false
	}
	var raw uint16
	if _, err := fmt.Sscanf(n, "0x%x", &raw); err == nil {
		return KeyCode(raw), true
	}
	for code, kn := range KeyName {
		if strings.EqualFold(kn, n) {
			return code, true
		}
	}
	switch strings.ToLower(n) {
	case "esc":
		return KeyEscape, true
	case "enter":
		return KeyReturn, true
	case "backspace":
		return KeyDelete, true
	}
	return 0, false
}

// String returns the key name, or its hex code when the key is unnamed.
func (k KeyCode) String() string {
	if n, ok := KeyName[k]; ok {
		return n
	}
	return fmt.Sprintf("0x%02X", uint16(k))
}

// Chars returns every character of the table in a stable order.
func Chars() []rune {
	out := make([]rune, 0, len(CharToKey))
	for r := range CharToKey {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
