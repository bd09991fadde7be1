package keymap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Alia5/ghostkey/keymap"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name  string
		char  rune
		want  keymap.Entry
		found bool
	}{
		{name: "lowercase", char: 'h', want: keymap.Entry{Code: keymap.KeyH}, found: true},
		{name: "uppercase needs shift", char: 'H', want: keymap.Entry{Code: keymap.KeyH, Shift: true}, found: true},
		{name: "digit", char: '7', want: keymap.Entry{Code: keymap.Key7}, found: true},
		{name: "shifted digit", char: '!', want: keymap.Entry{Code: keymap.Key1, Shift: true}, found: true},
		{name: "semicolon", char: ';', want: keymap.Entry{Code: keymap.KeySemicolon}, found: true},
		{name: "colon", char: ':', want: keymap.Entry{Code: keymap.KeySemicolon, Shift: true}, found: true},
		{name: "quote", char: '"', want: keymap.Entry{Code: keymap.KeyQuote, Shift: true}, found: true},
		{name: "tilde", char: '~', want: keymap.Entry{Code: keymap.KeyGrave, Shift: true}, found: true},
		{name: "emoji", char: '🙂', found: false},
		{name: "accented", char: 'é', found: false},
		{name: "space is not a table entry", char: ' ', found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := keymap.Lookup(tt.char)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestWhitespace(t *testing.T) {
	code, ok := keymap.Whitespace('\n')
	assert.True(t, ok)
	assert.Equal(t, keymap.KeyReturn, code)

	code, ok = keymap.Whitespace('\t')
	assert.True(t, ok)
	assert.Equal(t, keymap.KeyTab, code)

	code, ok = keymap.Whitespace(' ')
	assert.True(t, ok)
	assert.Equal(t, keymap.KeySpace, code)

	_, ok = keymap.Whitespace('a')
	assert.False(t, ok)
}

func TestNamed(t *testing.T) {
	tests := []struct {
		in    string
		want  keymap.KeyCode
		found bool
	}{
		{in: "escape", want: keymap.KeyEscape, found: true},
		{in: "Escape", want: keymap.KeyEscape, found: true},
		{in: "esc", want: keymap.KeyEscape, found: true},
		{in: "F12", want: keymap.KeyF12, found: true},
		{in: "0x35", want: keymap.KeyEscape, found: true},
		{in: "enter", want: keymap.KeyReturn, found: true},
		{in: "", found: false},
		{in: "hyper", found: false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := keymap.Named(tt.in)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestTableConsistency(t *testing.T) {
	for r := range keymap.ShiftChars {
		_, ok := keymap.CharToKey[r]
		assert.Truef(t, ok, "shift char %q has no key", r)
	}
	for _, r := range keymap.Chars() {
		code := keymap.CharToKey[r]
		_, named := keymap.KeyName[code]
		assert.Truef(t, named, "key for %q has no name", r)
	}
}

func TestKeyCodeString(t *testing.T) {
	assert.Equal(t, "Escape", keymap.KeyEscape.String())
	assert.Equal(t, "0x5F", keymap.KeyCode(0x5F).String())
}
