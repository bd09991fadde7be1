package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/Alia5/ghostkey/keymap"
)

// Keymap prints the reference layout table.
type Keymap struct {
	out io.Writer
}

// Run is called by Kong when the keymap command is executed.
func (k *Keymap) Run() error {
	w := k.out
	if w == nil {
		w = os.Stdout
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHAR\tKEY\tCODE\tSHIFT")
	for _, r := range keymap.Chars() {
		e, _ := keymap.Lookup(r)
		fmt.Fprintf(tw, "%s\t%s\t0x%02X\t%t\n", strconv.QuoteRune(r), e.Code, uint16(e.Code), e.Shift)
	}
	for _, r := range []rune{' ', '\t', '\n'} {
		code, _ := keymap.Whitespace(r)
		fmt.Fprintf(tw, "%s\t%s\t0x%02X\tfalse\n", strconv.QuoteRune(r), code, uint16(code))
	}
	return tw.Flush()
}
