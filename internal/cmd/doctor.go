package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/Alia5/ghostkey/internal/version"
	"github.com/Alia5/ghostkey/platform"
)

// Doctor reports whether this machine can run injection sessions.
type Doctor struct {
	Platform string `help:"Input platform backend to check (defaults to the native one)" env:"GHOSTKEY_PLATFORM"`

	out io.Writer
}

// Run is called by Kong when the doctor command is executed.
func (d *Doctor) Run(logger *slog.Logger) error {
	w := d.out
	if w == nil {
		w = os.Stdout
	}
	fmt.Fprintf(w, "ghostkey %s\n", version.Get())
	fmt.Fprintf(w, "os:             %s/%s %s\n", runtime.GOOS, runtime.GOARCH, osRelease())
	fmt.Fprintf(w, "platforms:      %s\n", strings.Join(platform.Names(), ", "))

	p, err := platform.Open(d.Platform, logger)
	if err != nil {
		fmt.Fprintf(w, "platform:       unavailable (%v)\n", err)
		return err
	}
	defer p.Close()
	fmt.Fprintf(w, "platform:       %s\n", p.Name())

	trusted, hint := p.Trusted()
	if trusted {
		fmt.Fprintln(w, "input access:   granted")
	} else {
		fmt.Fprintf(w, "input access:   missing (%s)\n", hint)
	}
	if p.SecureInputActive() {
		fmt.Fprintln(w, "secure input:   active (injection pauses until the secure field loses focus)")
	} else {
		fmt.Fprintln(w, "secure input:   inactive")
	}
	if !trusted {
		return fmt.Errorf("input access not granted")
	}
	return nil
}
