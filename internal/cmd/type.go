package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/Alia5/ghostkey/engine"
	"github.com/Alia5/ghostkey/internal/log"
	"github.com/Alia5/ghostkey/platform"
)

// Type runs a single session in the foreground.
type Type struct {
	Text     string        `arg:"" optional:"" help:"Text to type (read from --file or stdin when omitted)"`
	File     string        `short:"f" help:"Read the text from a file" type:"path"`
	Platform string        `help:"Input platform backend (defaults to the native one)" env:"GHOSTKEY_PLATFORM"`
	Engine   engine.Config `embed:"" prefix:"engine."`
}

// Run is called by Kong when the type command is executed.
func (t *Type) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	text, err := t.readText(os.Stdin, term.IsTerminal(int(os.Stdin.Fd())))
	if err != nil {
		return err
	}
	p, err := platform.Open(t.Platform, logger)
	if err != nil {
		return err
	}
	defer p.Close()
	_, err = typeText(ctx, p, t.Engine, text, logger, rawLogger, os.Stderr)
	return err
}

// readText picks the text from the argument, the file or stdin, in that order.
func (t *Type) readText(stdin io.Reader, stdinIsTerminal bool) (string, error) {
	switch {
	case t.Text != "":
		return t.Text, nil
	case t.File != "":
		b, err := os.ReadFile(t.File)
		if err != nil {
			return "", err
		}
		return string(b), nil
	case stdinIsTerminal:
		return "", errors.New("no text given: pass TEXT, --file or pipe it on stdin")
	}
	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimSuffix(string(b), "\n"), nil
}

// typeText arms a session for text and waits for its end. Cancelling ctx
// cancels the session.
func typeText(ctx context.Context, p platform.Platform, cfg engine.Config, text string, logger *slog.Logger, rawLogger log.RawLogger, out io.Writer) (engine.Stats, error) {
	eng, err := engine.New(p, cfg, logger, engine.WithDelegate(&progressPrinter{w: out}), engine.WithRawLogger(rawLogger))
	if err != nil {
		return engine.Stats{}, err
	}
	defer eng.Close()

	if err := eng.Start(text); err != nil {
		return engine.Stats{}, err
	}
	fmt.Fprintf(out, "armed: type anything to insert %d characters, %s cancels\n", eng.Status().Stats.Total, eng.Config().CancelKey)

	stats, err := eng.Wait(ctx)
	if ctx.Err() != nil {
		eng.Cancel()
		stats, err = eng.Wait(context.Background())
	}
	if errors.Is(err, engine.ErrCancelled) {
		logger.Info("session cancelled", "typed", stats.Successes, "total", stats.Total)
		return stats, nil
	}
	return stats, err
}

// progressPrinter renders session progress on a terminal line.
type progressPrinter struct {
	w io.Writer
}

func (p *progressPrinter) OnStart(total int) {}

func (p *progressPrinter) OnProgress(current, total int) {
	fmt.Fprintf(p.w, "\r%d/%d", current, total)
}

func (p *progressPrinter) OnComplete(stats engine.Stats) {
	fmt.Fprintf(p.w, "\rdone: %d characters in %s (%d failed, %d dropped)\n",
		stats.Successes, stats.Elapsed.Round(time.Millisecond), stats.Failures, stats.Drops)
}

func (p *progressPrinter) OnCancel(stats engine.Stats) {
	fmt.Fprintln(p.w, "\rcancelled")
}

func (p *progressPrinter) OnFail(kind engine.ErrorKind, err error, stats engine.Stats) {
	fmt.Fprintf(p.w, "\rfailed (%s): %v\n", kind, err)
}
