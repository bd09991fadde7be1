// Package inject turns characters into synthetic key presses.
//
// Every character becomes exactly one key-down followed by one key-up posted
// through a session Source. Mapped characters press their key on the US ANSI
// layout (with Shift when needed); anything else rides on the Space key with
// the character as unicode payload. A key-down is tracked as pending until its
// key-up has been posted so teardown can always release it.
package inject

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Alia5/ghostkey/internal/log"
	"github.com/Alia5/ghostkey/keymap"
	"github.com/Alia5/ghostkey/platform"
)

// InjectionFailedError reports a character whose events could not be posted.
type InjectionFailedError struct {
	Char rune
	Err  error
}

func (e *InjectionFailedError) Error() string {
	return fmt.Sprintf("inject %q: %v", e.Char, e.Err)
}

func (e *InjectionFailedError) Unwrap() error { return e.Err }

// PendingKey is the key-down that has not been matched by a key-up yet.
type PendingKey struct {
	Code    keymap.KeyCode
	Text    []uint16
	Pending bool
}

// Option configures an Injector.
type Option func(*Injector)

// WithPacing sets the pacing configuration.
func WithPacing(cfg Pacing) Option {
	return func(i *Injector) { i.pacer = NewPacer(cfg) }
}

// WithRawLogger traces every posted event.
func WithRawLogger(r log.RawLogger) Option {
	return func(i *Injector) {
		if r != nil {
			i.raw = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(i *Injector) {
		if l != nil {
			i.logger = l
		}
	}
}

// WithSleep replaces time.Sleep for the post-character delay.
func WithSleep(fn func(time.Duration)) Option {
	return func(i *Injector) {
		if fn != nil {
			i.sleep = fn
		}
	}
}

// Injector posts characters through a Source. It is owned by the run loop and
// not safe for concurrent use.
type Injector struct {
	src    *Source
	pacer  *Pacer
	raw    log.RawLogger
	logger *slog.Logger
	sleep  func(time.Duration)

	pending PendingKey

	// drop detection: the key-down of the last character is expected back
	// through the tap before the next character is injected.
	expectEcho bool
	echoed     bool
	echoes     int
}

// New returns an injector posting through src.
func New(src *Source, opts ...Option) *Injector {
	i := &Injector{
		src:    src,
		pacer:  NewPacer(DefaultPacing()),
		raw:    log.NewRaw(nil),
		logger: slog.Default(),
		sleep:  time.Sleep,
	}
	for _, o := range opts {
		o(i)
	}
	return i
}

// Inject posts the key-down and key-up for r, then sleeps for the current
// pacing delay. Failures are not retried.
func (i *Injector) Inject(r rune) error {
	if i.pending.Pending {
		i.ReleasePending()
	}
	i.settleEcho()

	code, flags := resolve(r)
	text := platform.TextOf(r)

	if err := i.post(platform.KeyEvent{Code: code, Down: true, Flags: flags, Text: text}); err != nil {
		i.pacer.Observe(true)
		return &InjectionFailedError{Char: r, Err: err}
	}
	i.pending = PendingKey{Code: code, Text: text, Pending: true}
	i.expectEcho = true

	if err := i.post(platform.KeyEvent{Code: code, Down: false, Flags: platform.FlagNone, Text: text}); err != nil {
		i.pacer.Observe(true)
		return &InjectionFailedError{Char: r, Err: err}
	}
	i.pending = PendingKey{}

	i.sleep(i.pacer.Delay())
	return nil
}

// resolve picks the key and modifier flags for r.
func resolve(r rune) (keymap.KeyCode, platform.Flags) {
	if code, ok := keymap.Whitespace(r); ok {
		return code, platform.FlagNone
	}
	if e, ok := keymap.Lookup(r); ok {
		if e.Shift {
			return e.Code, platform.FlagShift
		}
		return e.Code, platform.FlagNone
	}
	// unicode-only: the payload decides what is typed, the key only carries it
	return keymap.KeySpace, platform.FlagNone
}

// ReleasePending posts the key-up for an outstanding key-down. It reports
// whether a key was pending and is a no-op otherwise.
func (i *Injector) ReleasePending() bool {
	if !i.pending.Pending {
		return false
	}
	code, text := i.pending.Code, i.pending.Text
	i.pending = PendingKey{}
	if err := i.post(platform.KeyEvent{Code: code, Down: false, Flags: platform.FlagNone, Text: text}); err != nil {
		i.logger.Warn("failed to release pending key", "key", code, "error", err)
	} else {
		i.logger.Debug("released pending key", "key", code)
	}
	return true
}

// ObserveEcho records that the tap saw one of this injector's key-downs.
func (i *Injector) ObserveEcho() {
	i.echoes++
	if i.expectEcho {
		i.echoed = true
	}
}

func (i *Injector) settleEcho() {
	if !i.expectEcho {
		return
	}
	i.pacer.Observe(!i.echoed)
	if !i.echoed {
		i.logger.Debug("synthetic event not observed, raising delay", "delay", i.pacer.Delay(), "consecutiveDrops", i.pacer.ConsecutiveDrops())
	}
	i.expectEcho = false
	i.echoed = false
}

func (i *Injector) post(ev platform.KeyEvent) error {
	if err := i.src.Post(ev); err != nil {
		return err
	}
	ev.UserData = i.src.Tag()
	i.raw.Posted(ev)
	return nil
}

// Pending returns the outstanding key-down, if any.
func (i *Injector) Pending() PendingKey { return i.pending }

// Delay returns the current pacing delay.
func (i *Injector) Delay() time.Duration { return i.pacer.Delay() }

// Drops returns the number of characters whose events were lost or failed.
func (i *Injector) Drops() int { return i.pacer.Drops() }

// Echoes returns the number of key-downs observed back through the tap.
func (i *Injector) Echoes() int { return i.echoes }
