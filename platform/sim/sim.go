// Package sim provides a simulated platform: an in-process run loop, a single
// keyboard, an input tap and an event log. It backs the engine tests and the
// --platform=sim mode of the CLI.
package sim

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"unicode/utf16"

	"github.com/Alia5/ghostkey/keymap"
	"github.com/Alia5/ghostkey/platform"
)

// Name is the registry name of the simulated platform.
const Name = "sim"

// ErrSourceClosed is returned when posting through a closed source.
var ErrSourceClosed = errors.New("sim: event source closed")

func init() {
	platform.Register(Name, platform.Registration{
		Factory: func(logger *slog.Logger) (platform.Platform, error) { return New(logger), nil },
	})
}

// Platform is a simulated platform. All exported methods are safe for
// concurrent use. Press, ForceDisable and Sync must not be called from the run
// loop.
type Platform struct {
	logger *slog.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	done   chan struct{}

	trusted    bool
	secure     bool
	dropEchoes bool
	failSource error
	failTap    error
	failPost   func(ev platform.KeyEvent) error

	taps        []*tap
	openSources int
	posted      []platform.KeyEvent
	held        map[keymap.KeyCode]bool
	typed       []rune
	passthrough []platform.TapEvent
}

// New starts a simulated platform with its run loop goroutine.
func New(logger *slog.Logger) *Platform {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Platform{
		logger:  logger.With("platform", Name),
		done:    make(chan struct{}),
		trusted: true,
		held:    make(map[keymap.KeyCode]bool),
	}
	p.cond = sync.NewCond(&p.mu)
	go p.run()
	return p
}

func (p *Platform) run() {
	defer close(p.done)
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		fn := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()
		fn()
	}
}

// Name implements platform.Platform.
func (p *Platform) Name() string { return Name }

// Perform implements platform.Platform. After Close, fn runs on the caller's goroutine.
func (p *Platform) Perform(fn func()) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		fn()
		return
	}
	p.queue = append(p.queue, fn)
	p.cond.Signal()
	p.mu.Unlock()
}

// Close stops the run loop after draining queued work.
func (p *Platform) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
	<-p.done
	return nil
}

// SecureInputActive implements platform.Platform.
func (p *Platform) SecureInputActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.secure
}

// Trusted implements platform.Platform.
func (p *Platform) Trusted() (bool, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.trusted {
		return false, "simulated: input monitoring not granted"
	}
	return true, ""
}

// NewSource implements platform.Platform.
func (p *Platform) NewSource(tag int64) (platform.Source, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failSource != nil {
		return nil, p.failSource
	}
	p.openSources++
	return &source{p: p, tag: tag}, nil
}

// CreateTap implements platform.Platform.
func (p *Platform) CreateTap(opts platform.TapOptions, cb platform.Callback) (platform.Tap, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failTap != nil {
		return nil, p.failTap
	}
	if !p.trusted {
		return nil, errors.New("simulated: tap creation refused, input monitoring not granted")
	}
	t := &tap{p: p, opts: opts, cb: cb}
	p.taps = append(p.taps, t)
	return t, nil
}

// activeTap returns the tap that currently intercepts events. Callers hold p.mu.
func (p *Platform) activeTap() *tap {
	for i := len(p.taps) - 1; i >= 0; i-- {
		t := p.taps[i]
		if t.attached && t.enabled {
			return t
		}
	}
	return nil
}

// attachedTap returns the most recent tap on the run loop, enabled or not.
// Callers hold p.mu.
func (p *Platform) attachedTap() *tap {
	for i := len(p.taps) - 1; i >= 0; i-- {
		if p.taps[i].attached {
			return p.taps[i]
		}
	}
	return nil
}

// PressOption adjusts a simulated key press.
type PressOption func(ev *platform.TapEvent)

// Autorepeat marks the press as an auto-repeat of a held key.
func Autorepeat() PressOption { return func(ev *platform.TapEvent) { ev.Autorepeat = true } }

// WithFlags sets the modifier flags of the press.
func WithFlags(f platform.Flags) PressOption { return func(ev *platform.TapEvent) { ev.Flags = f } }

// WithUserData stamps the press with a user data value.
func WithUserData(v int64) PressOption { return func(ev *platform.TapEvent) { ev.UserData = v } }

// Press simulates the user pressing a physical key. It returns the verdict of
// the active tap (Pass when no tap intercepts) after all work the press
// triggered on the run loop has finished.
func (p *Platform) Press(code keymap.KeyCode, opts ...PressOption) platform.Verdict {
	ev := platform.TapEvent{Kind: platform.KindKeyDown, Code: code}
	for _, o := range opts {
		o(&ev)
	}
	verdict := platform.Pass
	platform.Call(p, func() {
		p.mu.Lock()
		t := p.activeTap()
		p.mu.Unlock()
		if t != nil {
			verdict = t.cb(ev)
		}
		if verdict == platform.Pass {
			p.mu.Lock()
			p.passthrough = append(p.passthrough, ev)
			p.mu.Unlock()
		}
	})
	p.Sync()
	return verdict
}

// Type presses the key for every character of s, like a user typing it.
// Characters outside the key table are pressed as Space.
func (p *Platform) Type(s string) []platform.Verdict {
	out := make([]platform.Verdict, 0, len(s))
	for _, r := range s {
		code := keymap.KeySpace
		if e, ok := keymap.Lookup(r); ok {
			code = e.Code
		} else if c, ok := keymap.Whitespace(r); ok {
			code = c
		}
		out = append(out, p.Press(code))
	}
	return out
}

// ForceDisable simulates the OS disabling the tap and notifying it. It returns
// false when no tap is on the run loop.
func (p *Platform) ForceDisable(kind platform.EventKind) bool {
	delivered := false
	platform.Call(p, func() {
		p.mu.Lock()
		t := p.attachedTap()
		if t != nil {
			t.enabled = false
		}
		p.mu.Unlock()
		if t == nil {
			return
		}
		delivered = true
		t.cb(platform.TapEvent{Kind: kind})
	})
	p.Sync()
	return delivered
}

// Sync waits until the run loop has processed everything queued so far.
func (p *Platform) Sync() {
	platform.Call(p, func() {})
}

// SetTrusted toggles whether tap creation is permitted.
func (p *Platform) SetTrusted(v bool) {
	p.mu.Lock()
	p.trusted = v
	p.mu.Unlock()
}

// SetSecureInput toggles the simulated secure input state.
func (p *Platform) SetSecureInput(v bool) {
	p.mu.Lock()
	p.secure = v
	p.mu.Unlock()
}

// DropEchoes makes the OS lose posted key-downs before they reach any tap or
// application.
func (p *Platform) DropEchoes(v bool) {
	p.mu.Lock()
	p.dropEchoes = v
	p.mu.Unlock()
}

// FailSource makes NewSource fail with err. A nil err restores normal behavior.
func (p *Platform) FailSource(err error) {
	p.mu.Lock()
	p.failSource = err
	p.mu.Unlock()
}

// FailTap makes CreateTap fail with err. A nil err restores normal behavior.
func (p *Platform) FailTap(err error) {
	p.mu.Lock()
	p.failTap = err
	p.mu.Unlock()
}

// FailPost installs a hook that may reject posted events. A nil hook restores
// normal behavior.
func (p *Platform) FailPost(fn func(ev platform.KeyEvent) error) {
	p.mu.Lock()
	p.failPost = fn
	p.mu.Unlock()
}

// Posted returns a copy of every event posted so far.
func (p *Platform) Posted() []platform.KeyEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]platform.KeyEvent, len(p.posted))
	copy(out, p.posted)
	return out
}

// Held returns the keys that were pressed by a source and never released.
func (p *Platform) Held() []keymap.KeyCode {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]keymap.KeyCode, 0, len(p.held))
	for k := range p.held {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Typed returns the text that synthesized events delivered to the focused application.
func (p *Platform) Typed() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return string(p.typed)
}

// Passthrough returns the real key presses that reached the application.
func (p *Platform) Passthrough() []platform.TapEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]platform.TapEvent, len(p.passthrough))
	copy(out, p.passthrough)
	return out
}

// Taps returns the number of live (not invalidated) taps.
func (p *Platform) Taps() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.taps)
}

// TapEnabled reports whether a tap is attached and intercepting.
func (p *Platform) TapEnabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activeTap() != nil
}

// OpenSources returns the number of sources that have not been closed.
func (p *Platform) OpenSources() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.openSources
}

// Reset clears the event log. Failure injection settings are kept.
func (p *Platform) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.posted = nil
	p.typed = nil
	p.passthrough = nil
	p.held = make(map[keymap.KeyCode]bool)
}

func (p *Platform) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var b strings.Builder
	fmt.Fprintf(&b, "sim{taps=%d sources=%d posted=%d held=%d}", len(p.taps), p.openSources, len(p.posted), len(p.held))
	return b.String()
}

// deliverSynthetic routes a posted key-down through the active tap. Runs on the run loop.
func (p *Platform) deliverSynthetic(ev platform.KeyEvent) {
	p.mu.Lock()
	if p.dropEchoes {
		p.mu.Unlock()
		p.logger.Debug("dropped synthetic event", "code", ev.Code)
		return
	}
	t := p.activeTap()
	p.mu.Unlock()

	verdict := platform.Pass
	if t != nil {
		verdict = t.cb(platform.TapEvent{
			Kind:     platform.KindKeyDown,
			Code:     ev.Code,
			Flags:    ev.Flags,
			UserData: ev.UserData,
		})
	}
	if verdict != platform.Pass {
		return
	}
	p.mu.Lock()
	if len(ev.Text) > 0 {
		p.typed = append(p.typed, utf16.Decode(ev.Text)...)
	}
	p.mu.Unlock()
}

type source struct {
	p      *Platform
	tag    int64
	closed bool
}

func (s *source) Post(ev platform.KeyEvent) error {
	p := s.p
	p.mu.Lock()
	if s.closed {
		p.mu.Unlock()
		return ErrSourceClosed
	}
	if ev.UserData == 0 {
		ev.UserData = s.tag
	}
	if p.failPost != nil {
		if err := p.failPost(ev); err != nil {
			p.mu.Unlock()
			return err
		}
	}
	ev.Text = append([]uint16(nil), ev.Text...)
	p.posted = append(p.posted, ev)
	if ev.Down {
		p.held[ev.Code] = true
	} else {
		delete(p.held, ev.Code)
	}
	p.mu.Unlock()

	if ev.Down {
		p.Perform(func() { p.deliverSynthetic(ev) })
	}
	return nil
}

func (s *source) Close() error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.p.openSources--
	}
	return nil
}

type tap struct {
	p        *Platform
	opts     platform.TapOptions
	cb       platform.Callback
	attached bool
	enabled  bool
	invalid  bool
}

func (t *tap) AddToRunLoop() error {
	t.p.mu.Lock()
	defer t.p.mu.Unlock()
	if t.invalid {
		return errors.New("sim: tap invalidated")
	}
	t.attached = true
	return nil
}

func (t *tap) Enable(on bool) {
	t.p.mu.Lock()
	defer t.p.mu.Unlock()
	if t.invalid {
		return
	}
	t.enabled = on
}

func (t *tap) Enabled() bool {
	t.p.mu.Lock()
	defer t.p.mu.Unlock()
	return t.enabled && !t.invalid
}

func (t *tap) RemoveFromRunLoop() {
	t.p.mu.Lock()
	defer t.p.mu.Unlock()
	t.attached = false
}

func (t *tap) Invalidate() {
	t.p.mu.Lock()
	defer t.p.mu.Unlock()
	if t.invalid {
		return
	}
	t.invalid = true
	t.enabled = false
	t.attached = false
	for i, x := range t.p.taps {
		if x == t {
			t.p.taps = append(t.p.taps[:i], t.p.taps[i+1:]...)
			break
		}
	}
}
