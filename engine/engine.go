// Package engine runs injection sessions: it arms an input tap, and for every
// physical key-down the user makes while a session is live it swallows the
// event and types the next character of the session text instead.
//
// All session state is owned by the platform run loop. Start, Cancel, Status,
// Wait and Close may be called from any goroutine except the run loop.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Alia5/ghostkey/inject"
	"github.com/Alia5/ghostkey/internal/log"
	"github.com/Alia5/ghostkey/keymap"
	"github.com/Alia5/ghostkey/platform"
	"github.com/Alia5/ghostkey/tap"
)

// State is the externally visible engine state.
type State int

const (
	Idle State = iota
	Arming
	Active
	Completing
	Cancelling
	Failing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Arming:
		return "arming"
	case Active:
		return "active"
	case Completing:
		return "completing"
	case Cancelling:
		return "cancelling"
	case Failing:
		return "failing"
	default:
		return "unknown"
	}
}

// Status is a point-in-time view of the engine.
type Status struct {
	State   State
	Stats   Stats
	Tap     tap.State
	Pending bool
}

type outcome int

const (
	outcomeComplete outcome = iota
	outcomeCancelled
	outcomeFailed
)

func (o outcome) state() State {
	switch o {
	case outcomeCancelled:
		return Cancelling
	case outcomeFailed:
		return Failing
	default:
		return Completing
	}
}

type result struct {
	stats Stats
	err   error
}

type session struct {
	chars     []rune
	cursor    int
	successes int
	failures  int
	credits   int
	active    bool
	aborting  bool
	saturated bool
	started   time.Time
	gen       uint64
	done      chan struct{}

	src  *inject.Source
	inj  *inject.Injector
	ctrl *tap.Controller
}

// Option configures an Engine.
type Option func(*Engine)

// WithDelegate sets the receiver of lifecycle notifications.
func WithDelegate(d Delegate) Option {
	return func(e *Engine) {
		if d != nil {
			e.delegate = d
		}
	}
}

// WithRawLogger records every posted and intercepted event.
func WithRawLogger(r log.RawLogger) Option {
	return func(e *Engine) {
		if r != nil {
			e.raw = r
		}
	}
}

// WithSleep replaces the pacing sleep.
func WithSleep(fn func(time.Duration)) Option {
	return func(e *Engine) {
		if fn != nil {
			e.sleep = fn
		}
	}
}

// WithStateHook calls fn with every state the engine moves to, in order. fn
// runs on the goroutine making the change and must not call into the engine.
func WithStateHook(fn func(State)) Option {
	return func(e *Engine) {
		e.onState = fn
	}
}

// WithClock replaces the clock used for session timing.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Engine is the injection engine. At most one session is live at a time.
type Engine struct {
	plat      platform.Platform
	cfg       Config
	cancelKey keymap.KeyCode
	logger    *slog.Logger
	raw       log.RawLogger
	sleep     func(time.Duration)
	now       func() time.Time
	delegate  Delegate
	notify    *notifier
	onState   func(State)

	// run loop only
	sess *session

	mu     sync.Mutex
	busy   bool
	closed bool
	status Status
	gen    uint64
	done   chan struct{}
	last   result
}

// New returns an idle engine driving p.
func New(p platform.Platform, cfg Config, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if p == nil {
		return nil, errors.New("engine: nil platform")
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.normalized()
	code, ok := keymap.Named(cfg.CancelKey)
	if !ok {
		return nil, fmt.Errorf("unknown cancel key %q", cfg.CancelKey)
	}
	e := &Engine{
		plat:      p,
		cfg:       cfg,
		cancelKey: code,
		logger:    logger,
		raw:       log.NewRaw(nil),
		sleep:     time.Sleep,
		now:       time.Now,
		delegate:  NopDelegate{},
	}
	for _, o := range opts {
		o(e)
	}
	e.notify = newNotifier(e.delegate)
	return e, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Start arms a session for text. It returns once the tap is live, or with the
// error that prevented arming, in which case nothing is left installed.
func (e *Engine) Start(text string) error {
	chars := normalize(text)
	if len(chars) == 0 {
		return ErrNoSolutionText
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if e.busy {
		e.mu.Unlock()
		return ErrSessionActive
	}
	e.busy = true
	e.status = Status{State: Arming, Stats: Stats{Total: len(chars)}}
	e.gen++
	gen := e.gen
	done := make(chan struct{})
	e.done = done
	e.mu.Unlock()
	e.stateChanged(Arming)

	var err error
	platform.Call(e.plat, func() { err = e.arm(chars, gen, done) })
	if err != nil {
		e.logger.Error("failed to start injection session", "error", err, "kind", KindOf(err))
		e.mu.Lock()
		e.busy = false
		e.status = Status{State: Idle}
		e.last = result{stats: Stats{Total: len(chars)}, err: err}
		close(done)
		e.mu.Unlock()
		e.stateChanged(Idle)
		return err
	}
	return nil
}

// normalize turns the text into the characters to type. CRLF and lone CR
// become a single newline.
func normalize(text string) []rune {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return []rune(text)
}

func (e *Engine) arm(chars []rune, gen uint64, done chan struct{}) error {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return ErrClosed
	}

	src, err := inject.OpenSource(e.plat, platform.SentinelTag)
	if err != nil {
		return err
	}
	s := &session{
		chars:   chars,
		started: e.now(),
		gen:     gen,
		done:    done,
		src:     src,
		ctrl:    tap.NewController(e.plat, e.cfg.RecoveryAttempts, e.logger),
	}
	s.inj = inject.New(src,
		inject.WithPacing(e.cfg.Pacing),
		inject.WithRawLogger(e.raw),
		inject.WithLogger(e.logger),
		inject.WithSleep(e.sleep),
	)
	if err := s.ctrl.Install(func(ev platform.TapEvent) platform.Verdict { return e.handle(s, ev) }); err != nil {
		_ = src.Close()
		return err
	}
	s.active = true
	e.sess = s
	e.publish(s, Active)

	total := len(chars)
	e.logger.Info("injection session armed", "chars", total, "cancelKey", e.cancelKey)
	e.notify.push(func(d Delegate) { d.OnStart(total) })
	return nil
}

// handle is the tap callback. Runs on the run loop.
func (e *Engine) handle(s *session, ev platform.TapEvent) platform.Verdict {
	v := e.decide(s, ev)
	e.raw.Intercepted(ev, v)
	return v
}

func (e *Engine) decide(s *session, ev platform.TapEvent) platform.Verdict {
	if ev.Kind == platform.KindKeyDown && ev.UserData == platform.SentinelTag {
		s.inj.ObserveEcho()
		return platform.Pass
	}
	if ev.Kind.Disabled() {
		e.recover(s, ev.Kind)
		return platform.Pass
	}
	if e.sess != s || !s.active || s.aborting {
		return platform.Pass
	}
	if ev.Autorepeat {
		return platform.Swallow
	}
	if ev.Code == e.cancelKey {
		s.aborting = true
		e.logger.Info("cancel key pressed", "cursor", s.cursor, "total", len(s.chars))
		e.plat.Perform(func() { e.teardown(s, outcomeCancelled, nil) })
		return platform.Swallow
	}

	s.credits++
	if s.credits > e.cfg.MaxPendingKeystrokes {
		// typing too fast; the keystroke is eaten and its credit kept
		if !s.saturated {
			e.logger.Warn("too many pending keystrokes, dropping input", "pending", s.credits, "max", e.cfg.MaxPendingKeystrokes)
			s.saturated = true
		}
		e.publish(s, Active)
		return platform.Swallow
	}

	if s.cursor >= len(s.chars) {
		s.active = false
		e.plat.Perform(func() { e.teardown(s, outcomeComplete, nil) })
		return platform.Swallow
	}

	if e.plat.SecureInputActive() {
		s.credits--
		e.logger.Warn("secure input is active, not typing", "cursor", s.cursor)
		return platform.Swallow
	}

	r := s.chars[s.cursor]
	if err := s.inj.Inject(r); err != nil {
		s.failures++
		e.logger.Error("failed to inject character", "error", err, "cursor", s.cursor, "failures", s.failures)
		e.publish(s, Active)
		return platform.Swallow
	}
	s.cursor++
	s.successes++
	s.credits--
	s.saturated = false
	s.ctrl.ResetRecovery()
	e.publish(s, Active)

	current, total := s.cursor, len(s.chars)
	e.notify.push(func(d Delegate) { d.OnProgress(current, total) })
	if s.cursor >= len(s.chars) {
		s.active = false
		e.plat.Perform(func() { e.teardown(s, outcomeComplete, nil) })
	}
	return platform.Swallow
}

func (e *Engine) recover(s *session, kind platform.EventKind) {
	if e.sess != s || s.aborting {
		return
	}
	if err := s.ctrl.HandleSystemDisable(kind); err != nil {
		s.active = false
		s.aborting = true
		e.plat.Perform(func() { e.teardown(s, outcomeFailed, err) })
		return
	}
	e.publish(s, Active)
}

// teardown ends s. Only the first call for a session has any effect. Runs on
// the run loop.
func (e *Engine) teardown(s *session, o outcome, cause error) {
	if e.sess != s {
		return
	}
	s.active = false
	s.aborting = true
	e.publish(s, o.state())

	if s.inj.ReleasePending() {
		e.logger.Debug("released pending key on teardown")
	}
	s.ctrl.Disable()
	stats := e.snapshot(s)
	if o == outcomeCancelled {
		s.cursor, s.successes, s.failures, s.credits = 0, 0, 0, 0
	}
	s.ctrl.Uninstall()
	if err := s.src.Close(); err != nil {
		e.logger.Warn("failed to close event source", "error", err)
	}
	e.sess = nil

	var err error
	switch o {
	case outcomeCancelled:
		err = ErrCancelled
	case outcomeFailed:
		err = cause
	}

	e.mu.Lock()
	e.busy = false
	e.status = Status{State: Idle}
	e.last = result{stats: stats, err: err}
	close(s.done)
	e.mu.Unlock()
	e.stateChanged(Idle)

	switch o {
	case outcomeComplete:
		e.logger.Info("injection session complete", "typed", stats.Successes, "failures", stats.Failures, "drops", stats.Drops, "elapsed", stats.Elapsed)
		e.notify.push(func(d Delegate) { d.OnComplete(stats) })
	case outcomeCancelled:
		e.logger.Info("injection session cancelled", "typed", stats.Successes, "total", stats.Total)
		e.notify.push(func(d Delegate) { d.OnCancel(stats) })
	case outcomeFailed:
		kind := KindOf(cause)
		e.logger.Error("injection session failed", "error", cause, "kind", kind, "typed", stats.Successes)
		e.notify.push(func(d Delegate) { d.OnFail(kind, cause, stats) })
	}
}

func (e *Engine) snapshot(s *session) Stats {
	return Stats{
		Cursor:    s.cursor,
		Total:     len(s.chars),
		Successes: s.successes,
		Failures:  s.failures,
		Credits:   s.credits,
		Drops:     s.inj.Drops(),
		Delay:     s.inj.Delay(),
		StartedAt: s.started,
		Elapsed:   e.now().Sub(s.started),
	}
}

func (e *Engine) publish(s *session, state State) {
	st := Status{
		State:   state,
		Stats:   e.snapshot(s),
		Tap:     s.ctrl.State(),
		Pending: s.inj.Pending().Pending,
	}
	e.mu.Lock()
	prev := e.status.State
	e.status = st
	e.mu.Unlock()
	if prev != state {
		e.stateChanged(state)
	}
}

func (e *Engine) stateChanged(state State) {
	if e.onState != nil {
		e.onState(state)
	}
}

// Cancel ends the live session as if the cancel key had been pressed. It
// reports whether a session was live. The cancel is bound to that session: if
// it has already ended by the time the run loop gets to it, nothing happens.
func (e *Engine) Cancel() bool {
	e.mu.Lock()
	busy := e.busy
	gen := e.gen
	e.mu.Unlock()
	if !busy {
		return false
	}
	e.plat.Perform(func() {
		if s := e.sess; s != nil && s.gen == gen {
			e.teardown(s, outcomeCancelled, nil)
		}
	})
	return true
}

// Status returns the current state and counters.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Active reports whether a session is arming or live.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busy
}

// Wait blocks until the current (or most recent) session ends and returns its
// final counters. The error is nil for a completed session, ErrCancelled for a
// cancelled one and the cause for a failed one.
func (e *Engine) Wait(ctx context.Context) (Stats, error) {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	if done == nil {
		return Stats{}, nil
	}
	select {
	case <-done:
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last.stats, e.last.err
}

// Close cancels any live session and flushes pending notifications. The
// platform is not closed.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	// no session can arm once closed is set, so whatever is live here is the last one
	platform.Call(e.plat, func() {
		if s := e.sess; s != nil {
			e.teardown(s, outcomeCancelled, nil)
		}
	})
	e.notify.close()
	return nil
}
