// Package platform defines the operating system surface the injection engine
// runs on: an event source that posts synthetic keyboard events, an input tap
// that intercepts real ones, and the run loop both are delivered on.
//
// Implementations register themselves by name (see Register) so the binary can
// pick one at runtime.
package platform

import (
	"errors"
	"unicode/utf16"

	"github.com/Alia5/ghostkey/keymap"
)

// SentinelTag is written into the user data field of every synthesized event.
// Taps use it to recognise the engine's own output.
const SentinelTag int64 = 0x47484B5953594E54

// ErrUnsupported is returned when no platform implementation is available.
var ErrUnsupported = errors.New("platform: not supported on this system")

// Flags mirrors CGEventFlags.
type Flags uint64

const (
	FlagNone      Flags = 0
	FlagCapsLock  Flags = 0x00010000
	FlagShift     Flags = 0x00020000
	FlagControl   Flags = 0x00040000
	FlagAlternate Flags = 0x00080000
	FlagCommand   Flags = 0x00100000
)

// KeyEvent is a synthetic keyboard event handed to a Source.
type KeyEvent struct {
	Code  keymap.KeyCode
	Down  bool
	Flags Flags
	// Text is the UTF-16 payload attached to the event. Empty means the OS
	// derives the character from Code and Flags.
	Text     []uint16
	UserData int64
}

// TextOf encodes r as the UTF-16 payload of a key event.
func TextOf(r rune) []uint16 {
	return utf16.Encode([]rune{r})
}

// EventKind classifies what a tap delivered.
type EventKind int

const (
	KindKeyDown EventKind = iota
	// KindTapDisabledByTimeout is delivered when the OS disabled the tap because
	// a callback took too long.
	KindTapDisabledByTimeout
	// KindTapDisabledByUserInput is delivered when the OS disabled the tap in
	// response to user input (e.g. secure input toggling).
	KindTapDisabledByUserInput
)

func (k EventKind) String() string {
	switch k {
	case KindKeyDown:
		return "keydown"
	case KindTapDisabledByTimeout:
		return "tap-disabled-timeout"
	case KindTapDisabledByUserInput:
		return "tap-disabled-user-input"
	default:
		return "unknown"
	}
}

// Disabled reports whether k is one of the tap-disabled notifications.
func (k EventKind) Disabled() bool {
	return k == KindTapDisabledByTimeout || k == KindTapDisabledByUserInput
}

// TapEvent is an event intercepted by a Tap.
type TapEvent struct {
	Kind       EventKind
	Code       keymap.KeyCode
	Flags      Flags
	Autorepeat bool
	UserData   int64
}

// Verdict decides what happens to an intercepted event.
type Verdict int

const (
	// Pass lets the event continue to its destination.
	Pass Verdict = iota
	// Swallow drops the event.
	Swallow
)

func (v Verdict) String() string {
	if v == Swallow {
		return "swallow"
	}
	return "pass"
}

// Callback is invoked on the run loop for every event the tap intercepts.
type Callback func(ev TapEvent) Verdict

// Location selects where in the event pipeline a tap is placed.
type Location int

const (
	// LocationHID is the point where HID events enter the window server.
	LocationHID Location = iota
	LocationSession
)

// Placement selects the position among other taps at the same location.
type Placement int

const (
	PlacementHead Placement = iota
	PlacementTailAppend
)

// TapOptions describes the tap to create.
type TapOptions struct {
	Location  Location
	Placement Placement
	// Consume creates an active tap whose callback can swallow events. A
	// listen-only tap ignores the returned verdict.
	Consume bool
	// KeyDownOnly restricts interception to key-down events. Tap-disabled
	// notifications are always delivered.
	KeyDownOnly bool
}

// Source posts synthetic keyboard events with a single origin identity.
type Source interface {
	Post(ev KeyEvent) error
	Close() error
}

// Tap is an installed input tap.
type Tap interface {
	// AddToRunLoop attaches the tap to the platform run loop in common modes.
	AddToRunLoop() error
	// Enable turns interception on or off.
	Enable(on bool)
	// Enabled reports whether the tap currently intercepts events.
	Enabled() bool
	// RemoveFromRunLoop detaches the tap's run loop source.
	RemoveFromRunLoop()
	// Invalidate releases the tap. It cannot be used afterwards.
	Invalidate()
}

// Platform is the OS binding used by the engine.
type Platform interface {
	Name() string
	// NewSource creates an event source that stamps tag on every event it posts.
	NewSource(tag int64) (Source, error)
	// CreateTap creates a tap that invokes cb on the run loop. The tap is not
	// attached to the run loop yet.
	CreateTap(opts TapOptions, cb Callback) (Tap, error)
	// SecureInputActive reports whether a secure text field currently owns the
	// keyboard.
	SecureInputActive() bool
	// Trusted reports whether the process may create input taps, with a human
	// readable hint when it may not.
	Trusted() (bool, string)
	// Perform schedules fn on the run loop that delivers tap callbacks.
	Perform(fn func())
	Close() error
}

// Call runs fn on p's run loop and waits for it to return. It must not be
// called from the run loop itself.
func Call(p Platform, fn func()) {
	done := make(chan struct{})
	p.Perform(func() {
		defer close(done)
		fn()
	})
	<-done
}
