// Package tap manages the lifecycle of the keyboard input tap.
//
// A Controller moves between three states:
//
//	Uninstalled -> Armed        Install
//	Armed       -> Disabled     OS disabled the tap (timeout or user input)
//	Disabled    -> Armed        re-enabled within the recovery budget
//	any         -> Uninstalled  Uninstall
//
// All methods must run on the platform run loop.
package tap

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Alia5/ghostkey/platform"
)

var (
	// ErrTapCreation is returned when the OS refuses to create the tap. This
	// almost always means the Accessibility / Input Monitoring permission is
	// missing; it has to be granted manually.
	ErrTapCreation = errors.New("input tap creation failed: Accessibility / Input Monitoring permission missing (grant it in System Settings, it is never granted automatically)")
	// ErrSystemDisabledTap is returned when the OS keeps disabling the tap
	// after the recovery budget is exhausted.
	ErrSystemDisabledTap = errors.New("input tap disabled by the system")
)

// DefaultRecoveryAttempts is the number of re-enables tried before giving up.
const DefaultRecoveryAttempts = 3

// State is the controller state.
type State int

const (
	Uninstalled State = iota
	Armed
	Disabled
)

func (s State) String() string {
	switch s {
	case Uninstalled:
		return "uninstalled"
	case Armed:
		return "armed"
	case Disabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Options is the tap configuration used by the engine: key-downs only, at the
// HID location, appended after other taps, able to swallow events.
var Options = platform.TapOptions{
	Location:    platform.LocationHID,
	Placement:   platform.PlacementTailAppend,
	Consume:     true,
	KeyDownOnly: true,
}

// Controller owns at most one installed tap.
type Controller struct {
	plat        platform.Platform
	logger      *slog.Logger
	maxAttempts int

	tap      platform.Tap
	state    State
	attempts int
}

// NewController returns a controller in the Uninstalled state. maxAttempts <= 0
// uses DefaultRecoveryAttempts.
func NewController(p platform.Platform, maxAttempts int, logger *slog.Logger) *Controller {
	if maxAttempts <= 0 {
		maxAttempts = DefaultRecoveryAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{plat: p, logger: logger, maxAttempts: maxAttempts}
}

// Install creates the tap, attaches it to the run loop and enables it. A
// partially installed tap is torn down before the error is returned.
func (c *Controller) Install(cb platform.Callback) error {
	if c.state != Uninstalled {
		return fmt.Errorf("tap already installed (%s)", c.state)
	}
	t, err := c.plat.CreateTap(Options, cb)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTapCreation, err)
	}
	if t == nil {
		return ErrTapCreation
	}
	if err := t.AddToRunLoop(); err != nil {
		t.Invalidate()
		return fmt.Errorf("%w: %v", ErrTapCreation, err)
	}
	t.Enable(true)
	c.tap = t
	c.state = Armed
	c.attempts = 0
	c.logger.Debug("input tap installed")
	return nil
}

// Enable turns interception back on.
func (c *Controller) Enable() {
	if c.tap == nil {
		return
	}
	c.tap.Enable(true)
	c.state = Armed
}

// Disable stops interception without uninstalling.
func (c *Controller) Disable() {
	if c.tap == nil {
		return
	}
	c.tap.Enable(false)
	c.state = Disabled
}

// HandleSystemDisable reacts to a tap-disabled notification. It re-enables the
// tap while the recovery budget lasts and returns ErrSystemDisabledTap once it
// is exhausted.
func (c *Controller) HandleSystemDisable(kind platform.EventKind) error {
	if c.tap == nil {
		return nil
	}
	c.state = Disabled
	c.attempts++
	if c.attempts > c.maxAttempts {
		c.logger.Error("input tap keeps getting disabled, giving up", "reason", kind, "attempts", c.attempts-1)
		return fmt.Errorf("%w (%s, %d recovery attempts)", ErrSystemDisabledTap, kind, c.maxAttempts)
	}
	c.logger.Warn("input tap disabled by the system, re-enabling", "reason", kind, "attempt", c.attempts, "max", c.maxAttempts)
	c.tap.Enable(true)
	c.state = Armed
	return nil
}

// ResetRecovery clears the recovery attempt count after healthy operation.
func (c *Controller) ResetRecovery() { c.attempts = 0 }

// Uninstall disables the tap, removes it from the run loop and invalidates it.
// Calling it when nothing is installed is a no-op.
func (c *Controller) Uninstall() {
	if c.tap == nil {
		c.state = Uninstalled
		return
	}
	c.tap.Enable(false)
	c.tap.RemoveFromRunLoop()
	c.tap.Invalidate()
	c.tap = nil
	c.state = Uninstalled
	c.attempts = 0
	c.logger.Debug("input tap uninstalled")
}

// State returns the current state.
func (c *Controller) State() State { return c.state }

// Attempts returns the recovery attempts since the last reset.
func (c *Controller) Attempts() int { return c.attempts }
