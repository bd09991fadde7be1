package engine

import (
	"errors"

	"github.com/Alia5/ghostkey/inject"
	"github.com/Alia5/ghostkey/platform"
	"github.com/Alia5/ghostkey/tap"
)

var (
	// ErrNoSolutionText is returned by Start for empty input.
	ErrNoSolutionText = errors.New("no solution text")
	// ErrSessionActive is returned by Start while another session is live.
	ErrSessionActive = errors.New("an injection session is already active")
	// ErrCancelled is reported by Wait for a cancelled session.
	ErrCancelled = errors.New("injection cancelled")
	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("engine closed")
)

// ErrorKind is the stable, wire-friendly name of an engine error.
type ErrorKind string

const (
	KindNone              ErrorKind = ""
	KindResourceCreation  ErrorKind = "resource_creation"
	KindTapCreation       ErrorKind = "tap_creation"
	KindSystemDisabledTap ErrorKind = "system_disabled_tap"
	KindNoSolutionText    ErrorKind = "no_solution_text"
	KindInjectionFailed   ErrorKind = "injection_failed"
	KindSessionActive     ErrorKind = "session_active"
	KindCancelled         ErrorKind = "cancelled"
	KindUnsupported       ErrorKind = "unsupported"
	KindClosed            ErrorKind = "closed"
	KindUnknown           ErrorKind = "unknown"
)

// KindOf classifies err.
func KindOf(err error) ErrorKind {
	var failed *inject.InjectionFailedError
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, inject.ErrResourceCreation):
		return KindResourceCreation
	case errors.Is(err, tap.ErrTapCreation):
		return KindTapCreation
	case errors.Is(err, tap.ErrSystemDisabledTap):
		return KindSystemDisabledTap
	case errors.Is(err, ErrNoSolutionText):
		return KindNoSolutionText
	case errors.As(err, &failed):
		return KindInjectionFailed
	case errors.Is(err, ErrSessionActive):
		return KindSessionActive
	case errors.Is(err, ErrCancelled):
		return KindCancelled
	case errors.Is(err, platform.ErrUnsupported):
		return KindUnsupported
	case errors.Is(err, ErrClosed):
		return KindClosed
	default:
		return KindUnknown
	}
}
