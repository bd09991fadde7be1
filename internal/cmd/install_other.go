//go:build !darwin

package cmd

import (
	"errors"
	"log/slog"
	"runtime"
)

var errInstallUnsupported = errors.New("install is only supported on macOS (got " + runtime.GOOS + ")")

func install(*slog.Logger) error { return errInstallUnsupported }

func uninstall(*slog.Logger) error { return errInstallUnsupported }
