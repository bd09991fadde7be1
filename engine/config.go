package engine

import (
	"github.com/Alia5/ghostkey/inject"
	"github.com/Alia5/ghostkey/tap"
)

// Config represents the engine configuration shared by the serve and type commands.
type Config struct {
	CancelKey            string        `help:"Key that cancels a running session (name or 0x code)" default:"escape" env:"GHOSTKEY_CANCEL_KEY"`
	MaxPendingKeystrokes int           `help:"Keystrokes that may wait for injection before further ones are dropped" default:"5" env:"GHOSTKEY_MAX_PENDING_KEYSTROKES"`
	RecoveryAttempts     int           `help:"Times the input tap is re-enabled after the system disables it" default:"3" env:"GHOSTKEY_RECOVERY_ATTEMPTS"`
	Pacing               inject.Pacing `embed:"" prefix:"pacing."`
}

// DefaultConfig returns the reference configuration.
func DefaultConfig() Config {
	return Config{
		CancelKey:            "escape",
		MaxPendingKeystrokes: 5,
		RecoveryAttempts:     tap.DefaultRecoveryAttempts,
		Pacing:               inject.DefaultPacing(),
	}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.CancelKey == "" {
		c.CancelKey = d.CancelKey
	}
	if c.MaxPendingKeystrokes <= 0 {
		c.MaxPendingKeystrokes = d.MaxPendingKeystrokes
	}
	if c.RecoveryAttempts <= 0 {
		c.RecoveryAttempts = d.RecoveryAttempts
	}
	return c
}
