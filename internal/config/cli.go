// Package config holds the root command line definition.
package config

import (
	"github.com/alecthomas/kong"

	"github.com/Alia5/ghostkey/internal/cmd"
)

// Log configures the slog logger and the raw event trace.
type Log struct {
	Level   string `help:"Log level" enum:"trace,debug,info,warn,error" default:"info" env:"GHOSTKEY_LOG_LEVEL"`
	File    string `help:"Log file path (stdout/stderr when empty)" env:"GHOSTKEY_LOG_FILE"`
	Format  string `help:"Log format" enum:"text,json" default:"text" env:"GHOSTKEY_LOG_FORMAT"`
	RawFile string `help:"Write every synthesized and intercepted key event to this file" env:"GHOSTKEY_LOG_RAW_FILE"`
}

// CLI is the root command.
type CLI struct {
	Config  string           `help:"Configuration file (json, yaml or toml)" type:"path" env:"GHOSTKEY_CONFIG"`
	Log     Log              `embed:"" prefix:"log."`
	Version kong.VersionFlag `help:"Print the version and exit"`

	Serve     cmd.Serve         `cmd:"" help:"Run the injection engine with the local control API"`
	Type      cmd.Type          `cmd:"" help:"Type a text with the next keystrokes, then exit"`
	Client    cmd.Client        `cmd:"" help:"Talk to a running serve instance"`
	Doctor    cmd.Doctor        `cmd:"" help:"Check permissions and platform support"`
	Keymap    cmd.Keymap        `cmd:"" help:"Print the reference keyboard layout"`
	Configure cmd.ConfigCommand `cmd:"" name:"config" help:"Configuration file helpers"`
	Install   cmd.Install       `cmd:"" help:"Run serve at login (macOS LaunchAgent)"`
	Uninstall cmd.Uninstall     `cmd:"" help:"Remove the LaunchAgent"`
}
