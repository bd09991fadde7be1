package api

import "time"

// ServerConfig represents the control API configuration of the serve command.
type ServerConfig struct {
	Addr                 string        `help:"API server listen address" default:"127.0.0.1:3243" env:"GHOSTKEY_API_ADDR"`
	Password             string        `help:"API password; when empty the key file in the config directory is used (and created)" env:"GHOSTKEY_API_PASSWORD"`
	RequireLocalHostAuth bool          `help:"Require the password handshake from loopback clients too" default:"false" env:"GHOSTKEY_API_REQUIRE_LOCALHOST_AUTH"`
	RequestTimeout       time.Duration `help:"Time a client has to send its request" default:"5s" env:"GHOSTKEY_API_REQUEST_TIMEOUT"`
}
