// Package config holds the runtime settings for the engine supervisor.
// Values come from the embedding application or from the environment via
// FromEnv.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config groups the settings required to initialise the Service. Each
// transport only uses the keys that are relevant to it.
type Config struct {
	// Transport selects how the supervisor reaches the engine. Supported
	// values: "channel" (in-process loopback, used in tests and examples)
	// or "controller" (the engine's WebSocket control channel).
	Transport string `env:"ENGINECTL_TRANSPORT" envDefault:"controller"`

	// Controller transport configuration.
	ControllerURL    string `env:"ENGINECTL_CONTROLLER_URL"`
	ControllerSecret string `env:"ENGINECTL_CONTROLLER_SECRET"`

	// ExchangeTimeout bounds every command/response exchange. Zero falls
	// back to the exchange package default.
	ExchangeTimeout time.Duration `env:"ENGINECTL_EXCHANGE_TIMEOUT"`

	// Download defaults applied when a subscription entry does not
	// override them.
	DownloadUserAgent      string `env:"ENGINECTL_DOWNLOAD_USER_AGENT" envDefault:"clash-verge/v2"`
	DownloadTimeoutSeconds int    `env:"ENGINECTL_DOWNLOAD_TIMEOUT_SECONDS" envDefault:"30"`

	// MetricsEnabled wires Prometheus collectors into the exchange path.
	MetricsEnabled bool `env:"ENGINECTL_METRICS_ENABLED"`
}

// FromEnv builds a Config from ENGINECTL_* environment variables.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Getter methods to implement the transport.Config interface.
func (c *Config) GetTransport() string        { return c.Transport }
func (c *Config) GetControllerURL() string    { return c.ControllerURL }
func (c *Config) GetControllerSecret() string { return c.ControllerSecret }

func (c Config) String() string {
	// Create a copy to avoid modifying the original
	copy := c
	if copy.ControllerSecret != "" {
		copy.ControllerSecret = "***REDACTED***"
	}
	if copy.ControllerURL != "" {
		copy.ControllerURL = redactURLCredentials(copy.ControllerURL)
	}
	// Use a type alias to avoid infinite recursion when printing
	type configAlias Config
	return fmt.Sprintf("%+v", configAlias(copy))
}

// redactURLCredentials masks credentials in URLs like ws://user:pass@host
func redactURLCredentials(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		// If parsing fails, redact the whole thing to be safe
		return "***REDACTED_URL***"
	}
	if parsed.User != nil {
		if _, hasPassword := parsed.User.Password(); hasPassword {
			parsed.User = url.UserPassword(parsed.User.Username(), "***REDACTED***")
		}
	}
	return parsed.String()
}

// Validate checks that the configuration has all required fields for the
// selected transport. Validation of the transport name itself is lenient
// to allow custom transport factories.
func (c *Config) Validate() error {
	var errs []error

	errs = append(errs, c.validateTransport()...)
	errs = append(errs, c.validateDurations()...)

	return errors.Join(errs...)
}

// validateTransport checks transport-specific required fields.
func (c *Config) validateTransport() []error {
	switch strings.ToLower(c.Transport) {
	case "controller":
		if c.ControllerURL == "" {
			return []error{errors.New("controller: URL is required")}
		}
		u, err := url.Parse(c.ControllerURL)
		if err != nil {
			return []error{fmt.Errorf("controller: invalid URL: %w", err)}
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return []error{fmt.Errorf("controller: URL scheme must be ws or wss, got %q", u.Scheme)}
		}
	}
	// channel, "", and custom transports have no required config
	return nil
}

// validateDurations checks timeout configuration values.
func (c *Config) validateDurations() []error {
	var errs []error
	if c.ExchangeTimeout < 0 {
		errs = append(errs, errors.New("exchange: timeout cannot be negative"))
	}
	if c.DownloadTimeoutSeconds < 0 {
		errs = append(errs, errors.New("download: timeout cannot be negative"))
	}
	return errs
}

// ValidateConfig is a convenience function to validate a config pointer.
// Returns nil if the config is valid.
func ValidateConfig(c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}
	return c.Validate()
}
