// Package config loads assetscan configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds process-wide settings. Every field can be set through an
// ASSETSCAN_* environment variable; CLI flags override after Load.
type Config struct {
	// HTTP listen address for the scan API.
	Addr string `env:"ASSETSCAN_ADDR" envDefault:":8090"`

	// Asset backend base URL; lookups go to {APIBaseURL}/qr/scan/{id}.
	APIBaseURL string `env:"ASSETSCAN_API_URL" envDefault:"http://localhost:5000/api"`

	// Bearer token sent with every lookup.
	APIToken string `env:"ASSETSCAN_API_TOKEN"`

	// Decoder backend: "zxing" or "opencv".
	Decoder string `env:"ASSETSCAN_DECODER" envDefault:"zxing"`

	// Camera preset applied at startup (see camera.PresetNames).
	CameraPreset string `env:"ASSETSCAN_CAMERA_PRESET" envDefault:"default"`

	// Preferred facing: "environment" or "user".
	Facing string `env:"ASSETSCAN_FACING" envDefault:"environment"`

	LogLevel string `env:"ASSETSCAN_LOG_LEVEL" envDefault:"info"`

	LookupTimeout   time.Duration `env:"ASSETSCAN_LOOKUP_TIMEOUT" envDefault:"10s"`
	LoopStopTimeout time.Duration `env:"ASSETSCAN_LOOP_STOP_TIMEOUT" envDefault:"2s"`
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field values that the environment parser cannot.
func (c Config) Validate() error {
	var errs []error

	if c.APIBaseURL == "" {
		errs = append(errs, errors.New("api url is required"))
	} else if u, err := url.Parse(c.APIBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("api url %q is not absolute", c.APIBaseURL))
	}

	switch c.Decoder {
	case "zxing", "opencv":
	default:
		errs = append(errs, fmt.Errorf("decoder must be zxing or opencv, got %q", c.Decoder))
	}

	switch c.Facing {
	case "environment", "user":
	default:
		errs = append(errs, fmt.Errorf("facing must be environment or user, got %q", c.Facing))
	}

	if c.LookupTimeout <= 0 {
		errs = append(errs, errors.New("lookup timeout must be positive"))
	}
	if c.LoopStopTimeout <= 0 {
		errs = append(errs, errors.New("loop stop timeout must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
