// Package config loads and validates the host configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config errors.
var (
	ErrConfigNotFound = errors.New("config file not found")
	ErrConfigInvalid  = errors.New("invalid config")
)

// DisablePolicy controls what happens when a plugin with enabled
// dependents is disabled.
type DisablePolicy string

const (
	// DisableCascade disables the reverse-dependency closure first,
	// dependents before dependencies. This is the default.
	DisableCascade DisablePolicy = "cascade"

	// DisableReject refuses to disable a plugin while anything enabled
	// still depends on it.
	DisableReject DisablePolicy = "reject"
)

// Directories holds the host's filesystem layout.
type Directories struct {
	// InstallRoot is where plugin-scoped install directories live.
	InstallRoot string `toml:"install_root"`

	// Quarantine receives packages that fail signature verification.
	Quarantine string `toml:"quarantine"`

	// StateFile is the plugin repository statefile path.
	StateFile string `toml:"state_file"`

	// Keystore is the trusted-signers file path.
	Keystore string `toml:"keystore"`

	// KeystoreMeta is the optional keystore metadata sidecar.
	KeystoreMeta string `toml:"keystore_meta"`
}

// Hooks configures lifecycle hook execution.
type Hooks struct {
	// Timeout bounds a single hook, as a Go duration string.
	Timeout string `toml:"timeout"`
}

// Policy configures the host capability policy.
type Policy struct {
	// Grants are capabilities plugins may request.
	Grants []string `toml:"grants"`

	// Blocks are capabilities denied regardless of grants.
	Blocks []string `toml:"blocks"`

	// Approvals are dangerous capabilities the operator confirmed.
	Approvals []string `toml:"approvals"`

	// RequireApproval gates dangerous capabilities behind Approvals.
	RequireApproval bool `toml:"require_approval"`
}

// Activation configures bulk plugin activation.
type Activation struct {
	// Parallelism caps concurrently enabling plugins. Zero means one
	// worker per independent graph branch.
	Parallelism int `toml:"parallelism"`
}

// Config is the host configuration, loaded from TOML.
type Config struct {
	Directories   Directories   `toml:"directories"`
	Hooks         Hooks         `toml:"hooks"`
	Policy        Policy        `toml:"policy"`
	Activation    Activation    `toml:"activation"`
	DisablePolicy DisablePolicy `toml:"disable_policy"`
}

// Default returns the configuration used when no file is given,
// rooted at baseDir.
func Default(baseDir string) *Config {
	return &Config{
		Directories: Directories{
			InstallRoot:  filepath.Join(baseDir, "plugins"),
			Quarantine:   filepath.Join(baseDir, "quarantine"),
			StateFile:    filepath.Join(baseDir, "state", "plugins.yaml"),
			Keystore:     filepath.Join(baseDir, "trusted_signers"),
			KeystoreMeta: filepath.Join(baseDir, "trusted_signers.ini"),
		},
		Hooks: Hooks{
			Timeout: "30s",
		},
		Policy: Policy{
			Grants:          []string{"files:read", "files:write", "network:fetch", "plugins:call", "plugins:query", "host:read"},
			RequireApproval: true,
		},
		DisablePolicy: DisableCascade,
	}
}

// Load reads a TOML config file and fills defaults for omitted fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	baseDir := filepath.Dir(path)
	cfg := Default(baseDir)
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field values that TOML decoding cannot.
func (c *Config) Validate() error {
	if _, err := time.ParseDuration(c.Hooks.Timeout); err != nil {
		return fmt.Errorf("%w: hooks.timeout: %v", ErrConfigInvalid, err)
	}
	switch c.DisablePolicy {
	case DisableCascade, DisableReject:
	default:
		return fmt.Errorf("%w: disable_policy must be %q or %q", ErrConfigInvalid, DisableCascade, DisableReject)
	}
	if c.Activation.Parallelism < 0 {
		return fmt.Errorf("%w: activation.parallelism must not be negative", ErrConfigInvalid)
	}
	return nil
}

// HookTimeout returns the parsed hook timeout.
func (c *Config) HookTimeout() time.Duration {
	d, err := time.ParseDuration(c.Hooks.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}
