// Package config loads the softapd daemon configuration from YAML.
//
// The configuration carries the deployment-specific overlay knobs the
// capability negotiator and session consume: bridged auto-upgrade
// policy, 11be enablement, default shutdown timeouts, country code
// handling and event log output.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/softap-stack/softap-go/pkg/ap"
	"github.com/softap-stack/softap-go/pkg/capability"
)

// ErrInvalidConfig indicates the configuration failed validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the softapd daemon configuration.
type Config struct {
	// Bridged holds the dual-AP upgrade policy.
	Bridged BridgedConfig `yaml:"bridged"`

	// Ieee80211BE holds MLO enablement knobs.
	Ieee80211BE Ieee80211BEConfig `yaml:"ieee80211be"`

	// Timeouts holds the default auto-shutdown durations.
	Timeouts TimeoutConfig `yaml:"timeouts"`

	// CountryCode holds regulatory domain handling.
	CountryCode CountryCodeConfig `yaml:"country_code"`

	// EventLogPath is where the binary session event log is written.
	// Empty disables the file event log.
	EventLogPath string `yaml:"event_log_path"`

	// LogLevel sets the slog level: debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// BridgedConfig controls automatic single-to-bridged upgrade.
type BridgedConfig struct {
	// AutoUpgrade enables upgrading an unconstrained tethered request
	// to a bridged 2.4+5 GHz AP when the hardware supports it.
	AutoUpgrade bool `yaml:"auto_upgrade"`

	// UpgradeBands names the band superset required before upgrading,
	// e.g. ["2ghz", "5ghz"]. Empty means 2.4+5 GHz.
	UpgradeBands []string `yaml:"upgrade_bands"`
}

// Ieee80211BEConfig controls Wi-Fi 7 / MLO behavior.
type Ieee80211BEConfig struct {
	// Enabled allows 11be operation at all.
	Enabled bool `yaml:"enabled"`

	// SingleLinkMloInBridged allows single-link MLO on each instance
	// of a bridged AP.
	SingleLinkMloInBridged bool `yaml:"single_link_mlo_in_bridged"`

	// MaxMldCount caps the number of concurrently active MLDs.
	// Zero means no MLD support is advertised.
	MaxMldCount int `yaml:"max_mld_count"`
}

// TimeoutConfig holds default auto-shutdown durations. The per-session
// configuration may override either value.
type TimeoutConfig struct {
	// Shutdown is the whole-AP idle shutdown default.
	Shutdown time.Duration `yaml:"shutdown"`

	// BridgedInstanceShutdown is the per-instance idle shutdown default
	// for the secondary instance of a bridged AP.
	BridgedInstanceShutdown time.Duration `yaml:"bridged_instance_shutdown"`
}

// CountryCodeConfig holds regulatory domain handling.
type CountryCodeConfig struct {
	// Dynamic indicates the driver learns the country code after
	// startup; start waits for it before bringing up 5/6 GHz.
	Dynamic bool `yaml:"dynamic"`

	// WaitTimeout bounds how long start waits for a dynamic country
	// code before proceeding without one.
	WaitTimeout time.Duration `yaml:"wait_timeout"`

	// Default is used when the driver never reports a code.
	Default string `yaml:"default"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Bridged: BridgedConfig{
			AutoUpgrade:  false,
			UpgradeBands: []string{"2ghz", "5ghz"},
		},
		Ieee80211BE: Ieee80211BEConfig{
			Enabled:                false,
			SingleLinkMloInBridged: false,
			MaxMldCount:            0,
		},
		Timeouts: TimeoutConfig{
			Shutdown:                10 * time.Minute,
			BridgedInstanceShutdown: 5 * time.Minute,
		},
		CountryCode: CountryCodeConfig{
			Dynamic:     false,
			WaitTimeout: 10 * time.Second,
		},
		LogLevel: "info",
	}
}

// Load reads and validates a configuration file. Fields absent from
// the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Timeouts.Shutdown < 0 || c.Timeouts.BridgedInstanceShutdown < 0 {
		return fmt.Errorf("%w: negative shutdown timeout", ErrInvalidConfig)
	}
	if c.CountryCode.WaitTimeout <= 0 {
		return fmt.Errorf("%w: country code wait timeout must be positive", ErrInvalidConfig)
	}
	if c.CountryCode.Default != "" && len(c.CountryCode.Default) != 2 {
		return fmt.Errorf("%w: country code must be two letters", ErrInvalidConfig)
	}
	if c.Ieee80211BE.MaxMldCount < 0 {
		return fmt.Errorf("%w: negative MLD count", ErrInvalidConfig)
	}
	if _, err := parseBands(c.Bridged.UpgradeBands); err != nil {
		return err
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.LogLevel)
	}
	return nil
}

// Overlay converts the configuration into the negotiator overlay.
func (c *Config) Overlay() capability.Overlay {
	bands, _ := parseBands(c.Bridged.UpgradeBands)
	if bands == 0 {
		bands = ap.Band2GHz | ap.Band5GHz
	}
	return capability.Overlay{
		AutoUpgradeToBridged:            c.Bridged.AutoUpgrade,
		UpgradeBandSuperset:             bands,
		Ieee80211BEEnabled:              c.Ieee80211BE.Enabled,
		SingleLinkMLOInBridgedSupported: c.Ieee80211BE.SingleLinkMloInBridged,
		MaxMLDCount:                     c.Ieee80211BE.MaxMldCount,
	}
}

func parseBands(names []string) (ap.Band, error) {
	var bands ap.Band
	for _, name := range names {
		switch name {
		case "2ghz", "2.4ghz":
			bands |= ap.Band2GHz
		case "5ghz":
			bands |= ap.Band5GHz
		case "6ghz":
			bands |= ap.Band6GHz
		case "60ghz":
			bands |= ap.Band60GHz
		default:
			return 0, fmt.Errorf("%w: unknown band %q", ErrInvalidConfig, name)
		}
	}
	return bands, nil
}
