package ap

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// Configuration errors.
var (
	// ErrUnsupportedConfiguration indicates the requested configuration
	// cannot be satisfied by the device capability. Fatal to a start
	// attempt; no interface is created.
	ErrUnsupportedConfiguration = errors.New("unsupported soft AP configuration")

	// ErrInvalidConfiguration indicates a structurally invalid
	// configuration (bad SSID, passphrase, channel list).
	ErrInvalidConfiguration = errors.New("invalid soft AP configuration")
)

// SoftApConfiguration is the requested AP configuration. It is immutable
// once a session starts; UpdateConfiguration supersedes it wholesale.
type SoftApConfiguration struct {
	// SSID is the network name (1-32 bytes UTF-8).
	SSID string

	// Passphrase for PSK/SAE security types. Empty for open/OWE.
	Passphrase string

	// Security selects the authentication mode.
	Security SecurityType

	// Hidden suppresses SSID broadcast.
	Hidden bool

	// Channels is the ordered per-AP band/channel list. More than one
	// entry requests a bridged (dual-instance) AP.
	Channels []ChannelSpec

	// MaxClients limits concurrent clients. 0 means no configured limit
	// (the capability maximum still applies).
	MaxClients int

	// ClientControl enables allow-list enforcement.
	ClientControl bool

	// AllowList holds MACs admitted when ClientControl is set.
	AllowList []net.HardwareAddr

	// BlockList holds MACs always rejected.
	BlockList []net.HardwareAddr

	// AutoShutdownEnabled arms the whole-session idle shutdown timer.
	AutoShutdownEnabled bool

	// ShutdownTimeout overrides the default idle shutdown timeout.
	// 0 selects the configured default.
	ShutdownTimeout time.Duration

	// BridgedOpportunisticShutdownEnabled arms per-instance idle timers
	// in bridged mode.
	BridgedOpportunisticShutdownEnabled bool

	// BridgedInstanceShutdownTimeout overrides the default per-instance
	// idle timeout. 0 selects the configured default.
	BridgedInstanceShutdownTimeout time.Duration

	// Ieee80211BE requests Wi-Fi 7 (MLO) operation.
	Ieee80211BE bool

	// MacSetting controls BSSID selection.
	MacSetting MacSetting

	// ExplicitMac is used when MacSetting is MacExplicit.
	ExplicitMac net.HardwareAddr
}

// BandPreference returns the union of all requested bands.
func (c *SoftApConfiguration) BandPreference() Band {
	var b Band
	for _, ch := range c.Channels {
		b |= ch.Band
	}
	return b
}

// BridgedRequested reports whether the configuration asks for a
// dual-instance bridged AP.
func (c *SoftApConfiguration) BridgedRequested() bool {
	return len(c.Channels) > 1
}

// Clone returns a deep copy.
func (c *SoftApConfiguration) Clone() *SoftApConfiguration {
	if c == nil {
		return nil
	}
	out := *c
	out.Channels = append([]ChannelSpec(nil), c.Channels...)
	out.AllowList = cloneMacs(c.AllowList)
	out.BlockList = cloneMacs(c.BlockList)
	out.ExplicitMac = append(net.HardwareAddr(nil), c.ExplicitMac...)
	return &out
}

// EffectiveMaxClients returns the smaller of the configured and
// capability client limits. 0 means unlimited.
func (c *SoftApConfiguration) EffectiveMaxClients(capability *SoftApCapability) int {
	limit := c.MaxClients
	if capability != nil && capability.MaxSupportedClients > 0 {
		if limit == 0 || capability.MaxSupportedClients < limit {
			limit = capability.MaxSupportedClients
		}
	}
	return limit
}

// Validate checks structural validity and, when capability is non-nil,
// the capability-dependent constraints that must reject a start before
// any interface is created.
func (c *SoftApConfiguration) Validate(capability *SoftApCapability) error {
	if n := len(c.SSID); n == 0 || n > 32 {
		return fmt.Errorf("%w: SSID length %d", ErrInvalidConfiguration, n)
	}
	if c.Security.RequiresPassphrase() {
		if err := ValidatePassphrase(c.Passphrase); err != nil {
			return err
		}
	}
	if len(c.Channels) == 0 {
		return fmt.Errorf("%w: empty channel list", ErrInvalidConfiguration)
	}
	if len(c.Channels) > 2 {
		return fmt.Errorf("%w: at most two band instances", ErrInvalidConfiguration)
	}
	for _, ch := range c.Channels {
		if ch.Band == 0 {
			return fmt.Errorf("%w: channel entry without band", ErrInvalidConfiguration)
		}
		// A single-instance request may carry a multi-band preference;
		// a bridged request names exactly one band per instance.
		if c.BridgedRequested() && ch.Band.Count() != 1 {
			return fmt.Errorf("%w: bridged instance with band %s", ErrInvalidConfiguration, ch.Band)
		}
	}
	if c.MacSetting == MacExplicit && len(c.ExplicitMac) != 6 {
		return fmt.Errorf("%w: explicit MAC missing", ErrInvalidConfiguration)
	}

	if capability == nil {
		return nil
	}
	if c.Security.UsesSae() && !capability.Has(FeatureWpa3Sae) {
		return fmt.Errorf("%w: SAE not supported", ErrUnsupportedConfiguration)
	}
	if c.ClientControl && !capability.Has(FeatureClientForceDisconnect) {
		return fmt.Errorf("%w: client control without force-disconnect support", ErrUnsupportedConfiguration)
	}
	if c.MaxClients > 0 && capability.MaxSupportedClients > 0 &&
		c.MaxClients > capability.MaxSupportedClients {
		return fmt.Errorf("%w: max clients %d exceeds capability %d",
			ErrUnsupportedConfiguration, c.MaxClients, capability.MaxSupportedClients)
	}
	if c.MacSetting == MacExplicit && !capability.Has(FeatureMacCustomization) {
		return fmt.Errorf("%w: MAC customization not supported", ErrUnsupportedConfiguration)
	}
	for _, ch := range c.Channels {
		if !capability.BandSupported(ch.Band.Lowest()) && ch.Band.Count() == 1 {
			return fmt.Errorf("%w: band %s not supported", ErrUnsupportedConfiguration, ch.Band)
		}
	}
	return nil
}

func cloneMacs(in []net.HardwareAddr) []net.HardwareAddr {
	if in == nil {
		return nil
	}
	out := make([]net.HardwareAddr, len(in))
	for i, m := range in {
		out[i] = append(net.HardwareAddr(nil), m...)
	}
	return out
}

// ContainsMac reports whether list contains mac.
func ContainsMac(list []net.HardwareAddr, mac net.HardwareAddr) bool {
	for _, m := range list {
		if macEqual(m, mac) {
			return true
		}
	}
	return false
}

func macEqual(a, b net.HardwareAddr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
