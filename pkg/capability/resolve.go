package capability

import (
	"errors"
	"fmt"

	"github.com/softap-stack/softap-go/pkg/ap"
)

// Resolution errors.
var (
	// ErrNoChannel indicates no usable channel exists on the resolved
	// band. Maps to the NO_CHANNEL failure reason.
	ErrNoChannel = errors.New("no supported channel for band")
)

// Overlay carries the build-time/vendor policy knobs consulted during
// resolution. Loaded from the daemon configuration.
type Overlay struct {
	// AutoUpgradeToBridged permits silently upgrading a single-band
	// tethered request to a 2.4+5 GHz bridged pair.
	AutoUpgradeToBridged bool

	// UpgradeBandSuperset is the overall band set the upgrade may use.
	// The upgrade only happens when it subsumes 2.4 and 5 GHz.
	UpgradeBandSuperset ap.Band

	// Ieee80211BEEnabled gates 11be operation overall.
	Ieee80211BEEnabled bool

	// SingleLinkMLOInBridgedSupported permits 11be in bridged mode.
	SingleLinkMLOInBridgedSupported bool

	// MaxMLDCount is the device MLD limit. 0 means one.
	MaxMLDCount int
}

// Request is the full input to Resolve.
type Request struct {
	// Config is the requested configuration.
	Config *ap.SoftApConfiguration

	// Capability is the device capability snapshot.
	Capability *ap.SoftApCapability

	// Overlay is the vendor policy.
	Overlay Overlay

	// Tethered distinguishes tethered from local-only sessions; only
	// tethered requests are auto-upgraded to bridged.
	Tethered bool

	// BridgedSupported reports whether the driver can create a bridged
	// interface in the current interface combination (combo check,
	// concurrent-STA support, no required interface teardown).
	BridgedSupported bool

	// StaFrequencies lists the operating frequencies (MHz) of connected
	// STA interfaces, primary and secondary.
	StaFrequencies []int

	// Coex is the coexistence provider snapshot.
	Coex ap.CoexState

	// ActiveMLDCount is the number of MLDs already owned by other
	// active soft AP sessions.
	ActiveMLDCount int
}

// Resolve produces the driver-acceptable configuration for a request, or
// an error when the request is fundamentally unsatisfiable. The returned
// configuration is a deep copy; inputs are never mutated.
func Resolve(req Request) (*ap.ResolvedConfig, error) {
	if req.Config == nil || req.Capability == nil {
		return nil, fmt.Errorf("%w: missing config or capability", ap.ErrInvalidConfiguration)
	}
	if err := req.Config.Validate(req.Capability); err != nil {
		return nil, err
	}

	cfg := req.Config.Clone()

	// Bridged requests the driver cannot combine degrade to the first
	// requested band. Degradation never fails the start.
	if cfg.BridgedRequested() && !req.BridgedSupported {
		cfg.Channels = cfg.Channels[:1]
	}

	maybeUpgradeToBridged(cfg, req)

	if cfg.BridgedRequested() {
		pruneBridgedSecondary(cfg, req)
	}

	resolve11BE(cfg, req)

	if err := substituteFixedChannels(cfg, req.Capability); err != nil {
		return nil, err
	}

	if cfg.MacSetting == ap.MacRandomized && !req.Capability.Has(ap.FeatureMacCustomization) {
		cfg.MacSetting = ap.MacFactory
	}

	resolved := &ap.ResolvedConfig{Config: cfg}
	switch cfg.Security {
	case ap.SecurityWpa2Psk, ap.SecuritySaeTransition:
		resolved.PSK = ap.DerivePSK(cfg.SSID, cfg.Passphrase)
	}
	return resolved, nil
}

// maybeUpgradeToBridged upgrades a single-band tethered request to a
// 2.4+5 GHz bridged pair when the overlay allows it, both bands are
// usable, and 6 GHz is unavailable.
func maybeUpgradeToBridged(cfg *ap.SoftApConfiguration, req Request) {
	if cfg.BridgedRequested() || !req.Tethered || !req.Overlay.AutoUpgradeToBridged {
		return
	}
	if !req.BridgedSupported {
		return
	}
	if len(cfg.Channels) != 1 || cfg.Channels[0].Fixed() {
		return
	}
	if !req.Overlay.UpgradeBandSuperset.Contains(ap.Band2GHz | ap.Band5GHz) {
		return
	}
	if !req.Capability.BandSupported(ap.Band2GHz) || !req.Capability.BandSupported(ap.Band5GHz) {
		return
	}
	if len(req.Capability.Channels(ap.Band2GHz)) == 0 || len(req.Capability.Channels(ap.Band5GHz)) == 0 {
		return
	}
	if sixGHzAvailable(req.Capability) {
		return
	}
	cfg.Channels = []ap.ChannelSpec{{Band: ap.Band2GHz}, {Band: ap.Band5GHz}}
}

func sixGHzAvailable(capability *ap.SoftApCapability) bool {
	return capability.BandSupported(ap.Band6GHz) &&
		len(capability.Channels(ap.Band6GHz)) > 0 &&
		capability.CountryCode != ""
}

// pruneBridgedSecondary drops the 5/6 GHz half of a bridged pair when a
// concurrent STA occupies a channel outside the supported band
// combination, or when coexistence hard-restricts every supported
// channel of that band. A soft unsafe marking alone never downgrades.
func pruneBridgedSecondary(cfg *ap.SoftApConfiguration, req Request) {
	secondary := secondaryIndex(cfg)
	if secondary < 0 {
		return
	}
	band := cfg.Channels[secondary].Band

	drop := StaConflictsWithBand(band, req.StaFrequencies, req.Capability)
	if !drop && req.Coex.Hard {
		drop = req.Coex.CoversBand(band, req.Capability.Channels(band))
	}
	if drop {
		cfg.Channels = append(cfg.Channels[:secondary], cfg.Channels[secondary+1:]...)
	}
}

// secondaryIndex returns the index of the highest-band instance of a
// bridged pair, or -1 when the pair has no non-2.4 GHz half.
func secondaryIndex(cfg *ap.SoftApConfiguration) int {
	idx, best := -1, ap.Band(0)
	for i, ch := range cfg.Channels {
		if ch.Band != ap.Band2GHz && ch.Band > best {
			idx, best = i, ch.Band
		}
	}
	return idx
}

// StaConflictsWithBand reports whether any connected STA sits on a
// channel that rules out an AP instance on band: same band but a channel
// the AP does not support, or a different high band outside the
// supported combination. Also consulted at runtime when a STA connects
// while a bridged AP is up.
func StaConflictsWithBand(band ap.Band, staFreqs []int, capability *ap.SoftApCapability) bool {
	supported := capability.Channels(band)
	for _, freq := range staFreqs {
		staBand := ap.FrequencyToBand(freq)
		if staBand == 0 || staBand == ap.Band2GHz {
			continue
		}
		if staBand == band {
			if !containsChannel(supported, ap.FrequencyToChannel(freq)) {
				return true
			}
			continue
		}
		// STA on another high band: the 3-band combination only covers
		// 2.4 GHz plus one high band per concurrent interface.
		return true
	}
	return false
}

// resolve11BE clears the 11be flag whenever any gating condition holds.
func resolve11BE(cfg *ap.SoftApConfiguration, req Request) {
	if !cfg.Ieee80211BE {
		return
	}
	switch {
	case !req.Capability.Has(ap.FeatureIeee80211BE):
	case !req.Overlay.Ieee80211BEEnabled:
	case cfg.Security == ap.SecurityWpa2Psk:
	case cfg.BridgedRequested() && !req.Overlay.SingleLinkMLOInBridgedSupported:
	case req.ActiveMLDCount >= maxMLDCount(req.Overlay):
	default:
		return
	}
	cfg.Ieee80211BE = false
}

func maxMLDCount(overlay Overlay) int {
	if overlay.MaxMLDCount <= 0 {
		return 1
	}
	return overlay.MaxMLDCount
}

// substituteFixedChannels replaces band-only entries with the first
// supported channel of the band when the driver lacks ACS offload,
// keeping channel choice deterministic instead of delegating it.
func substituteFixedChannels(cfg *ap.SoftApConfiguration, capability *ap.SoftApCapability) error {
	if capability.Has(ap.FeatureAcsOffload) {
		return nil
	}
	for i := range cfg.Channels {
		if cfg.Channels[i].Fixed() {
			continue
		}
		band := cfg.Channels[i].Band.Lowest()
		channels := capability.Channels(band)
		if len(channels) == 0 {
			return fmt.Errorf("%w: band %s", ErrNoChannel, band)
		}
		cfg.Channels[i] = ap.ChannelSpec{Band: band, Channel: channels[0]}
	}
	return nil
}

func containsChannel(list []int, ch int) bool {
	for _, c := range list {
		if c == ch {
			return true
		}
	}
	return false
}
