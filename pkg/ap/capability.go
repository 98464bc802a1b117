package ap

// Feature is a bitset of driver/device soft AP features.
type Feature uint32

const (
	// FeatureAcsOffload indicates the driver performs automatic channel
	// selection itself.
	FeatureAcsOffload Feature = 1 << iota

	// FeatureClientForceDisconnect indicates the driver can forcibly
	// disconnect a client.
	FeatureClientForceDisconnect

	// FeatureWpa3Sae indicates SAE authentication support.
	FeatureWpa3Sae

	// FeatureBand24 indicates 2.4 GHz AP support.
	FeatureBand24

	// FeatureBand5 indicates 5 GHz AP support.
	FeatureBand5

	// FeatureBand6 indicates 6 GHz AP support.
	FeatureBand6

	// FeatureBand60 indicates 60 GHz AP support.
	FeatureBand60

	// FeatureMacCustomization indicates the AP MAC can be overridden.
	FeatureMacCustomization

	// FeatureIeee80211BE indicates Wi-Fi 7 (11be/MLO) support.
	FeatureIeee80211BE
)

// SoftApCapability is the device/driver capability snapshot. It is
// mutable across a session via UpdateCapability; channel lists are
// copied on read so callers never alias internal state.
type SoftApCapability struct {
	// Features is the supported feature bitset.
	Features Feature

	// MaxSupportedClients is the driver client limit. 0 means unknown.
	MaxSupportedClients int

	// CountryCode is the active regulatory country code ("" if unset).
	CountryCode string

	channels map[Band][]int
}

// Has reports whether every bit of f is supported.
func (c *SoftApCapability) Has(f Feature) bool {
	return c.Features&f == f
}

// BandSupported reports whether the band feature bit for b is set.
func (c *SoftApCapability) BandSupported(b Band) bool {
	switch b {
	case Band2GHz:
		return c.Has(FeatureBand24)
	case Band5GHz:
		return c.Has(FeatureBand5)
	case Band6GHz:
		return c.Has(FeatureBand6)
	case Band60GHz:
		return c.Has(FeatureBand60)
	default:
		return false
	}
}

// SetChannels records the supported channel list for a band.
func (c *SoftApCapability) SetChannels(band Band, channels []int) {
	if c.channels == nil {
		c.channels = make(map[Band][]int)
	}
	c.channels[band] = append([]int(nil), channels...)
}

// Channels returns a copy of the supported channel list for a band.
func (c *SoftApCapability) Channels(band Band) []int {
	return append([]int(nil), c.channels[band]...)
}

// Clone returns a deep copy.
func (c *SoftApCapability) Clone() *SoftApCapability {
	if c == nil {
		return nil
	}
	out := &SoftApCapability{
		Features:            c.Features,
		MaxSupportedClients: c.MaxSupportedClients,
		CountryCode:         c.CountryCode,
	}
	for band, channels := range c.channels {
		out.SetChannels(band, channels)
	}
	return out
}
