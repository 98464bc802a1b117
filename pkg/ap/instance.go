package ap

import (
	"net"
	"time"
)

// Bandwidth is the operating channel bandwidth of an AP instance.
type Bandwidth uint8

const (
	// BandwidthInvalid indicates the bandwidth is not yet known.
	BandwidthInvalid Bandwidth = iota

	// Bandwidth20 is 20 MHz.
	Bandwidth20

	// Bandwidth40 is 40 MHz.
	Bandwidth40

	// Bandwidth80 is 80 MHz.
	Bandwidth80

	// Bandwidth160 is 160 MHz.
	Bandwidth160

	// Bandwidth320 is 320 MHz.
	Bandwidth320
)

// String returns the bandwidth name.
func (b Bandwidth) String() string {
	switch b {
	case Bandwidth20:
		return "20MHz"
	case Bandwidth40:
		return "40MHz"
	case Bandwidth80:
		return "80MHz"
	case Bandwidth160:
		return "160MHz"
	case Bandwidth320:
		return "320MHz"
	default:
		return "INVALID"
	}
}

// Standard is the Wi-Fi generation an AP instance operates at.
type Standard uint8

const (
	// StandardUnknown indicates the standard is not yet known.
	StandardUnknown Standard = iota

	// StandardLegacy is 802.11a/b/g.
	StandardLegacy

	// Standard11N is 802.11n (Wi-Fi 4).
	Standard11N

	// Standard11AC is 802.11ac (Wi-Fi 5).
	Standard11AC

	// Standard11AX is 802.11ax (Wi-Fi 6).
	Standard11AX

	// Standard11BE is 802.11be (Wi-Fi 7).
	Standard11BE
)

// String returns the standard name.
func (s Standard) String() string {
	switch s {
	case StandardLegacy:
		return "LEGACY"
	case Standard11N:
		return "11N"
	case Standard11AC:
		return "11AC"
	case Standard11AX:
		return "11AX"
	case Standard11BE:
		return "11BE"
	default:
		return "UNKNOWN"
	}
}

// InstanceInfo is the runtime state of one AP instance, keyed by the
// driver instance name (the whole interface, or a bridged sub-instance).
// Created on the first info-changed callback for the instance.
type InstanceInfo struct {
	// Instance is the driver instance name.
	Instance string

	// Frequency is the operating center frequency in MHz.
	Frequency int

	// Bandwidth is the operating bandwidth.
	Bandwidth Bandwidth

	// BSSID is the instance MAC.
	BSSID net.HardwareAddr

	// Standard is the negotiated Wi-Fi generation.
	Standard Standard

	// AutoShutdownTimeout is the driver-reported per-instance idle
	// timeout. 0 disables the per-instance timer.
	AutoShutdownTimeout time.Duration

	// MLDAddress is the MLD MAC for 11be instances (nil otherwise).
	MLDAddress net.HardwareAddr
}

// Band returns the band the instance operates on.
func (i *InstanceInfo) Band() Band {
	return FrequencyToBand(i.Frequency)
}

// Equal reports whether two infos carry identical values. Used to
// suppress redundant observer notifications.
func (i *InstanceInfo) Equal(o *InstanceInfo) bool {
	if i == nil || o == nil {
		return i == o
	}
	return i.Instance == o.Instance &&
		i.Frequency == o.Frequency &&
		i.Bandwidth == o.Bandwidth &&
		i.Standard == o.Standard &&
		i.AutoShutdownTimeout == o.AutoShutdownTimeout &&
		macEqual(i.BSSID, o.BSSID) &&
		macEqual(i.MLDAddress, o.MLDAddress)
}

// Clone returns a deep copy.
func (i *InstanceInfo) Clone() *InstanceInfo {
	if i == nil {
		return nil
	}
	out := *i
	out.BSSID = append(net.HardwareAddr(nil), i.BSSID...)
	out.MLDAddress = append(net.HardwareAddr(nil), i.MLDAddress...)
	return &out
}

// ConnectedClient is one admitted client on one instance.
type ConnectedClient struct {
	// Mac is the client MAC.
	Mac net.HardwareAddr

	// Instance is the AP instance the client is attached to.
	Instance string

	// ConnectedAt orders clients for deterministic eviction.
	ConnectedAt time.Time
}

// CoexState is the coexistence provider snapshot: channels marked unsafe
// by cellular/other-radio interference, and whether avoiding them is
// mandatory ("hard") rather than advisory ("soft").
type CoexState struct {
	// Unsafe lists the channels flagged by the coexistence provider.
	Unsafe []ChannelSpec

	// Hard is set when the restriction applies to soft AP operation and
	// the unsafe channels must not be used.
	Hard bool
}

// CoversBand reports whether every one of the given supported channels on
// band is marked unsafe.
func (s CoexState) CoversBand(band Band, supported []int) bool {
	if len(supported) == 0 {
		return false
	}
	unsafe := make(map[int]bool, len(s.Unsafe))
	for _, ch := range s.Unsafe {
		if ch.Band == band {
			unsafe[ch.Channel] = true
		}
	}
	for _, ch := range supported {
		if !unsafe[ch] {
			return false
		}
	}
	return true
}
