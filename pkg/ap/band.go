package ap

import "strings"

// Band is a bitmask of radio frequency bands. A single ChannelSpec carries
// exactly one bit; configuration-level band preferences may carry several.
type Band uint8

const (
	// Band2GHz is the 2.4 GHz band.
	Band2GHz Band = 1 << iota

	// Band5GHz is the 5 GHz band.
	Band5GHz

	// Band6GHz is the 6 GHz band.
	Band6GHz

	// Band60GHz is the 60 GHz band.
	Band60GHz
)

// BandAny is the union of all supported bands.
const BandAny = Band2GHz | Band5GHz | Band6GHz | Band60GHz

// Contains reports whether every bit of test is set in b.
func (b Band) Contains(test Band) bool {
	return test != 0 && b&test == test
}

// Lowest returns the lowest-frequency band bit set in b, or 0 if none.
func (b Band) Lowest() Band {
	for _, candidate := range []Band{Band2GHz, Band5GHz, Band6GHz, Band60GHz} {
		if b&candidate != 0 {
			return candidate
		}
	}
	return 0
}

// Highest returns the highest-frequency band bit set in b, or 0 if none.
func (b Band) Highest() Band {
	for _, candidate := range []Band{Band60GHz, Band6GHz, Band5GHz, Band2GHz} {
		if b&candidate != 0 {
			return candidate
		}
	}
	return 0
}

// Count returns the number of band bits set in b.
func (b Band) Count() int {
	n := 0
	for v := b; v != 0; v &= v - 1 {
		n++
	}
	return n
}

// String returns a human-readable band name, joining multiple bands
// with "|" (e.g. "2GHz|5GHz").
func (b Band) String() string {
	if b == 0 {
		return "NONE"
	}
	var parts []string
	if b&Band2GHz != 0 {
		parts = append(parts, "2GHz")
	}
	if b&Band5GHz != 0 {
		parts = append(parts, "5GHz")
	}
	if b&Band6GHz != 0 {
		parts = append(parts, "6GHz")
	}
	if b&Band60GHz != 0 {
		parts = append(parts, "60GHz")
	}
	return strings.Join(parts, "|")
}

// ChannelSpec identifies a band and, optionally, a fixed channel on it.
// Channel 0 means the channel is unspecified and the driver (or the
// negotiator, when ACS offload is unavailable) picks one.
type ChannelSpec struct {
	Band    Band
	Channel int
}

// Fixed reports whether the spec carries an explicit channel.
func (c ChannelSpec) Fixed() bool {
	return c.Channel != 0
}

// FrequencyToBand maps a center frequency in MHz to its band.
// Returns 0 for frequencies outside all known bands.
func FrequencyToBand(freqMHz int) Band {
	switch {
	case freqMHz >= 2412 && freqMHz <= 2484:
		return Band2GHz
	case freqMHz >= 5160 && freqMHz <= 5885:
		return Band5GHz
	case freqMHz >= 5925 && freqMHz <= 7115:
		return Band6GHz
	case freqMHz >= 58320 && freqMHz <= 70200:
		return Band60GHz
	default:
		return 0
	}
}

// ChannelToFrequency converts a channel number on a band to its center
// frequency in MHz. Returns 0 for invalid combinations.
func ChannelToFrequency(band Band, channel int) int {
	switch band {
	case Band2GHz:
		if channel == 14 {
			return 2484
		}
		if channel >= 1 && channel <= 13 {
			return 2407 + channel*5
		}
	case Band5GHz:
		if channel >= 32 && channel <= 177 {
			return 5000 + channel*5
		}
	case Band6GHz:
		if channel == 2 {
			return 5935
		}
		if channel >= 1 && channel <= 233 {
			return 5950 + channel*5
		}
	case Band60GHz:
		if channel >= 1 && channel <= 6 {
			return 56160 + channel*2160
		}
	}
	return 0
}

// FrequencyToChannel converts a center frequency in MHz to its channel
// number. Returns 0 for frequencies outside all known bands.
func FrequencyToChannel(freqMHz int) int {
	switch FrequencyToBand(freqMHz) {
	case Band2GHz:
		if freqMHz == 2484 {
			return 14
		}
		return (freqMHz - 2407) / 5
	case Band5GHz:
		return (freqMHz - 5000) / 5
	case Band6GHz:
		if freqMHz == 5935 {
			return 2
		}
		return (freqMHz - 5950) / 5
	case Band60GHz:
		return (freqMHz - 56160) / 2160
	default:
		return 0
	}
}
