// Package announce advertises a running local-only soft AP over mDNS.
//
// When a local-only session reaches the enabled state the daemon
// publishes a `_softap._tcp` service with TXT records describing the
// SSID, active bands, security generation and bridged mode. Nearby
// devices use the advertisement to find the AP without scanning.
package announce

import (
	"fmt"
	"sort"
	"strings"

	"github.com/softap-stack/softap-go/pkg/ap"
)

const (
	// ServiceType is the mDNS service type for soft AP announcements.
	ServiceType = "_softap._tcp"

	// Domain is the mDNS domain.
	Domain = "local."

	// DefaultPort is advertised when no application port applies.
	// The AP itself has no TCP listener; the port is a placeholder
	// required by DNS-SD.
	DefaultPort = 1
)

// Info describes the advertised AP.
type Info struct {
	// SSID is the network name.
	SSID string

	// Bands lists the bands with an active instance.
	Bands []ap.Band

	// Security is the active security type.
	Security ap.SecurityType

	// Bridged indicates more than one active instance.
	Bridged bool
}

// Advertiser publishes and withdraws soft AP announcements.
type Advertiser interface {
	// Announce starts (or restarts) advertising the AP.
	Announce(info Info) error

	// Update replaces the TXT records of a running advertisement.
	// Equivalent to Announce if nothing is being advertised.
	Update(info Info) error

	// Withdraw stops the advertisement. Safe when nothing is
	// advertised.
	Withdraw()
}

// NoopAdvertiser discards all announcements. Used for tethered
// sessions, which are not advertised.
type NoopAdvertiser struct{}

func (NoopAdvertiser) Announce(Info) error { return nil }
func (NoopAdvertiser) Update(Info) error   { return nil }
func (NoopAdvertiser) Withdraw()           {}

var _ Advertiser = NoopAdvertiser{}

// TXTRecords builds the DNS-SD TXT strings for the advertisement.
func TXTRecords(info Info) []string {
	bands := make([]string, 0, len(info.Bands))
	for _, b := range info.Bands {
		bands = append(bands, bandToken(b))
	}
	sort.Strings(bands)

	records := []string{
		"ssid=" + info.SSID,
		"bands=" + strings.Join(bands, ","),
		"sec=" + securityToken(info.Security),
	}
	if info.Bridged {
		records = append(records, "bridged=1")
	}
	return records
}

func bandToken(b ap.Band) string {
	switch b {
	case ap.Band2GHz:
		return "2g"
	case ap.Band5GHz:
		return "5g"
	case ap.Band6GHz:
		return "6g"
	case ap.Band60GHz:
		return "60g"
	default:
		return fmt.Sprintf("band%d", b)
	}
}

func securityToken(s ap.SecurityType) string {
	switch s {
	case ap.SecurityOpen:
		return "open"
	case ap.SecurityWpa2Psk:
		return "wpa2"
	case ap.SecuritySaeTransition:
		return "wpa2-wpa3"
	case ap.SecuritySae:
		return "wpa3"
	case ap.SecurityOweTransition:
		return "owe-transition"
	case ap.SecurityOwe:
		return "owe"
	default:
		return "unknown"
	}
}
