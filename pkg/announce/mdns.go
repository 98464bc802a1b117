package announce

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// MDNSAdvertiser implements Advertiser using zeroconf.
type MDNSAdvertiser struct {
	config AdvertiserConfig

	mu     sync.Mutex
	server *zeroconf.Server
}

// AdvertiserConfig configures the mDNS advertiser.
type AdvertiserConfig struct {
	// InstanceName is the DNS-SD instance name. Empty derives a name
	// from the SSID at announce time.
	InstanceName string

	// Interface restricts advertising to one network interface.
	// Empty means all interfaces.
	Interface string

	// TTL is the DNS record TTL. Default: 120 seconds.
	TTL time.Duration
}

// DefaultAdvertiserConfig returns the default advertiser configuration.
func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{
		TTL: 120 * time.Second,
	}
}

// NewMDNSAdvertiser creates a zeroconf-backed advertiser.
func NewMDNSAdvertiser(config AdvertiserConfig) *MDNSAdvertiser {
	return &MDNSAdvertiser{config: config}
}

func (a *MDNSAdvertiser) interfaces() []net.Interface {
	if a.config.Interface == "" {
		return nil
	}
	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// Announce starts advertising the AP, replacing any running
// advertisement.
func (a *MDNSAdvertiser) Announce(info Info) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	instanceName := a.config.InstanceName
	if instanceName == "" {
		instanceName = "SoftAP-" + info.SSID
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	server, err := zeroconf.Register(
		instanceName,
		ServiceType,
		Domain,
		DefaultPort,
		TXTRecords(info),
		a.interfaces(),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to register softap service: %w", err)
	}

	a.server = server
	return nil
}

// Update replaces the TXT records of the running advertisement.
// zeroconf has no record-update primitive, so this re-registers.
func (a *MDNSAdvertiser) Update(info Info) error {
	return a.Announce(info)
}

// Withdraw stops the advertisement.
func (a *MDNSAdvertiser) Withdraw() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

var _ Advertiser = (*MDNSAdvertiser)(nil)
