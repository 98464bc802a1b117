package halsim

import (
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/softap-stack/softap-go/pkg/ap"
	"github.com/softap-stack/softap-go/pkg/hal"
)

// Simulator is an in-memory hal.Controller.
type Simulator struct {
	mu sync.Mutex

	channels  map[ap.Band][]int
	ifaces    map[string]*simIface
	nextIndex int

	bridgedSupported bool
	failDisconnects  int

	logger *slog.Logger
}

type simIface struct {
	name      string
	cb        *hal.Callbacks
	bridged   bool
	started   bool
	cfg       *ap.ResolvedConfig
	mac       net.HardwareAddr
	country   string
	instances map[string]*simInstance
}

type simInstance struct {
	info    ap.InstanceInfo
	clients map[string]net.HardwareAddr
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithChannels overrides the simulated channel table for a band.
func WithChannels(band ap.Band, channels []int) Option {
	return func(s *Simulator) {
		s.channels[band] = append([]int(nil), channels...)
	}
}

// WithBridgedSupport controls the bridged combo check result.
func WithBridgedSupport(supported bool) Option {
	return func(s *Simulator) { s.bridgedSupported = supported }
}

// WithLogger attaches a logger. Nil disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Simulator) { s.logger = logger }
}

// New creates a simulator with a default dual-band channel table.
func New(opts ...Option) *Simulator {
	s := &Simulator{
		channels: map[ap.Band][]int{
			ap.Band2GHz: {11, 6, 1},
			ap.Band5GHz: {36, 40, 149},
		},
		ifaces:           make(map[string]*simIface),
		bridgedSupported: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Capability builds a capability snapshot matching the simulator.
func (s *Simulator) Capability() *ap.SoftApCapability {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := &ap.SoftApCapability{
		Features: ap.FeatureClientForceDisconnect | ap.FeatureWpa3Sae |
			ap.FeatureMacCustomization,
		MaxSupportedClients: 16,
		CountryCode:         "US",
	}
	for band, channels := range s.channels {
		switch band {
		case ap.Band2GHz:
			c.Features |= ap.FeatureBand24
		case ap.Band5GHz:
			c.Features |= ap.FeatureBand5
		case ap.Band6GHz:
			c.Features |= ap.FeatureBand6
		case ap.Band60GHz:
			c.Features |= ap.FeatureBand60
		}
		c.SetChannels(band, channels)
	}
	return c
}

// SetupInterface implements hal.Controller.
func (s *Simulator) SetupInterface(req hal.SetupRequest, cb *hal.Callbacks) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.Bridged && !s.bridgedSupported {
		return "", hal.ErrInterfaceUnavailable
	}
	name := fmt.Sprintf("wlan%d", s.nextIndex)
	s.nextIndex++
	s.ifaces[name] = &simIface{
		name:      name,
		cb:        cb,
		bridged:   req.Bridged,
		instances: make(map[string]*simInstance),
	}
	s.logDebug("interface created", "iface", name, "bridged", req.Bridged)
	return name, nil
}

// StartAp implements hal.Controller. It brings the link up and emits an
// info-changed callback per instance.
func (s *Simulator) StartAp(iface string, cfg *ap.ResolvedConfig, tethered bool) error {
	s.mu.Lock()
	fc, ok := s.ifaces[iface]
	if !ok {
		s.mu.Unlock()
		return hal.ErrUnknownInterface
	}
	fc.started = true
	fc.cfg = cfg

	var infos []ap.InstanceInfo
	for i, spec := range cfg.Config.Channels {
		instance := iface
		if fc.bridged {
			instance = fmt.Sprintf("%s_%d", iface, i)
		}
		channel := spec.Channel
		if channel == 0 {
			// Driver-side ACS: first channel of the table.
			table := s.channels[spec.Band.Lowest()]
			if len(table) == 0 {
				s.mu.Unlock()
				return hal.ErrNoChannel
			}
			channel = table[0]
		}
		standard := ap.Standard11AX
		if cfg.Config.Ieee80211BE {
			standard = ap.Standard11BE
		}
		info := ap.InstanceInfo{
			Instance:            instance,
			Frequency:           ap.ChannelToFrequency(spec.Band.Lowest(), channel),
			Bandwidth:           ap.Bandwidth20,
			BSSID:               simBssid(s.nextIndex, i),
			Standard:            standard,
			AutoShutdownTimeout: cfg.Config.BridgedInstanceShutdownTimeout,
		}
		fc.instances[instance] = &simInstance{
			info:    info,
			clients: make(map[string]net.HardwareAddr),
		}
		infos = append(infos, info)
	}
	cb := fc.cb
	s.mu.Unlock()

	if cb != nil {
		if cb.OnInterfaceUp != nil {
			cb.OnInterfaceUp(iface)
		}
		if cb.OnInfoChanged != nil {
			for _, info := range infos {
				cb.OnInfoChanged(iface, info)
			}
		}
	}
	s.logDebug("AP started", "iface", iface, "tethered", tethered, "instances", len(infos))
	return nil
}

// StopAp implements hal.Controller.
func (s *Simulator) StopAp(iface string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fc, ok := s.ifaces[iface]
	if !ok {
		return hal.ErrUnknownInterface
	}
	fc.started = false
	fc.instances = make(map[string]*simInstance)
	return nil
}

// TeardownInterface implements hal.Controller.
func (s *Simulator) TeardownInterface(iface string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ifaces[iface]; !ok {
		return hal.ErrUnknownInterface
	}
	delete(s.ifaces, iface)
	s.logDebug("interface torn down", "iface", iface)
	return nil
}

// SetApMacAddress implements hal.Controller.
func (s *Simulator) SetApMacAddress(iface string, mac net.HardwareAddr) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fc, ok := s.ifaces[iface]
	if !ok {
		return hal.ErrUnknownInterface
	}
	fc.mac = append(net.HardwareAddr(nil), mac...)
	return nil
}

// SetApCountryCode implements hal.Controller.
func (s *Simulator) SetApCountryCode(iface string, countryCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fc, ok := s.ifaces[iface]
	if !ok {
		return hal.ErrUnknownInterface
	}
	fc.country = countryCode
	return nil
}

// ForceClientDisconnect implements hal.Controller. Injected failures
// (FailNextDisconnects) surface as ErrDriverBusy.
func (s *Simulator) ForceClientDisconnect(iface string, mac net.HardwareAddr, reason ap.BlockReason) error {
	s.mu.Lock()
	if s.failDisconnects > 0 {
		s.failDisconnects--
		s.mu.Unlock()
		return hal.ErrDriverBusy
	}
	fc, ok := s.ifaces[iface]
	if !ok {
		s.mu.Unlock()
		return hal.ErrUnknownInterface
	}
	var cb *hal.Callbacks
	var instance string
	for name, inst := range fc.instances {
		if _, present := inst.clients[mac.String()]; present {
			delete(inst.clients, mac.String())
			cb = fc.cb
			instance = name
			break
		}
	}
	s.mu.Unlock()

	if cb != nil && cb.OnConnectedClientsChanged != nil {
		cb.OnConnectedClientsChanged(iface, instance, mac, false)
	}
	s.logDebug("client force-disconnected", "iface", iface, "mac", mac.String(), "reason", reason.String())
	return nil
}

// RemoveInstance implements hal.Controller.
func (s *Simulator) RemoveInstance(iface, instance string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fc, ok := s.ifaces[iface]
	if !ok {
		return hal.ErrUnknownInterface
	}
	delete(fc.instances, instance)
	s.logDebug("instance removed", "iface", iface, "instance", instance)
	return nil
}

// ChannelsForBand implements hal.Controller.
func (s *Simulator) ChannelsForBand(band ap.Band) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.channels[band]...)
}

// CanSupportCombo implements hal.Controller.
func (s *Simulator) CanSupportCombo(bridged bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if bridged {
		return s.bridgedSupported
	}
	return true
}

// BridgedInstances implements hal.Controller.
func (s *Simulator) BridgedInstances(iface string) ([]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fc, ok := s.ifaces[iface]
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(fc.instances))
	for name := range fc.instances {
		out = append(out, name)
	}
	return out, true
}

// ConnectClient scripts a client connecting to an instance.
func (s *Simulator) ConnectClient(iface, instance string, mac net.HardwareAddr) error {
	s.mu.Lock()
	fc, ok := s.ifaces[iface]
	if !ok {
		s.mu.Unlock()
		return hal.ErrUnknownInterface
	}
	inst, ok := fc.instances[instance]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: instance %s", hal.ErrUnknownInterface, instance)
	}
	inst.clients[mac.String()] = append(net.HardwareAddr(nil), mac...)
	cb := fc.cb
	s.mu.Unlock()

	if cb != nil && cb.OnConnectedClientsChanged != nil {
		cb.OnConnectedClientsChanged(iface, instance, mac, true)
	}
	return nil
}

// DisconnectClient scripts a client leaving on its own.
func (s *Simulator) DisconnectClient(iface, instance string, mac net.HardwareAddr) error {
	s.mu.Lock()
	fc, ok := s.ifaces[iface]
	if !ok {
		s.mu.Unlock()
		return hal.ErrUnknownInterface
	}
	if inst, ok := fc.instances[instance]; ok {
		delete(inst.clients, mac.String())
	}
	cb := fc.cb
	s.mu.Unlock()

	if cb != nil && cb.OnConnectedClientsChanged != nil {
		cb.OnConnectedClientsChanged(iface, instance, mac, false)
	}
	return nil
}

// FailInstance scripts one bridged sub-instance failing.
func (s *Simulator) FailInstance(iface, instance string) {
	s.mu.Lock()
	fc, ok := s.ifaces[iface]
	if ok {
		delete(fc.instances, instance)
	}
	var cb *hal.Callbacks
	if ok {
		cb = fc.cb
	}
	s.mu.Unlock()

	if cb != nil && cb.OnInstanceFailure != nil {
		cb.OnInstanceFailure(iface, instance)
	}
}

// Fail scripts a whole-AP failure.
func (s *Simulator) Fail(iface string) {
	s.mu.Lock()
	fc, ok := s.ifaces[iface]
	var cb *hal.Callbacks
	if ok {
		cb = fc.cb
	}
	s.mu.Unlock()

	if cb != nil && cb.OnFailure != nil {
		cb.OnFailure(iface)
	}
}

// LinkDown scripts the interface link dropping.
func (s *Simulator) LinkDown(iface string) {
	s.mu.Lock()
	fc, ok := s.ifaces[iface]
	var cb *hal.Callbacks
	if ok {
		cb = fc.cb
	}
	s.mu.Unlock()

	if cb != nil && cb.OnInterfaceDown != nil {
		cb.OnInterfaceDown(iface)
	}
}

// FailNextDisconnects makes the next n force-disconnect commands fail
// with ErrDriverBusy.
func (s *Simulator) FailNextDisconnects(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failDisconnects = n
}

// ClientCount returns the connected client count on an instance.
func (s *Simulator) ClientCount(iface, instance string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	fc, ok := s.ifaces[iface]
	if !ok {
		return 0
	}
	inst, ok := fc.instances[instance]
	if !ok {
		return 0
	}
	return len(inst.clients)
}

func (s *Simulator) logDebug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func simBssid(ifaceIndex, instanceIndex int) net.HardwareAddr {
	return net.HardwareAddr{0x02, 0x00, 0x00, 0x00, byte(ifaceIndex), byte(instanceIndex)}
}
