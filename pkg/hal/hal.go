package hal

import (
	"errors"
	"net"

	"github.com/softap-stack/softap-go/pkg/ap"
)

// Driver errors. Implementations wrap these so the session can map
// failures to stable reason codes.
var (
	// ErrInterfaceUnavailable means the driver cannot create the
	// requested interface in the current combination.
	ErrInterfaceUnavailable = errors.New("AP interface unavailable")

	// ErrNoChannel means the driver found no usable channel.
	ErrNoChannel = errors.New("no usable channel")

	// ErrUnsupported means the driver rejected the configuration.
	ErrUnsupported = errors.New("configuration not supported by driver")

	// ErrDriverBusy is a transient command failure worth retrying.
	ErrDriverBusy = errors.New("driver busy")

	// ErrUnknownInterface means the named interface does not exist.
	ErrUnknownInterface = errors.New("unknown interface")
)

// SetupRequest describes the interface the session needs.
type SetupRequest struct {
	// Requestor identifies the owning worksource for the driver.
	Requestor string

	// Band is the union of bands the interface must cover.
	Band ap.Band

	// Bridged requests a dual-instance bridged interface.
	Bridged bool

	// Mlo requests an MLO-capable (11be) interface.
	Mlo bool

	// ExcludedInterfaces must not be torn down to satisfy the request.
	ExcludedInterfaces []string
}

// Callbacks is the inbound event surface. Any field may be nil.
// Implementations call these from arbitrary goroutines.
type Callbacks struct {
	// OnInfoChanged reports new or changed operating parameters for an
	// instance (the whole interface, or a bridged sub-instance).
	OnInfoChanged func(iface string, info ap.InstanceInfo)

	// OnConnectedClientsChanged reports one client connecting to or
	// disconnecting from an instance.
	OnConnectedClientsChanged func(iface, instance string, mac net.HardwareAddr, connected bool)

	// OnFailure reports the whole AP as unusable.
	OnFailure func(iface string)

	// OnInstanceFailure reports one bridged sub-instance as unusable.
	OnInstanceFailure func(iface, instance string)

	// OnInterfaceUp / OnInterfaceDown report link state of the
	// underlying interface.
	OnInterfaceUp   func(iface string)
	OnInterfaceDown func(iface string)

	// OnInterfaceDestroyed reports the interface vanished underneath
	// the session.
	OnInterfaceDestroyed func(iface string)
}

// Controller is the native control surface. All methods are
// synchronous command submissions; asynchronous outcomes arrive via
// Callbacks.
type Controller interface {
	// SetupInterface creates the AP interface and registers callbacks.
	// Returns the interface name.
	SetupInterface(req SetupRequest, cb *Callbacks) (string, error)

	// StartAp starts the AP on a previously created interface.
	StartAp(iface string, cfg *ap.ResolvedConfig, tethered bool) error

	// StopAp stops the AP without destroying the interface.
	StopAp(iface string) error

	// TeardownInterface destroys the interface.
	TeardownInterface(iface string) error

	// SetApMacAddress programs the interface MAC before start.
	SetApMacAddress(iface string, mac net.HardwareAddr) error

	// SetApCountryCode pushes a regulatory country code.
	SetApCountryCode(iface string, countryCode string) error

	// ForceClientDisconnect kicks one client with a reason code.
	ForceClientDisconnect(iface string, mac net.HardwareAddr, reason ap.BlockReason) error

	// RemoveInstance tears down one bridged sub-instance.
	RemoveInstance(iface, instance string) error

	// ChannelsForBand returns the driver's usable channels on a band.
	ChannelsForBand(band ap.Band) []int

	// CanSupportCombo reports whether the requested interface type can
	// be created alongside the currently existing ones.
	CanSupportCombo(bridged bool) bool

	// BridgedInstances returns the live sub-instances of a bridged
	// interface. ok is false when the driver cannot report them.
	BridgedInstances(iface string) (instances []string, ok bool)
}
