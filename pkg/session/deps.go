package session

import (
	"log/slog"
	"net"
	"time"

	"github.com/softap-stack/softap-go/pkg/ap"
	"github.com/softap-stack/softap-go/pkg/capability"
	"github.com/softap-stack/softap-go/pkg/hal"
	"github.com/softap-stack/softap-go/pkg/log"
)

// ConflictDecision is the interface-conflict resolver's answer to a
// start request.
type ConflictDecision uint8

const (
	// ConflictProceed lets the start continue immediately.
	ConflictProceed ConflictDecision = iota

	// ConflictAbort rejects the start with USER_REJECTED.
	ConflictAbort

	// ConflictWait defers the start to a user decision delivered later
	// via Session.ResolveConflict.
	ConflictWait
)

// ConflictResolver decides whether a start request may displace
// existing interfaces. A nil resolver always proceeds.
type ConflictResolver interface {
	// CheckStart is consulted once per start request.
	CheckStart(token string, tethered bool) ConflictDecision
}

// CountryCodeProvider reports driver country-code confirmations.
type CountryCodeProvider interface {
	// CountryCode returns the currently confirmed code ("" if none).
	CountryCode() string

	// Subscribe registers a listener for confirmations. The returned
	// function unregisters it; both are safe to call from any
	// goroutine.
	Subscribe(fn func(code string)) (cancel func())
}

// CoexProvider reports cellular/Wi-Fi coexistence restrictions.
type CoexProvider interface {
	// State returns the current unsafe-channel snapshot.
	State() ap.CoexState

	// Subscribe registers a change listener. The returned function
	// unregisters it.
	Subscribe(fn func(state ap.CoexState)) (cancel func())
}

// Observer receives session notifications. Any field may be nil.
// Callbacks are invoked from the session goroutine; they must not call
// back into the session synchronously.
type Observer struct {
	// OnStateChanged reports every observable state transition, in
	// order, exactly once each. reason is FailureNone except for the
	// FAILED state.
	OnStateChanged func(state ap.ApState, reason ap.FailureReason, token, iface string)

	// OnConnectedClientsOrInfoChanged reports the merged instance-info
	// and client snapshot whenever either actually changes.
	OnConnectedClientsOrInfoChanged func(infos map[string]ap.InstanceInfo, clients []ap.ConnectedClient, bridged bool)

	// OnClientsDisconnected reports clients dropped by an instance
	// teardown.
	OnClientsDisconnected func(info ap.InstanceInfo, clients []ap.ConnectedClient)

	// OnBlockedClientConnecting reports an admission denial. Denials
	// never appear in the connected-clients snapshot.
	OnBlockedClientConnecting func(mac net.HardwareAddr, reason ap.BlockReason)

	// OnStarted reports the session reaching the started state.
	OnStarted func(token, iface string)

	// OnStartFailure reports a session that failed before reaching the
	// started state. Terminal; OnStopped is not also called.
	OnStartFailure func(token string, reason ap.FailureReason)

	// OnStopped reports session end, exactly once per session.
	OnStopped func(token string, reason ap.StopReason)
}

// Defaults carries deployment-level fallbacks consulted when the
// per-session configuration leaves a knob unset.
type Defaults struct {
	// ShutdownTimeout is the whole-session idle shutdown fallback.
	ShutdownTimeout time.Duration

	// BridgedInstanceShutdownTimeout is the per-instance idle fallback.
	BridgedInstanceShutdownTimeout time.Duration

	// CountryCodeWaitTimeout bounds the wait for a driver country-code
	// confirmation before proceeding best-effort.
	CountryCodeWaitTimeout time.Duration

	// DynamicCountryCodeEnabled forwards runtime country-code updates
	// to the driver.
	DynamicCountryCodeEnabled bool

	// Overlay is the vendor policy consulted during resolution.
	Overlay capability.Overlay
}

// fill replaces zero values with the shipped defaults.
func (d Defaults) fill() Defaults {
	if d.ShutdownTimeout == 0 {
		d.ShutdownTimeout = 10 * time.Minute
	}
	if d.BridgedInstanceShutdownTimeout == 0 {
		d.BridgedInstanceShutdownTimeout = 5 * time.Minute
	}
	if d.CountryCodeWaitTimeout == 0 {
		d.CountryCodeWaitTimeout = 10 * time.Second
	}
	return d
}

// Deps is the collaborator set injected once at session creation.
type Deps struct {
	// Hal is the driver control surface. Required.
	Hal hal.Controller

	// CountryCode reports driver country-code confirmations. Optional;
	// without it the country-code wait relies on UpdateCountryCode.
	CountryCode CountryCodeProvider

	// Coex reports coexistence restrictions. Optional.
	Coex CoexProvider

	// Conflicts resolves interface conflicts. Optional; nil proceeds.
	Conflicts ConflictResolver

	// Observer receives session notifications. Optional.
	Observer Observer

	// ActiveMLDs reports the MLD count owned by other sessions.
	// Optional; nil means zero.
	ActiveMLDs func() int

	// Logger is the operational logger. Optional.
	Logger *slog.Logger

	// EventLogger records the machine-readable session trace. Optional.
	EventLogger log.Logger

	// Defaults are the deployment fallbacks.
	Defaults Defaults

	// Now is the clock used for client connect ordering. Optional;
	// nil uses time.Now.
	Now func() time.Time
}

// Request describes one session start.
type Request struct {
	// Config is the requested configuration.
	Config *ap.SoftApConfiguration

	// Capability is the device capability snapshot at request time.
	Capability *ap.SoftApCapability

	// CountryCode is the requested regulatory code ("" for none).
	CountryCode string

	// Tethered distinguishes tethered from local-only sessions.
	Tethered bool

	// Requestor identifies the owning worksource for the driver.
	Requestor string

	// Token correlates observer notifications with the request.
	// Empty generates one.
	Token string
}
