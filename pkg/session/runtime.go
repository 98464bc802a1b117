package session

import (
	"net"

	"github.com/softap-stack/softap-go/pkg/admission"
	"github.com/softap-stack/softap-go/pkg/ap"
	"github.com/softap-stack/softap-go/pkg/bridged"
	"github.com/softap-stack/softap-go/pkg/hal"
)

// halCallbacks builds the driver callback surface. Every callback posts
// into the inbox; the driver's goroutines never touch session state.
func (s *Session) halCallbacks() *hal.Callbacks {
	return &hal.Callbacks{
		OnInfoChanged: func(iface string, info ap.InstanceInfo) {
			s.post(func() { s.handleInfoChanged(iface, info) })
		},
		OnConnectedClientsChanged: func(iface, instance string, mac net.HardwareAddr, connected bool) {
			s.post(func() { s.handleClientsChanged(iface, instance, mac, connected) })
		},
		OnFailure: func(iface string) {
			s.post(func() { s.handleFailure(iface) })
		},
		OnInstanceFailure: func(iface, instance string) {
			s.post(func() { s.handleInstanceFailure(iface, instance) })
		},
		OnInterfaceUp: func(iface string) {
			s.post(func() { s.handleInterfaceUp(iface) })
		},
		OnInterfaceDown: func(iface string) {
			s.post(func() { s.handleInterfaceDown(iface) })
		},
		OnInterfaceDestroyed: func(iface string) {
			s.post(func() { s.handleInterfaceDestroyed(iface) })
		},
	}
}

// owns filters events from shared providers down to our interface.
func (s *Session) owns(iface string) bool {
	return s.iface != "" && iface == s.iface
}

func (s *Session) handleInfoChanged(iface string, info ap.InstanceInfo) {
	if !s.owns(iface) || s.st != stateStarting && s.st != stateStarted {
		return
	}
	prev := s.infos[info.Instance]
	if prev != nil && prev.Equal(&info) {
		return
	}
	s.infos[info.Instance] = info.Clone()
	if s.resolved != nil && s.resolved.Bridged() {
		s.coordinator.Track(info.Instance, info.Frequency)
	}
	if s.st == stateStarted {
		s.notifySnapshot()
		s.reconcileIdleTimers()
	}
}

func (s *Session) handleClientsChanged(iface, instance string, mac net.HardwareAddr, connected bool) {
	if !s.owns(iface) || s.st != stateStarted {
		return
	}
	if connected {
		s.admitClient(instance, mac)
		return
	}

	s.admission.ClientDisconnected(mac)
	s.scheduler.Disarm(retryTimerPrefix + mac.String())

	key := mac.String()
	if _, ok := s.clients[key]; !ok {
		// A blocked client leaving; the connected set never changed.
		return
	}
	delete(s.clients, key)
	s.logClientEvent(instance, mac, false, false, "")
	s.notifySnapshot()
	s.reconcileIdleTimers()
}

func (s *Session) admitClient(instance string, mac net.HardwareAddr) {
	decision := s.admission.Decide(mac, s.admissionSnapshot())
	if !decision.Allow {
		s.deps.Logger.Info("client blocked",
			"session", s.id, "mac", mac.String(), "reason", decision.Reason.String())
		s.logClientEvent(instance, mac, false, true, decision.Reason.String())
		if s.deps.Observer.OnBlockedClientConnecting != nil {
			s.deps.Observer.OnBlockedClientConnecting(mac, decision.Reason)
		}
		s.forceDisconnect(mac, decision.Reason)
		return
	}

	s.clients[mac.String()] = ap.ConnectedClient{
		Mac:         append(net.HardwareAddr(nil), mac...),
		Instance:    instance,
		ConnectedAt: s.deps.Now(),
	}
	s.logClientEvent(instance, mac, true, false, "")
	s.notifySnapshot()
	s.reconcileIdleTimers()
}

// forceDisconnect issues the driver command and, on failure, arms the
// single bounded retry. The client's own disconnect event clears the
// pending entry first if it wins the race.
func (s *Session) forceDisconnect(mac net.HardwareAddr, reason ap.BlockReason) {
	err := s.deps.Hal.ForceClientDisconnect(s.iface, mac, reason)
	if err == nil {
		return
	}
	s.logDriverError("forceClientDisconnect", err)
	if !s.admission.MarkPendingRetry(mac) {
		return
	}
	name := retryTimerPrefix + mac.String()
	kicked := append(net.HardwareAddr(nil), mac...)
	s.scheduler.Arm(name, admission.RetryDelay, func() {
		s.handleDisconnectRetry(kicked, reason)
	})
	s.logTimer(name, "arm", admission.RetryDelay)
}

func (s *Session) handleDisconnectRetry(mac net.HardwareAddr, reason ap.BlockReason) {
	if s.st != stateStarted {
		return
	}
	if !s.admission.TakePendingRetry(mac) {
		// Organic disconnect won the race; no second command.
		return
	}
	s.logTimer(retryTimerPrefix+mac.String(), "fire", 0)
	if err := s.deps.Hal.ForceClientDisconnect(s.iface, mac, reason); err != nil {
		// Single retry cycle spent; leave the client until it leaves
		// on its own or the next admission re-evaluation.
		s.logDriverError("forceClientDisconnect", err)
	}
}

func (s *Session) handleFailure(iface string) {
	if !s.owns(iface) {
		return
	}
	switch s.st {
	case stateStarting:
		s.teardownPartial()
		s.failBeforeStarted(ap.FailureGeneral)
	case stateStarted:
		s.stopSession(ap.StopReasonHalFailure, ap.FailureGeneral)
	}
}

func (s *Session) handleInstanceFailure(iface, instance string) {
	if !s.owns(iface) || s.st != stateStarted {
		return
	}
	live, liveKnown := s.deps.Hal.BridgedInstances(s.iface)
	decision := s.coordinator.InstanceFailure(instance, live, liveKnown)
	s.applyBridgedDecision(decision, true)
}

func (s *Session) handleInterfaceDown(iface string) {
	if !s.owns(iface) || s.st != stateStarted {
		return
	}
	s.stopSession(ap.StopReasonInterfaceDown, ap.FailureGeneral)
}

func (s *Session) handleInterfaceDestroyed(iface string) {
	if !s.owns(iface) {
		return
	}
	switch s.st {
	case stateStarting:
		s.iface = ""
		s.failBeforeStarted(ap.FailureGeneral)
	case stateStarted:
		// The interface is already gone; skip driver teardown calls.
		s.iface = ""
		s.stopSession(ap.StopReasonInterfaceDestroyed, ap.FailureGeneral)
	}
}

func (s *Session) handleCoexChanged(state ap.CoexState) {
	s.coex = state
	if s.st != stateStarted || s.resolved == nil || !s.resolved.Bridged() {
		return
	}
	s.applyBridgedDecision(s.coordinator.CoexChange(state), false)
}

func (s *Session) handleStaChanged(freqs []int) {
	s.staFreqs = freqs
	if s.st != stateStarted || s.resolved == nil || !s.resolved.Bridged() {
		return
	}
	s.applyBridgedDecision(s.coordinator.StaChange(freqs, s.capa), false)
}

func (s *Session) handleChargingChanged(charging bool) {
	if s.charging == charging {
		return
	}
	s.charging = charging
	if s.st == stateStarted {
		s.reconcileIdleTimers()
	}
}

// applyBridgedDecision executes a coordinator verdict. instanceDead is
// set when the trigger was a driver instance-failure report, in which
// case the instance is already gone and needs no removal command.
func (s *Session) applyBridgedDecision(decision bridged.Decision, instanceDead bool) {
	switch decision.Action {
	case bridged.ActionRemoveInstance:
		s.removeInstance(decision.Instance, instanceDead)
	case bridged.ActionStopSession:
		s.stopSession(ap.StopReasonNoInstances, ap.FailureGeneral)
	}
}

// removeInstance narrows a bridged session by one instance. Never
// removes the last one; the coordinator guarantees that.
func (s *Session) removeInstance(instance string, alreadyDead bool) {
	if !alreadyDead {
		if err := s.deps.Hal.RemoveInstance(s.iface, instance); err != nil {
			s.logDriverError("removeInstance", err)
		}
	}
	s.coordinator.Remove(instance)
	s.scheduler.Disarm(instanceTimerName(instance))

	info := s.infos[instance]
	delete(s.infos, instance)

	var dropped []ap.ConnectedClient
	for key, c := range s.clients {
		if c.Instance == instance {
			dropped = append(dropped, c)
			delete(s.clients, key)
			s.admission.ClientDisconnected(c.Mac)
			s.scheduler.Disarm(retryTimerPrefix + c.Mac.String())
		}
	}
	if len(dropped) > 0 && info != nil && s.deps.Observer.OnClientsDisconnected != nil {
		s.deps.Observer.OnClientsDisconnected(*info.Clone(), dropped)
	}

	s.deps.Logger.Info("bridged instance removed",
		"session", s.id, "instance", instance, "clients_dropped", len(dropped))
	s.notifySnapshot()
	s.reconcileIdleTimers()
}

// reconcileIdleTimers enforces the idle-timer invariants:
//
//   - whole-session timer armed iff started, auto-shutdown enabled and
//     zero clients across all instances;
//   - per-instance timer armed iff bridged with more than one live
//     instance, opportunistic shutdown enabled, the device is not
//     charging, the instance has zero clients, and its driver-reported
//     timeout is nonzero.
//
// Arming is edge-triggered: an already armed timer keeps its deadline.
func (s *Session) reconcileIdleTimers() {
	if s.st != stateStarted {
		return
	}

	wantWhole := s.cfg.AutoShutdownEnabled && len(s.clients) == 0
	if wantWhole && !s.scheduler.Armed(shutdownTimerName) {
		d := s.cfg.ShutdownTimeout
		if d == 0 {
			d = s.deps.Defaults.ShutdownTimeout
		}
		s.scheduler.Arm(shutdownTimerName, d, s.handleIdleTimeout)
		s.logTimer(shutdownTimerName, "arm", d)
	} else if !wantWhole && s.scheduler.Armed(shutdownTimerName) {
		s.scheduler.Disarm(shutdownTimerName)
		s.logTimer(shutdownTimerName, "disarm", 0)
	}

	bridgedLive := s.resolved != nil && s.resolved.Bridged() && s.coordinator.Count() > 1
	for instance, info := range s.infos {
		name := instanceTimerName(instance)
		want := bridgedLive &&
			s.cfg.BridgedOpportunisticShutdownEnabled &&
			!s.charging &&
			s.instanceClientCount(instance) == 0 &&
			info.AutoShutdownTimeout > 0
		if want && !s.scheduler.Armed(name) {
			inst := instance
			s.scheduler.Arm(name, info.AutoShutdownTimeout, func() {
				s.handleInstanceIdleTimeout(inst)
			})
			s.logTimer(name, "arm", info.AutoShutdownTimeout)
		} else if !want && s.scheduler.Armed(name) {
			s.scheduler.Disarm(name)
			s.logTimer(name, "disarm", 0)
		}
	}
}

func (s *Session) handleIdleTimeout() {
	if s.st != stateStarted {
		return
	}
	s.logTimer(shutdownTimerName, "fire", 0)
	s.stopSession(ap.StopReasonIdleTimeout, ap.FailureNone)
}

func (s *Session) handleInstanceIdleTimeout(instance string) {
	if s.st != stateStarted {
		return
	}
	s.logTimer(instanceTimerName(instance), "fire", 0)
	s.applyBridgedDecision(s.coordinator.IdleTimeout(instance), false)
}

func (s *Session) handleUpdateConfiguration(cfg *ap.SoftApConfiguration) {
	if s.st == stateTerminal || cfg == nil {
		return
	}
	if restartRequired(s.cfg, cfg) {
		s.deps.Logger.Warn("configuration update requires restart, ignored",
			"session", s.id)
		return
	}

	timeoutChanged := s.cfg.ShutdownTimeout != cfg.ShutdownTimeout ||
		s.cfg.AutoShutdownEnabled != cfg.AutoShutdownEnabled

	s.cfg.MaxClients = cfg.MaxClients
	s.cfg.ClientControl = cfg.ClientControl
	s.cfg.AllowList = cfg.AllowList
	s.cfg.BlockList = cfg.BlockList
	s.cfg.AutoShutdownEnabled = cfg.AutoShutdownEnabled
	s.cfg.ShutdownTimeout = cfg.ShutdownTimeout
	s.cfg.BridgedOpportunisticShutdownEnabled = cfg.BridgedOpportunisticShutdownEnabled
	s.cfg.BridgedInstanceShutdownTimeout = cfg.BridgedInstanceShutdownTimeout

	if s.st != stateStarted {
		return
	}

	if timeoutChanged && s.scheduler.Armed(shutdownTimerName) {
		// Re-arm with the new value.
		s.scheduler.Disarm(shutdownTimerName)
	}
	s.enforceAdmission()
	s.reconcileIdleTimers()
}

func (s *Session) handleUpdateCapability(capa *ap.SoftApCapability) {
	if s.st == stateTerminal || capa == nil {
		return
	}
	s.capa = capa
	if s.countryCode == "" {
		s.countryCode = capa.CountryCode
	}

	switch s.st {
	case stateWaitingForUserApproval, stateWaitingForCountryCode, stateStarting:
		// A pre-start shrink that invalidates the pending configuration
		// fails the start.
		if err := s.cfg.Validate(capa); err != nil {
			s.teardownPartial()
			s.failBeforeStarted(ap.FailureUnsupportedConfiguration)
		}
	case stateStarted:
		s.enforceAdmission()
	}
}

// enforceAdmission re-checks every connected client against the current
// lists and limit, force-disconnecting violators. List violations go
// first; then excess occupancy is shed most-recently-connected first.
func (s *Session) enforceAdmission() {
	for _, c := range s.clientList() {
		if ap.ContainsMac(s.cfg.BlockList, c.Mac) ||
			(s.cfg.ClientControl && !ap.ContainsMac(s.cfg.AllowList, c.Mac)) {
			s.forceDisconnect(c.Mac, ap.BlockedByUser)
		}
	}

	limit := s.effectiveMaxClients()
	if limit <= 0 || len(s.clients) <= limit {
		return
	}
	for _, c := range admission.EvictionOrder(s.clientList(), limit) {
		s.forceDisconnect(c.Mac, ap.NoMoreStas)
	}
}

// restartRequired reports whether the update touches a field that can
// only change across a stop/start cycle.
func restartRequired(old, next *ap.SoftApConfiguration) bool {
	if old.SSID != next.SSID ||
		old.Security != next.Security ||
		old.Passphrase != next.Passphrase ||
		old.Hidden != next.Hidden ||
		old.Ieee80211BE != next.Ieee80211BE ||
		old.MacSetting != next.MacSetting {
		return true
	}
	if len(old.Channels) != len(next.Channels) {
		return true
	}
	for i := range old.Channels {
		if old.Channels[i] != next.Channels[i] {
			return true
		}
	}
	return false
}
