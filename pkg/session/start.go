package session

import (
	"crypto/rand"
	"errors"
	"net"

	"github.com/google/uuid"

	"github.com/softap-stack/softap-go/pkg/ap"
	"github.com/softap-stack/softap-go/pkg/capability"
	"github.com/softap-stack/softap-go/pkg/hal"
)

func (s *Session) handleStart(req Request) {
	if s.st != stateIdle {
		s.deps.Logger.Warn("start ignored, session already used",
			"session", s.id, "state", int(s.st))
		return
	}
	if req.Config == nil || req.Capability == nil {
		s.deps.Logger.Error("start rejected, missing config or capability", "session", s.id)
		return
	}
	if req.Token == "" {
		req.Token = uuid.NewString()
	}
	s.req = req
	s.cfg = req.Config.Clone()
	s.capa = req.Capability.Clone()
	s.countryCode = s.capa.CountryCode

	s.setApState(ap.ApStateEnabling, ap.FailureNone)

	if s.deps.Conflicts != nil {
		switch s.deps.Conflicts.CheckStart(req.Token, req.Tethered) {
		case ConflictAbort:
			s.failBeforeStarted(ap.FailureUserRejected)
			return
		case ConflictWait:
			s.st = stateWaitingForUserApproval
			s.deps.Logger.Info("start deferred to user approval", "session", s.id)
			return
		}
	}
	s.resolveAndContinue()
}

func (s *Session) handleConflictResolved(approved bool) {
	if s.st != stateWaitingForUserApproval {
		return
	}
	if !approved {
		s.failBeforeStarted(ap.FailureUserRejected)
		return
	}
	s.resolveAndContinue()
}

// resolveAndContinue runs the negotiator and either waits for a country
// code or proceeds to interface bring-up.
func (s *Session) resolveAndContinue() {
	resolved, err := capability.Resolve(capability.Request{
		Config:           s.cfg,
		Capability:       s.capa,
		Overlay:          s.deps.Defaults.Overlay,
		Tethered:         s.req.Tethered,
		BridgedSupported: s.deps.Hal.CanSupportCombo(true),
		StaFrequencies:   s.staFreqs,
		Coex:             s.coexState(),
		ActiveMLDCount:   s.activeMLDs(),
	})
	if err != nil {
		s.failBeforeStarted(startFailureReason(err))
		return
	}
	s.resolved = resolved

	if s.needsCountryCode() {
		s.st = stateWaitingForCountryCode
		s.deps.Logger.Info("waiting for driver country code",
			"session", s.id, "requested", s.req.CountryCode)
		if s.deps.CountryCode != nil {
			s.cancelCountry = s.deps.CountryCode.Subscribe(func(code string) {
				s.post(func() { s.handleCountryCode(code) })
			})
		}
		s.scheduler.Arm(countryCodeTimerName, s.deps.Defaults.CountryCodeWaitTimeout, func() {
			s.handleCountryCodeTimeout()
		})
		s.logTimer(countryCodeTimerName, "arm", s.deps.Defaults.CountryCodeWaitTimeout)
		return
	}
	s.bringUp()
}

// needsCountryCode reports whether the resolved band requires a
// regulatory code the driver has not yet confirmed.
func (s *Session) needsCountryCode() bool {
	if s.req.CountryCode == "" {
		return false
	}
	band := s.resolved.Config.BandPreference()
	if !band.Contains(ap.Band5GHz) && !band.Contains(ap.Band6GHz) {
		return false
	}
	return s.countryCode != s.req.CountryCode
}

func (s *Session) handleCountryCode(code string) {
	switch s.st {
	case stateWaitingForCountryCode:
		if code != s.req.CountryCode {
			// Confirmation for some other interface's code.
			s.deps.Logger.Debug("ignoring mismatched country code",
				"session", s.id, "got", code, "want", s.req.CountryCode)
			return
		}
		s.countryCode = code
		s.capa.CountryCode = code
		s.scheduler.Disarm(countryCodeTimerName)
		s.logTimer(countryCodeTimerName, "disarm", 0)
		s.stopCountrySubscription()
		s.bringUp()

	case stateStarted:
		if !s.deps.Defaults.DynamicCountryCodeEnabled || code == "" || code == s.countryCode {
			return
		}
		if err := s.deps.Hal.SetApCountryCode(s.iface, code); err != nil {
			s.logDriverError("setApCountryCode", err)
			return
		}
		s.countryCode = code
	}
}

func (s *Session) handleCountryCodeTimeout() {
	if s.st != stateWaitingForCountryCode {
		return
	}
	s.logTimer(countryCodeTimerName, "fire", 0)
	s.deps.Logger.Warn("country code wait timed out, proceeding",
		"session", s.id, "requested", s.req.CountryCode)
	s.stopCountrySubscription()
	s.bringUp()
}

func (s *Session) stopCountrySubscription() {
	if s.cancelCountry != nil {
		s.cancelCountry()
		s.cancelCountry = nil
	}
}

// bringUp creates the interface, programs MAC and country code, and
// starts the AP. Any negative driver return fails the session with the
// specific reason, after tearing down whatever was partially created.
func (s *Session) bringUp() {
	s.st = stateStarting

	iface, err := s.deps.Hal.SetupInterface(hal.SetupRequest{
		Requestor: s.req.Requestor,
		Band:      s.resolved.Config.BandPreference(),
		Bridged:   s.resolved.Bridged(),
		Mlo:       s.resolved.Config.Ieee80211BE,
	}, s.halCallbacks())
	if err != nil || iface == "" {
		if err != nil {
			s.logDriverError("setupInterface", err)
		}
		s.failBeforeStarted(setupFailureReason(err))
		return
	}
	s.iface = iface

	if mac, ok := s.macToProgram(); ok {
		if err := s.deps.Hal.SetApMacAddress(iface, mac); err != nil {
			s.logDriverError("setApMacAddress", err)
			s.teardownPartial()
			s.failBeforeStarted(ap.FailureGeneral)
			return
		}
	}

	if s.req.CountryCode != "" {
		if err := s.deps.Hal.SetApCountryCode(iface, s.req.CountryCode); err != nil {
			s.logDriverError("setApCountryCode", err)
			s.teardownPartial()
			s.failBeforeStarted(ap.FailureGeneral)
			return
		}
		s.countryCode = s.req.CountryCode
	}

	if err := s.deps.Hal.StartAp(iface, s.resolved, s.req.Tethered); err != nil {
		s.logDriverError("startAp", err)
		s.teardownPartial()
		s.failBeforeStarted(startApFailureReason(err))
		return
	}
	// Started on the interface-up callback.
}

// handleInterfaceUp completes the Starting -> Started transition.
func (s *Session) handleInterfaceUp(iface string) {
	if iface != s.iface || s.st != stateStarting {
		return
	}
	s.st = stateStarted
	s.setApState(ap.ApStateEnabled, ap.FailureNone)

	if s.deps.Coex != nil {
		s.coex = s.deps.Coex.State()
		s.cancelCoex = s.deps.Coex.Subscribe(func(state ap.CoexState) {
			s.post(func() { s.handleCoexChanged(state) })
		})
	}
	s.reconcileIdleTimers()

	if s.deps.Observer.OnStarted != nil {
		s.deps.Observer.OnStarted(s.req.Token, s.iface)
	}
}

// macToProgram returns the MAC to program before start, if any.
// Factory policy leaves the interface MAC alone.
func (s *Session) macToProgram() (net.HardwareAddr, bool) {
	switch s.resolved.Config.MacSetting {
	case ap.MacExplicit:
		return s.resolved.Config.ExplicitMac, true
	case ap.MacRandomized:
		return randomMac(), true
	default:
		return nil, false
	}
}

// randomMac generates a locally administered unicast MAC.
func randomMac() net.HardwareAddr {
	mac := make(net.HardwareAddr, 6)
	if _, err := rand.Read(mac); err != nil {
		// Deterministic locally administered fallback.
		return net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	}
	mac[0] = (mac[0] | 0x02) &^ 0x01
	return mac
}

func (s *Session) coexState() ap.CoexState {
	if s.deps.Coex != nil {
		return s.deps.Coex.State()
	}
	return s.coex
}

func (s *Session) activeMLDs() int {
	if s.deps.ActiveMLDs != nil {
		return s.deps.ActiveMLDs()
	}
	return 0
}

// startFailureReason maps a negotiation error to a stable reason code.
func startFailureReason(err error) ap.FailureReason {
	switch {
	case errors.Is(err, capability.ErrNoChannel):
		return ap.FailureNoChannel
	case errors.Is(err, ap.ErrUnsupportedConfiguration),
		errors.Is(err, ap.ErrInvalidConfiguration):
		return ap.FailureUnsupportedConfiguration
	default:
		return ap.FailureGeneral
	}
}

// setupFailureReason maps an interface-creation error.
func setupFailureReason(err error) ap.FailureReason {
	if err == nil || errors.Is(err, hal.ErrInterfaceUnavailable) {
		return ap.FailureInterfaceConflict
	}
	return ap.FailureGeneral
}

// startApFailureReason maps a driver start error.
func startApFailureReason(err error) ap.FailureReason {
	switch {
	case errors.Is(err, hal.ErrNoChannel):
		return ap.FailureNoChannel
	case errors.Is(err, hal.ErrUnsupported):
		return ap.FailureUnsupportedConfiguration
	default:
		return ap.FailureGeneral
	}
}
