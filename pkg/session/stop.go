package session

import (
	"github.com/softap-stack/softap-go/pkg/ap"
)

// failBeforeStarted ends a session that never reached the started
// state: exactly one FAILED notification, no DISABLING/DISABLED pair.
func (s *Session) failBeforeStarted(reason ap.FailureReason) {
	if s.st == stateTerminal {
		return
	}
	s.cancelAsync()
	s.setApState(ap.ApStateFailed, reason)
	s.st = stateTerminal
	if s.deps.Observer.OnStartFailure != nil {
		s.deps.Observer.OnStartFailure(s.req.Token, reason)
	}
}

// stopSession is the single teardown path for a session that reached
// (or is reaching) the started state. Every fatal runtime failure and
// the explicit Stop converge here. failure is FailureNone for a clean
// stop; otherwise a FAILED notification precedes the teardown pair.
func (s *Session) stopSession(reason ap.StopReason, failure ap.FailureReason) {
	switch s.st {
	case stateIdle, stateTerminal, stateStopping:
		// Not started, already stopping, or already done.
		return
	case stateWaitingForUserApproval, stateWaitingForCountryCode, stateStarting:
		// A stop during bring-up abandons the start.
		s.cancelAsync()
		s.teardownPartial()
		if failure != ap.FailureNone {
			s.failBeforeStarted(failure)
			return
		}
		s.setApState(ap.ApStateDisabling, ap.FailureNone)
		s.setApState(ap.ApStateDisabled, ap.FailureNone)
		s.st = stateTerminal
		if s.deps.Observer.OnStopped != nil {
			s.deps.Observer.OnStopped(s.req.Token, reason)
		}
		return
	}

	s.st = stateStopping
	s.cancelAsync()

	if failure != ap.FailureNone {
		s.setApState(ap.ApStateFailed, failure)
	}
	s.setApState(ap.ApStateDisabling, ap.FailureNone)

	if s.iface != "" {
		// Best-effort client disconnects; completion does not wait on
		// them.
		for _, c := range s.clientList() {
			if err := s.deps.Hal.ForceClientDisconnect(s.iface, c.Mac, ap.BlockedByUser); err != nil {
				s.logDriverError("forceClientDisconnect", err)
			}
		}
	}
	s.clients = make(map[string]ap.ConnectedClient)
	s.admission.Reset()

	if s.iface != "" {
		if err := s.deps.Hal.StopAp(s.iface); err != nil {
			s.logDriverError("stopAp", err)
		}
		if err := s.deps.Hal.TeardownInterface(s.iface); err != nil {
			s.logDriverError("teardownInterface", err)
		}
	}
	s.infos = make(map[string]*ap.InstanceInfo)
	s.coordinator.Reset()

	s.setApState(ap.ApStateDisabled, ap.FailureNone)
	s.st = stateTerminal

	s.deps.Logger.Info("soft AP session stopped",
		"session", s.id, "reason", reason.String())
	if s.deps.Observer.OnStopped != nil {
		s.deps.Observer.OnStopped(s.req.Token, reason)
	}
}

// cancelAsync atomically cancels every outstanding timer, subscription
// and pending approval so no stale event can resurrect the session.
func (s *Session) cancelAsync() {
	s.scheduler.DisarmAll()
	s.stopCountrySubscription()
	if s.cancelCoex != nil {
		s.cancelCoex()
		s.cancelCoex = nil
	}
}

// teardownPartial destroys a partially created interface after a
// bring-up failure. Nothing was announced yet, so no state is emitted.
func (s *Session) teardownPartial() {
	if s.iface == "" {
		return
	}
	if err := s.deps.Hal.TeardownInterface(s.iface); err != nil {
		s.logDriverError("teardownInterface", err)
	}
	s.iface = ""
	s.infos = make(map[string]*ap.InstanceInfo)
	s.coordinator.Reset()
}
