package session

import (
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/softap-stack/softap-go/pkg/admission"
	"github.com/softap-stack/softap-go/pkg/ap"
	"github.com/softap-stack/softap-go/pkg/bridged"
	"github.com/softap-stack/softap-go/pkg/log"
	"github.com/softap-stack/softap-go/pkg/timeout"
)

// ErrMissingHal is returned by New when Deps.Hal is nil.
var ErrMissingHal = errors.New("session requires a HAL controller")

// Timer names. One armed entry per name at any time; the per-instance
// timer name appends ":<instance>".
const (
	shutdownTimerName    = "softApShutdownTimeout"
	countryCodeTimerName = "softApCountryCodeTimeout"
	retryTimerPrefix     = "forceDisconnectRetry:"
)

func instanceTimerName(instance string) string {
	return shutdownTimerName + ":" + instance
}

// state is the internal lifecycle phase.
type state uint8

const (
	stateIdle state = iota
	stateWaitingForUserApproval
	stateWaitingForCountryCode
	stateStarting
	stateStarted
	stateStopping
	stateTerminal
)

// Status is the externally readable session snapshot.
type Status struct {
	// State is the observer-visible AP state.
	State ap.ApState

	// Failure is the failure reason when State is Failed.
	Failure ap.FailureReason

	// Interface is the AP interface name ("" before creation).
	Interface string

	// Instances lists the live AP instances.
	Instances []string

	// ClientCount is the number of connected clients.
	ClientCount int

	// Clients lists the connected clients.
	Clients []ap.ConnectedClient

	// Bridged reports dual-instance operation.
	Bridged bool
}

// Session is the soft AP session state machine. Create with New, drive
// with the public API, observe through Deps.Observer. A session runs
// at most one AP; once stopped or failed it stays terminal.
type Session struct {
	id   string
	deps Deps

	inbox chan func()
	quit  chan struct{}
	once  sync.Once

	// Everything below is owned by the run goroutine.
	st       state
	apState  ap.ApState
	failure  ap.FailureReason
	req      Request
	cfg      *ap.SoftApConfiguration
	capa     *ap.SoftApCapability
	resolved *ap.ResolvedConfig
	iface    string

	infos   map[string]*ap.InstanceInfo
	clients map[string]ap.ConnectedClient

	admission   *admission.Controller
	coordinator *bridged.Coordinator
	scheduler   *timeout.Scheduler

	coex        ap.CoexState
	staFreqs    []int
	charging    bool
	countryCode string

	cancelCountry func()
	cancelCoex    func()

	// mirror publishes a read-only snapshot for Status.
	mirrorMu sync.RWMutex
	mirror   Status
}

// New creates a session and starts its event goroutine. Call Close when
// the session object is no longer needed.
func New(deps Deps) (*Session, error) {
	if deps.Hal == nil {
		return nil, ErrMissingHal
	}
	deps.Defaults = deps.Defaults.fill()
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	if deps.EventLogger == nil {
		deps.EventLogger = log.NoopLogger{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	s := &Session{
		id:          uuid.NewString(),
		deps:        deps,
		inbox:       make(chan func(), 256),
		quit:        make(chan struct{}),
		st:          stateIdle,
		apState:     ap.ApStateDisabled,
		infos:       make(map[string]*ap.InstanceInfo),
		clients:     make(map[string]ap.ConnectedClient),
		admission:   admission.NewController(),
		coordinator: bridged.NewCoordinator(),
	}
	s.scheduler = timeout.NewScheduler(s.post)
	s.mirror = Status{State: ap.ApStateDisabled}

	go s.run()
	return s, nil
}

// ID returns the session correlation ID.
func (s *Session) ID() string {
	return s.id
}

// Status returns the current session snapshot.
func (s *Session) Status() Status {
	s.mirrorMu.RLock()
	defer s.mirrorMu.RUnlock()
	return s.mirror
}

// Close stops the event goroutine. The session must already be stopped;
// Close does not tear down a running AP.
func (s *Session) Close() {
	s.once.Do(func() { close(s.quit) })
}

// Start requests AP bring-up. Asynchronous: the outcome arrives through
// the observer. A session accepts exactly one start.
func (s *Session) Start(req Request) {
	s.post(func() { s.handleStart(req) })
}

// Stop requests AP teardown. Idempotent.
func (s *Session) Stop() {
	s.post(func() { s.stopSession(ap.StopReasonExplicit, ap.FailureNone) })
}

// ResolveConflict delivers the user's answer to a deferred start.
func (s *Session) ResolveConflict(approved bool) {
	s.post(func() { s.handleConflictResolved(approved) })
}

// UpdateConfiguration applies a new configuration. Only live-appliable
// fields take effect; restart-required changes are ignored.
func (s *Session) UpdateConfiguration(cfg *ap.SoftApConfiguration) {
	clone := cfg.Clone()
	s.post(func() { s.handleUpdateConfiguration(clone) })
}

// UpdateCapability applies a new capability snapshot.
func (s *Session) UpdateCapability(capa *ap.SoftApCapability) {
	clone := capa.Clone()
	s.post(func() { s.handleUpdateCapability(clone) })
}

// UpdateCountryCode delivers a driver country-code confirmation or a
// runtime regulatory change.
func (s *Session) UpdateCountryCode(code string) {
	s.post(func() { s.handleCountryCode(code) })
}

// NotifyCoexChanged delivers a coexistence update. Also fed by the
// CoexProvider subscription when one is configured.
func (s *Session) NotifyCoexChanged(state ap.CoexState) {
	s.post(func() { s.handleCoexChanged(state) })
}

// NotifyStaFrequenciesChanged delivers the operating frequencies of
// concurrent STA interfaces.
func (s *Session) NotifyStaFrequenciesChanged(freqs []int) {
	copied := append([]int(nil), freqs...)
	s.post(func() { s.handleStaChanged(copied) })
}

// NotifyChargingChanged delivers the device charging state, which gates
// bridged opportunistic shutdown.
func (s *Session) NotifyChargingChanged(charging bool) {
	s.post(func() { s.handleChargingChanged(charging) })
}

// post delivers fn to the run goroutine. Messages posted after Close
// are dropped.
func (s *Session) post(fn func()) {
	select {
	case s.inbox <- fn:
	case <-s.quit:
	}
}

func (s *Session) run() {
	for {
		select {
		case fn := <-s.inbox:
			fn()
		case <-s.quit:
			return
		}
	}
}

// publishMirror refreshes the Status snapshot. Run-goroutine only.
func (s *Session) publishMirror() {
	instances := make([]string, 0, len(s.infos))
	for name := range s.infos {
		instances = append(instances, name)
	}
	st := Status{
		State:       s.apState,
		Failure:     s.failure,
		Interface:   s.iface,
		Instances:   instances,
		ClientCount: len(s.clients),
		Clients:     s.clientList(),
		Bridged:     s.resolved != nil && s.resolved.Bridged() && s.coordinator.Count() > 1,
	}
	s.mirrorMu.Lock()
	s.mirror = st
	s.mirrorMu.Unlock()
}

// setApState emits one observer notification and one event-log record
// for a state transition.
func (s *Session) setApState(st ap.ApState, reason ap.FailureReason) {
	old := s.apState
	s.apState = st
	s.failure = reason
	s.publishMirror()

	s.deps.Logger.Info("soft AP state changed",
		"session", s.id,
		"old", old.String(),
		"new", st.String(),
		"reason", reason.String(),
		"iface", s.iface)

	ev := log.Event{
		Timestamp: s.deps.Now(),
		SessionID: s.id,
		Interface: s.iface,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			OldState: old.String(),
			NewState: st.String(),
		},
	}
	if reason != ap.FailureNone {
		ev.StateChange.Reason = reason.String()
	}
	s.deps.EventLogger.Log(ev)

	if s.deps.Observer.OnStateChanged != nil {
		s.deps.Observer.OnStateChanged(st, reason, s.req.Token, s.iface)
	}
}

func (s *Session) logClientEvent(instance string, mac net.HardwareAddr, connected, blocked bool, reason string) {
	s.deps.EventLogger.Log(log.Event{
		Timestamp: s.deps.Now(),
		SessionID: s.id,
		Interface: s.iface,
		Instance:  instance,
		Category:  log.CategoryClient,
		Client: &log.ClientEvent{
			Mac:       mac.String(),
			Connected: connected,
			Blocked:   blocked,
			Reason:    reason,
		},
	})
}

func (s *Session) logDriverError(op string, err error) {
	s.deps.Logger.Warn("driver command failed",
		"session", s.id, "op", op, "error", err, "iface", s.iface)
	s.deps.EventLogger.Log(log.Event{
		Timestamp: s.deps.Now(),
		SessionID: s.id,
		Interface: s.iface,
		Category:  log.CategoryDriver,
		Driver:    &log.DriverErrorEvent{Op: op, Message: err.Error()},
	})
}

func (s *Session) logTimer(name, action string, d time.Duration) {
	ev := log.Event{
		Timestamp: s.deps.Now(),
		SessionID: s.id,
		Interface: s.iface,
		Category:  log.CategoryTimer,
		Timer:     &log.TimerEvent{Name: name, Action: action},
	}
	if action == "arm" {
		ev.Timer.DurationMillis = d.Milliseconds()
	}
	s.deps.EventLogger.Log(ev)
}

func (s *Session) notifySnapshot() {
	s.publishMirror()
	if s.deps.Observer.OnConnectedClientsOrInfoChanged == nil {
		return
	}
	infos := make(map[string]ap.InstanceInfo, len(s.infos))
	for name, info := range s.infos {
		infos[name] = *info.Clone()
	}
	clients := s.clientList()
	bridged := s.resolved != nil && s.resolved.Bridged()
	s.deps.Observer.OnConnectedClientsOrInfoChanged(infos, clients, bridged)
}

func (s *Session) clientList() []ap.ConnectedClient {
	out := make([]ap.ConnectedClient, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, c)
	}
	return out
}

func (s *Session) instanceClientCount(instance string) int {
	n := 0
	for _, c := range s.clients {
		if c.Instance == instance {
			n++
		}
	}
	return n
}

func (s *Session) effectiveMaxClients() int {
	return s.cfg.EffectiveMaxClients(s.capa)
}

func (s *Session) admissionSnapshot() admission.Snapshot {
	return admission.Snapshot{
		ConnectedCount: len(s.clients),
		MaxClients:     s.effectiveMaxClients(),
		ClientControl:  s.cfg.ClientControl,
		AllowList:      s.cfg.AllowList,
		BlockList:      s.cfg.BlockList,
	}
}
