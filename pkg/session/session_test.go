package session

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/softap-stack/softap-go/pkg/ap"
	"github.com/softap-stack/softap-go/pkg/hal"
)

// fakeHal is a scriptable driver recording every command.
type fakeHal struct {
	mu sync.Mutex

	cb               *hal.Callbacks
	bridgedSupported bool
	autoEmit         bool
	instanceTimeout  time.Duration

	setupErr   error
	startErr   error
	macErr     error
	countryErr error
	// failDisconnects makes that many force-disconnect attempts fail
	// with ErrDriverBusy before succeeding again.
	failDisconnects int

	setupCalls    int
	setupReq      hal.SetupRequest
	startCalls    int
	startedCfg    *ap.ResolvedConfig
	stopCalls     int
	teardownCalls int
	country       string
	mac           net.HardwareAddr
	disconnects   []disconnectCall
	removes       []string

	liveInstances []string
	liveKnown     bool
}

type disconnectCall struct {
	mac    string
	reason ap.BlockReason
	failed bool
}

func newFakeHal() *fakeHal {
	return &fakeHal{
		bridgedSupported: true,
		autoEmit:         true,
		liveKnown:        true,
	}
}

func (f *fakeHal) SetupInterface(req hal.SetupRequest, cb *hal.Callbacks) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setupCalls++
	f.setupReq = req
	if f.setupErr != nil {
		return "", f.setupErr
	}
	f.cb = cb
	return "wlan1", nil
}

func (f *fakeHal) StartAp(iface string, cfg *ap.ResolvedConfig, tethered bool) error {
	f.mu.Lock()
	f.startCalls++
	f.startedCfg = cfg
	err := f.startErr
	autoEmit := f.autoEmit
	cb := f.cb
	instanceTimeout := f.instanceTimeout
	f.mu.Unlock()

	if err != nil {
		return err
	}
	if !autoEmit || cb == nil {
		return nil
	}

	if cb.OnInterfaceUp != nil {
		cb.OnInterfaceUp(iface)
	}
	if cb.OnInfoChanged != nil {
		bridgedAp := len(cfg.Config.Channels) > 1
		for i, spec := range cfg.Config.Channels {
			instance := iface
			if bridgedAp {
				instance = iface + "_" + string(rune('0'+i))
			}
			cb.OnInfoChanged(iface, ap.InstanceInfo{
				Instance:            instance,
				Frequency:           ap.ChannelToFrequency(spec.Band.Lowest(), spec.Channel),
				Bandwidth:           ap.Bandwidth20,
				Standard:            ap.Standard11AX,
				AutoShutdownTimeout: instanceTimeout,
			})
		}
	}
	return nil
}

func (f *fakeHal) StopAp(iface string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	return nil
}

func (f *fakeHal) TeardownInterface(iface string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.teardownCalls++
	return nil
}

func (f *fakeHal) SetApMacAddress(iface string, mac net.HardwareAddr) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.macErr != nil {
		return f.macErr
	}
	f.mac = append(net.HardwareAddr(nil), mac...)
	return nil
}

func (f *fakeHal) SetApCountryCode(iface string, countryCode string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countryErr != nil {
		return f.countryErr
	}
	f.country = countryCode
	return nil
}

func (f *fakeHal) ForceClientDisconnect(iface string, mac net.HardwareAddr, reason ap.BlockReason) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := disconnectCall{mac: mac.String(), reason: reason}
	if f.failDisconnects > 0 {
		f.failDisconnects--
		call.failed = true
		f.disconnects = append(f.disconnects, call)
		return hal.ErrDriverBusy
	}
	f.disconnects = append(f.disconnects, call)
	return nil
}

func (f *fakeHal) RemoveInstance(iface, instance string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removes = append(f.removes, instance)
	return nil
}

func (f *fakeHal) ChannelsForBand(band ap.Band) []int {
	switch band {
	case ap.Band2GHz:
		return []int{11, 6, 1}
	case ap.Band5GHz:
		return []int{36, 149}
	default:
		return nil
	}
}

func (f *fakeHal) CanSupportCombo(bridged bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if bridged {
		return f.bridgedSupported
	}
	return true
}

func (f *fakeHal) BridgedInstances(iface string) ([]string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.liveInstances...), f.liveKnown
}

func (f *fakeHal) disconnectCalls() []disconnectCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]disconnectCall(nil), f.disconnects...)
}

func (f *fakeHal) removeCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.removes...)
}

var _ hal.Controller = (*fakeHal)(nil)

// recorder captures observer notifications.
type recorder struct {
	mu            sync.Mutex
	states        []ap.ApState
	failReasons   []ap.FailureReason
	startFailures []ap.FailureReason
	stopped       []ap.StopReason
	started       int
	blocked       []ap.BlockReason
	snapshots     int
	lastClients   []ap.ConnectedClient
	lastInfos     map[string]ap.InstanceInfo
}

func (r *recorder) observer() Observer {
	return Observer{
		OnStateChanged: func(state ap.ApState, reason ap.FailureReason, token, iface string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.states = append(r.states, state)
			r.failReasons = append(r.failReasons, reason)
		},
		OnConnectedClientsOrInfoChanged: func(infos map[string]ap.InstanceInfo, clients []ap.ConnectedClient, bridged bool) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.snapshots++
			r.lastInfos = infos
			r.lastClients = clients
		},
		OnBlockedClientConnecting: func(mac net.HardwareAddr, reason ap.BlockReason) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.blocked = append(r.blocked, reason)
		},
		OnStarted: func(token, iface string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.started++
		},
		OnStartFailure: func(token string, reason ap.FailureReason) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.startFailures = append(r.startFailures, reason)
		},
		OnStopped: func(token string, reason ap.StopReason) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.stopped = append(r.stopped, reason)
		},
	}
}

func (r *recorder) stateSequence() []ap.ApState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ap.ApState(nil), r.states...)
}

func (r *recorder) stopReasons() []ap.StopReason {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ap.StopReason(nil), r.stopped...)
}

func (r *recorder) clientCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lastClients)
}

// settle flushes the inbox enough times that cascaded postings (driver
// callbacks emitted while handling an earlier message) are processed.
func (s *Session) settle() {
	for i := 0; i < 4; i++ {
		done := make(chan struct{})
		s.post(func() { close(done) })
		<-done
	}
}

// inspect runs fn on the session goroutine and waits for it.
func (s *Session) inspect(fn func()) {
	done := make(chan struct{})
	s.post(func() {
		fn()
		close(done)
	})
	<-done
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func testCapability() *ap.SoftApCapability {
	c := &ap.SoftApCapability{
		Features: ap.FeatureClientForceDisconnect | ap.FeatureWpa3Sae |
			ap.FeatureBand24 | ap.FeatureBand5 | ap.FeatureMacCustomization,
		MaxSupportedClients: 16,
		CountryCode:         "US",
	}
	c.SetChannels(ap.Band2GHz, []int{11, 6, 1})
	c.SetChannels(ap.Band5GHz, []int{36, 149})
	return c
}

func testConfig() *ap.SoftApConfiguration {
	return &ap.SoftApConfiguration{
		SSID:       "TestNet",
		Passphrase: "password123",
		Security:   ap.SecurityWpa2Psk,
		Channels:   []ap.ChannelSpec{{Band: ap.Band2GHz}},
		MacSetting: ap.MacFactory,
	}
}

func bridgedConfig() *ap.SoftApConfiguration {
	cfg := testConfig()
	cfg.Channels = []ap.ChannelSpec{{Band: ap.Band2GHz}, {Band: ap.Band5GHz}}
	return cfg
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func newTestSession(t *testing.T, fake *fakeHal, rec *recorder, mutate func(*Deps)) *Session {
	t.Helper()
	deps := Deps{
		Hal:      fake,
		Observer: rec.observer(),
		Now:      (&testClock{now: time.Unix(1700000000, 0)}).Now,
	}
	if mutate != nil {
		mutate(&deps)
	}
	s, err := New(deps)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func startSession(t *testing.T, s *Session, cfg *ap.SoftApConfiguration, capa *ap.SoftApCapability) {
	t.Helper()
	s.Start(Request{
		Config:      cfg,
		Capability:  capa,
		CountryCode: "US",
		Tethered:    true,
		Requestor:   "test",
	})
	s.settle()
}

func mac(b byte) net.HardwareAddr {
	return net.HardwareAddr{0xaa, 0xbb, 0xcc, 0x00, 0x00, b}
}

func TestNewRequiresHal(t *testing.T) {
	_, err := New(Deps{})
	assert.ErrorIs(t, err, ErrMissingHal)
}

func TestLifecycleStateSequence(t *testing.T) {
	fake := newFakeHal()
	rec := &recorder{}
	s := newTestSession(t, fake, rec, nil)

	startSession(t, s, testConfig(), testCapability())
	assert.Equal(t, ap.ApStateEnabled, s.Status().State)
	assert.Equal(t, "wlan1", s.Status().Interface)

	s.Stop()
	s.settle()

	assert.Equal(t, []ap.ApState{
		ap.ApStateEnabling, ap.ApStateEnabled,
		ap.ApStateDisabling, ap.ApStateDisabled,
	}, rec.stateSequence())
	assert.Equal(t, []ap.StopReason{ap.StopReasonExplicit}, rec.stopReasons())
	assert.Equal(t, 1, fake.teardownCalls)
}

func TestStopIdempotent(t *testing.T) {
	fake := newFakeHal()
	rec := &recorder{}
	s := newTestSession(t, fake, rec, nil)

	startSession(t, s, testConfig(), testCapability())
	s.Stop()
	s.Stop()
	s.settle()

	assert.Len(t, rec.stopReasons(), 1)
	assert.Equal(t, 1, fake.stopCalls)
	assert.Equal(t, 1, fake.teardownCalls)
}

func TestStartUnsupportedConfiguration(t *testing.T) {
	fake := newFakeHal()
	rec := &recorder{}
	s := newTestSession(t, fake, rec, nil)

	capa := testCapability()
	capa.Features &^= ap.FeatureWpa3Sae
	cfg := testConfig()
	cfg.Security = ap.SecuritySae

	startSession(t, s, cfg, capa)

	assert.Equal(t, []ap.ApState{ap.ApStateEnabling, ap.ApStateFailed}, rec.stateSequence())
	assert.Equal(t, []ap.FailureReason{ap.FailureUnsupportedConfiguration}, rec.startFailures)
	// No interface was ever created.
	assert.Equal(t, 0, fake.setupCalls)
}

func TestStartNoChannel(t *testing.T) {
	fake := newFakeHal()
	rec := &recorder{}
	s := newTestSession(t, fake, rec, nil)

	capa := testCapability()
	capa.SetChannels(ap.Band2GHz, nil)

	startSession(t, s, testConfig(), capa)

	assert.Equal(t, []ap.FailureReason{ap.FailureNoChannel}, rec.startFailures)
}

func TestStartInterfaceUnavailable(t *testing.T) {
	fake := newFakeHal()
	fake.setupErr = hal.ErrInterfaceUnavailable
	rec := &recorder{}
	s := newTestSession(t, fake, rec, nil)

	startSession(t, s, testConfig(), testCapability())

	assert.Equal(t, []ap.ApState{ap.ApStateEnabling, ap.ApStateFailed}, rec.stateSequence())
	assert.Equal(t, []ap.FailureReason{ap.FailureInterfaceConflict}, rec.startFailures)
}

func TestStartApFailureTearsDownPartialInterface(t *testing.T) {
	fake := newFakeHal()
	fake.startErr = hal.ErrNoChannel
	rec := &recorder{}
	s := newTestSession(t, fake, rec, nil)

	startSession(t, s, testConfig(), testCapability())

	assert.Equal(t, []ap.FailureReason{ap.FailureNoChannel}, rec.startFailures)
	assert.Equal(t, 1, fake.teardownCalls)
}

type fixedResolver struct {
	decision ConflictDecision
}

func (r fixedResolver) CheckStart(token string, tethered bool) ConflictDecision {
	return r.decision
}

func TestConflictAbort(t *testing.T) {
	fake := newFakeHal()
	rec := &recorder{}
	s := newTestSession(t, fake, rec, func(d *Deps) {
		d.Conflicts = fixedResolver{decision: ConflictAbort}
	})

	startSession(t, s, testConfig(), testCapability())

	assert.Equal(t, []ap.FailureReason{ap.FailureUserRejected}, rec.startFailures)
	assert.Equal(t, 0, fake.setupCalls)
}

func TestConflictWaitThenApprove(t *testing.T) {
	fake := newFakeHal()
	rec := &recorder{}
	s := newTestSession(t, fake, rec, func(d *Deps) {
		d.Conflicts = fixedResolver{decision: ConflictWait}
	})

	startSession(t, s, testConfig(), testCapability())
	assert.Equal(t, 0, fake.setupCalls)

	s.ResolveConflict(true)
	s.settle()

	assert.Equal(t, ap.ApStateEnabled, s.Status().State)
	assert.Equal(t, 1, fake.startCalls)
}

func TestConflictWaitThenReject(t *testing.T) {
	fake := newFakeHal()
	rec := &recorder{}
	s := newTestSession(t, fake, rec, func(d *Deps) {
		d.Conflicts = fixedResolver{decision: ConflictWait}
	})

	startSession(t, s, testConfig(), testCapability())
	s.ResolveConflict(false)
	s.settle()

	assert.Equal(t, []ap.FailureReason{ap.FailureUserRejected}, rec.startFailures)
	assert.Equal(t, 0, fake.setupCalls)
}

func TestCountryCodeWait(t *testing.T) {
	fake := newFakeHal()
	rec := &recorder{}
	s := newTestSession(t, fake, rec, nil)

	capa := testCapability()
	capa.CountryCode = ""
	cfg := testConfig()
	cfg.Channels = []ap.ChannelSpec{{Band: ap.Band5GHz}}

	s.Start(Request{
		Config:      cfg,
		Capability:  capa,
		CountryCode: "DE",
		Tethered:    true,
	})
	s.settle()
	assert.Equal(t, 0, fake.startCalls)

	// A confirmation for some other code is ignored.
	s.UpdateCountryCode("US")
	s.settle()
	assert.Equal(t, 0, fake.startCalls)

	// The matching confirmation releases the start, exactly once.
	s.UpdateCountryCode("DE")
	s.settle()
	assert.Equal(t, 1, fake.startCalls)
	assert.Equal(t, ap.ApStateEnabled, s.Status().State)
}

func TestCountryCodeWaitTimeoutProceeds(t *testing.T) {
	fake := newFakeHal()
	rec := &recorder{}
	s := newTestSession(t, fake, rec, func(d *Deps) {
		d.Defaults.CountryCodeWaitTimeout = 30 * time.Millisecond
	})

	capa := testCapability()
	capa.CountryCode = ""
	cfg := testConfig()
	cfg.Channels = []ap.ChannelSpec{{Band: ap.Band5GHz}}

	s.Start(Request{Config: cfg, Capability: capa, CountryCode: "DE", Tethered: true})
	s.settle()
	assert.Equal(t, 0, fake.startCalls)

	waitUntil(t, func() bool {
		s.settle()
		return s.Status().State == ap.ApStateEnabled
	})
	assert.Equal(t, 1, fake.startCalls)
}

func TestAdmissionMaxClients(t *testing.T) {
	fake := newFakeHal()
	rec := &recorder{}
	s := newTestSession(t, fake, rec, nil)

	cfg := testConfig()
	cfg.MaxClients = 1
	startSession(t, s, cfg, testCapability())

	fake.cb.OnConnectedClientsChanged("wlan1", "wlan1", mac(1), true)
	s.settle()
	assert.Equal(t, 1, s.Status().ClientCount)

	fake.cb.OnConnectedClientsChanged("wlan1", "wlan1", mac(2), true)
	s.settle()

	calls := fake.disconnectCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, mac(2).String(), calls[0].mac)
	assert.Equal(t, ap.NoMoreStas, calls[0].reason)
	assert.Equal(t, []ap.BlockReason{ap.NoMoreStas}, rec.blocked)
	// The denied client never appears in the snapshot.
	assert.Equal(t, 1, s.Status().ClientCount)
}

func TestAdmissionBlockList(t *testing.T) {
	fake := newFakeHal()
	rec := &recorder{}
	s := newTestSession(t, fake, rec, nil)

	cfg := testConfig()
	cfg.BlockList = []net.HardwareAddr{mac(9)}
	startSession(t, s, cfg, testCapability())

	fake.cb.OnConnectedClientsChanged("wlan1", "wlan1", mac(9), true)
	s.settle()

	calls := fake.disconnectCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, ap.BlockedByUser, calls[0].reason)
	assert.Equal(t, 0, s.Status().ClientCount)
}

func TestDisconnectRetryAfterDriverBusy(t *testing.T) {
	fake := newFakeHal()
	fake.failDisconnects = 1
	rec := &recorder{}
	s := newTestSession(t, fake, rec, nil)

	cfg := testConfig()
	cfg.MaxClients = 1
	startSession(t, s, cfg, testCapability())

	fake.cb.OnConnectedClientsChanged("wlan1", "wlan1", mac(1), true)
	fake.cb.OnConnectedClientsChanged("wlan1", "wlan1", mac(2), true)
	s.settle()

	// First attempt failed; the single retry fires after the delay.
	waitUntil(t, func() bool {
		s.settle()
		return len(fake.disconnectCalls()) == 2
	})
	calls := fake.disconnectCalls()
	assert.True(t, calls[0].failed)
	assert.False(t, calls[1].failed)
	assert.Equal(t, calls[0].mac, calls[1].mac)
}

func TestOrganicDisconnectWinsRetryRace(t *testing.T) {
	fake := newFakeHal()
	fake.failDisconnects = 1
	rec := &recorder{}
	s := newTestSession(t, fake, rec, nil)

	cfg := testConfig()
	cfg.MaxClients = 1
	startSession(t, s, cfg, testCapability())

	fake.cb.OnConnectedClientsChanged("wlan1", "wlan1", mac(1), true)
	fake.cb.OnConnectedClientsChanged("wlan1", "wlan1", mac(2), true)
	s.settle()
	require.Len(t, fake.disconnectCalls(), 1)

	// The blocked client leaves on its own before the retry fires.
	fake.cb.OnConnectedClientsChanged("wlan1", "wlan1", mac(2), false)
	s.settle()

	time.Sleep(700 * time.Millisecond)
	s.settle()
	// No second command was sent.
	assert.Len(t, fake.disconnectCalls(), 1)
	assert.Equal(t, 1, s.Status().ClientCount)
}

func TestBridgedCoexHardDowngrade(t *testing.T) {
	fake := newFakeHal()
	rec := &recorder{}
	s := newTestSession(t, fake, rec, nil)

	startSession(t, s, bridgedConfig(), testCapability())
	require.Len(t, s.Status().Instances, 2)

	s.NotifyCoexChanged(ap.CoexState{
		Hard: true,
		Unsafe: []ap.ChannelSpec{
			{Band: ap.Band5GHz, Channel: 36},
			{Band: ap.Band5GHz, Channel: 149},
		},
	})
	s.settle()

	removes := fake.removeCalls()
	require.Len(t, removes, 1)
	assert.Equal(t, "wlan1_1", removes[0])
	assert.Equal(t, ap.ApStateEnabled, s.Status().State)
	assert.Len(t, s.Status().Instances, 1)
}

func TestBridgedSoftCoexNeverDowngrades(t *testing.T) {
	fake := newFakeHal()
	rec := &recorder{}
	s := newTestSession(t, fake, rec, nil)

	startSession(t, s, bridgedConfig(), testCapability())

	s.NotifyCoexChanged(ap.CoexState{
		Hard: false,
		Unsafe: []ap.ChannelSpec{
			{Band: ap.Band5GHz, Channel: 36},
			{Band: ap.Band5GHz, Channel: 149},
		},
	})
	s.settle()

	assert.Empty(t, fake.removeCalls())
	assert.Len(t, s.Status().Instances, 2)
}

func TestBridgedInstanceFailureNarrows(t *testing.T) {
	fake := newFakeHal()
	rec := &recorder{}
	s := newTestSession(t, fake, rec, nil)

	startSession(t, s, bridgedConfig(), testCapability())
	fake.mu.Lock()
	fake.liveInstances = []string{"wlan1_0"}
	fake.mu.Unlock()

	fake.cb.OnInstanceFailure("wlan1", "wlan1_1")
	s.settle()

	// The dead instance needs no removal command.
	assert.Empty(t, fake.removeCalls())
	assert.Equal(t, ap.ApStateEnabled, s.Status().State)
	assert.Len(t, s.Status().Instances, 1)
	assert.Equal(t, "wlan1_0", s.Status().Instances[0])
}

func TestBridgedInstanceFailureUnknownSurvivorsStops(t *testing.T) {
	fake := newFakeHal()
	rec := &recorder{}
	s := newTestSession(t, fake, rec, nil)

	startSession(t, s, bridgedConfig(), testCapability())
	fake.mu.Lock()
	fake.liveKnown = false
	fake.mu.Unlock()

	fake.cb.OnInstanceFailure("wlan1", "wlan1_1")
	s.settle()

	assert.Equal(t, ap.ApStateDisabled, s.Status().State)
	assert.Equal(t, []ap.StopReason{ap.StopReasonNoInstances}, rec.stopReasons())
}

func TestWholeApFailureStops(t *testing.T) {
	fake := newFakeHal()
	rec := &recorder{}
	s := newTestSession(t, fake, rec, nil)

	startSession(t, s, testConfig(), testCapability())
	fake.cb.OnFailure("wlan1")
	s.settle()

	assert.Equal(t, []ap.ApState{
		ap.ApStateEnabling, ap.ApStateEnabled,
		ap.ApStateFailed, ap.ApStateDisabling, ap.ApStateDisabled,
	}, rec.stateSequence())
	assert.Equal(t, []ap.StopReason{ap.StopReasonHalFailure}, rec.stopReasons())
}

func TestEventsForForeignInterfaceIgnored(t *testing.T) {
	fake := newFakeHal()
	rec := &recorder{}
	s := newTestSession(t, fake, rec, nil)

	startSession(t, s, testConfig(), testCapability())

	fake.cb.OnConnectedClientsChanged("wlan7", "wlan7", mac(1), true)
	fake.cb.OnFailure("wlan7")
	s.settle()

	assert.Equal(t, 0, s.Status().ClientCount)
	assert.Equal(t, ap.ApStateEnabled, s.Status().State)
}

func TestIdleShutdown(t *testing.T) {
	fake := newFakeHal()
	rec := &recorder{}
	s := newTestSession(t, fake, rec, nil)

	cfg := testConfig()
	cfg.AutoShutdownEnabled = true
	cfg.ShutdownTimeout = 150 * time.Millisecond
	startSession(t, s, cfg, testCapability())

	// A connected client suppresses the idle timer.
	fake.cb.OnConnectedClientsChanged("wlan1", "wlan1", mac(1), true)
	s.settle()
	time.Sleep(250 * time.Millisecond)
	s.settle()
	assert.Equal(t, ap.ApStateEnabled, s.Status().State)

	// The last client leaving re-arms it.
	fake.cb.OnConnectedClientsChanged("wlan1", "wlan1", mac(1), false)
	waitUntil(t, func() bool {
		s.settle()
		return s.Status().State == ap.ApStateDisabled
	})
	assert.Equal(t, []ap.StopReason{ap.StopReasonIdleTimeout}, rec.stopReasons())
}

func TestIdleTimerInvariant(t *testing.T) {
	fake := newFakeHal()
	rec := &recorder{}
	s := newTestSession(t, fake, rec, nil)

	cfg := testConfig()
	cfg.AutoShutdownEnabled = true
	cfg.ShutdownTimeout = time.Hour
	startSession(t, s, cfg, testCapability())

	var armed bool
	s.inspect(func() { armed = s.scheduler.Armed(shutdownTimerName) })
	assert.True(t, armed)

	fake.cb.OnConnectedClientsChanged("wlan1", "wlan1", mac(1), true)
	s.settle()
	s.inspect(func() { armed = s.scheduler.Armed(shutdownTimerName) })
	assert.False(t, armed)
}

func TestUpdateConfigurationTimeoutOnly(t *testing.T) {
	fake := newFakeHal()
	rec := &recorder{}
	s := newTestSession(t, fake, rec, nil)

	cfg := testConfig()
	cfg.AutoShutdownEnabled = true
	cfg.ShutdownTimeout = time.Hour
	startSession(t, s, cfg, testCapability())

	fake.cb.OnConnectedClientsChanged("wlan1", "wlan1", mac(1), true)
	s.settle()
	before := s.Status().ClientCount

	next := cfg.Clone()
	next.ShutdownTimeout = 2 * time.Hour
	s.UpdateConfiguration(next)
	s.settle()

	// Clients and instance info are untouched.
	assert.Equal(t, before, s.Status().ClientCount)
	assert.Len(t, s.Status().Instances, 1)

	var got time.Duration
	s.inspect(func() { got = s.cfg.ShutdownTimeout })
	assert.Equal(t, 2*time.Hour, got)
}

func TestUpdateConfigurationRestartRequiredIgnored(t *testing.T) {
	fake := newFakeHal()
	rec := &recorder{}
	s := newTestSession(t, fake, rec, nil)

	startSession(t, s, testConfig(), testCapability())

	next := testConfig()
	next.SSID = "OtherNet"
	s.UpdateConfiguration(next)
	s.settle()

	var ssid string
	s.inspect(func() { ssid = s.cfg.SSID })
	assert.Equal(t, "TestNet", ssid)
	assert.Equal(t, ap.ApStateEnabled, s.Status().State)
}

func TestUpdateConfigurationBlockListEnforced(t *testing.T) {
	fake := newFakeHal()
	rec := &recorder{}
	s := newTestSession(t, fake, rec, nil)

	cfg := testConfig()
	startSession(t, s, cfg, testCapability())

	fake.cb.OnConnectedClientsChanged("wlan1", "wlan1", mac(1), true)
	s.settle()

	next := cfg.Clone()
	next.BlockList = []net.HardwareAddr{mac(1)}
	s.UpdateConfiguration(next)
	s.settle()

	calls := fake.disconnectCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, mac(1).String(), calls[0].mac)
	assert.Equal(t, ap.BlockedByUser, calls[0].reason)
}

func TestCapabilityShrinkEvictsMostRecent(t *testing.T) {
	fake := newFakeHal()
	rec := &recorder{}
	s := newTestSession(t, fake, rec, nil)

	startSession(t, s, testConfig(), testCapability())

	fake.cb.OnConnectedClientsChanged("wlan1", "wlan1", mac(1), true)
	s.settle()
	fake.cb.OnConnectedClientsChanged("wlan1", "wlan1", mac(2), true)
	s.settle()
	assert.Equal(t, 2, s.Status().ClientCount)

	shrunk := testCapability()
	shrunk.MaxSupportedClients = 1
	s.UpdateCapability(shrunk)
	s.settle()

	// Exactly one disconnect, targeting the most recent client.
	calls := fake.disconnectCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, mac(2).String(), calls[0].mac)
	assert.Equal(t, ap.NoMoreStas, calls[0].reason)

	// The driver confirms; the next snapshot holds one client.
	fake.cb.OnConnectedClientsChanged("wlan1", "wlan1", mac(2), false)
	s.settle()
	assert.Equal(t, 1, s.Status().ClientCount)
	assert.Equal(t, 1, rec.clientCount())
}

func TestCapabilityShrinkPreStartFailsStart(t *testing.T) {
	fake := newFakeHal()
	rec := &recorder{}
	s := newTestSession(t, fake, rec, func(d *Deps) {
		d.Conflicts = fixedResolver{decision: ConflictWait}
	})

	cfg := testConfig()
	cfg.MaxClients = 8
	startSession(t, s, cfg, testCapability())

	shrunk := testCapability()
	shrunk.MaxSupportedClients = 2
	s.UpdateCapability(shrunk)
	s.settle()

	assert.Equal(t, []ap.FailureReason{ap.FailureUnsupportedConfiguration}, rec.startFailures)
}

func TestBridgedInstanceIdleShutdown(t *testing.T) {
	fake := newFakeHal()
	fake.instanceTimeout = 30 * time.Millisecond
	rec := &recorder{}
	s := newTestSession(t, fake, rec, nil)

	cfg := bridgedConfig()
	cfg.BridgedOpportunisticShutdownEnabled = true
	startSession(t, s, cfg, testCapability())
	require.Len(t, s.Status().Instances, 2)

	// Both instances are idle; the first timer fire narrows to one, and
	// the survivor is never removed.
	waitUntil(t, func() bool {
		s.settle()
		return len(s.Status().Instances) == 1
	})
	time.Sleep(80 * time.Millisecond)
	s.settle()
	assert.Len(t, s.Status().Instances, 1)
	assert.Equal(t, ap.ApStateEnabled, s.Status().State)
	assert.Len(t, fake.removeCalls(), 1)
}

func TestChargingSuppressesOpportunisticShutdown(t *testing.T) {
	fake := newFakeHal()
	fake.instanceTimeout = 30 * time.Millisecond
	rec := &recorder{}
	s := newTestSession(t, fake, rec, nil)

	cfg := bridgedConfig()
	cfg.BridgedOpportunisticShutdownEnabled = true

	s.NotifyChargingChanged(true)
	startSession(t, s, cfg, testCapability())

	time.Sleep(100 * time.Millisecond)
	s.settle()
	assert.Len(t, s.Status().Instances, 2)

	// Unplugging re-arms the per-instance timers.
	s.NotifyChargingChanged(false)
	waitUntil(t, func() bool {
		s.settle()
		return len(s.Status().Instances) == 1
	})
}

func TestStaConflictDowngradesBridged(t *testing.T) {
	fake := newFakeHal()
	rec := &recorder{}
	s := newTestSession(t, fake, rec, nil)

	startSession(t, s, bridgedConfig(), testCapability())

	// A STA lands on a 5 GHz channel the AP does not support.
	s.NotifyStaFrequenciesChanged([]int{ap.ChannelToFrequency(ap.Band5GHz, 48)})
	s.settle()

	removes := fake.removeCalls()
	require.Len(t, removes, 1)
	assert.Equal(t, "wlan1_1", removes[0])
	assert.Len(t, s.Status().Instances, 1)
}

func TestInterfaceDestroyedStopsWithoutTeardown(t *testing.T) {
	fake := newFakeHal()
	rec := &recorder{}
	s := newTestSession(t, fake, rec, nil)

	startSession(t, s, testConfig(), testCapability())
	fake.cb.OnInterfaceDestroyed("wlan1")
	s.settle()

	assert.Equal(t, []ap.StopReason{ap.StopReasonInterfaceDestroyed}, rec.stopReasons())
	assert.Equal(t, 0, fake.teardownCalls)
	assert.Equal(t, ap.ApStateDisabled, s.Status().State)
}

func TestStopDisconnectsClients(t *testing.T) {
	fake := newFakeHal()
	rec := &recorder{}
	s := newTestSession(t, fake, rec, nil)

	startSession(t, s, testConfig(), testCapability())
	fake.cb.OnConnectedClientsChanged("wlan1", "wlan1", mac(1), true)
	s.settle()

	s.Stop()
	s.settle()

	calls := fake.disconnectCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, mac(1).String(), calls[0].mac)
}
