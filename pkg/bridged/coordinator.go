package bridged

import (
	"github.com/softap-stack/softap-go/pkg/ap"
	"github.com/softap-stack/softap-go/pkg/capability"
)

// Action is the coordinator's verdict for a runtime trigger.
type Action uint8

const (
	// ActionNone means no change is needed.
	ActionNone Action = iota

	// ActionRemoveInstance means one instance must be torn down.
	ActionRemoveInstance

	// ActionStopSession means the whole session is unusable.
	ActionStopSession
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionNone:
		return "NONE"
	case ActionRemoveInstance:
		return "REMOVE_INSTANCE"
	case ActionStopSession:
		return "STOP_SESSION"
	default:
		return "UNKNOWN"
	}
}

// Decision pairs an action with the instance it targets (set only for
// ActionRemoveInstance).
type Decision struct {
	Action   Action
	Instance string
}

// Coordinator tracks the live instances of one bridged session by
// operating frequency. The session state machine owns it and feeds it
// from info-changed callbacks; it holds no references into session maps.
type Coordinator struct {
	freqs map[string]int
}

// NewCoordinator creates an empty coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{freqs: make(map[string]int)}
}

// Track records (or updates) an instance and its frequency in MHz.
// Frequency 0 means not yet reported.
func (c *Coordinator) Track(instance string, freqMHz int) {
	c.freqs[instance] = freqMHz
}

// Remove forgets an instance. Safe on absent names.
func (c *Coordinator) Remove(instance string) {
	delete(c.freqs, instance)
}

// Has reports whether instance is tracked.
func (c *Coordinator) Has(instance string) bool {
	_, ok := c.freqs[instance]
	return ok
}

// Count returns the number of live instances.
func (c *Coordinator) Count() int {
	return len(c.freqs)
}

// Instances returns the tracked instance names in unspecified order.
func (c *Coordinator) Instances() []string {
	out := make([]string, 0, len(c.freqs))
	for name := range c.freqs {
		out = append(out, name)
	}
	return out
}

// Reset forgets all instances.
func (c *Coordinator) Reset() {
	c.freqs = make(map[string]int)
}

// CandidateForRemoval returns the designated downgrade candidate: the
// highest-band instance, never the 2.4 GHz one. Returns false once only
// one instance remains.
func (c *Coordinator) CandidateForRemoval() (string, bool) {
	if len(c.freqs) <= 1 {
		return "", false
	}
	var candidate string
	var best ap.Band
	for name, freq := range c.freqs {
		band := ap.FrequencyToBand(freq)
		if band == ap.Band2GHz || band == 0 {
			continue
		}
		if band > best || (band == best && name < candidate) {
			candidate, best = name, band
		}
	}
	if candidate == "" {
		return "", false
	}
	return candidate, true
}

// InstanceFailure decides how to react to a driver instance-failure
// report. live is the driver's view of surviving instances; liveKnown is
// false when the driver could not report it, which conservatively stops
// the whole session rather than guessing which instance survived.
func (c *Coordinator) InstanceFailure(failed string, live []string, liveKnown bool) Decision {
	if !liveKnown {
		return Decision{Action: ActionStopSession}
	}
	if !c.Has(failed) {
		return Decision{Action: ActionNone}
	}
	if len(c.freqs) <= 1 {
		return Decision{Action: ActionStopSession}
	}
	return Decision{Action: ActionRemoveInstance, Instance: failed}
}

// IdleTimeout decides how to react to a per-instance idle timer firing.
// Removing the last non-primary instance narrows the session; the timer
// never fires for a sole remaining instance (the whole-session timer
// owns that case).
func (c *Coordinator) IdleTimeout(instance string) Decision {
	if !c.Has(instance) || len(c.freqs) <= 1 {
		return Decision{Action: ActionNone}
	}
	return Decision{Action: ActionRemoveInstance, Instance: instance}
}

// CoexChange decides whether a coexistence update forces a downgrade:
// the removal candidate goes when a hard restriction covers its channel
// while the other instance stays safe. Soft markings never downgrade.
func (c *Coordinator) CoexChange(coex ap.CoexState) Decision {
	if !coex.Hard {
		return Decision{Action: ActionNone}
	}
	candidate, ok := c.CandidateForRemoval()
	if !ok {
		return Decision{Action: ActionNone}
	}
	if !c.instanceUnsafe(candidate, coex) {
		return Decision{Action: ActionNone}
	}
	for name := range c.freqs {
		if name != candidate && c.instanceUnsafe(name, coex) {
			// Every instance is restricted; removal would not help.
			return Decision{Action: ActionNone}
		}
	}
	return Decision{Action: ActionRemoveInstance, Instance: candidate}
}

// StaChange decides whether a concurrent STA connection forces a
// downgrade: the removal candidate goes when the STA occupies a channel
// outside the supported band combination for the candidate's band.
func (c *Coordinator) StaChange(staFreqs []int, cap *ap.SoftApCapability) Decision {
	candidate, ok := c.CandidateForRemoval()
	if !ok {
		return Decision{Action: ActionNone}
	}
	band := ap.FrequencyToBand(c.freqs[candidate])
	if band == 0 {
		return Decision{Action: ActionNone}
	}
	if capability.StaConflictsWithBand(band, staFreqs, cap) {
		return Decision{Action: ActionRemoveInstance, Instance: candidate}
	}
	return Decision{Action: ActionNone}
}

func (c *Coordinator) instanceUnsafe(instance string, coex ap.CoexState) bool {
	freq := c.freqs[instance]
	band := ap.FrequencyToBand(freq)
	channel := ap.FrequencyToChannel(freq)
	for _, ch := range coex.Unsafe {
		if ch.Band == band && ch.Channel == channel {
			return true
		}
	}
	return false
}
