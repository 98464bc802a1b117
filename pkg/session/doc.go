// Package session implements the soft AP session lifecycle state
// machine.
//
// A Session owns one soft AP from start request to teardown. All
// inbound work - public API calls, driver callbacks, timer firings,
// coexistence and power events - is posted as a message onto one
// ordered inbox and processed by a single goroutine, one message at a
// time to completion. The session's maps (instance info, connected
// clients, pending disconnects) are therefore never touched
// concurrently and need no locks.
//
// Collaborators are injected once through Deps and never called back
// into re-entrantly: the admission controller, bridged coordinator and
// capability negotiator all receive snapshots and return decisions,
// which the session applies itself.
//
// The observable state sequence of any session is one of:
//
//	ENABLING, ENABLED, DISABLING, DISABLED
//	ENABLING, FAILED
//	ENABLING, ENABLED, FAILED, DISABLING, DISABLED
//
// Every fatal path converges on the same teardown sequence as an
// explicit Stop, so there is exactly one way a session ends.
package session
