// Package timeout provides named, cancellable delayed callbacks.
//
// The session state machine owns several idle-shutdown timers: one for
// the whole session and one per bridged AP instance. Timers are
// addressed by name, never by object identity, so arming and disarming
// are idempotent: arming a name always replaces any timer already armed
// under it, and at most one timer per name is ever in flight.
//
// Firings are delivered through a caller-supplied dispatch function.
// The session passes its event-inbox post function, turning every
// expiry into an ordered message instead of a concurrent callback; a
// fire that was disarmed between expiry and dispatch is dropped.
package timeout
