// Package hal defines the driver control surface the session state
// machine talks to, and the asynchronous callback surface the driver
// delivers events on.
//
// The Controller interface is the narrow seam to the vendor HAL:
// interface lifecycle, AP start/stop, client force-disconnect, bridged
// instance removal and capability queries. Implementations are expected
// to be non-blocking from the session's perspective; anything slow
// reports completion through Callbacks.
//
// Callbacks may be invoked from any goroutine. The session wires each
// function to post a message into its ordered event inbox, so driver
// implementations never need to serialize.
package hal
