// Package capability resolves a requested soft AP configuration against
// the device capability snapshot, driver channel lists, coexistence
// state and concurrent-STA occupancy.
//
// Resolve is a pure function: it never touches the driver and never
// mutates its inputs. Its one behavioral contract worth calling out is
// that bridged-mode degradation never fails a start - when a dual-band
// request cannot be honored, the result narrows to a single band instead
// of returning an error. Hard errors are reserved for configurations the
// device cannot express at all (unsupported security, no usable channel).
package capability
