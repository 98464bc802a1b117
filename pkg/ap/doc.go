// Package ap defines the soft AP domain model shared by all layers.
//
// This package holds the vocabulary of a soft AP session:
//   - Bands, channels and frequency conversion
//   - Security types and WPA passphrase/PSK handling
//   - SoftApConfiguration (the requested configuration)
//   - SoftApCapability (the device/driver capability snapshot)
//   - InstanceInfo and ConnectedClient (runtime state per AP instance)
//   - State, failure, stop and client-block reason enums
//
// Types here are plain values with no behavior beyond validation,
// cloning and conversion. The session state machine (pkg/session) owns
// all mutable runtime state; collaborators receive copies.
package ap
