package ap

// ResolvedConfig is the capability- and driver-pruned configuration
// actually handed to the driver. Computed once at session start by the
// negotiator; Config is a private deep copy.
type ResolvedConfig struct {
	// Config carries the final channel list, security and feature flags.
	Config *SoftApConfiguration

	// PSK is the derived pre-shared key for PSK-capable security types
	// (nil for open/OWE/SAE-only networks).
	PSK []byte
}

// Bridged reports whether the resolved configuration is dual-instance.
func (r *ResolvedConfig) Bridged() bool {
	return r.Config.BridgedRequested()
}
