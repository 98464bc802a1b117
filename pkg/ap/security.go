package ap

// SecurityType identifies the authentication/encryption mode of the AP.
type SecurityType uint8

const (
	// SecurityOpen is an open network with no encryption.
	SecurityOpen SecurityType = iota

	// SecurityWpa2Psk is WPA2-Personal (PSK).
	SecurityWpa2Psk

	// SecuritySaeTransition is WPA3-Personal transition mode (WPA2+SAE).
	SecuritySaeTransition

	// SecuritySae is WPA3-Personal (SAE only).
	SecuritySae

	// SecurityOweTransition is Enhanced Open transition mode.
	SecurityOweTransition

	// SecurityOwe is Enhanced Open (OWE only).
	SecurityOwe
)

// String returns the security type name.
func (s SecurityType) String() string {
	switch s {
	case SecurityOpen:
		return "OPEN"
	case SecurityWpa2Psk:
		return "WPA2-PSK"
	case SecuritySaeTransition:
		return "WPA3-SAE-TRANSITION"
	case SecuritySae:
		return "WPA3-SAE"
	case SecurityOweTransition:
		return "OWE-TRANSITION"
	case SecurityOwe:
		return "OWE"
	default:
		return "UNKNOWN"
	}
}

// RequiresPassphrase reports whether the security type needs a passphrase.
func (s SecurityType) RequiresPassphrase() bool {
	switch s {
	case SecurityWpa2Psk, SecuritySaeTransition, SecuritySae:
		return true
	default:
		return false
	}
}

// UsesSae reports whether the security type involves SAE authentication.
func (s SecurityType) UsesSae() bool {
	return s == SecuritySae || s == SecuritySaeTransition
}

// MacSetting controls which BSSID the AP interface uses.
type MacSetting uint8

const (
	// MacRandomized lets the stack pick a randomized MAC (default).
	MacRandomized MacSetting = iota

	// MacFactory uses the factory-programmed interface MAC.
	MacFactory

	// MacExplicit uses the MAC carried in the configuration.
	MacExplicit
)

// String returns the MAC setting name.
func (m MacSetting) String() string {
	switch m {
	case MacRandomized:
		return "RANDOMIZED"
	case MacFactory:
		return "FACTORY"
	case MacExplicit:
		return "EXPLICIT"
	default:
		return "UNKNOWN"
	}
}
