package ap

import (
	"crypto/sha1"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// PSK derivation parameters (IEEE 802.11i).
const (
	pskIterations = 4096
	pskLength     = 32
)

// Passphrase length bounds for PSK/SAE security types.
const (
	MinPassphraseLength = 8
	MaxPassphraseLength = 63
)

// ValidatePassphrase checks a WPA passphrase: 8 to 63 printable ASCII
// characters.
func ValidatePassphrase(passphrase string) error {
	if n := len(passphrase); n < MinPassphraseLength || n > MaxPassphraseLength {
		return fmt.Errorf("%w: passphrase length %d", ErrInvalidConfiguration, n)
	}
	for i := 0; i < len(passphrase); i++ {
		if passphrase[i] < 0x20 || passphrase[i] > 0x7e {
			return fmt.Errorf("%w: passphrase contains non-printable byte at %d",
				ErrInvalidConfiguration, i)
		}
	}
	return nil
}

// DerivePSK computes the 256-bit WPA pre-shared key from an SSID and
// passphrase (PBKDF2-HMAC-SHA1, 4096 iterations).
func DerivePSK(ssid, passphrase string) []byte {
	return pbkdf2.Key([]byte(passphrase), []byte(ssid), pskIterations, pskLength, sha1.New)
}
