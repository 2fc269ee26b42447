package provisioning

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"golang.org/x/crypto/sha3"

	"paygate/internal/config"
)

// ValidateAddress checks that a provisioned address is well formed for its
// family before it is cached or offered to a client.
func ValidateAddress(addr, family string) error {
	switch family {
	case config.FamilyEVM:
		return validateEVMAddress(addr)
	case config.FamilyLedger:
		return validateLedgerAddress(addr)
	default:
		return fmt.Errorf("%w: unknown family %q", ErrInvalidAddress, family)
	}
}

func validateEVMAddress(addr string) error {
	if len(addr) != 42 || !strings.HasPrefix(addr, "0x") {
		return fmt.Errorf("%w: %q is not a 20-byte hex address", ErrInvalidAddress, addr)
	}
	hexPart := addr[2:]
	for _, r := range hexPart {
		if !isHexDigit(r) {
			return fmt.Errorf("%w: %q contains non-hex characters", ErrInvalidAddress, addr)
		}
	}

	// All-lower and all-upper forms carry no checksum. Mixed case must pass
	// the EIP-55 check.
	lower := strings.ToLower(hexPart)
	if hexPart == lower || hexPart == strings.ToUpper(hexPart) {
		return nil
	}
	if checksumEVMAddress(lower) != hexPart {
		return fmt.Errorf("%w: %q fails checksum", ErrInvalidAddress, addr)
	}
	return nil
}

func checksumEVMAddress(lowerHex string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lowerHex))
	digest := h.Sum(nil)

	out := []byte(lowerHex)
	for i, b := range out {
		if b < 'a' || b > 'f' {
			continue
		}
		nibble := digest[i/2]
		if i%2 == 0 {
			nibble >>= 4
		}
		if nibble&0x0f >= 8 {
			out[i] = b - 'a' + 'A'
		}
	}
	return string(out)
}

func validateLedgerAddress(addr string) error {
	if _, _, err := bech32.Decode(addr); err != nil {
		return fmt.Errorf("%w: %q is not bech32: %v", ErrInvalidAddress, addr, err)
	}
	return nil
}

func isHexDigit(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case r >= 'a' && r <= 'f':
		return true
	case r >= 'A' && r <= 'F':
		return true
	}
	return false
}
