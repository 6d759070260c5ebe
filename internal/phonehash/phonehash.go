package phonehash

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ZeroHash is the sentinel identity hash meaning "sender unknown/unspecified".
const ZeroHash = "0x0000000000000000000000000000000000000000000000000000000000000000"

// Hasher derives identity hashes from raw phone input. The canonical form of
// a phone number is digits only, country code included, no leading plus.
// Every hash in the system must be derived through the same Hasher so that
// registration, transfer and history lookups agree on the key.
type Hasher struct {
	defaultCountryCode string
}

// NewHasher builds a Hasher. countryCode is digits only (e.g. "242") and may
// be empty, in which case numbers are hashed exactly as entered.
func NewHasher(countryCode string) *Hasher {
	return &Hasher{defaultCountryCode: strings.TrimPrefix(countryCode, "+")}
}

// Normalize reduces raw user input to the canonical identifier. It never fails:
// unknown characters are dropped, ambiguous national formats are resolved with
// the configured default country code.
func (h *Hasher) Normalize(raw string) string {
	var b strings.Builder
	hadPlus := false
	for i, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			hadPlus = true
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}

	if hadPlus || h.defaultCountryCode == "" {
		return digits
	}
	if strings.HasPrefix(digits, "0") {
		// National trunk prefix: 06... -> <cc>6...
		return h.defaultCountryCode + digits[1:]
	}
	if !strings.HasPrefix(digits, h.defaultCountryCode) {
		return h.defaultCountryCode + digits
	}
	return digits
}

// Hash digests a canonical identifier into a fixed-length hex string.
func (h *Hasher) Hash(identifier string) string {
	sum := sha256.Sum256([]byte(identifier))
	return "0x" + hex.EncodeToString(sum[:])
}

// HashPhone normalizes raw input and hashes it in one step.
func (h *Hasher) HashPhone(raw string) string {
	return h.Hash(h.Normalize(raw))
}

// IsHash reports whether s looks like an identity hash rather than a phone
// number or wallet address.
func IsHash(s string) bool {
	if len(s) != 66 || !strings.HasPrefix(s, "0x") {
		return false
	}
	for _, r := range s[2:] {
		if !isHexDigit(r) {
			return false
		}
	}
	return true
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}
