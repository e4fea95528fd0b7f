package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// SecureHash is a SHA-256 digest. It identifies transactions and attachments.
type SecureHash [32]byte

// HashOf returns the SHA-256 digest of data.
func HashOf(data []byte) SecureHash {
	return SecureHash(sha256.Sum256(data))
}

// ParseSecureHash decodes a 64 character hex digest, with or without 0x prefix.
func ParseSecureHash(s string) (SecureHash, error) {
	var h SecureHash
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return h, fmt.Errorf("invalid hash %q: %w", s, err)
	}
	if len(raw) != len(h) {
		return h, fmt.Errorf("invalid hash %q: want %d bytes, got %d", s, len(h), len(raw))
	}
	copy(h[:], raw)
	return h, nil
}

// MustParseSecureHash is ParseSecureHash for constants.
func MustParseSecureHash(s string) SecureHash {
	h, err := ParseSecureHash(s)
	if err != nil {
		panic(err)
	}
	return h
}

func (h SecureHash) String() string {
	return hex.EncodeToString(h[:])
}

// Short returns the first 8 hex characters, for logs.
func (h SecureHash) Short() string {
	return h.String()[:8]
}

// IsZero reports whether h is unset.
func (h SecureHash) IsZero() bool {
	return h == SecureHash{}
}

// MarshalText implements encoding.TextMarshaler.
func (h SecureHash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *SecureHash) UnmarshalText(text []byte) error {
	parsed, err := ParseSecureHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
