package ledger

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// ParseReference decodes an issuance reference. A decimal number up to 255 is a
// single byte; anything else is hex, with an optional 0x prefix and an implied
// leading zero when the digit count is odd.
func ParseReference(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("reference is empty")
	}
	if digits, ok := strings.CutPrefix(s, "0x"); ok {
		return decodeHexReference(s, digits)
	}
	if n, err := strconv.ParseUint(s, 10, 8); err == nil {
		return []byte{byte(n)}, nil
	}
	return decodeHexReference(s, s)
}

func decodeHexReference(orig, digits string) ([]byte, error) {
	if digits == "" {
		return nil, fmt.Errorf("reference %q has no digits", orig)
	}
	if len(digits)%2 == 1 {
		digits = "0" + digits
	}
	ref, err := hex.DecodeString(digits)
	if err != nil {
		return nil, fmt.Errorf("reference %q is neither a byte nor hex: %w", orig, err)
	}
	return ref, nil
}
