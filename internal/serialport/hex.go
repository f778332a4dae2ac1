package serialport

import (
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"
)

// DecodeHex parses a hex payload into raw bytes.
//
// All whitespace is stripped first, so "DE AD BE EF", "dead beef" and
// "DEADBEEF" are equivalent. After stripping, the digit count must be
// even; case is ignored.
func DecodeHex(input string) ([]byte, error) {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	cleaned := b.String()

	if len(cleaned)%2 != 0 {
		return nil, ErrOddHexDigits
	}

	decoded, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHex, err)
	}
	return decoded, nil
}

// EncodeHex renders bytes as uppercase two-digit hex values joined by
// single spaces, e.g. []byte{0xDE, 0xAD} -> "DE AD". Empty input yields
// an empty string.
func EncodeHex(data []byte) string {
	if len(data) == 0 {
		return ""
	}

	parts := make([]string, len(data))
	for i, v := range data {
		parts[i] = fmt.Sprintf("%02X", v)
	}
	return strings.Join(parts, " ")
}
