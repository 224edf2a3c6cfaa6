package codec

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidBase64 is returned when a value is not URL-safe base64.
var ErrInvalidBase64 = errors.New("incorrect base64 data")

// EncodeURLSafe encodes value with the padded URL-safe alphabet.
func EncodeURLSafe(value string) string {
	return base64.URLEncoding.EncodeToString([]byte(value))
}

// DecodeURLSafe accepts padded or unpadded URL-safe base64.
func DecodeURLSafe(value string) ([]byte, error) {
	enc := base64.URLEncoding
	if !strings.HasSuffix(value, "=") && len(value)%4 != 0 {
		enc = base64.RawURLEncoding
	}
	b, err := enc.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBase64, err)
	}
	return b, nil
}
