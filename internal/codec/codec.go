// Package codec makes arbitrary request bytes safe to embed in JSON output.
//
// Text that is valid UTF-8 and survives a JSON round trip unchanged is
// passed through as-is. Anything else is rendered as an RFC 2397 data URL
// with a base64 payload, so binary uploads never corrupt the response.
package codec

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// DefaultContentType labels payloads whose media type is unknown.
const DefaultContentType = "application/octet-stream"

const (
	dataPrefix   = "data:"
	base64Marker = ";base64,"
)

// Safe returns a JSON-safe representation of b. contentType labels the data
// URL when one is needed; an empty value means DefaultContentType.
func Safe(b []byte, contentType string) string {
	if s, ok := Text(b); ok {
		return s
	}
	return DataURL(b, contentType)
}

// Text returns b as a string when it is valid UTF-8, encodes to JSON and
// decodes back to the same text. Text shaped like a base64 data URL passes
// through untouched, so Decode(Safe(b)) yields b only for input that is not
// data-URL-shaped.
func Text(b []byte) (string, bool) {
	if !utf8.Valid(b) {
		return "", false
	}
	s := string(b)
	enc, err := json.Marshal(s)
	if err != nil {
		return "", false
	}
	var back string
	if err := json.Unmarshal(enc, &back); err != nil || back != s {
		return "", false
	}
	return s, true
}

// DataURL renders b as data:<contentType>;base64,<payload>.
func DataURL(b []byte, contentType string) string {
	if contentType == "" {
		contentType = DefaultContentType
	}
	var sb strings.Builder
	sb.Grow(len(dataPrefix) + len(contentType) + len(base64Marker) + base64.StdEncoding.EncodedLen(len(b)))
	sb.WriteString(dataPrefix)
	sb.WriteString(contentType)
	sb.WriteString(base64Marker)
	sb.WriteString(base64.StdEncoding.EncodeToString(b))
	return sb.String()
}

// Decode reverses Safe. Data URLs are decoded back to their bytes and any
// other string is returned as its UTF-8 bytes. The content type of a data URL
// is returned alongside; it is empty for passthrough text.
func Decode(s string) ([]byte, string) {
	ct, payload, ok := parseDataURL(s)
	if !ok {
		return []byte(s), ""
	}
	b, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return []byte(s), ""
	}
	return b, ct
}

func parseDataURL(s string) (contentType, payload string, ok bool) {
	rest, found := strings.CutPrefix(s, dataPrefix)
	if !found {
		return "", "", false
	}
	i := strings.LastIndex(rest, base64Marker)
	if i < 0 {
		return "", "", false
	}
	payload = rest[i+len(base64Marker):]
	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		return "", "", false
	}
	return rest[:i], payload, true
}
