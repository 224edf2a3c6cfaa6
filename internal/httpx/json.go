package httpx

import (
	"encoding/json"
	"net/http"
)

// JSONContentType is set on every JSON body this service writes.
const JSONContentType = "application/json"

// WriteJSON encodes v with a trailing newline and without HTML escaping,
// so URLs and query strings are echoed as sent.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", JSONContentType)
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// Error writes the {"error": code, ...} body used by every middleware
// rejection.
func Error(w http.ResponseWriter, status int, code string, fields map[string]any) {
	body := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["error"] = code
	WriteJSON(w, status, body)
}

// TooLarge writes the 413 sent both for declared oversize bodies and for
// uploads that cross the cap while being read.
func TooLarge(w http.ResponseWriter, limit int64) {
	Error(w, http.StatusRequestEntityTooLarge, "request_too_large", map[string]any{
		"max_bytes": limit,
	})
}
