// Package redirect computes Location targets for multi-hop redirect chains
// and for the verbatim redirect-to endpoint.
package redirect

import (
	"fmt"
	"net/http"
	"strconv"
)

// Route names the chain resolves through.
const (
	RouteGet      = "get"
	RouteRelative = "relative_redirect"
	RouteAbsolute = "absolute_redirect"
)

// Resolver turns a named route into a path. Chain routes take the
// remaining hop count; the terminal route takes none (n is ignored).
type Resolver interface {
	Path(route string, n int) (string, error)
}

// Hop is the state of a chain: how many redirects are left and whether
// Location values are absolute URLs.
type Hop struct {
	N        int
	Absolute bool
}

// Location returns where hop h sends the client. base is the scheme and
// host prefixed to absolute targets. N <= 0 is a caller bug and panics.
func Location(res Resolver, base string, h Hop) (string, error) {
	if h.N <= 0 {
		panic(fmt.Sprintf("redirect: hop count must be positive, got %d", h.N))
	}

	route := RouteGet
	switch {
	case h.N == 1:
	case h.Absolute:
		route = RouteAbsolute
	default:
		route = RouteRelative
	}

	path, err := res.Path(route, h.N-1)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", route, err)
	}
	if h.Absolute {
		return base + path, nil
	}
	return path, nil
}

// Found writes a 302 pointing at loc with an empty body.
func Found(w http.ResponseWriter, loc string) {
	w.Header().Set("Location", loc)
	w.WriteHeader(http.StatusFound)
}

// StatusFor validates a caller supplied redirect status. Anything that is
// not a 3xx code falls back to 302.
func StatusFor(raw string) int {
	code, err := strconv.Atoi(raw)
	if err != nil || code < 300 || code >= 400 {
		return http.StatusFound
	}
	return code
}

// To redirects to dest without parsing, cleaning or escaping it.
func To(w http.ResponseWriter, dest string, code int) {
	// Direct map assignment keeps the value byte for byte.
	w.Header()["Location"] = []string{dest}
	w.WriteHeader(code)
}
