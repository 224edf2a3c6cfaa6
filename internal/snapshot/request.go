package snapshot

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/3xpluto/go-reqbin/internal/header"
)

// ShowEnvParam is the query flag that keeps infrastructure headers and
// analytics cookies in echoed output.
const ShowEnvParam = "show_env"

// ShowEnv reports whether the request carries the show_env query flag.
func ShowEnv(r *http.Request) bool {
	_, ok := r.URL.Query()[ShowEnvParam]
	return ok
}

// Scheme resolves the scheme the client used. Proxies that terminate TLS
// announce it through X-Forwarded-Proto, X-Forwarded-Protocol or
// X-Forwarded-Ssl: on; any of those upgrades the scheme to https.
func Scheme(r *http.Request) string {
	if r.Header.Get("X-Forwarded-Proto") != "" || r.Header.Get("X-Forwarded-Protocol") != "" {
		return "https"
	}
	if r.Header.Get("X-Forwarded-Ssl") == "on" {
		return "https"
	}
	if r.TLS != nil {
		return "https"
	}
	if r.URL.Scheme != "" {
		return r.URL.Scheme
	}
	return "http"
}

// IsSecure reports whether the request reached us over HTTPS, directly or
// through a TLS-terminating proxy.
func IsSecure(r *http.Request) bool {
	return Scheme(r) == "https"
}

// URL reconstructs the absolute request URL with the resolved scheme.
func URL(r *http.Request) string {
	host := r.Host
	if host == "" {
		host = r.URL.Host
	}
	u := url.URL{
		Scheme:   Scheme(r),
		Host:     host,
		Path:     r.URL.Path,
		RawPath:  r.URL.RawPath,
		RawQuery: r.URL.RawQuery,
	}
	return u.String()
}

// BaseURL is the scheme and host the client addressed, without a path.
func BaseURL(r *http.Request) string {
	host := r.Host
	if host == "" {
		host = r.URL.Host
	}
	return Scheme(r) + "://" + host
}

// Origin is the X-Forwarded-For chain when present, else the peer IP.
func Origin(r *http.Request) string {
	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		return strings.Join(xff, ", ")
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Headers returns the request headers, including Host, as a
// case-insensitive view. Names in hide are removed unless the request
// carries show_env.
func Headers(r *http.Request, hide header.Blocklist) *header.View {
	h := r.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	if r.Host != "" {
		h.Set("Host", r.Host)
	}
	v := header.FromHTTP(h)
	if !ShowEnv(r) {
		v.Strip(hide)
	}
	return v
}
