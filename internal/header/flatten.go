package header

import "strings"

// Flatten converts a multi-value mapping into a plain one: keys holding a
// single value map to that string, keys holding several keep the list.
// An empty or nil input yields an empty, non-nil map so it renders as {}.
func Flatten(multi map[string][]string) map[string]any {
	out := make(map[string]any, len(multi))
	for k, vs := range multi {
		switch len(vs) {
		case 0:
			continue
		case 1:
			out[k] = vs[0]
		default:
			cp := make([]string, len(vs))
			copy(cp, vs)
			out[k] = cp
		}
	}
	return out
}

// Blocklist is an immutable set of names matched case-insensitively.
type Blocklist struct {
	names []string
}

// NewBlocklist copies names into a Blocklist.
func NewBlocklist(names ...string) Blocklist {
	cp := make([]string, len(names))
	copy(cp, names)
	return Blocklist{names: cp}
}

// Contains reports whether name is listed, ignoring case.
func (b Blocklist) Contains(name string) bool {
	for _, n := range b.names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

// Names returns a copy of the listed names.
func (b Blocklist) Names() []string {
	cp := make([]string, len(b.names))
	copy(cp, b.names)
	return cp
}

// EnvHeaders are added by load balancers, CDNs and the hosting platform.
// They are hidden from echoed headers unless the caller asks with show_env.
var EnvHeaders = NewBlocklist(
	"X-Varnish",
	"X-Request-Start",
	"X-Heroku-Queue-Depth",
	"X-Real-Ip",
	"X-Forwarded-Proto",
	"X-Forwarded-Protocol",
	"X-Forwarded-Ssl",
	"X-Heroku-Queue-Wait-Time",
	"X-Forwarded-For",
	"X-Heroku-Dynos-In-Use",
	"X-Forwarded-Port",
	"X-Request-Id",
	"Via",
	"Total-Route-Time",
	"Connect-Time",
)

// EnvCookies are analytics cookies set by the landing page.
var EnvCookies = NewBlocklist(
	"_gauges_unique",
	"_gauges_unique_year",
	"_gauges_unique_month",
	"_gauges_unique_day",
	"_gauges_unique_hour",
	"__utmz",
	"__utma",
	"__utmb",
)
