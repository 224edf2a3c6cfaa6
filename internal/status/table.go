package status

import (
	"encoding/json"
	"net/http"
)

// RedirectLocation is where simulated redirect codes point: a single hop
// through the redirect chain that ends at /get.
const RedirectLocation = "/redirect/1"

const teapot = `
    -=[ teapot ]=-

       _...._
     .'  _ _ ` + "`" + `.
    | ."` + "`" + ` ^ ` + "`" + `". _,
    \_;` + "`" + `"---"` + "`" + `|//
      |       ;/
      \_     _/
        ` + "`" + `"""` + "`" + `
`

// AcceptedMediaTypes is what the 406 body claims the server could produce.
var AcceptedMediaTypes = []string{
	"image/webp",
	"image/svg+xml",
	"image/jpeg",
	"image/png",
	"image/*",
}

// Rule is the extra behavior attached to one status code.
type Rule struct {
	Body    []byte
	Headers map[string]string
}

var redirectRule = Rule{Headers: map[string]string{"Location": RedirectLocation}}

var rules = map[int]Rule{
	http.StatusMovedPermanently:  redirectRule,
	http.StatusFound:             redirectRule,
	http.StatusSeeOther:          redirectRule,
	http.StatusNotModified:       {},
	http.StatusUseProxy:          redirectRule,
	http.StatusTemporaryRedirect: redirectRule,
	http.StatusUnauthorized: {Headers: map[string]string{
		"WWW-Authenticate": `Basic realm="Fake Realm"`,
	}},
	http.StatusPaymentRequired: {
		Body:    []byte("Payment required. Please pay up!"),
		Headers: map[string]string{"x-more-info": "http://vimeo.com/22053820"},
	},
	http.StatusNotAcceptable: {
		Body:    notAcceptableBody(),
		Headers: map[string]string{"Content-Type": "application/json"},
	},
	http.StatusProxyAuthRequired: {Headers: map[string]string{
		"Proxy-Authenticate": `Basic realm="Fake Realm"`,
	}},
	http.StatusTeapot: {
		Body:    []byte(teapot),
		Headers: map[string]string{"x-more-info": "http://tools.ietf.org/html/rfc2324"},
	},
}

func notAcceptableBody() []byte {
	b, err := json.Marshal(struct {
		Message string   `json:"message"`
		Accept  []string `json:"accept"`
	}{
		Message: "Client did not request a supported media type.",
		Accept:  AcceptedMediaTypes,
	})
	if err != nil {
		panic(err)
	}
	return b
}

// Lookup returns the rule for code. Codes without special behavior get an
// empty rule.
func Lookup(code int) Rule {
	return rules[code]
}
