// Package httpbin is the HTTP surface of reqbin: the route table and the
// handlers that turn requests into snapshots and simulated responses.
package httpbin

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/3xpluto/go-reqbin/internal/header"
	"github.com/3xpluto/go-reqbin/internal/httpx"
	"github.com/3xpluto/go-reqbin/internal/redirect"
	"github.com/3xpluto/go-reqbin/internal/snapshot"
	"github.com/3xpluto/go-reqbin/internal/status"
)

// Options tunes the simulated behaviors. Zero values take the defaults.
type Options struct {
	MaxDelay       time.Duration
	MaxStreamLines int
	MaxRedirects   int
	// In-memory part of multipart uploads; the rest spills to temp files.
	MaxMultipartMemory int64
	// Rand feeds weighted status choice; nil uses math/rand/v2.
	Rand func() float64
	// OnStreamLines is told how many lines each stream wrote.
	OnStreamLines func(n int)
}

func (o *Options) applyDefaults() {
	if o.MaxDelay <= 0 {
		o.MaxDelay = 10 * time.Second
	}
	if o.MaxStreamLines <= 0 {
		o.MaxStreamLines = 100
	}
	if o.MaxRedirects <= 0 {
		o.MaxRedirects = 100
	}
	if o.MaxMultipartMemory <= 0 {
		o.MaxMultipartMemory = 32 << 20
	}
}

// Server holds the handlers. It has no per-request state; one value serves
// all requests concurrently.
type Server struct {
	opts    Options
	builder *snapshot.Builder
	sim     status.Simulator
	cookies header.Blocklist
	pages   *template.Template
	routes  []Route

	// Set by Mount; reverse routing for redirects.
	router *mux.Router
}

func New(opts Options) *Server {
	opts.applyDefaults()
	b := snapshot.NewBuilder()
	b.MaxMemory = opts.MaxMultipartMemory

	s := &Server{
		opts:    opts,
		builder: b,
		sim:     status.Simulator{Rand: opts.Rand},
		cookies: header.EnvCookies,
		pages:   parsePages(),
	}
	s.routes = s.table()
	return s
}

// Route is one endpoint. A nil Methods matches any method.
type Route struct {
	Name    string
	Path    string
	Methods []string
	Summary string
	Handler http.HandlerFunc
}

var (
	getOnly     = []string{http.MethodGet, http.MethodHead}
	getOrPost   = []string{http.MethodGet, http.MethodHead, http.MethodPost}
	anyEchoVerb = []string{
		http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodDelete, http.MethodPatch, http.MethodTrace,
	}
)

func (s *Server) table() []Route {
	return []Route{
		{Name: "index", Path: "/", Methods: getOnly, Summary: "This page.", Handler: s.index},
		{Name: "robots", Path: "/robots.txt", Methods: getOnly, Summary: "Returns a robots.txt.", Handler: s.text(robotsTxt)},
		{Name: "deny", Path: "/deny", Methods: getOnly, Summary: "Denied by robots.txt.", Handler: s.text(denyTxt)},
		{Name: "html", Path: "/html", Methods: getOnly, Summary: "Renders an HTML page.", Handler: s.html},
		{Name: "ip", Path: "/ip", Methods: getOnly, Summary: "Returns the origin IP.", Handler: s.ip},
		{Name: "uuid", Path: "/uuid", Methods: getOnly, Summary: "Returns a random UUID4.", Handler: s.uuid},
		{Name: "headers", Path: "/headers", Methods: getOnly, Summary: "Returns the request headers.", Handler: s.headers},
		{Name: "user_agent", Path: "/user-agent", Methods: getOnly, Summary: "Returns the user agent.", Handler: s.userAgent},
		{Name: redirect.RouteGet, Path: "/get", Methods: getOnly, Summary: "Returns GET data.", Handler: s.echo(snapshot.GetFields)},
		{Name: "post", Path: "/post", Methods: []string{http.MethodPost}, Summary: "Returns POST data.", Handler: s.echo(snapshot.BodyFields)},
		{Name: "put", Path: "/put", Methods: []string{http.MethodPut}, Summary: "Returns PUT data.", Handler: s.echo(snapshot.BodyFields)},
		{Name: "patch", Path: "/patch", Methods: []string{http.MethodPatch}, Summary: "Returns PATCH data.", Handler: s.echo(snapshot.BodyFields)},
		{Name: "delete", Path: "/delete", Methods: []string{http.MethodDelete}, Summary: "Returns DELETE data.", Handler: s.echo(snapshot.BodyFields)},
		{Name: "anything", Path: "/anything", Methods: anyEchoVerb, Summary: "Returns anything passed in request data.", Handler: s.echo(snapshot.AnythingFields)},
		{Name: "anything_path", Path: "/anything/{anything:.*}", Methods: anyEchoVerb, Summary: "Same as /anything, under any path.", Handler: s.echo(snapshot.AnythingFields)},
		{Name: "redirect", Path: "/redirect/{n:[0-9]+}", Methods: getOnly, Summary: "302 redirects n times; ?absolute=true for absolute URLs.", Handler: s.redirectN},
		{Name: redirect.RouteRelative, Path: "/relative-redirect/{n:[0-9]+}", Methods: getOnly, Summary: "302 relative redirects n times.", Handler: s.redirectChain(false)},
		{Name: redirect.RouteAbsolute, Path: "/absolute-redirect/{n:[0-9]+}", Methods: getOnly, Summary: "302 absolute redirects n times.", Handler: s.redirectChain(true)},
		{Name: "redirect_to", Path: "/redirect-to", Methods: anyEchoVerb, Summary: "Redirects to ?url=, optionally with ?status_code=.", Handler: s.redirectTo},
		{Name: "stream", Path: "/stream/{n:[0-9]+}", Methods: getOnly, Summary: "Streams min(n, limit) JSON lines.", Handler: s.stream},
		{Name: "status", Path: "/status/{codes}", Methods: anyEchoVerb, Summary: "Returns the given status code, or a weighted random pick of code:weight,...", Handler: s.status},
		{Name: "response_headers", Path: "/response-headers", Methods: getOrPost, Summary: "Returns the query parameters as response headers.", Handler: s.responseHeaders},
		{Name: cookiesRoute, Path: "/cookies", Methods: getOnly, Summary: "Returns cookie data.", Handler: s.cookiesView},
		{Name: "cookies_set", Path: "/cookies/set", Methods: getOnly, Summary: "Sets the query parameters as cookies.", Handler: s.cookiesSet},
		{Name: "cookies_delete", Path: "/cookies/delete", Methods: getOnly, Summary: "Deletes the named cookies.", Handler: s.cookiesDelete},
		{Name: "delay", Path: "/delay/{delay}", Methods: getOnly, Summary: "Delays the response by up to the configured limit.", Handler: s.delay},
		{Name: "base64_encode", Path: "/base64-encode/{value}", Methods: getOnly, Summary: "URL-safe base64 encodes the value.", Handler: s.base64Encode},
		{Name: "base64_decode", Path: "/base64-decode/{value}", Methods: getOnly, Summary: "URL-safe base64 decodes the value.", Handler: s.base64Decode},
	}
}

// Routes returns a copy of the route table.
func (s *Server) Routes() []Route {
	out := make([]Route, len(s.routes))
	copy(out, s.routes)
	return out
}

// Mount registers every route on r as a named route. wrap, when not nil,
// decorates each handler with per-route middleware.
func (s *Server) Mount(r *mux.Router, wrap func(name string, h http.Handler) http.Handler) {
	s.router = r
	for _, rt := range s.routes {
		var h http.Handler = rt.Handler
		if wrap != nil {
			h = wrap(rt.Name, h)
		}
		route := r.Handle(rt.Path, h).Name(rt.Name)
		if len(rt.Methods) > 0 {
			route.Methods(rt.Methods...)
		}
	}
}

// Handler is a standalone router with every route mounted and no
// middleware.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	s.Mount(r, nil)
	return r
}

// urlFor reverses a named route into a path.
func (s *Server) urlFor(name string, pairs ...string) (string, error) {
	if s.router == nil {
		return "", errors.New("routes not mounted")
	}
	route := s.router.Get(name)
	if route == nil {
		return "", fmt.Errorf("route %q not registered", name)
	}
	u, err := route.URLPath(pairs...)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// Path implements redirect.Resolver.
func (s *Server) Path(name string, n int) (string, error) {
	if name == redirect.RouteGet {
		return s.urlFor(name)
	}
	return s.urlFor(name, "n", strconv.Itoa(n))
}

// writeSnapshot builds and writes a snapshot, translating body read
// failures into client errors.
func (s *Server) writeSnapshot(w http.ResponseWriter, r *http.Request, fields []snapshot.Field, extras map[string]any) {
	snap, err := s.builder.Build(r, fields, extras)
	if err != nil {
		writeBodyError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, snap)
}

func writeBodyError(w http.ResponseWriter, err error) {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		httpx.TooLarge(w, mbe.Limit)
		return
	}
	httpx.Error(w, http.StatusBadRequest, "invalid_body", map[string]any{"message": err.Error()})
}

// badRequest writes a short plain text 400.
func badRequest(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusBadRequest)
	_, _ = w.Write([]byte(msg))
}

func writeText(w http.ResponseWriter, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func queryFirst(r *http.Request) map[string]string {
	q := r.URL.Query()
	out := make(map[string]string, len(q))
	for k, vs := range q {
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	return out
}

// lookupFold finds key in q ignoring case, preferring an exact match.
func lookupFold(q map[string]string, key string) (string, bool) {
	if v, ok := q[key]; ok {
		return v, true
	}
	for k, v := range q {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}
