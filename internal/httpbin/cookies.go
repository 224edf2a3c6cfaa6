package httpbin

import (
	"net/http"
	"sort"
	"time"

	"github.com/3xpluto/go-reqbin/internal/httpx"
	"github.com/3xpluto/go-reqbin/internal/redirect"
	"github.com/3xpluto/go-reqbin/internal/snapshot"
)

const cookiesRoute = "cookies"

func (s *Server) cookiesView(w http.ResponseWriter, r *http.Request) {
	showEnv := snapshot.ShowEnv(r)
	out := make(map[string]string)
	for _, c := range r.Cookies() {
		if _, seen := out[c.Name]; seen {
			continue
		}
		if !showEnv && s.cookies.Contains(c.Name) {
			continue
		}
		out[c.Name] = c.Value
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"cookies": out})
}

func (s *Server) cookiesSet(w http.ResponseWriter, r *http.Request) {
	secure := snapshot.IsSecure(r)
	q := queryFirst(r)
	for _, name := range sortedKeys(q) {
		http.SetCookie(w, &http.Cookie{Name: name, Value: q[name], Path: "/", Secure: secure})
	}
	s.toCookies(w)
}

func (s *Server) cookiesDelete(w http.ResponseWriter, r *http.Request) {
	secure := snapshot.IsSecure(r)
	for _, name := range sortedKeys(queryFirst(r)) {
		http.SetCookie(w, &http.Cookie{
			Name:    name,
			Path:    "/",
			MaxAge:  -1,
			Expires: time.Unix(0, 0),
			Secure:  secure,
		})
	}
	s.toCookies(w)
}

func (s *Server) toCookies(w http.ResponseWriter) {
	loc, err := s.urlFor(cookiesRoute)
	if err != nil {
		panic(err)
	}
	redirect.Found(w, loc)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
