package httpbin

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strings"

	"github.com/3xpluto/go-reqbin/internal/snapshot"
)

//go:embed static
var staticFS embed.FS

var (
	robotsTxt = mustRead("static/robots.txt")
	denyTxt   = mustRead("static/deny.txt")
	mobyHTML  = mustRead("static/moby.html")
)

func mustRead(name string) []byte {
	b, err := staticFS.ReadFile(name)
	if err != nil {
		panic(err)
	}
	return b
}

func parsePages() *template.Template {
	return template.Must(template.New("index.html").
		Funcs(template.FuncMap{"join": strings.Join}).
		ParseFS(staticFS, "static/index.html"))
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	data := struct {
		Base   string
		Routes []Route
	}{Base: snapshot.BaseURL(r), Routes: s.routes}
	if err := s.pages.ExecuteTemplate(&buf, "index.html", data); err != nil {
		panic(err)
	}
	writeText(w, "text/html; charset=utf-8", buf.Bytes())
}

func (s *Server) text(body []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeText(w, "text/plain; charset=utf-8", body)
	}
}

func (s *Server) html(w http.ResponseWriter, _ *http.Request) {
	writeText(w, "text/html; charset=utf-8", mobyHTML)
}
