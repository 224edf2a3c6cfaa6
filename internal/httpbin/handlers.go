package httpbin

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/3xpluto/go-reqbin/internal/codec"
	"github.com/3xpluto/go-reqbin/internal/httpx"
	"github.com/3xpluto/go-reqbin/internal/redirect"
	"github.com/3xpluto/go-reqbin/internal/snapshot"
	"github.com/3xpluto/go-reqbin/internal/stream"
)

func (s *Server) echo(fields []snapshot.Field) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeSnapshot(w, r, fields, nil)
	}
}

func (s *Server) ip(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"origin": snapshot.Origin(r)})
}

func (s *Server) uuid(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"uuid": uuid.NewString()})
}

func (s *Server) headers(w http.ResponseWriter, r *http.Request) {
	s.writeSnapshot(w, r, []snapshot.Field{snapshot.FieldHeaders}, nil)
}

func (s *Server) userAgent(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"user-agent": r.Header.Get("User-Agent")})
}

// hopCount reads the {n} path variable. It must be a positive integer no
// larger than the configured redirect cap.
func (s *Server) hopCount(w http.ResponseWriter, r *http.Request) (int, bool) {
	n, err := strconv.Atoi(mux.Vars(r)["n"])
	if err != nil || n <= 0 || n > s.opts.MaxRedirects {
		badRequest(w, "Invalid redirect count")
		return 0, false
	}
	return n, true
}

func (s *Server) redirectN(w http.ResponseWriter, r *http.Request) {
	n, ok := s.hopCount(w, r)
	if !ok {
		return
	}
	abs, _ := lookupFold(queryFirst(r), "absolute")
	s.redirectHop(w, r, redirect.Hop{N: n, Absolute: strings.EqualFold(abs, "true")})
}

func (s *Server) redirectChain(absolute bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, ok := s.hopCount(w, r)
		if !ok {
			return
		}
		s.redirectHop(w, r, redirect.Hop{N: n, Absolute: absolute})
	}
}

func (s *Server) redirectHop(w http.ResponseWriter, r *http.Request, h redirect.Hop) {
	loc, err := redirect.Location(s, snapshot.BaseURL(r), h)
	if err != nil {
		// Every chain route is registered by Mount.
		panic(err)
	}
	redirect.Found(w, loc)
}

func (s *Server) redirectTo(w http.ResponseWriter, r *http.Request) {
	q := queryFirst(r)
	dest, ok := lookupFold(q, "url")
	if !ok {
		badRequest(w, "Missing url parameter")
		return
	}
	code, _ := lookupFold(q, "status_code")
	redirect.To(w, dest, redirect.StatusFor(code))
}

func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(mux.Vars(r)["n"])
	if err != nil {
		var ne *strconv.NumError
		if !errors.As(err, &ne) || !errors.Is(ne.Err, strconv.ErrRange) {
			badRequest(w, "Invalid line count")
			return
		}
		n = math.MaxInt
	}

	base, err := s.builder.Build(r, []snapshot.Field{
		snapshot.FieldURL, snapshot.FieldArgs, snapshot.FieldHeaders, snapshot.FieldOrigin,
	}, nil)
	if err != nil {
		writeBodyError(w, err)
		return
	}

	w.Header().Set("Content-Type", httpx.JSONContentType)
	w.WriteHeader(http.StatusOK)
	written, _ := stream.Copy(r.Context(), w, stream.Lines(base, n, s.opts.MaxStreamLines))
	if s.opts.OnStreamLines != nil {
		s.opts.OnStreamLines(written)
	}
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	resp, err := s.sim.Resolve(mux.Vars(r)["codes"])
	if err != nil {
		badRequest(w, "Invalid status code")
		return
	}
	resp.Write(w)
}

func (s *Server) delay(w http.ResponseWriter, r *http.Request) {
	d, err := stream.ParseDelay(mux.Vars(r)["delay"], s.opts.MaxDelay)
	if err != nil {
		badRequest(w, "Invalid delay")
		return
	}
	if err := stream.Sleep(r.Context(), d); err != nil {
		// Client went away; nobody is left to answer.
		return
	}
	s.writeSnapshot(w, r, snapshot.DelayFields, nil)
}

func (s *Server) base64Encode(w http.ResponseWriter, r *http.Request) {
	writeText(w, "text/plain; charset=utf-8", []byte(codec.EncodeURLSafe(mux.Vars(r)["value"])))
}

func (s *Server) base64Decode(w http.ResponseWriter, r *http.Request) {
	b, err := codec.DecodeURLSafe(mux.Vars(r)["value"])
	if err != nil {
		badRequest(w, "Incorrect Base64 data try: SFRUUEJJTiBpcyBhd2Vzb21l")
		return
	}
	ct := "text/plain; charset=utf-8"
	if !utf8.Valid(b) {
		ct = codec.DefaultContentType
	}
	writeText(w, ct, b)
}
