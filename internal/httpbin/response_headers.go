package httpbin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/3xpluto/go-reqbin/internal/header"
	"github.com/3xpluto/go-reqbin/internal/httpx"
)

// maxHeaderPasses bounds the fixed-point search in responseHeaders.
// Content-Length is the only self-referential value and settles in two or
// three passes.
const maxHeaderPasses = 8

func (s *Server) responseHeaders(w http.ResponseWriter, r *http.Request) {
	dst := w.Header()
	hdr, body := headerFixedPoint(dst, r.URL.Query())
	for k, vs := range hdr {
		dst[k] = vs
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// headerFixedPoint builds the response headers from base, which holds what
// middleware already set, plus the query pairs, and a body that is the JSON
// rendering of those same headers, Content-Length included. base is not
// modified. It panics if the body never stabilizes.
func headerFixedPoint(base http.Header, q map[string][]string) (http.Header, []byte) {
	hdr := base.Clone()
	if hdr == nil {
		hdr = http.Header{}
	}
	hdr.Set("Content-Type", httpx.JSONContentType)

	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		// Our own framing decides the length.
		if http.CanonicalHeaderKey(k) == "Content-Length" {
			continue
		}
		for _, v := range q[k] {
			hdr.Add(k, v)
		}
	}

	var body []byte
	for range maxHeaderPasses {
		hdr.Set("Content-Length", strconv.Itoa(len(body)))
		next := encodeHeaders(hdr)
		if bytes.Equal(next, body) {
			return hdr, body
		}
		body = next
	}
	panic(fmt.Sprintf("response-headers: body did not settle after %d passes", maxHeaderPasses))
}

func encodeHeaders(h http.Header) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(header.Flatten(h)); err != nil {
		panic(err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
}
