package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"unicode/utf8"

	"github.com/3xpluto/go-reqbin/internal/codec"
)

var errNoBoundary = errors.New("multipart boundary missing")

// body is the request payload split the way form-aware frameworks do: form
// encodings are parsed into fields and files, anything else stays raw.
type body struct {
	raw   []byte
	form  url.Values
	files map[string][]string
}

func readBody(r *http.Request, maxMemory int64) (*body, error) {
	b := &body{form: url.Values{}, files: map[string][]string{}}
	if r.Body == nil || r.Body == http.NoBody {
		return b, nil
	}

	raw, err := io.ReadAll(r.Body)
	_ = r.Body.Close()
	// Later readers (and the server's own drain) see the same bytes.
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	mediaType, params, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded":
		// Pairs with bad escapes are skipped, the rest are kept.
		b.form, _ = url.ParseQuery(string(raw))
	case "multipart/form-data":
		if err := b.readMultipart(raw, params["boundary"], maxMemory); err != nil {
			// Malformed multipart is echoed back verbatim.
			b.form, b.files = url.Values{}, map[string][]string{}
			b.raw = raw
		}
	default:
		b.raw = raw
	}
	return b, nil
}

func (b *body) readMultipart(raw []byte, boundary string, maxMemory int64) error {
	if boundary == "" {
		return errNoBoundary
	}
	mf, err := multipart.NewReader(bytes.NewReader(raw), boundary).ReadForm(maxMemory)
	if err != nil {
		return err
	}
	defer func() { _ = mf.RemoveAll() }()

	for k, vs := range mf.Value {
		b.form[k] = append(b.form[k], vs...)
	}
	for field, fhs := range mf.File {
		for _, fh := range fhs {
			content, err := readFile(fh)
			if err != nil {
				return err
			}
			ct := fh.Header.Get("Content-Type")
			b.files[field] = append(b.files[field], codec.Safe(content, ct))
		}
	}
	return nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// ParseJSON returns the payload when it is syntactically valid JSON text.
// The second result is false for anything else, including an empty body.
func ParseJSON(raw []byte) (json.RawMessage, bool) {
	if len(raw) == 0 || !utf8.Valid(raw) || !json.Valid(raw) {
		return nil, false
	}
	cp := make(json.RawMessage, len(raw))
	copy(cp, raw)
	return cp, true
}

func (b *body) filesValue() map[string]any {
	out := make(map[string]any, len(b.files))
	for k, vs := range b.files {
		if len(vs) == 1 {
			out[k] = vs[0]
			continue
		}
		out[k] = vs
	}
	return out
}
