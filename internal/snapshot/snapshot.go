// Package snapshot assembles the canonical JSON view of an incoming request
// that every echo endpoint returns.
package snapshot

import (
	"fmt"
	"net/http"

	"github.com/3xpluto/go-reqbin/internal/codec"
	"github.com/3xpluto/go-reqbin/internal/header"
)

// Field names one member of a Snapshot.
type Field string

const (
	FieldURL     Field = "url"
	FieldArgs    Field = "args"
	FieldForm    Field = "form"
	FieldData    Field = "data"
	FieldOrigin  Field = "origin"
	FieldHeaders Field = "headers"
	FieldFiles   Field = "files"
	FieldJSON    Field = "json"
	FieldMethod  Field = "method"
)

func (f Field) valid() bool {
	switch f {
	case FieldURL, FieldArgs, FieldForm, FieldData, FieldOrigin, FieldHeaders, FieldFiles, FieldJSON, FieldMethod:
		return true
	}
	return false
}

func (f Field) needsBody() bool {
	switch f {
	case FieldForm, FieldData, FieldFiles, FieldJSON:
		return true
	}
	return false
}

// Common field sets used by the HTTP surface.
var (
	GetFields      = []Field{FieldURL, FieldArgs, FieldHeaders, FieldOrigin}
	BodyFields     = []Field{FieldURL, FieldArgs, FieldForm, FieldData, FieldOrigin, FieldHeaders, FieldFiles, FieldJSON}
	AnythingFields = []Field{FieldURL, FieldArgs, FieldHeaders, FieldOrigin, FieldMethod, FieldForm, FieldData, FieldFiles, FieldJSON}
	DelayFields    = []Field{FieldURL, FieldArgs, FieldForm, FieldData, FieldOrigin, FieldHeaders, FieldFiles}
)

// Snapshot maps field names to values. It holds exactly the requested
// fields plus any extras; it is built fresh per request and not modified
// afterwards.
type Snapshot map[string]any

// Clone returns a shallow copy, for callers that decorate a snapshot with
// extra keys such as a stream line id.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s)+1)
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Builder produces snapshots. The zero value is not usable; see NewBuilder.
type Builder struct {
	// Hidden from the headers field unless the request sets show_env.
	HideHeaders header.Blocklist
	// In-memory threshold for multipart parsing; larger parts spill to disk.
	MaxMemory int64
}

// NewBuilder returns a Builder hiding the standard infrastructure headers.
func NewBuilder() *Builder {
	return &Builder{
		HideHeaders: header.EnvHeaders,
		MaxMemory:   32 << 20,
	}
}

// Build returns a snapshot with exactly the requested fields, then applies
// extras on top. An unknown field is a programming error and panics.
// The only error is a failure to read the request body, such as exceeding
// the configured size cap.
func (b *Builder) Build(r *http.Request, fields []Field, extras map[string]any) (Snapshot, error) {
	needBody := false
	for _, f := range fields {
		if !f.valid() {
			panic(fmt.Sprintf("snapshot: unsupported field %q", f))
		}
		needBody = needBody || f.needsBody()
	}

	var bd *body
	if needBody {
		var err error
		if bd, err = readBody(r, b.MaxMemory); err != nil {
			return nil, err
		}
	}

	out := make(Snapshot, len(fields)+len(extras))
	for _, f := range fields {
		switch f {
		case FieldURL:
			out[string(f)] = URL(r)
		case FieldArgs:
			out[string(f)] = header.Flatten(r.URL.Query())
		case FieldForm:
			out[string(f)] = header.Flatten(bd.form)
		case FieldData:
			out[string(f)] = codec.Safe(bd.raw, "")
		case FieldOrigin:
			out[string(f)] = Origin(r)
		case FieldHeaders:
			out[string(f)] = Headers(r, b.HideHeaders)
		case FieldFiles:
			out[string(f)] = bd.filesValue()
		case FieldJSON:
			if js, ok := ParseJSON(bd.raw); ok {
				out[string(f)] = js
			} else {
				out[string(f)] = nil
			}
		case FieldMethod:
			out[string(f)] = r.Method
		}
	}
	for k, v := range extras {
		out[k] = v
	}
	return out, nil
}
