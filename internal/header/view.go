// Package header provides case-insensitive, insertion-ordered views over
// request headers and query strings, and the multi-value flattening used
// when echoing them back as JSON.
package header

import (
	"bytes"
	"encoding/json"
	"iter"
	"net/http"
	"sort"
	"strings"
)

// Pair is a single raw key/value as it arrived on the wire.
type Pair struct {
	Key   string
	Value string
}

type entry struct {
	key   string
	value string
}

// View is a read-only projection of key/value pairs with case-insensitive
// keys. Iteration follows first-insertion order, while the displayed key
// spelling and the value come from the last pair inserted for that key.
type View struct {
	entries []entry
	index   map[string]int
}

// New builds a View from raw pairs. Repeated keys (in any case) collapse
// into one entry.
func New(pairs ...Pair) *View {
	v := &View{index: make(map[string]int, len(pairs))}
	for _, p := range pairs {
		v.set(p.Key, p.Value)
	}
	return v
}

// FromHTTP builds a View from an http.Header. Keys are visited in sorted
// order so output is stable; repeated values are joined with ", " as
// permitted by RFC 9110 section 5.3.
func FromHTTP(h http.Header) *View {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	v := &View{index: make(map[string]int, len(keys))}
	for _, k := range keys {
		v.set(k, strings.Join(h[k], ", "))
	}
	return v
}

func (v *View) set(key, value string) {
	lk := strings.ToLower(key)
	if i, ok := v.index[lk]; ok {
		v.entries[i] = entry{key: key, value: value}
		return
	}
	v.index[lk] = len(v.entries)
	v.entries = append(v.entries, entry{key: key, value: value})
}

// Get returns the value stored under any case variant of key.
func (v *View) Get(key string) (string, bool) {
	if v == nil {
		return "", false
	}
	i, ok := v.index[strings.ToLower(key)]
	if !ok {
		return "", false
	}
	return v.entries[i].value, true
}

// Has reports whether any case variant of key is present.
func (v *View) Has(key string) bool {
	_, ok := v.Get(key)
	return ok
}

// Delete removes key regardless of case and reports whether it existed.
func (v *View) Delete(key string) bool {
	if v == nil {
		return false
	}
	lk := strings.ToLower(key)
	i, ok := v.index[lk]
	if !ok {
		return false
	}
	v.entries = append(v.entries[:i], v.entries[i+1:]...)
	delete(v.index, lk)
	for j := i; j < len(v.entries); j++ {
		v.index[strings.ToLower(v.entries[j].key)] = j
	}
	return true
}

// Strip deletes every name in the blocklist.
func (v *View) Strip(b Blocklist) {
	for _, name := range b.names {
		v.Delete(name)
	}
}

// Len returns the number of distinct keys.
func (v *View) Len() int {
	if v == nil {
		return 0
	}
	return len(v.entries)
}

// Keys returns the display spelling of every key in iteration order.
func (v *View) Keys() []string {
	if v == nil {
		return nil
	}
	out := make([]string, len(v.entries))
	for i, e := range v.entries {
		out[i] = e.key
	}
	return out
}

// All iterates over key/value pairs in insertion order.
func (v *View) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		if v == nil {
			return
		}
		for _, e := range v.entries {
			if !yield(e.key, e.value) {
				return
			}
		}
	}
}

// Equal compares two views ignoring key case and iteration order.
func (v *View) Equal(o *View) bool {
	if v.Len() != o.Len() {
		return false
	}
	for k, val := range v.All() {
		ov, ok := o.Get(k)
		if !ok || ov != val {
			return false
		}
	}
	return true
}

// MarshalJSON renders the view as a JSON object in iteration order.
func (v *View) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	i := 0
	for k, val := range v.All() {
		if i > 0 {
			buf.WriteByte(',')
		}
		i++
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
