// Package stream produces newline delimited JSON snapshots on demand and
// implements the cancellable response delay.
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/3xpluto/go-reqbin/internal/snapshot"
)

// IDField is added to every streamed line.
const IDField = "id"

// Producer yields one encoded line per call until it reports false. It is
// not restartable.
type Producer interface {
	Next() ([]byte, bool)
}

// Clamp bounds a requested line count to [0, limit].
func Clamp(n, limit int) int {
	return min(max(n, 0), limit)
}

type lines struct {
	base snapshot.Snapshot
	n    int
	next int
}

// Lines streams base n times, each copy tagged with an id counting up from
// zero. n is clamped to limit.
func Lines(base snapshot.Snapshot, n, limit int) Producer {
	return &lines{base: base, n: Clamp(n, limit)}
}

func (l *lines) Next() ([]byte, bool) {
	if l.next >= l.n {
		return nil, false
	}
	line := l.base.Clone()
	line[IDField] = l.next
	l.next++

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(line); err != nil {
		// Snapshot values are plain JSON; a failure here is a bug.
		panic(fmt.Sprintf("stream: encode line: %v", err))
	}
	return buf.Bytes(), true
}

// Copy pulls lines from p and writes them to w, flushing after each so
// nothing is buffered server side. It stops early when ctx is done or a
// write fails and returns the number of lines written.
func Copy(ctx context.Context, w http.ResponseWriter, p Producer) (int, error) {
	rc := http.NewResponseController(w)
	written := 0
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		line, ok := p.Next()
		if !ok {
			return written, nil
		}
		if _, err := w.Write(line); err != nil {
			return written, err
		}
		written++
		// Writers without flush support still receive every line.
		_ = rc.Flush()
	}
}
