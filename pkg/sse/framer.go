// Package sse frames a chunked server-sent-events body into fields.
package sse

import (
	"bytes"
	"errors"
	"io"
	"strings"
)

// DefaultReadBufferSize is the chunk size used by ReadFields when none is given.
const DefaultReadBufferSize = 4096

// Field is one "name: value" line of an event stream.
type Field struct {
	Name  string
	Value string
}

// IsData reports whether the field carries a data payload.
func (f Field) IsData() bool {
	return f.Name == "data"
}

// ParseLine parses a single line without its terminator. Blank lines and
// comments yield ok=false.
func ParseLine(line string) (Field, bool) {
	line = strings.TrimSuffix(line, "\r")
	if line == "" || strings.HasPrefix(line, ":") {
		return Field{}, false
	}
	name, value, found := strings.Cut(line, ":")
	if !found {
		return Field{Name: line}, true
	}
	return Field{Name: name, Value: strings.TrimPrefix(value, " ")}, true
}

// Framer splits arbitrary byte chunks into complete lines and keeps the
// unterminated tail for the next Feed. It is not safe for concurrent use.
type Framer struct {
	// MaxLineBytes bounds a single line. Longer lines are dropped up to the
	// next line boundary. Zero disables the bound.
	MaxLineBytes int

	buf        []byte
	discarding bool
}

// NewFramer creates a framer with the given line bound.
func NewFramer(maxLineBytes int) *Framer {
	return &Framer{MaxLineBytes: maxLineBytes}
}

// Feed appends chunk to the buffer and returns the fields of every line it
// completes.
func (f *Framer) Feed(chunk []byte) []Field {
	var fields []Field
	for len(chunk) > 0 {
		i := bytes.IndexByte(chunk, '\n')
		if i < 0 {
			f.appendPartial(chunk)
			break
		}
		part := chunk[:i]
		chunk = chunk[i+1:]

		if f.discarding {
			f.discarding = false
			f.buf = f.buf[:0]
			continue
		}

		line := string(append(f.buf, part...))
		f.buf = f.buf[:0]
		if f.MaxLineBytes > 0 && len(line) > f.MaxLineBytes {
			continue
		}
		if field, ok := ParseLine(line); ok {
			fields = append(fields, field)
		}
	}
	return fields
}

// Remainder returns the buffered bytes of the unterminated line.
func (f *Framer) Remainder() []byte {
	return append([]byte(nil), f.buf...)
}

// Reset discards any buffered partial line.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
	f.discarding = false
}

func (f *Framer) appendPartial(chunk []byte) {
	if f.discarding {
		return
	}
	f.buf = append(f.buf, chunk...)
	if f.MaxLineBytes > 0 && len(f.buf) > f.MaxLineBytes {
		f.buf = f.buf[:0]
		f.discarding = true
	}
}

// ReadFields reads r in chunks of bufSize, framing the body and calling fn
// for every field. It returns nil on a clean end of body, leaving any
// partial tail unread, and stops early without error when fn returns false.
func ReadFields(r io.Reader, f *Framer, bufSize int, fn func(Field) bool) error {
	if bufSize <= 0 {
		bufSize = DefaultReadBufferSize
	}
	buf := make([]byte, bufSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			for _, field := range f.Feed(buf[:n]) {
				if !fn(field) {
					return nil
				}
			}
		}
		if errors.Is(err, io.EOF) {
			f.Reset()
			return nil
		}
		if err != nil {
			return err
		}
	}
}
