package sse

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stream = "data: {\"type\":\"sources\",\"sources\":[]}\n\n" +
	": keepalive\r\n" +
	"event: message\r\n" +
	"data: {\"type\":\"content\",\"content\":\"A\"}\r\n\r\n" +
	"data:{\"type\":\"content\",\"content\":\"B\"}\n\n" +
	"data: {\"type\":\"done\"}\n\n"

var expected = []Field{
	{Name: "data", Value: `{"type":"sources","sources":[]}`},
	{Name: "event", Value: "message"},
	{Name: "data", Value: `{"type":"content","content":"A"}`},
	{Name: "data", Value: `{"type":"content","content":"B"}`},
	{Name: "data", Value: `{"type":"done"}`},
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		line  string
		field Field
		ok    bool
	}{
		{"data: x", Field{"data", "x"}, true},
		{"data:x", Field{"data", "x"}, true},
		{"data:  two", Field{"data", " two"}, true},
		{"event: done\r", Field{"event", "done"}, true},
		{"retry", Field{Name: "retry"}, true},
		{": comment", Field{}, false},
		{"", Field{}, false},
		{"\r", Field{}, false},
	}

	for _, tt := range tests {
		field, ok := ParseLine(tt.line)
		assert.Equal(t, tt.ok, ok, tt.line)
		assert.Equal(t, tt.field, field, tt.line)
	}
}

func TestFramerWholeStream(t *testing.T) {
	f := NewFramer(0)
	assert.Equal(t, expected, f.Feed([]byte(stream)))
	assert.Empty(t, f.Remainder())
}

func TestFramerArbitrarySplits(t *testing.T) {
	for size := 1; size <= len(stream); size++ {
		f := NewFramer(0)
		var got []Field
		for i := 0; i < len(stream); i += size {
			end := i + size
			if end > len(stream) {
				end = len(stream)
			}
			got = append(got, f.Feed([]byte(stream[i:end]))...)
		}
		require.Equal(t, expected, got, "chunk size %d", size)
	}
}

func TestFramerRetainsRemainder(t *testing.T) {
	f := NewFramer(0)
	fields := f.Feed([]byte("data: {\"type\":\"content\"}\ndata: {\"type\":"))
	assert.Len(t, fields, 1)
	assert.Equal(t, `data: {"type":`, string(f.Remainder()))

	fields = f.Feed([]byte("\"done\"}\n"))
	assert.Equal(t, []Field{{Name: "data", Value: `{"type":"done"}`}}, fields)

	f.Feed([]byte("partial"))
	f.Reset()
	assert.Empty(t, f.Remainder())
}

func TestFramerMaxLineBytes(t *testing.T) {
	f := NewFramer(16)
	fields := f.Feed([]byte("data: " + strings.Repeat("x", 20)))
	assert.Empty(t, fields)
	assert.Empty(t, f.Remainder())

	fields = f.Feed([]byte(strings.Repeat("y", 40) + "\ndata: ok\n"))
	assert.Equal(t, []Field{{Name: "data", Value: "ok"}}, fields)

	fields = f.Feed([]byte("data: " + strings.Repeat("z", 30) + "\ndata: fine\n"))
	assert.Equal(t, []Field{{Name: "data", Value: "fine"}}, fields)
}

func TestReadFields(t *testing.T) {
	t.Run("discards partial tail", func(t *testing.T) {
		var got []Field
		r := iotest.OneByteReader(strings.NewReader(stream + "data: {\"type\":\"content\""))
		err := ReadFields(r, NewFramer(0), 0, func(f Field) bool {
			got = append(got, f)
			return true
		})
		require.NoError(t, err)
		assert.Equal(t, expected, got)
	})

	t.Run("stops when callback declines", func(t *testing.T) {
		count := 0
		err := ReadFields(strings.NewReader(stream), NewFramer(0), 8, func(Field) bool {
			count++
			return count < 2
		})
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("surfaces read errors", func(t *testing.T) {
		boom := errors.New("connection reset")
		r := io.MultiReader(strings.NewReader("data: a\n"), iotest.ErrReader(boom))
		var got []Field
		err := ReadFields(r, NewFramer(0), 0, func(f Field) bool {
			got = append(got, f)
			return true
		})
		assert.ErrorIs(t, err, boom)
		assert.Len(t, got, 1)
	})
}
