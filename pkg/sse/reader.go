package sse

import (
	"errors"
	"io"
)

const readChunkSize = 32 * 1024

// Reader lazily yields SSE events from a source io.Reader. Each call to Next
// performs at most as many reads as needed to complete one frame, and every
// frame completed by a single read is handed out before the source is read
// again.
//
// When constructed with NewTeeReader, every raw byte read from the source is
// also written verbatim to a destination writer:
//
// ┌──────────────────┐
// │ source io.Reader │
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐   ┌───────────────────────┐
// │   Reader.Next()  │──▶│ destination io.Writer │
// └──────────────────┘   └───────────────────────┘
// │
// ▼
// ┌──────────────────┐
// │      Event       │
// └──────────────────┘
//
// A Reader is tied to one underlying stream and cannot be restarted.
type Reader struct {
	src  io.Reader
	dest io.Writer

	parser  Parser
	pending []Event
	buf     []byte
	eof     bool
}

// NewReader returns a Reader that parses SSE events from src.
func NewReader(src io.Reader) *Reader {
	return &Reader{
		src: src,
		buf: make([]byte, readChunkSize),
	}
}

// NewTeeReader returns a Reader that parses SSE events from src and writes
// all raw bytes through to dest. The dest writer typically backs an io.Pipe
// connected to a downstream HTTP response.
func NewTeeReader(src io.Reader, dest io.Writer) *Reader {
	r := NewReader(src)
	r.dest = dest
	return r
}

// Next returns the next parsed SSE event. It blocks until a complete frame is
// available. Next returns nil, nil when the source is exhausted; a trailing
// frame that was never terminated by a blank line is discarded (see
// Remainder).
func (r *Reader) Next() (*Event, error) {
	for len(r.pending) == 0 {
		if r.eof {
			return nil, nil
		}

		n, err := r.src.Read(r.buf)
		if n > 0 {
			if r.dest != nil {
				if _, werr := r.dest.Write(r.buf[:n]); werr != nil {
					return nil, werr
				}
			}
			r.pending = append(r.pending, r.parser.Feed(string(r.buf[:n]))...)
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				r.eof = true
				continue
			}
			return nil, err
		}
	}

	ev := r.pending[0]
	r.pending = r.pending[1:]
	return &ev, nil
}

// Remainder returns any unterminated text left in the buffer. It is only
// meaningful once Next has returned nil, nil.
func (r *Reader) Remainder() string {
	return r.parser.Buffered()
}
