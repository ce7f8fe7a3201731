package sse

import "strings"

const (
	frameSeparator = "\n\n"
	eventField     = "event:"
	dataField      = "data:"
)

// Parser incrementally splits text into SSE frames. Text is fed in arbitrary
// sized chunks that need not align with frame boundaries; any incomplete
// trailing frame stays buffered until a later chunk completes it.
//
// A Parser is not safe for concurrent use.
type Parser struct {
	buf string
}

// Feed appends chunk to the internal buffer and returns every frame that is
// now complete, in stream order. Blank and unrecognized frames produce no
// output.
func (p *Parser) Feed(chunk string) []Event {
	p.buf += chunk

	var events []Event
	for {
		idx := strings.Index(p.buf, frameSeparator)
		if idx < 0 {
			break
		}

		raw := strings.TrimSpace(p.buf[:idx])
		p.buf = p.buf[idx+len(frameSeparator):]

		if ev, ok := parseFrame(raw); ok {
			events = append(events, ev)
		}
	}

	return events
}

// Buffered returns the text of the incomplete frame currently held by the
// parser.
func (p *Parser) Buffered() string {
	return p.buf
}

// parseFrame extracts the event name and data payload from one trimmed frame.
// ok is false when the frame has neither field.
func parseFrame(raw string) (Event, bool) {
	if raw == "" {
		return Event{}, false
	}

	var ev Event
	var found bool
	for _, line := range strings.Split(raw, "\n") {
		switch {
		case strings.HasPrefix(line, eventField):
			ev.Type = strings.TrimSpace(line[len(eventField):])
			found = true
		case strings.HasPrefix(line, dataField):
			ev.Data = strings.TrimSpace(line[len(dataField):])
			found = true
		default:
			// Comments (":"), "id:", "retry:" and junk lines are ignored.
		}
	}

	return ev, found
}
