// Package sse provides a minimal, purpose-built SSE (Server-Sent Events)
// frame parser for LLM response streams. It is used both by the chat client,
// which reassembles streamed answers, and by the proxy, which forwards the raw
// bytes verbatim downstream while inspecting the same frames.
//
// Frames are delimited by a blank line ("\n\n"). Within a frame only the
// "event:" and "data:" fields are recognized; anything else is dropped
// silently so that transport noise never aborts a stream.
//
// This package intentionally does NOT provide SSE writer or server
// capabilities.
package sse

// Event represents a single parsed SSE frame, delimited by a blank line
// in the upstream byte stream.
type Event struct {
	// Type is the event name from the "event:" field, trimmed of surrounding
	// whitespace. Empty when the frame carried no "event:" line.
	Type string

	// Data is the payload from the "data:" field, trimmed of surrounding
	// whitespace. When a frame carries several "data:" lines the last one wins.
	Data string
}
