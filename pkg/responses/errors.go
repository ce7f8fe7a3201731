package responses

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrBodyParse is returned when a non-streaming response body is not the
	// expected JSON document.
	ErrBodyParse = errors.New("failed to parse response body")

	// ErrContentIndex is carried by the parse-error action of a delta whose
	// content index is unusable.
	ErrContentIndex = errors.New("invalid content index")

	// ErrTurnInFlight is returned by Session.Send while another turn is
	// still running.
	ErrTurnInFlight = errors.New("a turn is already in flight")
)

// TransportError is a hard failure: the request could not be made or the
// upstream answered with a non-success status before any content was read.
type TransportError struct {
	// StatusCode is zero when no response was received.
	StatusCode int
	Status     string
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("responses request failed: %v", e.Err)
	}
	return fmt.Sprintf("responses request failed: %s. %s", e.Status, upstreamMessage(e.Body))
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// upstreamMessage pulls error.message out of an upstream error body, falling
// back to the raw body.
func upstreamMessage(body string) string {
	var payload struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err == nil && payload.Error != nil && payload.Error.Message != "" {
		return payload.Error.Message
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return "Could not parse error response"
	}
	return body
}
