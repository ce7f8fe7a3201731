package responses

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"go.uber.org/zap"

	"github.com/papercomputeco/ispoc/pkg/sse"
)

// ActionKind classifies what the driver must do with one frame.
type ActionKind int

const (
	// ActionNone means the frame carries nothing of interest.
	ActionNone ActionKind = iota

	// ActionCaptureID means the frame only carries a candidate continuation id.
	ActionCaptureID

	// ActionTextDelta carries text to append at a content index.
	ActionTextDelta

	// ActionError carries a provider error. No further frames are read.
	ActionError

	// ActionTerminate ends the stream. No further frames are read.
	ActionTerminate

	// ActionParseError means the data payload was not JSON. The frame is
	// skipped and reading continues.
	ActionParseError

	// ActionDone is the literal "[DONE]" marker. It does not end the stream.
	ActionDone
)

func (k ActionKind) String() string {
	switch k {
	case ActionNone:
		return "none"
	case ActionCaptureID:
		return "capture_id"
	case ActionTextDelta:
		return "text_delta"
	case ActionError:
		return "error"
	case ActionTerminate:
		return "terminate"
	case ActionParseError:
		return "parse_error"
	case ActionDone:
		return "done"
	default:
		return "unknown"
	}
}

// Action is the interpretation of one frame.
type Action struct {
	Kind ActionKind

	// ResponseID is a candidate continuation id found in the frame. It may be
	// set alongside any kind; the driver keeps only the first one.
	ResponseID string

	// Text is the delta text for ActionTextDelta and the display warning for
	// ActionError.
	Text  string
	Index int

	// Code and Message describe an ActionError.
	Code    string
	Message string

	// Err is the decode failure for ActionParseError.
	Err error
}

// Interpreter maps stream frames to actions. It keeps no state between
// frames, so one Interpreter may serve many turns.
type Interpreter struct {
	logger *zap.Logger
}

// NewInterpreter returns an Interpreter. A nil logger discards diagnostics.
func NewInterpreter(logger *zap.Logger) *Interpreter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Interpreter{logger: logger}
}

// Interpret classifies ev.
func (i *Interpreter) Interpret(ev sse.Event) Action {
	if ev.Data == doneMarker {
		return Action{Kind: ActionDone}
	}

	var decoded any
	if err := json.Unmarshal([]byte(ev.Data), &decoded); err != nil {
		return Action{Kind: ActionParseError, Err: fmt.Errorf("decoding %q frame: %w", ev.Type, err)}
	}

	// A payload that is valid JSON but not an object has no fields to read.
	payload, _ := decoded.(map[string]any)

	act := Action{ResponseID: candidateID(ev.Type, payload)}

	switch ev.Type {
	case EventResponseCreated:
		// Bookkeeping only; never reaches the assembler.

	case EventError, EventResponseFailed:
		act.Kind = ActionError
		act.Message, act.Code = errorDetails(payload)
		act.Text = WarningText(act.Code, act.Message)
		return act

	case EventOutputTextDelta:
		text := deltaText(payload["delta"])
		if text == "" {
			i.logger.Debug("skipping empty text delta")
			break
		}
		index, err := contentIndex(payload)
		if err != nil {
			return Action{Kind: ActionParseError, ResponseID: act.ResponseID, Err: err}
		}
		act.Kind = ActionTextDelta
		act.Text = text
		act.Index = index
		return act

	case EventResponseCompleted:
		act.Kind = ActionTerminate
		return act

	case EventResponseDelta:
		// Tool call progress is only of diagnostic interest.
		i.logger.Debug("observed response.delta frame",
			zap.Bool("has_tool_calls", payload["tool_calls"] != nil),
		)
	}

	if act.ResponseID != "" {
		act.Kind = ActionCaptureID
	}
	return act
}

// WarningText renders the message shown in place of content when the provider
// fails mid-stream.
func WarningText(code, message string) string {
	if code == "" {
		return fmt.Sprintf("⚠️ Internal error: %s", message)
	}
	return fmt.Sprintf("⚠️ Internal error (%s): %s", code, message)
}

// candidateID finds a continuation id in a frame: response.id on lifecycle
// events, and a top-level response_id on any event.
func candidateID(event string, payload map[string]any) string {
	switch event {
	case EventResponseCreated, EventResponseInProgress, EventResponseCompleted:
		if resp, ok := payload["response"].(map[string]any); ok {
			if id := stringField(resp, "id"); id != "" {
				return id
			}
		}
	}
	return stringField(payload, "response_id")
}

func errorDetails(payload map[string]any) (message, code string) {
	nested, _ := payload["error"].(map[string]any)

	message = stringField(payload, "message")
	if message == "" {
		message = stringField(nested, "message")
	}
	if message == "" {
		message = "Unknown tool error"
	}

	code = scalarString(payload["code"])
	if code == "" {
		code = scalarString(nested["code"])
	}
	return message, code
}

// deltaText accepts a delta given either as a plain string or as an object
// with a value field.
func deltaText(raw any) string {
	switch d := raw.(type) {
	case string:
		return d
	case map[string]any:
		return stringField(d, "value")
	default:
		return ""
	}
}

// contentIndex reads the delta's index. Negative values count as 0; values
// that are not whole numbers or exceed MaxContentIndex are rejected.
func contentIndex(payload map[string]any) (int, error) {
	for _, key := range []string{"content_index", "contentIndex"} {
		n, ok := payload[key].(float64)
		if !ok {
			continue
		}
		switch {
		case math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n):
			return 0, fmt.Errorf("%w: %s %v is not a whole number", ErrContentIndex, key, n)
		case n > MaxContentIndex:
			return 0, fmt.Errorf("%w: %s %v exceeds %d", ErrContentIndex, key, n, MaxContentIndex)
		case n < 0:
			return 0, nil
		}
		return int(n), nil
	}
	return 0, nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// scalarString renders a JSON string or number. Anything else is treated as
// absent.
func scalarString(v any) string {
	switch c := v.(type) {
	case string:
		return c
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(c)
	default:
		return ""
	}
}
