// Package responses drives conversation turns against an OpenAI-style
// Responses endpoint. It turns a streamed SSE body into an ordered, assembled
// answer and a continuation id that links the next turn to the same
// conversation.
package responses

import "context"

const (
	// MaxQueryLength is the number of characters of a query sent upstream.
	// Longer queries are cut and suffixed with "...".
	MaxQueryLength = 2000

	// DefaultModel is used when neither the caller nor the config names one.
	DefaultModel = "gpt-4.1-mini"

	// ContentTypeText is the only content item type the assembler produces.
	ContentTypeText = "text"
)

// Continuation id response headers, in order of preference.
const (
	headerResponseIDKey    = "openai-response-id"
	headerAltResponseIDKey = "x-response-id"
)

// Event names of the Responses streaming protocol.
const (
	EventResponseCreated    = "response.created"
	EventResponseInProgress = "response.in_progress"
	EventResponseCompleted  = "response.completed"
	EventResponseFailed     = "response.failed"
	EventOutputTextDelta    = "response.output_text.delta"
	EventResponseDelta      = "response.delta"
	EventError              = "error"

	doneMarker = "[DONE]"
)

// Turn is one user query and its evolving answer. ContinuationID is set at
// most once; the first captured value wins.
type Turn struct {
	Query          string
	PreviousTurnID string
	ContinuationID string
}

// CaptureID records id as the continuation id unless one is already known or
// id is empty. It reports whether id was taken.
func (t *Turn) CaptureID(id string) bool {
	if id == "" || t.ContinuationID != "" {
		return false
	}
	t.ContinuationID = id
	return true
}

// TurnRequest is the input of a single turn.
type TurnRequest struct {
	Query          string
	PreviousTurnID string
}

// TextValue wraps the text of a ContentItem.
type TextValue struct {
	Value string `json:"value"`
}

// ContentItem is handed to a PartialFunc once per emitted delta.
type ContentItem struct {
	Type  string    `json:"type"`
	Index int       `json:"index"`
	Text  TextValue `json:"text"`
}

// NewTextItem builds a text ContentItem.
func NewTextItem(index int, text string) ContentItem {
	return ContentItem{Type: ContentTypeText, Index: index, Text: TextValue{Value: text}}
}

// PartialFunc receives each delta as it is assembled. A nil PartialFunc
// selects the non-streaming request mode.
type PartialFunc func(item ContentItem)

// State is the terminal state of a turn that produced an outcome.
type State int

const (
	// StateCompleted means the stream ended normally.
	StateCompleted State = iota

	// StateErrored means the provider reported an error mid-stream or the
	// stream broke after it began. Text holds whatever had been assembled.
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateCompleted:
		return "completed"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Outcome is the result of a turn.
type Outcome struct {
	// Query is the query as it was sent, after truncation.
	Query string

	Text           string
	ContinuationID string
	State          State
}

// Runner executes one turn.
type Runner interface {
	RunTurn(ctx context.Context, req TurnRequest, onPartial PartialFunc) (*Outcome, error)
}

// Request is the JSON body posted to the Responses endpoint.
type Request struct {
	Model              string `json:"model,omitempty"`
	Instructions       string `json:"instructions,omitempty"`
	Input              string `json:"input"`
	PreviousResponseID string `json:"previous_response_id,omitempty"`
	Tools              []Tool `json:"tools,omitempty"`
	Stream             bool   `json:"stream,omitempty"`
	Store              bool   `json:"store"`
}

// Tool is a hosted tool attached to a request.
type Tool struct {
	Type           string   `json:"type"`
	VectorStoreIDs []string `json:"vector_store_ids,omitempty"`
}

// FileSearchTool returns the file_search tool bound to one vector store.
func FileSearchTool(vectorStoreID string) Tool {
	return Tool{Type: "file_search", VectorStoreIDs: []string{vectorStoreID}}
}
