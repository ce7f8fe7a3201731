package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/ispoc/pkg/storage"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTurnLogged is emitted after a query log is persisted.
	EventTypeTurnLogged = "ispoc.turn.logged"
)

// TurnLoggedEvent is a transport-neutral event payload for a logged turn.
type TurnLoggedEvent struct {
	SchemaVersion int              `json:"schema_version"`
	EventType     string           `json:"event_type"`
	EventID       string           `json:"event_id"`
	EmittedAt     time.Time        `json:"emitted_at"`
	Source        EventSource      `json:"source"`
	Turn          storage.QueryLog `json:"turn"`
}

// EventSource identifies which component logged the turn.
type EventSource struct {
	// Component is "api" or "proxy".
	Component string `json:"component"`
	Model     string `json:"model,omitempty"`
}

// NewTurnLoggedEvent wraps a persisted query log in a v1 event.
func NewTurnLoggedEvent(source EventSource, turn storage.QueryLog, now time.Time) *TurnLoggedEvent {
	return &TurnLoggedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeTurnLogged,
		EventID:       uuid.NewString(),
		EmittedAt:     now.UTC(),
		Source:        source,
		Turn:          turn,
	}
}
