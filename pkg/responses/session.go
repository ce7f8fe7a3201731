package responses

import (
	"context"
	"sync"
)

// Session carries the continuation id from one turn to the next and allows
// only one turn at a time.
type Session struct {
	runner Runner

	mu         sync.Mutex
	busy       bool
	previousID string
}

// NewSession returns a Session that runs turns with r.
func NewSession(r Runner) *Session {
	return &Session{runner: r}
}

// Send runs query as the next turn of the conversation. It returns
// ErrTurnInFlight without contacting the upstream if another Send has not
// returned yet.
func (s *Session) Send(ctx context.Context, query string, onPartial PartialFunc) (*Outcome, error) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return nil, ErrTurnInFlight
	}
	s.busy = true
	prev := s.previousID
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	out, err := s.runner.RunTurn(ctx, TurnRequest{Query: query, PreviousTurnID: prev}, onPartial)
	if err != nil {
		return nil, err
	}

	// A turn that yields no id starts the next one as a fresh conversation.
	s.mu.Lock()
	s.previousID = out.ContinuationID
	s.mu.Unlock()

	return out, nil
}

// PreviousID returns the continuation id the next turn will send.
func (s *Session) PreviousID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.previousID
}

// Busy reports whether a turn is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Reset forgets the conversation so the next turn starts a new one.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.previousID = ""
}

// Resume continues an earlier conversation, e.g. one saved by a previous
// process. An empty id behaves like Reset.
func (s *Session) Resume(previousID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.previousID = previousID
}
