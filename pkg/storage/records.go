package storage

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// FeedbackCSVHeaders is the header line of the feedback export.
	FeedbackCSVHeaders = "Timestamp,Rating,Liked,Frustrated,FeatureRequest,Recommendation,AdditionalComments"

	// QueryLogCSVHeaders is the header line of the query log export.
	QueryLogCSVHeaders = "Timestamp,UserId,SessionId,Query,Response"

	// DefaultUserID and DefaultSessionID stand in for identifiers a client
	// did not send.
	DefaultUserID    = "anonymous"
	DefaultSessionID = "unknown"
)

// Feedback is one survey submission. The JSON names follow the widget's
// question numbering; all but AdditionalComments are required.
type Feedback struct {
	Rating             string    `json:"q1"`
	Liked              string    `json:"q2"`
	Frustrated         string    `json:"q3"`
	FeatureRequest     string    `json:"q4"`
	Recommendation     string    `json:"q5"`
	AdditionalComments string    `json:"q6"`
	Timestamp          time.Time `json:"timestamp"`
}

// Validate reports ErrInvalidFeedback when a required answer is blank.
func (f *Feedback) Validate() error {
	for _, answer := range []string{f.Rating, f.Liked, f.Frustrated, f.FeatureRequest, f.Recommendation} {
		if strings.TrimSpace(answer) == "" {
			return ErrInvalidFeedback
		}
	}
	return nil
}

// Normalize stamps the record with the current time when it has none.
func (f *Feedback) Normalize(now time.Time) {
	if f.Timestamp.IsZero() {
		f.Timestamp = now.UTC()
	}
}

// QueryLog is the audit record of one completed turn.
type QueryLog struct {
	ID             string    `json:"id"`
	Query          string    `json:"query"`
	Response       string    `json:"response"`
	UserID         string    `json:"userId"`
	SessionID      string    `json:"sessionId"`
	ContinuationID string    `json:"continuationId,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Validate reports ErrInvalidQueryLog when the query or response is blank.
func (l *QueryLog) Validate() error {
	if strings.TrimSpace(l.Query) == "" || strings.TrimSpace(l.Response) == "" {
		return ErrInvalidQueryLog
	}
	return nil
}

// Normalize fills the id, timestamp and the anonymous user and session
// placeholders.
func (l *QueryLog) Normalize(now time.Time) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.UserID == "" {
		l.UserID = DefaultUserID
	}
	if l.SessionID == "" {
		l.SessionID = DefaultSessionID
	}
	if l.Timestamp.IsZero() {
		l.Timestamp = now.UTC()
	}
}

// CSVExport is the admin view of a record set: one header line plus one CSV
// line per record.
type CSVExport struct {
	Headers string   `json:"headers"`
	Rows    []string `json:"rows"`
}
