// Package storage defines the audit log kept by the ispoc services: survey
// feedback from the widget and the query/answer pairs of completed turns.
// Both are exported to administrators as CSV.
package storage

import (
	"context"
)

// Driver defines the interface for persisting and exporting audit records in
// a storage backend.
type Driver interface {
	// AddFeedback stores one feedback submission. The record must already be
	// normalized and valid.
	AddFeedback(ctx context.Context, f *Feedback) error

	// AddQueryLog stores one completed turn. The record must already be
	// normalized and valid.
	AddQueryLog(ctx context.Context, l *QueryLog) error

	// FeedbackCSV returns all feedback as CSV, oldest first.
	FeedbackCSV(ctx context.Context) (*CSVExport, error)

	// QueryLogCSV returns all query logs as CSV, oldest first.
	QueryLogCSV(ctx context.Context) (*CSVExport, error)

	// ClearQueryLogs deletes every query log. Feedback is kept.
	ClearQueryLogs(ctx context.Context) error

	// Close closes the store and releases any resources.
	Close() error
}
