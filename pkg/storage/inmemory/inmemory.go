// Package inmemory provides a storage.Driver that keeps records in process
// memory. It is used for tests and for running the services without any
// backing store.
package inmemory

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/ispoc/pkg/storage"
	"github.com/papercomputeco/ispoc/pkg/storage/csvrow"
)

// Driver implements storage.Driver using slices guarded by a mutex.
type Driver struct {
	// mu is a read write sync mutex guarding both record sets
	mu sync.RWMutex

	feedback  []storage.Feedback
	queryLogs []storage.QueryLog
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{}
}

// AddFeedback stores a copy of f.
func (d *Driver) AddFeedback(_ context.Context, f *storage.Feedback) error {
	if f == nil {
		return errors.New("cannot store nil feedback")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.feedback = append(d.feedback, *f)
	return nil
}

// AddQueryLog stores a copy of l.
func (d *Driver) AddQueryLog(_ context.Context, l *storage.QueryLog) error {
	if l == nil {
		return errors.New("cannot store nil query log")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.queryLogs = append(d.queryLogs, *l)
	return nil
}

// FeedbackCSV renders all stored feedback.
func (d *Driver) FeedbackCSV(_ context.Context) (*storage.CSVExport, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows := make([]string, 0, len(d.feedback))
	for i := range d.feedback {
		rows = append(rows, csvrow.Feedback(&d.feedback[i]))
	}
	return &storage.CSVExport{Headers: storage.FeedbackCSVHeaders, Rows: rows}, nil
}

// QueryLogCSV renders all stored query logs.
func (d *Driver) QueryLogCSV(_ context.Context) (*storage.CSVExport, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows := make([]string, 0, len(d.queryLogs))
	for i := range d.queryLogs {
		rows = append(rows, csvrow.QueryLog(&d.queryLogs[i]))
	}
	return &storage.CSVExport{Headers: storage.QueryLogCSVHeaders, Rows: rows}, nil
}

// ClearQueryLogs drops every query log.
func (d *Driver) ClearQueryLogs(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.queryLogs = nil
	return nil
}

// QueryLogs returns a snapshot of the stored query logs.
func (d *Driver) QueryLogs() []storage.QueryLog {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]storage.QueryLog, len(d.queryLogs))
	copy(out, d.queryLogs)
	return out
}

// Feedback returns a snapshot of the stored feedback.
func (d *Driver) Feedback() []storage.Feedback {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]storage.Feedback, len(d.feedback))
	copy(out, d.feedback)
	return out
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}
