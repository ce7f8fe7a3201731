// Package sqlite provides a SQLite-backed storage driver for single-host
// deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/ispoc/pkg/storage"
	"github.com/papercomputeco/ispoc/pkg/storage/csvrow"
)

const schema = `
CREATE TABLE IF NOT EXISTS feedback (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	rating              TEXT NOT NULL,
	liked               TEXT NOT NULL,
	frustrated          TEXT NOT NULL,
	feature_request     TEXT NOT NULL,
	recommendation      TEXT NOT NULL,
	additional_comments TEXT NOT NULL DEFAULT '',
	created_at          TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS query_logs (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	log_id          TEXT NOT NULL UNIQUE,
	query           TEXT NOT NULL,
	response        TEXT NOT NULL,
	user_id         TEXT NOT NULL,
	session_id      TEXT NOT NULL,
	continuation_id TEXT NOT NULL DEFAULT '',
	created_at      TEXT NOT NULL
);
`

// Driver implements storage.Driver using SQLite.
type Driver struct {
	db *sql.DB
}

// NewDriver opens (and creates when missing) the database at dbPath.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewDriver(dbPath string) (*Driver, error) {
	// Open the database using the github.com/mattn/go-sqlite3 driver (registered as "sqlite3")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Driver{db: db}, nil
}

// AddFeedback inserts f.
func (d *Driver) AddFeedback(ctx context.Context, f *storage.Feedback) error {
	if f == nil {
		return errors.New("cannot store nil feedback")
	}

	_, err := d.db.ExecContext(ctx,
		`INSERT INTO feedback (rating, liked, frustrated, feature_request, recommendation, additional_comments, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.Rating, f.Liked, f.Frustrated, f.FeatureRequest, f.Recommendation, f.AdditionalComments,
		f.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting feedback: %w", err)
	}
	return nil
}

// AddQueryLog inserts l.
func (d *Driver) AddQueryLog(ctx context.Context, l *storage.QueryLog) error {
	if l == nil {
		return errors.New("cannot store nil query log")
	}

	_, err := d.db.ExecContext(ctx,
		`INSERT INTO query_logs (log_id, query, response, user_id, session_id, continuation_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.Query, l.Response, l.UserID, l.SessionID, l.ContinuationID,
		l.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting query log: %w", err)
	}
	return nil
}

// FeedbackCSV renders every feedback row in insertion order.
func (d *Driver) FeedbackCSV(ctx context.Context) (*storage.CSVExport, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT rating, liked, frustrated, feature_request, recommendation, additional_comments, created_at
		 FROM feedback ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying feedback: %w", err)
	}
	defer rows.Close()

	export := &storage.CSVExport{Headers: storage.FeedbackCSVHeaders, Rows: []string{}}
	for rows.Next() {
		var f storage.Feedback
		var created string
		if err := rows.Scan(&f.Rating, &f.Liked, &f.Frustrated, &f.FeatureRequest, &f.Recommendation, &f.AdditionalComments, &created); err != nil {
			return nil, fmt.Errorf("scanning feedback: %w", err)
		}
		if f.Timestamp, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parsing feedback timestamp: %w", err)
		}
		export.Rows = append(export.Rows, csvrow.Feedback(&f))
	}

	return export, rows.Err()
}

// QueryLogCSV renders every query log in insertion order.
func (d *Driver) QueryLogCSV(ctx context.Context) (*storage.CSVExport, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT log_id, query, response, user_id, session_id, continuation_id, created_at
		 FROM query_logs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying query logs: %w", err)
	}
	defer rows.Close()

	export := &storage.CSVExport{Headers: storage.QueryLogCSVHeaders, Rows: []string{}}
	for rows.Next() {
		var l storage.QueryLog
		var created string
		if err := rows.Scan(&l.ID, &l.Query, &l.Response, &l.UserID, &l.SessionID, &l.ContinuationID, &created); err != nil {
			return nil, fmt.Errorf("scanning query log: %w", err)
		}
		if l.Timestamp, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parsing query log timestamp: %w", err)
		}
		export.Rows = append(export.Rows, csvrow.QueryLog(&l))
	}

	return export, rows.Err()
}

// ClearQueryLogs deletes every query log.
func (d *Driver) ClearQueryLogs(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM query_logs`); err != nil {
		return fmt.Errorf("clearing query logs: %w", err)
	}
	return nil
}

// Close closes the database.
func (d *Driver) Close() error {
	return d.db.Close()
}
