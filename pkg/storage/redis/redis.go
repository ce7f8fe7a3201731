// Package redis provides a storage.Driver on a Redis server, the managed
// key-value store used by hosted deployments.
//
// Layout, relative to the configured key prefix:
//
//	feedbacks               list of JSON feedback, newest first (LPUSH)
//	feedback_csv_rows       list of CSV lines, oldest first (RPUSH)
//	feedback_csv_headers    CSV header line
//	query_logs              list of JSON query logs, newest first (LPUSH)
//	query_log_csv_rows      list of CSV lines, oldest first (RPUSH)
//	query_log_csv_headers   CSV header line
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/papercomputeco/ispoc/pkg/storage"
	"github.com/papercomputeco/ispoc/pkg/storage/csvrow"
)

const (
	keyFeedbacks          = "feedbacks"
	keyFeedbackRows       = "feedback_csv_rows"
	keyFeedbackHeaders    = "feedback_csv_headers"
	keyQueryLogs          = "query_logs"
	keyQueryLogRows       = "query_log_csv_rows"
	keyQueryLogCSVHeaders = "query_log_csv_headers"

	pingTimeout = 5 * time.Second
)

// Config configures a Driver.
type Config struct {
	// URL is a redis:// or rediss:// URL.
	URL string

	// Prefix is prepended to every key.
	Prefix string

	PoolSize int
}

// Driver implements storage.Driver on Redis lists.
type Driver struct {
	client *goredis.Client
	prefix string
	logger *zap.Logger
}

// NewDriver connects to Redis and verifies the connection.
func NewDriver(ctx context.Context, c Config, logger *zap.Logger) (*Driver, error) {
	opts, err := goredis.ParseURL(c.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	if c.PoolSize > 0 {
		opts.PoolSize = c.PoolSize
	}

	client := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewDriverWithClient(client, c.Prefix, logger), nil
}

// NewDriverWithClient wraps an existing client. The driver takes ownership
// and closes it on Close.
func NewDriverWithClient(client *goredis.Client, prefix string, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{client: client, prefix: prefix, logger: logger}
}

func (d *Driver) key(name string) string {
	return d.prefix + name
}

// AddFeedback stores f as JSON and as a CSV line in one transaction.
func (d *Driver) AddFeedback(ctx context.Context, f *storage.Feedback) error {
	if f == nil {
		return errors.New("cannot store nil feedback")
	}

	entry, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encoding feedback: %w", err)
	}

	_, err = d.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.LPush(ctx, d.key(keyFeedbacks), entry)
		pipe.RPush(ctx, d.key(keyFeedbackRows), csvrow.Feedback(f))
		pipe.Set(ctx, d.key(keyFeedbackHeaders), storage.FeedbackCSVHeaders, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("storing feedback: %w", err)
	}
	return nil
}

// AddQueryLog stores l as JSON and as a CSV line in one transaction.
func (d *Driver) AddQueryLog(ctx context.Context, l *storage.QueryLog) error {
	if l == nil {
		return errors.New("cannot store nil query log")
	}

	entry, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("encoding query log: %w", err)
	}

	_, err = d.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.LPush(ctx, d.key(keyQueryLogs), entry)
		pipe.RPush(ctx, d.key(keyQueryLogRows), csvrow.QueryLog(l))
		pipe.Set(ctx, d.key(keyQueryLogCSVHeaders), storage.QueryLogCSVHeaders, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("storing query log: %w", err)
	}
	return nil
}

// FeedbackCSV reads the feedback export.
func (d *Driver) FeedbackCSV(ctx context.Context) (*storage.CSVExport, error) {
	return d.export(ctx, keyFeedbackHeaders, keyFeedbackRows, storage.FeedbackCSVHeaders)
}

// QueryLogCSV reads the query log export.
func (d *Driver) QueryLogCSV(ctx context.Context) (*storage.CSVExport, error) {
	return d.export(ctx, keyQueryLogCSVHeaders, keyQueryLogRows, storage.QueryLogCSVHeaders)
}

func (d *Driver) export(ctx context.Context, headersKey, rowsKey, defaultHeaders string) (*storage.CSVExport, error) {
	headers, err := d.client.Get(ctx, d.key(headersKey)).Result()
	switch {
	case errors.Is(err, goredis.Nil):
		headers = defaultHeaders
	case err != nil:
		return nil, fmt.Errorf("reading %s: %w", headersKey, err)
	}

	rows, err := d.client.LRange(ctx, d.key(rowsKey), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rowsKey, err)
	}

	d.logger.Debug("read csv export", zap.String("key", rowsKey), zap.Int("rows", len(rows)))

	return &storage.CSVExport{Headers: headers, Rows: rows}, nil
}

// ClearQueryLogs deletes the query log keys.
func (d *Driver) ClearQueryLogs(ctx context.Context) error {
	err := d.client.Del(ctx,
		d.key(keyQueryLogRows),
		d.key(keyQueryLogs),
		d.key(keyQueryLogCSVHeaders),
	).Err()
	if err != nil {
		return fmt.Errorf("clearing query logs: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (d *Driver) Close() error {
	return d.client.Close()
}
