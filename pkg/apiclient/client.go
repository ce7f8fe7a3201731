// Package apiclient talks to the ispoc API server: it submits feedback and
// query logs and fetches the admin CSV exports.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/papercomputeco/ispoc/pkg/storage"
)

const (
	defaultTimeout = 30 * time.Second
	defaultTries   = 4

	// Upper bound of an error body read from the server.
	maxErrorBody = 4096
)

// StatusError is a non-success answer from the API server.
type StatusError struct {
	StatusCode int
	Status     string

	// Message is the server's "error" field, when it sent one.
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api server responded with %s: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api server responded with %s", e.Status)
}

// IsUnauthorized reports whether err is an admin credential rejection.
func IsUnauthorized(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusUnauthorized
}

// Config configures a Client.
type Config struct {
	// BaseURL is the API server root, e.g. "http://localhost:8081".
	BaseURL string

	// AdminToken is sent as a bearer token on admin routes.
	AdminToken string

	// MaxTries bounds the attempts of LogQuery. Defaults to 4.
	MaxTries uint

	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client is an API server client.
type Client struct {
	baseURL    string
	adminToken string
	maxTries   uint
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a Client.
func New(c Config) (*Client, error) {
	base := strings.TrimRight(c.BaseURL, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return nil, fmt.Errorf("invalid API target %q: must start with http:// or https://", c.BaseURL)
	}

	client := &Client{
		baseURL:    base,
		adminToken: c.AdminToken,
		maxTries:   c.MaxTries,
		httpClient: c.HTTPClient,
		logger:     c.Logger,
	}
	if client.maxTries == 0 {
		client.maxTries = defaultTries
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if client.logger == nil {
		client.logger = zap.NewNop()
	}
	return client, nil
}

// SubmitFeedback posts one survey submission.
func (c *Client) SubmitFeedback(ctx context.Context, f *storage.Feedback) error {
	return c.do(ctx, http.MethodPost, "/api/feedback", false, f, nil)
}

// LogQuery posts the audit record of one turn. Network failures and server
// errors are retried with exponential backoff; rejected records are not.
func (c *Client) LogQuery(ctx context.Context, l *storage.QueryLog) error {
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = 200 * time.Millisecond
	retry.MaxInterval = 2 * time.Second

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := c.do(ctx, http.MethodPost, "/api/log", false, l, nil)

		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode < http.StatusInternalServerError {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(retry),
		backoff.WithMaxTries(c.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Debug("retrying query log",
				zap.Error(err),
				zap.Duration("next_retry", next),
			)
		}),
	)
	return err
}

// FeedbackCSV fetches the feedback export.
func (c *Client) FeedbackCSV(ctx context.Context) (*storage.CSVExport, error) {
	export := &storage.CSVExport{}
	if err := c.do(ctx, http.MethodGet, "/api/admin/feedback", true, nil, export); err != nil {
		return nil, err
	}
	return export, nil
}

// QueryLogCSV fetches the query log export.
func (c *Client) QueryLogCSV(ctx context.Context) (*storage.CSVExport, error) {
	export := &storage.CSVExport{}
	if err := c.do(ctx, http.MethodGet, "/api/admin/logs", true, nil, export); err != nil {
		return nil, err
	}
	return export, nil
}

// ClearQueryLogs deletes every query log on the server.
func (c *Client) ClearQueryLogs(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/admin/clear-logs", true, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, admin bool, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if admin {
		req.Header.Set("Authorization", "Bearer "+c.adminToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request to api server: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("api request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}

		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &payload) == nil {
			statusErr.Message = payload.Error
		}
		return statusErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// BaseURL returns the API server root requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}
