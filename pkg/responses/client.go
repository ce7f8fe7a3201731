package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/ispoc/pkg/sse"
	"github.com/papercomputeco/ispoc/pkg/utils"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	responsesPath  = "/responses"

	// Upper bound of an error body kept on a TransportError.
	maxErrorBody = 64 * 1024
)

// Config configures a Client.
type Config struct {
	// BaseURL is the API root, e.g. "https://api.openai.com/v1" or the
	// ispoc proxy at "http://localhost:8080/v1".
	BaseURL string

	// APIKey is sent as a bearer token. Leave empty when talking to the
	// proxy, which injects its own key.
	APIKey string

	// Model, Instructions and VectorStoreID are copied into every request.
	// Empty values are omitted so a proxy in front may fill them.
	Model         string
	Instructions  string
	VectorStoreID string

	// Store asks the provider to retain responses so they can be continued.
	Store bool

	// Headers are added to every request, e.g. the proxy's user and session
	// tags.
	Headers http.Header

	// HTTPClient performs requests. Defaults to a client with a five minute
	// timeout.
	HTTPClient *http.Client

	Logger *zap.Logger
}

// Client runs turns against a Responses endpoint.
type Client struct {
	config      *Config
	endpoint    string
	httpClient  *http.Client
	interpreter *Interpreter
	logger      *zap.Logger
}

// NewClient creates a Client.
func NewClient(c *Config) (*Client, error) {
	if c == nil {
		return nil, fmt.Errorf("responses client config is required")
	}

	base := strings.TrimRight(c.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return nil, fmt.Errorf("invalid base URL %q: must start with http:// or https://", c.BaseURL)
	}

	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}

	return &Client{
		config:      c,
		endpoint:    base + responsesPath,
		httpClient:  httpClient,
		interpreter: NewInterpreter(logger),
		logger:      logger,
	}, nil
}

// Endpoint returns the URL turns are posted to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// RunTurn performs one exchange. With a non-nil onPartial the answer is
// streamed and onPartial sees every delta before RunTurn returns; otherwise a
// single JSON response is requested.
//
// Only transport failures (*TransportError) and unreadable non-streaming
// bodies (ErrBodyParse) are returned as errors. Provider errors reported
// inside the stream become part of the outcome text.
func (c *Client) RunTurn(ctx context.Context, req TurnRequest, onPartial PartialFunc) (*Outcome, error) {
	streaming := onPartial != nil

	turn := &Turn{
		Query:          utils.Truncate(req.Query, MaxQueryLength),
		PreviousTurnID: req.PreviousTurnID,
	}
	if turn.Query != req.Query {
		c.logger.Warn("query truncated",
			zap.Int("length", len([]rune(req.Query))),
			zap.Int("max", MaxQueryLength),
		)
	}

	payload, err := json.Marshal(c.buildRequest(turn, streaming))
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	for name, values := range c.config.Headers {
		for _, v := range values {
			httpReq.Header.Add(name, v)
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if streaming {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	c.logger.Debug("sending turn",
		zap.String("endpoint", c.endpoint),
		zap.Bool("stream", streaming),
		zap.Bool("continuation", turn.PreviousTurnID != ""),
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Error("upstream rejected turn",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, &TransportError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	if id := HeaderResponseID(resp.Header); turn.CaptureID(id) {
		c.logger.Debug("continuation id from headers", zap.String("response_id", id))
	}

	if streaming && !IsJSON(resp.Header) {
		return c.readStream(resp.Body, turn, onPartial), nil
	}
	return c.readBody(resp.Body, turn)
}

func (c *Client) buildRequest(turn *Turn, streaming bool) *Request {
	r := &Request{
		Model:              c.config.Model,
		Instructions:       c.config.Instructions,
		Input:              turn.Query,
		PreviousResponseID: turn.PreviousTurnID,
		Stream:             streaming,
		Store:              c.config.Store,
	}
	if c.config.VectorStoreID != "" {
		r.Tools = []Tool{FileSearchTool(c.config.VectorStoreID)}
	}
	return r
}

func (c *Client) readStream(body io.Reader, turn *Turn, onPartial PartialFunc) *Outcome {
	return Drive(sse.NewReader(body), turn, c.interpreter, onPartial, c.logger)
}

func (c *Client) readBody(body io.Reader, turn *Turn) (*Outcome, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBodyParse, err)
	}

	parsed, err := ParseBody(raw)
	if err != nil {
		return nil, err
	}

	if turn.CaptureID(parsed.ID) {
		c.logger.Debug("continuation id from body", zap.String("response_id", parsed.ID))
	}
	if parsed.Text == "" {
		c.logger.Warn("response contained no text content")
	}

	return &Outcome{
		Query:          turn.Query,
		Text:           parsed.Text,
		ContinuationID: turn.ContinuationID,
		State:          StateCompleted,
	}, nil
}

// HeaderResponseID returns the continuation id a provider put in response
// headers, if any.
func HeaderResponseID(h http.Header) string {
	if id := h.Get(headerResponseIDKey); id != "" {
		return id
	}
	return h.Get(headerAltResponseIDKey)
}

// IsJSON reports whether h declares an application/json body.
func IsJSON(h http.Header) bool {
	mediaType, _, err := mime.ParseMediaType(h.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}
