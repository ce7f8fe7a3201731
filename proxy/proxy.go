// Package proxy provides a Responses API proxy that holds the provider
// credential, fills in the assistant's model, instructions and file search
// tool, and records every answered turn in the audit log.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"go.uber.org/zap"

	"github.com/papercomputeco/ispoc/pkg/eventstream"
	"github.com/papercomputeco/ispoc/pkg/responses"
	"github.com/papercomputeco/ispoc/pkg/sse"
	"github.com/papercomputeco/ispoc/pkg/storage"
	"github.com/papercomputeco/ispoc/proxy/header"
	"github.com/papercomputeco/ispoc/proxy/worker"
)

const (
	responsesPathSuffix = "/responses"
	component           = "proxy"

	// maxErrorBody caps how much of an upstream error answer is relayed.
	maxErrorBody = 64 * 1024
)

type errorResponse struct {
	Error string `json:"error"`
}

// Proxy forwards requests to the upstream Responses API.
// The proxy is transparent: the client receives the upstream bytes unchanged
// while answered turns are enqueued for async storage via its worker pool.
type Proxy struct {
	config        Config
	workerPool    *worker.Pool
	interpreter   *responses.Interpreter
	logger        *zap.Logger
	httpClient    *http.Client
	server        *fiber.App
	headerHandler *header.Handler
}

// New creates a new Proxy.
// The driver is injected to handle async persistence of query logs.
func New(config Config, driver storage.Driver, logger *zap.Logger) (*Proxy, error) {
	if config.UpstreamURL == "" {
		return nil, errors.New("upstream URL is required")
	}
	config.UpstreamURL = strings.TrimRight(config.UpstreamURL, "/")

	if logger == nil {
		logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		StreamRequestBody:     true,
	})

	app.Use(compress.New())

	wp, err := worker.NewPool(&worker.Config{
		Driver:     driver,
		Publisher:  config.Publisher,
		NumWorkers: config.NumWorkers,
		QueueSize:  config.QueueSize,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create worker pool: %w", err)
	}

	p := &Proxy{
		config:        config,
		workerPool:    wp,
		interpreter:   responses.NewInterpreter(logger),
		logger:        logger,
		server:        app,
		headerHandler: header.NewHandler(config.APIKey),
		httpClient: &http.Client{
			// File search answers can take a while.
			Timeout: 5 * time.Minute,
		},
	}

	// Register transparent proxy route - forwards any path to upstream
	app.All("/*", p.handleProxy)

	return p, nil
}

// Run starts the proxy server on the given listening address
func (p *Proxy) Run() error {
	p.logger.Info("starting proxy server",
		zap.String("listen", p.config.ListenAddr),
		zap.String("upstream", p.config.UpstreamURL),
	)

	return p.server.Listen(p.config.ListenAddr)
}

// RunWithListener starts the proxy server using the provided listener.
func (p *Proxy) RunWithListener(listener net.Listener) error {
	p.logger.Info("starting proxy server",
		zap.String("listen", listener.Addr().String()),
		zap.String("upstream", p.config.UpstreamURL),
	)

	return p.server.Listener(listener)
}

// Close gracefully shuts down the proxy and waits for the worker pool to drain
func (p *Proxy) Close() error {
	err := p.server.Shutdown()
	p.workerPool.Close()
	return err
}

// turnContext carries what the proxy learned about a turn from the client
// request.
type turnContext struct {
	query     string
	userID    string
	sessionID string
	model     string
	startTime time.Time
}

func (p *Proxy) handleProxy(c *fiber.Ctx) error {
	method := c.Method()
	path := c.Path()
	body := c.Body()

	isTurn := method == fiber.MethodPost && strings.HasSuffix(path, responsesPathSuffix) && len(body) > 0

	var (
		streaming bool
		turn      *turnContext
	)
	if isTurn {
		enriched, req, err := p.enrichRequest(body)
		if err != nil {
			p.logger.Warn("forwarding unparseable responses request as-is", zap.Error(err))
		} else {
			body = enriched
			streaming, _ = req["stream"].(bool)
			userID, sessionID := header.TurnTags(c)
			model, _ := req["model"].(string)
			turn = &turnContext{
				query:     extractQuery(req["input"]),
				userID:    userID,
				sessionID: sessionID,
				model:     model,
				startTime: time.Now(),
			}
			p.logger.Debug("proxying turn",
				zap.String("model", model),
				zap.Bool("stream", streaming),
				zap.Bool("continuation", req["previous_response_id"] != nil),
			)
		}
	}

	upstreamURL := p.config.UpstreamURL + path
	if q := c.Request().URI().QueryString(); len(q) > 0 {
		upstreamURL += "?" + string(q)
	}

	if streaming {
		return p.handleStreamingProxy(c, upstreamURL, body, turn)
	}
	return p.handleNonStreamingProxy(c, method, upstreamURL, body, turn)
}

// enrichRequest fills model, instructions and the file_search tool when the
// client left them out.
func (p *Proxy) enrichRequest(body []byte) ([]byte, map[string]any, error) {
	var req map[string]any
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, nil, err
	}
	if req == nil {
		return nil, nil, errors.New("request body is not a JSON object")
	}

	if isBlank(req["model"]) && p.config.Model != "" {
		req["model"] = p.config.Model
	}
	if isBlank(req["instructions"]) && p.config.Instructions != nil {
		if text := p.config.Instructions.Instructions(); text != "" {
			req["instructions"] = text
		}
	}
	if _, ok := req["tools"]; !ok && p.config.VectorStoreID != "" {
		req["tools"] = []responses.Tool{responses.FileSearchTool(p.config.VectorStoreID)}
	}

	enriched, err := json.Marshal(req)
	if err != nil {
		return nil, nil, err
	}
	return enriched, req, nil
}

func (p *Proxy) newUpstreamRequest(ctx context.Context, c *fiber.Ctx, method, url string, body []byte) (*http.Request, error) {
	var reqBody io.Reader
	if len(body) > 0 {
		reqBody = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, err
	}
	p.headerHandler.SetUpstreamRequestHeaders(c, httpReq)
	return httpReq, nil
}

func (p *Proxy) handleNonStreamingProxy(c *fiber.Ctx, method, upstreamURL string, body []byte, turn *turnContext) error {
	httpReq, err := p.newUpstreamRequest(c.Context(), c, method, upstreamURL, body)
	if err != nil {
		p.logger.Error("failed to create upstream request", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: "internal error"})
	}

	p.logger.Debug("forwarding request to upstream",
		zap.String("method", method),
		zap.String("url", upstreamURL),
	)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.logger.Error("upstream request failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(errorResponse{Error: "upstream request failed"})
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		p.logger.Error("failed to read upstream response", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(errorResponse{Error: "failed to read upstream response"})
	}

	p.headerHandler.SetClientResponseHeaders(c, httpResp)

	if turn != nil && httpResp.StatusCode == http.StatusOK {
		parsed, err := responses.ParseBody(respBody)
		if err != nil {
			p.logger.Warn("failed to parse response", zap.Error(err))
		} else {
			id := parsed.ID
			if id == "" {
				id = responses.HeaderResponseID(httpResp.Header)
			}
			p.enqueueTurn(turn, parsed.Text, id)
		}
	}

	return c.Status(httpResp.StatusCode).Send(respBody)
}

func (p *Proxy) handleStreamingProxy(c *fiber.Ctx, upstreamURL string, body []byte, turn *turnContext) error {
	// fasthttp recycles its RequestCtx after the handler returns, but the
	// stream is consumed in a separate goroutine.
	httpReq, err := p.newUpstreamRequest(context.Background(), c, http.MethodPost, upstreamURL, body)
	if err != nil {
		p.logger.Error("failed to create upstream request", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: "internal error"})
	}

	p.logger.Debug("forwarding streaming request to upstream", zap.String("url", upstreamURL))

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.logger.Error("upstream request failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(errorResponse{Error: "upstream request failed"})
	}
	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBody))
		httpResp.Body.Close()
		p.logger.Error("upstream returned error",
			zap.Int("status", httpResp.StatusCode),
			zap.String("body", string(respBody)),
		)
		p.headerHandler.SetClientResponseHeaders(c, httpResp)
		return c.Status(httpResp.StatusCode).Send(respBody)
	}

	p.headerHandler.SetClientResponseHeaders(c, httpResp)

	// pw.Write blocks until fasthttp's chunked body writer consumes the data
	// and flushes it, so every upstream chunk reaches the client as it arrives.
	pr, pw := io.Pipe()
	go p.pipeResponse(httpResp, pw, turn)

	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// pipeResponse copies the upstream body to pw verbatim while reassembling
// the answer from the SSE frames it carries.
func (p *Proxy) pipeResponse(httpResp *http.Response, pw *io.PipeWriter, turn *turnContext) {
	defer httpResp.Body.Close()
	defer pw.Close()

	if responses.IsJSON(httpResp.Header) {
		raw, err := io.ReadAll(io.TeeReader(httpResp.Body, pw))
		if err != nil {
			p.logger.Error("error relaying JSON response", zap.Error(err))
			return
		}
		if parsed, err := responses.ParseBody(raw); err == nil {
			p.enqueueTurn(turn, parsed.Text, parsed.ID)
		}
		return
	}

	t := &responses.Turn{Query: turn.query}
	t.CaptureID(responses.HeaderResponseID(httpResp.Header))

	tr := sse.NewTeeReader(httpResp.Body, pw)
	out := responses.Drive(tr, t, p.interpreter, nil, p.logger)

	// Frames after the terminal event still belong to the client.
	if _, err := io.Copy(pw, httpResp.Body); err != nil {
		p.logger.Debug("stream tail not forwarded", zap.Error(err))
	}

	if out.State != responses.StateCompleted {
		p.logger.Warn("stream ended without a completed answer, turn not logged",
			zap.Stringer("state", out.State),
			zap.Duration("duration", time.Since(turn.startTime)),
		)
		return
	}

	p.logger.Debug("streaming complete",
		zap.Int("length", len(out.Text)),
		zap.Duration("duration", time.Since(turn.startTime)),
	)
	p.enqueueTurn(turn, out.Text, out.ContinuationID)
}

func (p *Proxy) enqueueTurn(turn *turnContext, text, continuationID string) {
	if turn == nil || turn.query == "" || text == "" {
		return
	}

	p.workerPool.Enqueue(worker.Job{
		Kind: worker.JobQueryLog,
		QueryLog: &storage.QueryLog{
			Query:          turn.query,
			Response:       text,
			UserID:         turn.userID,
			SessionID:      turn.sessionID,
			ContinuationID: continuationID,
		},
		Source: eventstream.EventSource{Component: component, Model: turn.model},
	})
}

func isBlank(v any) bool {
	s, ok := v.(string)
	return v == nil || (ok && strings.TrimSpace(s) == "")
}

// extractQuery returns the user's text from a Responses input, which is either
// a plain string or a list of messages. For a list the last user message wins.
func extractQuery(input any) string {
	switch in := input.(type) {
	case string:
		return in
	case []any:
		for i := len(in) - 1; i >= 0; i-- {
			msg, ok := in[i].(map[string]any)
			if !ok || msg["role"] != "user" {
				continue
			}
			if text := messageText(msg["content"]); text != "" {
				return text
			}
		}
	}
	return ""
}

func messageText(content any) string {
	switch c := content.(type) {
	case string:
		return c
	case []any:
		var parts []string
		for _, part := range c {
			block, ok := part.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := block["text"].(string); ok && text != "" {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, "\n")
	}
	return ""
}
