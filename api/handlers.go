package api

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/ispoc/pkg/eventstream"
	"github.com/papercomputeco/ispoc/pkg/storage"
	"github.com/papercomputeco/ispoc/proxy/worker"
)

const (
	bearerPrefix = "Bearer "
	component    = "api"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse is the body of a successful submission.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func errorJSON(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(ErrorResponse{Error: msg})
}

func successJSON(c *fiber.Ctx, msg string) error {
	return c.JSON(SuccessResponse{Success: true, Message: msg})
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

func (s *Server) handleTest(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": "API server is running correctly"})
}

func handleMethodNotAllowed(c *fiber.Ctx) error {
	return errorJSON(c, fiber.StatusMethodNotAllowed, "Method not allowed")
}

// decodeForm reads a flat JSON object. A non-empty problem is the client
// error to report.
func decodeForm(body []byte) (form map[string]any, problem string) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, "Request body is empty"
	}
	if err := json.Unmarshal(body, &form); err != nil {
		return nil, "Invalid request body"
	}
	if len(form) == 0 {
		return nil, "Request body is empty"
	}
	return form, ""
}

// formString renders a scalar form value; survey widgets send ratings as
// numbers.
func formString(form map[string]any, key string) string {
	switch v := form[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func (s *Server) handleFeedback(c *fiber.Ctx) error {
	form, problem := decodeForm(c.Body())
	if problem != "" {
		return errorJSON(c, fiber.StatusBadRequest, problem)
	}

	f := &storage.Feedback{
		Rating:             formString(form, "q1"),
		Liked:              formString(form, "q2"),
		Frustrated:         formString(form, "q3"),
		FeatureRequest:     formString(form, "q4"),
		Recommendation:     formString(form, "q5"),
		AdditionalComments: formString(form, "q6"),
	}
	if err := f.Validate(); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "All feedback fields are required")
	}
	f.Normalize(time.Now())

	if err := s.driver.AddFeedback(c.Context(), f); err != nil {
		s.logger.Error("failed to store feedback", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to log feedback")
	}

	s.logger.Info("feedback logged", zap.String("rating", f.Rating))
	return successJSON(c, "Feedback logged successfully")
}

func (s *Server) handleQueryLog(c *fiber.Ctx) error {
	form, problem := decodeForm(c.Body())
	if problem != "" {
		return errorJSON(c, fiber.StatusBadRequest, problem)
	}

	l := &storage.QueryLog{
		Query:          formString(form, "query"),
		Response:       formString(form, "response"),
		UserID:         formString(form, "userId"),
		SessionID:      formString(form, "sessionId"),
		ContinuationID: formString(form, "continuationId"),
	}
	if err := l.Validate(); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Query and response are required")
	}
	l.Normalize(time.Now())

	if err := s.driver.AddQueryLog(c.Context(), l); err != nil {
		s.logger.Error("failed to store query log", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to log query")
	}

	s.workerPool.Enqueue(worker.Job{
		Kind:     worker.JobPublishTurn,
		QueryLog: l,
		Source:   eventstream.EventSource{Component: component},
	})

	s.logger.Info("query logged",
		zap.String("id", l.ID),
		zap.String("session_id", l.SessionID),
	)
	return successJSON(c, "Query logged successfully")
}

// requireAdmin checks the bearer token before an admin handler runs.
func (s *Server) requireAdmin(c *fiber.Ctx) error {
	auth := c.Get(fiber.HeaderAuthorization)
	if !strings.HasPrefix(auth, bearerPrefix) {
		return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	token := strings.TrimPrefix(auth, bearerPrefix)
	if s.config.AdminToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.config.AdminToken)) != 1 {
		s.logger.Warn("rejected admin request", zap.String("path", c.Path()))
		return errorJSON(c, fiber.StatusUnauthorized, "Invalid credentials")
	}

	return c.Next()
}

func (s *Server) handleAdminFeedback(c *fiber.Ctx) error {
	export, err := s.driver.FeedbackCSV(c.Context())
	if err != nil {
		s.logger.Error("failed to read feedback export", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to retrieve feedback data")
	}

	s.logger.Debug("served feedback export", zap.Int("rows", len(export.Rows)))
	return c.JSON(nonNilRows(export))
}

func (s *Server) handleAdminLogs(c *fiber.Ctx) error {
	export, err := s.driver.QueryLogCSV(c.Context())
	if err != nil {
		s.logger.Error("failed to read query log export", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to retrieve query log data")
	}

	s.logger.Debug("served query log export", zap.Int("rows", len(export.Rows)))
	return c.JSON(nonNilRows(export))
}

func (s *Server) handleClearQueryLogs(c *fiber.Ctx) error {
	if err := s.driver.ClearQueryLogs(c.Context()); err != nil {
		s.logger.Error("failed to clear query logs", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to clear query logs")
	}

	s.logger.Info("query logs cleared")
	return successJSON(c, "Query logs cleared")
}

// nonNilRows makes an empty export encode rows as [] rather than null.
func nonNilRows(export *storage.CSVExport) *storage.CSVExport {
	if export.Rows == nil {
		export.Rows = []string{}
	}
	return export
}
