// Package header provides header filtering for the ispoc proxy.
//
// This proxy sits between the chat client and the Responses API like so:
//
//	Client <--> Proxy <--> Upstream Responses API
//
// and headers are handled accordingly as each leg negotiates compression, hops,
// encoding, etc. independently. The proxy also owns the upstream credential.
package header

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	// UserIDHeader optionally tags the logged turn with a user.
	UserIDHeader = "X-Ispoc-User-Id"

	// SessionIDHeader optionally tags the logged turn with a chat session.
	SessionIDHeader = "X-Ispoc-Session-Id"

	authorizationHeader = "Authorization"
)

// Handler manages headers between proxy connections.
type Handler struct {
	apiKey string
}

// NewHandler creates a new header Handler. A non-empty apiKey replaces any
// Authorization header the client sent.
func NewHandler(apiKey string) *Handler {
	return &Handler{apiKey: apiKey}
}

// skipRequest is the set of request headers (client --> proxy --> upstream)
// that are not forwarded to the upstream API.
var skipRequest = map[string]struct{}{
	// Hop-by-hop headers: only meaningful for a single transport-level connection.
	"Connection": {},

	// Rewritten by http.Transport to match the upstream URL.
	"Host": {},

	// Stripped so http.Transport negotiates gzip itself and transparently
	// decompresses the upstream response.
	"Accept-Encoding": {},

	// The body may be rewritten, so the client's length is stale.
	"Content-Length": {},

	// Turn tagging headers are consumed by the proxy.
	UserIDHeader:    {},
	SessionIDHeader: {},
}

// skipResponse is the set of upstream response headers (client <-- proxy <-- upstream)
// that are not copied back to the downstream client.
var skipResponse = map[string]struct{}{
	"Connection": {},

	// fasthttp manages chunked transfer encoding for the client leg.
	"Transfer-Encoding": {},

	// The body has already been decompressed by http.Transport.
	"Content-Encoding": {},

	// Fiber computes the final length after optional re-compression.
	"Content-Length": {},
}

// SetUpstreamRequestHeaders copies request headers from the Fiber context to
// the outgoing http.Request, filtering headers that the proxy should not forward
// to the upstream API and injecting the server-held credential.
func (h *Handler) SetUpstreamRequestHeaders(c *fiber.Ctx, req *http.Request) {
	c.Request().Header.VisitAll(func(key, value []byte) {
		k := string(key)
		if _, skip := skipRequest[k]; skip {
			return
		}
		if h.apiKey != "" && k == authorizationHeader {
			return
		}
		req.Header.Set(k, string(value))
	})

	if h.apiKey != "" {
		req.Header.Set(authorizationHeader, "Bearer "+h.apiKey)
	}
}

// SetClientResponseHeaders copies response headers from the upstream API
// http.Response to the Fiber context, filtering headers that the proxy should
// not forward back down to the client.
func (h *Handler) SetClientResponseHeaders(c *fiber.Ctx, resp *http.Response) {
	for k, v := range resp.Header {
		if _, skip := skipResponse[k]; !skip {
			c.Set(k, strings.Join(v, ", "))
		}
	}
}

// TurnTags reads the optional user and session tags from the request.
func TurnTags(c *fiber.Ctx) (userID, sessionID string) {
	return strings.TrimSpace(c.Get(UserIDHeader)), strings.TrimSpace(c.Get(SessionIDHeader))
}
