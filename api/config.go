// Package api provides the HTTP API used by the chat client and the admin
// console: feedback and query-log submission plus CSV exports.
package api

import "github.com/papercomputeco/ispoc/pkg/eventstream"

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// AdminToken is the bearer token required by /api/admin routes. When
	// empty every admin request is rejected.
	AdminToken string

	// CORSOrigins is a comma separated list of allowed origins, "*" for any.
	CORSOrigins string

	// Publisher announces logged turns. Optional.
	Publisher eventstream.Publisher
}
