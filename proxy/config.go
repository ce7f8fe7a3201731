package proxy

import "github.com/papercomputeco/ispoc/pkg/eventstream"

// InstructionsSource supplies the system prompt injected into requests that
// carry none. *prompt.Loader satisfies it.
type InstructionsSource interface {
	Instructions() string
}

// Config is the proxy server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// UpstreamURL is the upstream API root (e.g., "https://api.openai.com").
	// The client's request path is appended to it.
	UpstreamURL string

	// APIKey is the server-held upstream credential. When set it replaces
	// whatever Authorization header the client sent.
	APIKey string

	// Model fills requests that do not name one.
	Model string

	// Instructions fills requests that carry no instructions. Optional.
	Instructions InstructionsSource

	// VectorStoreID adds a file_search tool to requests without tools.
	VectorStoreID string

	// Publisher announces logged turns. Optional.
	Publisher eventstream.Publisher

	// NumWorkers and QueueSize size the persistence worker pool.
	NumWorkers uint
	QueueSize  uint
}
