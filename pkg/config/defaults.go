package config

// Storage drivers.
const (
	StorageDriverSQLite = "sqlite"
	StorageDriverRedis  = "redis"
	StorageDriverMemory = "memory"
)

// Event stream providers.
const (
	EventStreamNop   = "nop"
	EventStreamKafka = "kafka"
)

const (
	defaultStorageDriver = StorageDriverSQLite
	defaultRedisPrefix   = "ispoc:"

	defaultUpstream    = "https://api.openai.com"
	defaultProxyListen = ":8080"
	defaultModel       = "gpt-4.1-mini"

	defaultAPIListen   = ":8081"
	defaultCORSOrigins = "*"

	defaultClientProxyTarget = "http://localhost:8080"
	defaultClientAPITarget   = "http://localhost:8081"

	defaultWorkers   = 3
	defaultQueueSize = 256

	defaultEventStreamProvider = EventStreamNop
	defaultEventStreamTopic    = "ispoc.turns"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Driver:      defaultStorageDriver,
			RedisPrefix: defaultRedisPrefix,
		},
		Proxy: ProxyConfig{
			Upstream: defaultUpstream,
			Listen:   defaultProxyListen,
			Model:    defaultModel,
		},
		API: APIConfig{
			Listen:      defaultAPIListen,
			CORSOrigins: defaultCORSOrigins,
		},
		Client: ClientConfig{
			ProxyTarget: defaultClientProxyTarget,
			APITarget:   defaultClientAPITarget,
		},
		Worker: WorkerConfig{
			Workers:   defaultWorkers,
			QueueSize: defaultQueueSize,
		},
		EventStream: EventStreamConfig{
			Provider: defaultEventStreamProvider,
			Topic:    defaultEventStreamTopic,
		},
	}
}
