package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent ispoc configuration stored as config.toml
// in the .ispoc/ directory. The TOML layout uses sections for logical grouping.
// Secrets (API keys, the admin token) are never part of it; they come from the
// environment.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	Proxy       ProxyConfig       `toml:"proxy"`
	API         APIConfig         `toml:"api"`
	Client      ClientConfig      `toml:"client"`
	Worker      WorkerConfig      `toml:"worker"`
	EventStream EventStreamConfig `toml:"eventstream"`
}

// StorageConfig selects and configures the audit log backend used by the API
// server and the proxy.
type StorageConfig struct {
	// Driver is one of "sqlite", "redis" or "memory".
	Driver      string `toml:"driver,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	RedisURL    string `toml:"redis_url,omitempty"`
	RedisPrefix string `toml:"redis_prefix,omitempty"`
}

// ProxyConfig holds proxy-specific settings. Model, instructions and vector
// store are filled into client requests that leave them out.
type ProxyConfig struct {
	Upstream         string `toml:"upstream,omitempty"`
	Listen           string `toml:"listen,omitempty"`
	Model            string `toml:"model,omitempty"`
	InstructionsPath string `toml:"instructions_path,omitempty"`
	VectorStoreID    string `toml:"vector_store_id,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen      string `toml:"listen,omitempty"`
	CORSOrigins string `toml:"cors_origins,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to the running
// proxy and API servers (e.g. ispoc chat, ispoc admin logs).
// Values are full URLs (scheme + host + port).
type ClientConfig struct {
	ProxyTarget string `toml:"proxy_target,omitempty"`
	APITarget   string `toml:"api_target,omitempty"`
}

// WorkerConfig sizes the background persistence pool.
type WorkerConfig struct {
	Workers   uint `toml:"workers,omitempty"`
	QueueSize uint `toml:"queue_size,omitempty"`
}

// EventStreamConfig configures where turn-logged events are published.
type EventStreamConfig struct {
	// Provider is "nop" or "kafka".
	Provider string `toml:"provider,omitempty"`

	// Brokers is a comma separated list of host:port pairs.
	Brokers string `toml:"brokers,omitempty"`
	Topic   string `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.driver": {
		get: func(c *Config) string { return c.Storage.Driver },
		set: func(c *Config, v string) error {
			switch v {
			case StorageDriverSQLite, StorageDriverRedis, StorageDriverMemory:
				c.Storage.Driver = v
				return nil
			default:
				return fmt.Errorf("invalid value for storage.driver: %q (available: sqlite, redis, memory)", v)
			}
		},
	},
	"storage.sqlite_path":     stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.redis_url":       stringKey(func(c *Config) *string { return &c.Storage.RedisURL }),
	"storage.redis_prefix":    stringKey(func(c *Config) *string { return &c.Storage.RedisPrefix }),
	"proxy.upstream":          stringKey(func(c *Config) *string { return &c.Proxy.Upstream }),
	"proxy.listen":            stringKey(func(c *Config) *string { return &c.Proxy.Listen }),
	"proxy.model":             stringKey(func(c *Config) *string { return &c.Proxy.Model }),
	"proxy.instructions_path": stringKey(func(c *Config) *string { return &c.Proxy.InstructionsPath }),
	"proxy.vector_store_id":   stringKey(func(c *Config) *string { return &c.Proxy.VectorStoreID }),
	"api.listen":              stringKey(func(c *Config) *string { return &c.API.Listen }),
	"api.cors_origins":        stringKey(func(c *Config) *string { return &c.API.CORSOrigins }),
	"client.proxy_target":     stringKey(func(c *Config) *string { return &c.Client.ProxyTarget }),
	"client.api_target":       stringKey(func(c *Config) *string { return &c.Client.APITarget }),
	"worker.workers":          uintKey("worker.workers", func(c *Config) *uint { return &c.Worker.Workers }),
	"worker.queue_size":       uintKey("worker.queue_size", func(c *Config) *uint { return &c.Worker.QueueSize }),
	"eventstream.provider": {
		get: func(c *Config) string { return c.EventStream.Provider },
		set: func(c *Config, v string) error {
			switch v {
			case EventStreamNop, EventStreamKafka:
				c.EventStream.Provider = v
				return nil
			default:
				return fmt.Errorf("invalid value for eventstream.provider: %q (available: nop, kafka)", v)
			}
		},
	},
	"eventstream.brokers": stringKey(func(c *Config) *string { return &c.EventStream.Brokers }),
	"eventstream.topic":   stringKey(func(c *Config) *string { return &c.EventStream.Topic }),
}
