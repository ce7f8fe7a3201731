package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/ispoc/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the ISPOC_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (ISPOC_PROXY_LISTEN, ISPOC_STORAGE_DRIVER, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: ISPOC_PROXY_LISTEN, ISPOC_STORAGE_REDIS_URL, etc.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Storage
	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.redis_url", d.Storage.RedisURL)
	v.SetDefault("storage.redis_prefix", d.Storage.RedisPrefix)

	// Proxy
	v.SetDefault("proxy.upstream", d.Proxy.Upstream)
	v.SetDefault("proxy.listen", d.Proxy.Listen)
	v.SetDefault("proxy.model", d.Proxy.Model)
	v.SetDefault("proxy.instructions_path", d.Proxy.InstructionsPath)
	v.SetDefault("proxy.vector_store_id", d.Proxy.VectorStoreID)

	// API
	v.SetDefault("api.listen", d.API.Listen)
	v.SetDefault("api.cors_origins", d.API.CORSOrigins)

	// Client
	v.SetDefault("client.proxy_target", d.Client.ProxyTarget)
	v.SetDefault("client.api_target", d.Client.APITarget)

	// Worker pool
	v.SetDefault("worker.workers", d.Worker.Workers)
	v.SetDefault("worker.queue_size", d.Worker.QueueSize)

	// Event stream
	v.SetDefault("eventstream.provider", d.EventStream.Provider)
	v.SetDefault("eventstream.brokers", d.EventStream.Brokers)
	v.SetDefault("eventstream.topic", d.EventStream.Topic)
}

// FromViper resolves a Config from v after flags, environment and config
// file have been merged.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Storage: StorageConfig{
			Driver:      v.GetString("storage.driver"),
			SQLitePath:  v.GetString("storage.sqlite_path"),
			RedisURL:    v.GetString("storage.redis_url"),
			RedisPrefix: v.GetString("storage.redis_prefix"),
		},
		Proxy: ProxyConfig{
			Upstream:         v.GetString("proxy.upstream"),
			Listen:           v.GetString("proxy.listen"),
			Model:            v.GetString("proxy.model"),
			InstructionsPath: v.GetString("proxy.instructions_path"),
			VectorStoreID:    v.GetString("proxy.vector_store_id"),
		},
		API: APIConfig{
			Listen:      v.GetString("api.listen"),
			CORSOrigins: v.GetString("api.cors_origins"),
		},
		Client: ClientConfig{
			ProxyTarget: v.GetString("client.proxy_target"),
			APITarget:   v.GetString("client.api_target"),
		},
		Worker: WorkerConfig{
			Workers:   v.GetUint("worker.workers"),
			QueueSize: v.GetUint("worker.queue_size"),
		},
		EventStream: EventStreamConfig{
			Provider: v.GetString("eventstream.provider"),
			Brokers:  v.GetString("eventstream.brokers"),
			Topic:    v.GetString("eventstream.topic"),
		},
	}
}

// Resolve builds the effective Config for cmd: defaults, then the config file
// found through the --config-dir flag, then ISPOC_ environment variables, then
// the registered flags named by registryKeys that the user set.
func Resolve(cmd *cobra.Command, registryKeys []string) (*Config, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := InitViper(configDir)
	if err != nil {
		return nil, err
	}

	BindRegisteredFlags(v, cmd, Flags, registryKeys)
	return FromViper(v), nil
}
