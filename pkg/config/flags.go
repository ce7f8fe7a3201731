package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --sqlite
// on "ispoc serve", "ispoc serve api" and "ispoc serve proxy").
type Flag struct {
	// Name is the long flag name (e.g. "upstream").
	Name string

	// Shorthand is the one-letter short flag (e.g. "u"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "proxy.upstream").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagProxyListen   = "proxy-listen"
	FlagAPIListen     = "api-listen"
	FlagUpstream      = "upstream"
	FlagModel         = "model"
	FlagInstructions  = "instructions"
	FlagVectorStore   = "vector-store"
	FlagStorageDriver = "storage"
	FlagSQLite        = "sqlite"
	FlagRedisURL      = "redis-url"
	FlagCORSOrigins   = "cors-origins"
	FlagWorkers       = "workers"
	FlagQueueSize     = "queue-size"
	FlagEventStream   = "eventstream"
	FlagKafkaBrokers  = "kafka-brokers"
	FlagKafkaTopic    = "kafka-topic"
	FlagAPITarget     = "api-target"
	FlagProxyTarget   = "proxy-target"

	// Standalone subcommand variants use "listen" as the flag name
	// but bind to different viper keys depending on the service.
	FlagProxyListenStandalone = "proxy-listen-standalone"
	FlagAPIListenStandalone   = "api-listen-standalone"
)

// Flags is the registry shared by every ispoc command.
var Flags = FlagSet{
	FlagProxyListen:           {Name: "proxy-listen", Shorthand: "p", ViperKey: "proxy.listen", Description: "Address for the proxy to listen on"},
	FlagAPIListen:             {Name: "api-listen", Shorthand: "a", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	FlagProxyListenStandalone: {Name: "listen", Shorthand: "l", ViperKey: "proxy.listen", Description: "Address for the proxy to listen on"},
	FlagAPIListenStandalone:   {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	FlagUpstream:              {Name: "upstream", Shorthand: "u", ViperKey: "proxy.upstream", Description: "Upstream Responses API base URL"},
	FlagModel:                 {Name: "model", Shorthand: "m", ViperKey: "proxy.model", Description: "Model filled into requests that do not name one"},
	FlagInstructions:          {Name: "instructions", ViperKey: "proxy.instructions_path", Description: "Path to the assistant instructions file (reloaded on change)"},
	FlagVectorStore:           {Name: "vector-store", ViperKey: "proxy.vector_store_id", Description: "Vector store id attached as a file_search tool"},
	FlagStorageDriver:         {Name: "storage", ViperKey: "storage.driver", Description: "Audit log backend: sqlite, redis or memory"},
	FlagSQLite:                {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to the SQLite audit database"},
	FlagRedisURL:              {Name: "redis-url", ViperKey: "storage.redis_url", Description: "Redis URL for the redis audit log backend"},
	FlagCORSOrigins:           {Name: "cors-origins", ViperKey: "api.cors_origins", Description: "Comma separated origins allowed by CORS"},
	FlagWorkers:               {Name: "workers", ViperKey: "worker.workers", Description: "Number of background persistence workers"},
	FlagQueueSize:             {Name: "queue-size", ViperKey: "worker.queue_size", Description: "Capacity of the persistence queue"},
	FlagEventStream:           {Name: "eventstream", ViperKey: "eventstream.provider", Description: "Turn event publisher: nop or kafka"},
	FlagKafkaBrokers:          {Name: "kafka-brokers", ViperKey: "eventstream.brokers", Description: "Comma separated Kafka brokers"},
	FlagKafkaTopic:            {Name: "kafka-topic", ViperKey: "eventstream.topic", Description: "Kafka topic for turn events"},
	FlagAPITarget:             {Name: "api-target", ViperKey: "client.api_target", Description: "ispoc API server URL"},
	FlagProxyTarget:           {Name: "proxy-target", ViperKey: "client.proxy_target", Description: "ispoc proxy URL"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}

// AddPersistentStringFlag registers a string flag that subcommands of cmd
// inherit.
func AddPersistentStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.PersistentFlags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.PersistentFlags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}
