// Package proxycmder provides the proxy server command.
package proxycmder

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/ispoc/pkg/backend"
	"github.com/papercomputeco/ispoc/pkg/config"
	"github.com/papercomputeco/ispoc/pkg/eventstream"
	"github.com/papercomputeco/ispoc/pkg/logger"
	"github.com/papercomputeco/ispoc/pkg/prompt"
	"github.com/papercomputeco/ispoc/pkg/storage"
	"github.com/papercomputeco/ispoc/proxy"
)

type proxyCommander struct {
	flags proxyFlags

	cfg       *config.Config
	configDir string
	debug     bool
	logFile   string
	logger    *zap.Logger
}

type proxyFlags struct {
	listen        string
	upstream      string
	model         string
	instructions  string
	vectorStore   string
	storageDriver string
	sqlitePath    string
	redisURL      string
	eventStream   string
	kafkaBrokers  string
	kafkaTopic    string
	workers       uint
	queueSize     uint
}

// flagKeys are the registry entries the proxy command exposes.
var flagKeys = []string{
	config.FlagProxyListenStandalone,
	config.FlagUpstream,
	config.FlagModel,
	config.FlagInstructions,
	config.FlagVectorStore,
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagRedisURL,
	config.FlagEventStream,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
	config.FlagWorkers,
	config.FlagQueueSize,
}

const proxyLongDesc string = `Run the proxy server.

The proxy sits between the chat widget and the Responses API. It injects the
server-held API key, fills in the model, the assistant instructions and the
file_search vector store when a request leaves them out, and streams the
answer back untouched. Every completed turn is written to the audit log and
announced on the configured event stream.

The upstream key is read from OPENAI_API_KEY (a .env file in the working
directory is loaded first). The instructions file is reloaded when it changes.`

const proxyShortDesc string = "Run the ispoc proxy server"

func NewProxyCmd() *cobra.Command {
	cmder := &proxyCommander{}

	cmd := &cobra.Command{
		Use:   "proxy",
		Short: proxyShortDesc,
		Long:  proxyLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.cfg, err = config.Resolve(cmd, flagKeys)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.logFile, _ = cmd.Flags().GetString("log-file")

			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagProxyListenStandalone, &cmder.flags.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagUpstream, &cmder.flags.upstream)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &cmder.flags.model)
	config.AddStringFlag(cmd, config.Flags, config.FlagInstructions, &cmder.flags.instructions)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStore, &cmder.flags.vectorStore)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &cmder.flags.storageDriver)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.flags.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagRedisURL, &cmder.flags.redisURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventStream, &cmder.flags.eventStream)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaBrokers, &cmder.flags.kafkaBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &cmder.flags.kafkaTopic)
	config.AddUintFlag(cmd, config.Flags, config.FlagWorkers, &cmder.flags.workers)
	config.AddUintFlag(cmd, config.Flags, config.FlagQueueSize, &cmder.flags.queueSize)

	return cmd
}

func (c *proxyCommander) run(ctx context.Context) error {
	log, closeLog, err := logger.NewServiceLogger(c.debug, c.logFile)
	if err != nil {
		return err
	}
	c.logger = log
	defer func() {
		_ = c.logger.Sync()
		_ = closeLog()
	}()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	driver, err := backend.NewStorageDriver(ctx, c.cfg.Storage, c.configDir, c.logger)
	if err != nil {
		return err
	}
	defer driver.Close()

	publisher, err := backend.NewPublisher(c.cfg.EventStream, c.logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	p, err := NewProxy(ctx, c.cfg, config.LoadSecrets(), driver, publisher, c.logger)
	if err != nil {
		return err
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- p.Run()
	}()

	select {
	case err := <-errChan:
		_ = p.Close()
		return err
	case <-ctx.Done():
		c.logger.Info("shutting down proxy server")
		return p.Close()
	}
}

// NewProxy assembles a proxy from resolved configuration. The instructions
// file, when configured, is watched until ctx is done.
func NewProxy(ctx context.Context, cfg *config.Config, secrets config.Secrets, driver storage.Driver, publisher eventstream.Publisher, log *zap.Logger) (*proxy.Proxy, error) {
	if secrets.OpenAIAPIKey == "" {
		log.Warn("OPENAI_API_KEY is not set, client Authorization headers are forwarded as is")
	}

	loader, err := prompt.NewLoader(cfg.Proxy.InstructionsPath, log)
	if err != nil {
		return nil, fmt.Errorf("loading instructions: %w", err)
	}
	if err := loader.Watch(ctx); err != nil {
		log.Warn("instructions will not be reloaded", zap.Error(err))
	}

	p, err := proxy.New(proxy.Config{
		ListenAddr:    cfg.Proxy.Listen,
		UpstreamURL:   cfg.Proxy.Upstream,
		APIKey:        secrets.OpenAIAPIKey,
		Model:         cfg.Proxy.Model,
		Instructions:  loader,
		VectorStoreID: cfg.Proxy.VectorStoreID,
		Publisher:     publisher,
		NumWorkers:    cfg.Worker.Workers,
		QueueSize:     cfg.Worker.QueueSize,
	}, driver, log)
	if err != nil {
		return nil, fmt.Errorf("creating proxy: %w", err)
	}
	return p, nil
}
