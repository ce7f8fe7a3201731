// Package servecmder provides the serve command with subcommands for running services.
package servecmder

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/ispoc/api"
	apicmder "github.com/papercomputeco/ispoc/cmd/ispoc/serve/api"
	proxycmder "github.com/papercomputeco/ispoc/cmd/ispoc/serve/proxy"
	"github.com/papercomputeco/ispoc/pkg/backend"
	"github.com/papercomputeco/ispoc/pkg/config"
	"github.com/papercomputeco/ispoc/pkg/logger"
)

type ServeCommander struct {
	proxyListen   string
	apiListen     string
	upstream      string
	model         string
	instructions  string
	vectorStore   string
	storageDriver string
	sqlitePath    string
	redisURL      string
	corsOrigins   string
	eventStream   string
	kafkaBrokers  string
	kafkaTopic    string
	workers       uint
	queueSize     uint

	cfg       *config.Config
	configDir string
	debug     bool
	logFile   string
	logger    *zap.Logger
}

var flagKeys = []string{
	config.FlagProxyListen,
	config.FlagAPIListen,
	config.FlagUpstream,
	config.FlagModel,
	config.FlagInstructions,
	config.FlagVectorStore,
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagRedisURL,
	config.FlagCORSOrigins,
	config.FlagEventStream,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
	config.FlagWorkers,
	config.FlagQueueSize,
}

const serveLongDesc string = `Run ispoc services.

Use subcommands to run individual services or all services together:
  ispoc serve          Run both proxy and API server together
  ispoc serve api      Run just the API server
  ispoc serve proxy    Run just the proxy server

Running both together shares one audit log and one event publisher.`

const serveShortDesc string = "Run ispoc services"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
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

	config.AddStringFlag(cmd, config.Flags, config.FlagProxyListen, &cmder.proxyListen)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &cmder.apiListen)
	config.AddStringFlag(cmd, config.Flags, config.FlagUpstream, &cmder.upstream)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &cmder.model)
	config.AddStringFlag(cmd, config.Flags, config.FlagInstructions, &cmder.instructions)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStore, &cmder.vectorStore)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &cmder.storageDriver)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagRedisURL, &cmder.redisURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagCORSOrigins, &cmder.corsOrigins)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventStream, &cmder.eventStream)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaBrokers, &cmder.kafkaBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &cmder.kafkaTopic)
	config.AddUintFlag(cmd, config.Flags, config.FlagWorkers, &cmder.workers)
	config.AddUintFlag(cmd, config.Flags, config.FlagQueueSize, &cmder.queueSize)

	cmd.PersistentFlags().String("log-file", "", "Also append JSON logs to this file")

	cmd.AddCommand(apicmder.NewAPICmd())
	cmd.AddCommand(proxycmder.NewProxyCmd())

	return cmd
}

func (c *ServeCommander) run(ctx context.Context) error {
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

	// Create shared driver and publisher
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

	secrets := config.LoadSecrets()

	p, err := proxycmder.NewProxy(ctx, c.cfg, secrets, driver, publisher, c.logger)
	if err != nil {
		return err
	}
	defer p.Close()

	apiServer, err := api.NewServer(apicmder.NewConfig(c.cfg, secrets, publisher), driver, c.logger)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	defer apiServer.Shutdown()

	// Channel to capture errors from goroutines
	errChan := make(chan error, 2)

	go func() {
		if err := p.Run(); err != nil {
			errChan <- fmt.Errorf("proxy error: %w", err)
		}
	}()

	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		c.logger.Info("received signal, shutting down")
		return nil
	}
}
