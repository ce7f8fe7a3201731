// Package apicmder provides the ispoc API server cobra command.
package apicmder

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/ispoc/api"
	"github.com/papercomputeco/ispoc/pkg/backend"
	"github.com/papercomputeco/ispoc/pkg/config"
	"github.com/papercomputeco/ispoc/pkg/eventstream"
	"github.com/papercomputeco/ispoc/pkg/logger"
)

type apiCommander struct {
	listen        string
	corsOrigins   string
	storageDriver string
	sqlitePath    string
	redisURL      string
	eventStream   string
	kafkaBrokers  string
	kafkaTopic    string

	cfg       *config.Config
	configDir string
	debug     bool
	logFile   string
	logger    *zap.Logger
}

var flagKeys = []string{
	config.FlagAPIListenStandalone,
	config.FlagCORSOrigins,
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagRedisURL,
	config.FlagEventStream,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
}

const apiLongDesc string = `Run the ispoc API server.

The API server records survey feedback and query logs sent by the chat widget
and serves CSV exports of both to administrators. Admin routes require the
bearer token in ISPOC_ADMIN_TOKEN (or ADMIN_PASSWORD).`

const apiShortDesc string = "Run the ispoc API server"

func NewAPICmd() *cobra.Command {
	cmder := &apiCommander{}

	cmd := &cobra.Command{
		Use:   "api",
		Short: apiShortDesc,
		Long:  apiLongDesc,
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

	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListenStandalone, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagCORSOrigins, &cmder.corsOrigins)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &cmder.storageDriver)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagRedisURL, &cmder.redisURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventStream, &cmder.eventStream)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaBrokers, &cmder.kafkaBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &cmder.kafkaTopic)

	return cmd
}

func (c *apiCommander) run(ctx context.Context) error {
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

	server, err := api.NewServer(NewConfig(c.cfg, config.LoadSecrets(), publisher), driver, c.logger)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Run()
	}()

	select {
	case err := <-errChan:
		_ = server.Shutdown()
		return err
	case <-ctx.Done():
		c.logger.Info("shutting down API server")
		return server.Shutdown()
	}
}

// NewConfig maps resolved configuration onto an api.Config.
func NewConfig(cfg *config.Config, secrets config.Secrets, publisher eventstream.Publisher) api.Config {
	return api.Config{
		ListenAddr:  cfg.API.Listen,
		AdminToken:  secrets.AdminToken,
		CORSOrigins: cfg.API.CORSOrigins,
		Publisher:   publisher,
	}
}
