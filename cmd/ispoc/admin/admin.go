// Package admincmder provides the admin command for exporting and clearing
// the audit log through the API server.
package admincmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/ispoc/pkg/apiclient"
	"github.com/papercomputeco/ispoc/pkg/cliui"
	"github.com/papercomputeco/ispoc/pkg/config"
	"github.com/papercomputeco/ispoc/pkg/logger"
	"github.com/papercomputeco/ispoc/pkg/storage"
)

type adminCommander struct {
	apiTarget string
	output    string
	yes       bool
	debug     bool
}

const adminLongDesc string = `Export and manage the ispoc audit log.

Admin commands call the API server's admin routes with the bearer token read
from ISPOC_ADMIN_TOKEN (or ADMIN_PASSWORD, a .env file is loaded first).

  ispoc admin logs          Export query logs as CSV
  ispoc admin feedback      Export feedback as CSV
  ispoc admin clear-logs    Delete every query log

Examples:
  ispoc admin logs -o query_logs.csv
  ispoc admin feedback --api-target https://ispoc.example`

const adminShortDesc string = "Export and manage the audit log"

func NewAdminCmd() *cobra.Command {
	cmder := &adminCommander{}

	cmd := &cobra.Command{
		Use:   "admin",
		Short: adminShortDesc,
		Long:  adminLongDesc,
	}

	config.AddPersistentStringFlag(cmd, config.Flags, config.FlagAPITarget, &cmder.apiTarget)

	cmd.AddCommand(cmder.newExportCmd("logs", "Export query logs as CSV", func(ctx context.Context, c *apiclient.Client) (*storage.CSVExport, error) {
		return c.QueryLogCSV(ctx)
	}))
	cmd.AddCommand(cmder.newExportCmd("feedback", "Export feedback as CSV", func(ctx context.Context, c *apiclient.Client) (*storage.CSVExport, error) {
		return c.FeedbackCSV(ctx)
	}))
	cmd.AddCommand(cmder.newClearCmd())

	return cmd
}

// client resolves the API target for cmd and builds an admin client.
func (c *adminCommander) client(cmd *cobra.Command) (*apiclient.Client, error) {
	cfg, err := config.Resolve(cmd, []string{config.FlagAPITarget})
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	c.apiTarget = cfg.Client.APITarget
	c.debug, _ = cmd.Flags().GetBool("debug")

	return apiclient.New(apiclient.Config{
		BaseURL:    c.apiTarget,
		AdminToken: config.LoadSecrets().AdminToken,
		Logger:     logger.NewLogger(c.debug),
	})
}

type exportFunc func(ctx context.Context, c *apiclient.Client) (*storage.CSVExport, error)

func (c *adminCommander) newExportCmd(use, short string, export exportFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := c.client(cmd)
			if err != nil {
				return err
			}

			data, err := export(cmd.Context(), client)
			if err != nil {
				return describe(err)
			}

			if c.output == "" || c.output == "-" {
				return WriteCSV(cmd.OutOrStdout(), data)
			}

			f, err := os.Create(c.output)
			if err != nil {
				return fmt.Errorf("creating %s: %w", c.output, err)
			}
			defer f.Close()

			if err := WriteCSV(f, data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "  %s Wrote %s %s\n",
				cliui.SuccessMark,
				cliui.ValueStyle.Render(c.output),
				cliui.DimStyle.Render(fmt.Sprintf("(%d rows)", len(data.Rows))),
			)
			return f.Close()
		},
	}

	cmd.Flags().StringVarP(&c.output, "output", "o", "", "Write the CSV to this file instead of stdout")
	return cmd
}

func (c *adminCommander) newClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear-logs",
		Short: "Delete every query log",
		Long:  "Delete every query log on the API server. Feedback is kept.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !c.yes {
				return errors.New("refusing to clear query logs without --yes")
			}

			client, err := c.client(cmd)
			if err != nil {
				return err
			}
			if err := client.ClearQueryLogs(cmd.Context()); err != nil {
				return describe(err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "  %s Query logs cleared\n", cliui.SuccessMark)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&c.yes, "yes", "y", false, "Confirm deletion")
	return cmd
}

// WriteCSV writes the header line followed by one line per row.
func WriteCSV(w io.Writer, export *storage.CSVExport) error {
	var b strings.Builder
	b.WriteString(export.Headers)
	b.WriteString("\n")
	for _, row := range export.Rows {
		b.WriteString(row)
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func describe(err error) error {
	if apiclient.IsUnauthorized(err) {
		return fmt.Errorf("%w\n\nSet ISPOC_ADMIN_TOKEN to the API server's admin token", err)
	}
	return err
}
