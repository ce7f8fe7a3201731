// Package ispoccmder
package ispoccmder

import (
	"github.com/spf13/cobra"

	admincmder "github.com/papercomputeco/ispoc/cmd/ispoc/admin"
	chatcmder "github.com/papercomputeco/ispoc/cmd/ispoc/chat"
	configcmder "github.com/papercomputeco/ispoc/cmd/ispoc/config"
	initcmder "github.com/papercomputeco/ispoc/cmd/ispoc/init"
	servecmder "github.com/papercomputeco/ispoc/cmd/ispoc/serve"
	versioncmder "github.com/papercomputeco/ispoc/cmd/version"
	"github.com/papercomputeco/ispoc/pkg/config"
)

const ispocLongDesc string = `ispoc is a policy assistant: a streaming proxy in front of the OpenAI
Responses API with file search over the policy library, an audit API for
query logs and feedback, and a terminal chat client.

Run services using:
  ispoc serve api      Run the API server
  ispoc serve proxy    Run the proxy server
  ispoc serve          Run both servers together

Talk to the assistant:
  ispoc chat           Start an interactive session

Secrets (OPENAI_API_KEY, ISPOC_ADMIN_TOKEN) are read from the environment or
from a .env file in the working directory.`

const ispocShortDesc string = "ispoc - policy assistant"

func NewIspocCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ispoc",
		Short: ispocShortDesc,
		Long:  ispocLongDesc,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return config.LoadDotEnv()
		},
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .ispoc/ config directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(admincmder.NewAdminCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
