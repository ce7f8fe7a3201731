package main

import (
	"os"

	apicmder "github.com/papercomputeco/ispoc/cmd/ispoc/serve/api"
	"github.com/papercomputeco/ispoc/pkg/config"
)

func main() {
	cmd := apicmder.NewAPICmd()
	cmd.Use = "ispocapi"
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .ispoc/ config directory")
	cmd.PersistentFlags().String("log-file", "", "Also append JSON logs to this file")

	if err := config.LoadDotEnv(); err != nil {
		os.Exit(1)
	}

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
