package main

import (
	"fmt"
	"os"

	proxycmder "github.com/papercomputeco/ispoc/cmd/ispoc/serve/proxy"
	"github.com/papercomputeco/ispoc/pkg/config"
)

func main() {
	cmd := proxycmder.NewProxyCmd()

	cmd.Use = "ispocproxy"
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .ispoc/ config directory")
	cmd.PersistentFlags().String("log-file", "", "Also append JSON logs to this file")

	if err := config.LoadDotEnv(); err != nil {
		fmt.Printf("Error loading .env: %v\n", err)
		os.Exit(1)
	}

	err := cmd.Execute()
	if err != nil {
		fmt.Printf("Error executing root command: %v\n", err)
		os.Exit(1)
	}
}
