package main

import (
	"os"

	ispoccmder "github.com/papercomputeco/ispoc/cmd/ispoc"
)

func main() {
	cmd := ispoccmder.NewIspocCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
