// Package initcmder provides the init command for initializing a local .ispoc
// directory in the current working directory.
package initcmder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/ispoc/pkg/cliui"
	"github.com/papercomputeco/ispoc/pkg/config"
)

const (
	dirName = ".ispoc"
)

const initLongDesc string = `Initialize a new .ispoc/ directory in the current working directory.

Creates a local .ispoc/ directory that takes precedence over the default
~/.ispoc/ directory for configuration, the local audit database and the
saved chat session.

A config.toml with default values is written when none exists. With --preset
it is written for a deployment shape instead:
  local    SQLite audit log, no event stream
  hosted   Redis audit log, turn events published to Kafka

An existing config.toml is only replaced by a preset with --force.

Examples:
  ispoc init
  ispoc init --preset hosted`

const initShortDesc string = "Initialize a local .ispoc/ directory"

func NewInitCmd() *cobra.Command {
	var (
		preset string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd.OutOrStdout(), preset, force)
		},
		ValidArgsFunction: cobra.NoFileCompletions,
	}

	cmd.Flags().StringVar(&preset, "preset", "", "Write a config.toml for a preset ("+strings.Join(config.ValidPresetNames(), ", ")+")")
	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing config.toml")
	_ = cmd.RegisterFlagCompletionFunc("preset", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return config.ValidPresetNames(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runInit(w io.Writer, preset string, force bool) error {
	// Resolve the preset first so a typo leaves nothing behind.
	cfg := config.NewDefaultConfig()
	if preset != "" {
		var err error
		cfg, err = config.PresetConfig(preset)
		if err != nil {
			return err
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	info, err := os.Stat(dir)
	if err == nil && info.IsDir() {
		fmt.Fprintf(w, "  %s Already initialized: %s\n", cliui.DimStyle.Render("●"), dir)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating .ispoc directory: %w", err)
		}
		fmt.Fprintf(w, "  %s Initialized .ispoc directory: %s\n", cliui.SuccessMark, dir)
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfger.GetTarget()); err == nil {
		switch {
		case preset == "":
			return nil
		case !force:
			return errors.New("config.toml already exists, pass --force to replace it")
		}
	}

	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	name := "default"
	if preset != "" {
		name = strings.ToLower(preset)
	}
	fmt.Fprintf(w, "  %s Wrote %s config to %s\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(name),
		cliui.DimStyle.Render(cfger.GetTarget()),
	)
	return nil
}
