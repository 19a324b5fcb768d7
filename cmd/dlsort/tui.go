package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/fenilsonani/dlsort/internal/ui"
)

var tuiDryRun bool

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Manage categories and sort interactively",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !stdoutIsTerminal() {
			return errors.New("the interactive interface needs a terminal")
		}

		eng, closeEngine, err := openEngine(tuiDryRun)
		if err != nil {
			return err
		}
		defer closeEngine()

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		return ui.RunInteractive(ctx, eng)
	},
}

func init() {
	tuiCmd.Flags().BoolVar(&tuiDryRun, "dry-run", false, "sorts report where files would go without moving them")
	rootCmd.AddCommand(tuiCmd)
}
