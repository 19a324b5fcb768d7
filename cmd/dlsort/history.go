package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/fenilsonani/dlsort/internal/engine"
	"github.com/fenilsonani/dlsort/internal/journal"
	"github.com/fenilsonani/dlsort/internal/reporter"
)

var (
	historyLimit int
	pruneKeep    int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past sorts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		outFmt, err := format(reporter.FormatTable)
		if err != nil {
			return err
		}

		eng, j, closeEngine, err := openJournal()
		if err != nil {
			return err
		}
		defer closeEngine()

		sessions, err := j.Sessions(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		eng.Logger().Debug("loaded history", slog.Int("sessions", len(sessions)))
		return reporter.New(cmd.OutOrStdout(), outFmt).History(sessions)
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "List the files one sort moved",
	Long:  `List the files one sort moved or failed to move. Any unique prefix of the session ID will do.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		outFmt, err := format(reporter.FormatTable)
		if err != nil {
			return err
		}

		_, j, closeEngine, err := openJournal()
		if err != nil {
			return err
		}
		defer closeEngine()

		rec, err := j.Session(cmd.Context(), args[0])
		if err != nil {
			if errors.Is(err, journal.ErrNotFound) {
				return fmt.Errorf("no sort with id %s (see dlsort history)", args[0])
			}
			return err
		}

		moves, err := j.Moves(cmd.Context(), rec.ID)
		if err != nil {
			return err
		}
		return reporter.New(cmd.OutOrStdout(), outFmt).Moves(rec, moves)
	},
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Forget all but the most recent sorts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, j, closeEngine, err := openJournal()
		if err != nil {
			return err
		}
		defer closeEngine()

		n, err := j.Prune(cmd.Context(), pruneKeep)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d sorts from history\n", n)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of sorts to list (0 for all)")
	historyPruneCmd.Flags().IntVar(&pruneKeep, "keep", 50, "number of recent sorts to keep")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyPruneCmd)
	rootCmd.AddCommand(historyCmd)
}

// openJournal opens the engine and fails when history is disabled
func openJournal() (*engine.Engine, *journal.Journal, func(), error) {
	eng, closeEngine, err := openEngine(false)
	if err != nil {
		return nil, nil, nil, err
	}

	j := eng.Journal()
	if j == nil {
		closeEngine()
		return nil, nil, nil, errors.New("sort history is disabled (journal.enabled: false)")
	}
	return eng, j, closeEngine, nil
}
