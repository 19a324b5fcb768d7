package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/fenilsonani/dlsort/internal/reporter"
	"github.com/fenilsonani/dlsort/internal/session"
	"github.com/fenilsonani/dlsort/internal/watcher"
)

var watchDryRun bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Sort new downloads as they arrive",
	Long: `Sort the downloads folder once, then keep watching it and sort again each
time new files stop changing. Partial downloads (.crdownload, .part and the
like) are ignored until they are renamed. Stop with Ctrl+C.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchDryRun, "dry-run", false, "report what would move without moving files")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	eng, closeEngine, err := openEngine(watchDryRun)
	if err != nil {
		return err
	}
	defer closeEngine()

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	cfg := eng.Config()
	w, err := watcher.New(eng.BaseDirectory(), cfg.Watch.Debounce, cfg.ExcludePatterns)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Start(); err != nil {
		return fmt.Errorf("failed to watch %s: %w", eng.BaseDirectory(), err)
	}
	defer w.Stop()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", eng.BaseDirectory())

	sortAndReport := func(trigger string) {
		report, err := eng.Sort(ctx, false)
		if err != nil {
			if errors.Is(err, session.ErrLocked) || errors.Is(err, session.ErrSessionInProgress) {
				eng.Logger().Info("sort skipped, another sort is running", slog.String("trigger", trigger))
				return
			}
			eng.Logger().Error("sort failed", slog.String("trigger", trigger), slog.Any("error", err))
			return
		}
		printWatchReport(out, report)
	}

	sortAndReport("startup")

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "Stopped watching")
			return nil
		case batch, ok := <-w.Batches:
			if !ok {
				return nil
			}
			eng.Logger().Debug("downloads settled", slog.Int("files", len(batch.Files)))
			sortAndReport("watch")
		}
	}
}

// printWatchReport prints a summary only when something happened
func printWatchReport(out io.Writer, report *session.Report) {
	if report.Total == 0 {
		return
	}
	if err := reporter.New(out, reporter.FormatSummary).Report(report); err != nil {
		fmt.Fprintf(out, "failed to write report: %v\n", err)
	}
}
