package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fenilsonani/dlsort/internal/reporter"
	"github.com/fenilsonani/dlsort/internal/session"
	"github.com/fenilsonani/dlsort/internal/ui"
)

var (
	sortDryRun     bool
	sortOutputFile string
	sortTree       bool
)

var sortCmd = &cobra.Command{
	Use:   "sort",
	Short: "Sort the downloads folder once",
	Long: `Move every file in the downloads folder into its category folder.

Files whose names match an exclude pattern are left alone. A file whose name
is already taken in its target folder is never renamed or overwritten: it stays
where it is and is reported as failed.`,
	Example: `  dlsort sort
  dlsort sort --dry-run --tree
  dlsort sort -f json --output last-sort.json`,
	RunE: runSort,
}

func init() {
	sortCmd.Flags().BoolVar(&sortDryRun, "dry-run", false, "show where files would go without moving them")
	sortCmd.Flags().StringVarP(&sortOutputFile, "output", "o", "", "also save the report to a file")
	sortCmd.Flags().BoolVarP(&sortTree, "tree", "d", false, "list moved files grouped by category folder")

	rootCmd.AddCommand(sortCmd)
}

func runSort(cmd *cobra.Command, args []string) error {
	outFmt, err := format(reporter.FormatSummary)
	if err != nil {
		return err
	}

	eng, closeEngine, err := openEngine(sortDryRun)
	if err != nil {
		return err
	}
	defer closeEngine()

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	out := cmd.OutOrStdout()
	live := ui.NewLiveProgress(out)
	live.SetEnabled(outFmt == reporter.FormatSummary && isTerminal(out))

	report, err := eng.SortOnce(ctx, live.OnEvent)
	live.Finish()
	if err != nil {
		return fmt.Errorf("sort failed: %w", err)
	}

	if err := reporter.New(out, outFmt).Report(report); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if sortTree {
		ui.PrintMovedTree(out, report)
	}

	if sortOutputFile != "" {
		fileFmt := outFmt
		if fileFmt == reporter.FormatSummary {
			fileFmt = reporter.FormatJSON
		}
		if err := reporter.SaveToFile(report, sortOutputFile, fileFmt); err != nil {
			return fmt.Errorf("failed to save report: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Report saved to %s\n", sortOutputFile)
	}

	return sortExitError(report)
}

// sortExitError turns a report with failed files into a non-zero exit
func sortExitError(report *session.Report) error {
	switch {
	case report.Aborted:
		return fmt.Errorf("sort stopped after %d of %d files failed to move", len(report.Errors), report.Total)
	case len(report.Errors) > 0:
		return fmt.Errorf("%d of %d files could not be moved", len(report.Errors), report.Total)
	}
	return nil
}

// stdoutIsTerminal is used where no command writer is at hand
func stdoutIsTerminal() bool {
	return isTerminal(os.Stdout)
}
