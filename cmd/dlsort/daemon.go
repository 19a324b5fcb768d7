package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/fenilsonani/dlsort/internal/config"
	"github.com/fenilsonani/dlsort/internal/daemon"
)

var testConfig bool

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Keep the downloads folder sorted in the background",
	Long: `Run as a background service that sorts the downloads folder on the cron
schedules in the config file, and whenever new downloads settle if daemon.watch
is enabled. Send SIGHUP to sort immediately. Only one daemon runs per lock file.`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func init() {
	daemonCmd.Flags().BoolVar(&testConfig, "test-config", false, "check the configuration and list schedules, then exit")
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	if testConfig {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return printDaemonConfig(cmd.OutOrStdout(), cfg)
	}

	eng, closeEngine, err := openEngine(false)
	if err != nil {
		return err
	}
	defer closeEngine()

	d, err := daemon.New(eng.Config(), eng.BaseDirectory(), eng, eng.Logger())
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	return d.Run(cmd.Context())
}

// printDaemonConfig describes what the daemon would do with cfg
func printDaemonConfig(w io.Writer, cfg *config.Config) error {
	fmt.Fprintln(w, "Configuration is valid")
	fmt.Fprintf(w, "Downloads folder: %s\n", cfg.BaseDir)
	fmt.Fprintf(w, "Lock file: %s\n", cfg.Daemon.LockFile)
	fmt.Fprintf(w, "Watch for new downloads: %v\n", cfg.Daemon.Watch)

	fmt.Fprintf(w, "\nSchedules (%d):\n", len(cfg.Daemon.Schedules))
	for _, s := range cfg.Daemon.Schedules {
		next, err := daemon.NextRun(s.Schedule, time.Now())
		if err != nil {
			return err
		}
		mode := ""
		if s.DryRun {
			mode = " [dry run]"
		}
		fmt.Fprintf(w, "  - %s: %s%s (next: %s)\n", s.Name, s.Schedule, mode, next.Format("2006-01-02 15:04"))
	}

	if n := cfg.Daemon.Notifications; n.Enabled {
		fmt.Fprintf(w, "\nNotifications: webhook %s (success: %v, failure: %v)\n", n.Webhook.URL, n.OnSuccess, n.OnFailure)
	}
	return nil
}
