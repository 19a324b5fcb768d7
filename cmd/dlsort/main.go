package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fenilsonani/dlsort/internal/config"
	"github.com/fenilsonani/dlsort/internal/engine"
	"github.com/fenilsonani/dlsort/internal/logging"
	"github.com/fenilsonani/dlsort/internal/reporter"
)

var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

var (
	configPath string
	logLevel   string
	outputFmt  string

	// v holds the settings for the current invocation
	v *viper.Viper
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dlsort",
	Short: "Keep your downloads folder sorted",
	Long: `dlsort moves every file in your downloads folder into a folder per category,
chosen by file extension:
  - Music, Videos, Images, Documents, Compressed, Code and more out of the box
  - Your own categories, extensions and target folders
  - One-off sorts, a directory watcher or a scheduled daemon
  - A history of every sort`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default "+config.GetConfigPath()+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "format", "f", "", "output format (summary, table, json, yaml)")
}

// initConfig builds a fresh viper for this invocation. Read errors surface
// from loadConfig.
func initConfig() {
	v = viper.New()
	if f := rootCmd.PersistentFlags().Lookup("log-level"); f != nil {
		_ = v.BindPFlag("log.level", f)
	}
}

func loadConfig() (*config.Config, error) {
	if v == nil {
		initConfig()
	}
	if err := config.InitViper(v, configPath); err != nil {
		return nil, err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// openEngine loads the configuration and opens the engine. The returned
// function closes both the engine and the log file.
func openEngine(dryRun bool) (*engine.Engine, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	logger, logCloser, err := logging.NewFromConfig(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	eng, err := engine.Open(engine.Options{Config: cfg, Logger: logger, DryRun: dryRun})
	if err != nil {
		_ = logCloser.Close()
		return nil, nil, err
	}

	return eng, func() {
		if err := eng.Close(); err != nil {
			logger.Warn("failed to close engine", slog.Any("error", err))
		}
		_ = logCloser.Close()
	}, nil
}

// signalContext is canceled by SIGINT or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// format returns the --format value, or def when it was not given
func format(def reporter.OutputFormat) (reporter.OutputFormat, error) {
	if outputFmt == "" {
		return def, nil
	}
	return reporter.ParseFormat(outputFmt)
}

// isTerminal reports whether w is an interactive terminal
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
