package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/hangar/internal/adapters/logging"
	"github.com/felixgeelhaar/hangar/internal/app"
	"github.com/felixgeelhaar/hangar/internal/domain/config"
	"github.com/felixgeelhaar/hangar/internal/ports"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "hangar",
	Short: "A signed-plugin host",
	Long: `Hangar hosts signed plugin packages: it verifies signatures, resolves
dependency graphs, drives each plugin's lifecycle, and keeps plugin code
behind capability boundaries.`,
	SilenceErrors: true, // We handle error formatting ourselves
	SilenceUsage:  true, // Don't show usage on error
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		printError(err)
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HANGAR_HOME/hangar.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(enableCmd)
	rootCmd.AddCommand(disableCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(extensionsCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(versionCmd)
}

// baseDir returns the hangar home directory.
func baseDir() string {
	if dir := os.Getenv("HANGAR_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hangar"
	}
	return filepath.Join(home, ".hangar")
}

// loadConfig resolves the host configuration from --config or defaults.
func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.Load(cfgFile)
	}

	path := filepath.Join(baseDir(), "hangar.toml")
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, config.ErrConfigNotFound) {
		return config.Default(baseDir()), nil
	}
	return nil, err
}

func newLogger() ports.Logger {
	level := ports.LevelInfo
	if verbose {
		level = ports.LevelDebug
	}
	return logging.NewConsoleLogger(logging.WithLevel(level))
}

// newHost builds a host for one CLI invocation and reconciles persisted
// state so previously enabled plugins are live again.
func newHost(ctx context.Context) (*app.Host, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	h, err := app.New(ctx, cfg, newLogger())
	if err != nil {
		return nil, err
	}
	if err := h.Reconcile(ctx); err != nil {
		printError(err)
	}
	return h, nil
}

// printError prints an error message to stderr.
func printError(err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
}
