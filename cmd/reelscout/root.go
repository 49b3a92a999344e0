package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"reelscout/internal/store"
	"reelscout/pkg/auth"
	"reelscout/pkg/config"
	errs "reelscout/pkg/errors"
	"reelscout/pkg/logger"
	"reelscout/pkg/models"
	"reelscout/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile  string
	logLevel    string
	projectName string
	dsn         string
	noColor     bool
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "reelscout",
	Short: "Collect, filter and deduplicate Instagram reels for competitor research",
	Long: `reelscout pulls recent posts for tracked competitor accounts and hashtags
from a scraping provider, keeps the ones that pass the quality policy and
stores each reel once per URL.

Typical flow:
  reelscout migrate
  reelscout project add acme
  reelscout source add competitor @shopname --project acme
  reelscout ingest --project acme
  reelscout reconcile --project acme
  reelscout report --project acme`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			ui.SetColor(false)
		}
	},
}

// Execute runs the root command under a context cancelled by SIGINT/SIGTERM
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.Output = os.Stderr
		ui.PrintError("Error", err)
		stop()
		os.Exit(exitCode(err))
	}
}

// exitCode separates bad input from runtime failures
func exitCode(err error) int {
	switch {
	case errors.Is(err, context.Canceled):
		return 130
	case errs.IsValidation(err):
		return 2
	default:
		return 1
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is $HOME/.config/reelscout/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&projectName, "project", "p", "", "project name (default from config)")
	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", "", "Postgres connection string")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print every source, not only those with new reels")

	rootCmd.SetVersionTemplate(`reelscout {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig merges the global flags over file and environment settings
// and initializes the global logger.
func loadConfig(extra map[string]interface{}) (*config.Config, error) {
	flags := map[string]interface{}{
		"project":   projectName,
		"dsn":       dsn,
		"log-level": logLevel,
	}
	for k, v := range extra {
		flags[k] = v
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (*store.Store, error) {
	return store.Open(cfg.Database, logger.GetLogger())
}

// requireProject looks up the configured project by name
func requireProject(ctx context.Context, st *store.Store, cfg *config.Config) (*models.Project, error) {
	if cfg.Project.Name == "" {
		return nil, errs.Validation("no project given; use --project or set project.name")
	}
	p, err := st.Projects.GetByName(ctx, cfg.Project.Name)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errs.Validation(fmt.Sprintf("project %q does not exist; create it with 'reelscout project add'", cfg.Project.Name))
	}
	return p, nil
}

// serviceToken prefers an explicitly configured token over the credential store
func serviceToken(configured string, service auth.Service) string {
	if configured != "" {
		return configured
	}
	manager, err := auth.NewManager()
	if err != nil {
		logger.WithError(err).Warn("Credential store unavailable")
		return ""
	}
	return manager.Token(service)
}

// withStore loads config, opens the store and runs fn with a project-scoped context
func withStore(cmd *cobra.Command, extra map[string]interface{}, fn func(ctx context.Context, cfg *config.Config, st *store.Store) error) error {
	cfg, err := loadConfig(extra)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	logger.LogComponentStart(cmd.Name(), map[string]interface{}{"project": cfg.Project.Name})
	err = fn(cmd.Context(), cfg, st)
	reason := "completed"
	if err != nil {
		reason = err.Error()
	}
	logger.LogComponentStop(cmd.Name(), reason)
	return err
}
