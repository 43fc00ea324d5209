package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/calref/maestro/internal/config"
	"github.com/calref/maestro/internal/store"
)

var (
	dbPathFlag string
	debugFlag  bool
)

var rootCmd = &cobra.Command{
	Use:   "maestro",
	Short: "Multi-agent task orchestration",
	Long: `Maestro coordinates teams of AI agents on structured work.

Core capabilities:
- Workflow graphs with conditional routing, fallbacks, and checkpoints
- Durable plans and tasks with atomic claiming and priority scheduling
- Group chats with turn-taking and consensus detection`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("error:"), err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPathFlag, "db", "", "Path to the database file (default: XDG data dir)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Print debug output")

	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(workflowCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads configuration, tolerating a missing config file.
func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		debugLog("config load failed, using defaults: %v", err)
		return config.Default()
	}
	return cfg
}

// openStore opens and migrates the database, honoring the --db flag
// and the configured path, in that order.
func openStore() (*store.DB, error) {
	path := dbPathFlag
	if path == "" {
		path = loadConfig().Database.Path
	}

	var db *store.DB
	var err error
	if path == "" {
		db, err = store.OpenDefault()
	} else {
		db, err = store.Open(path)
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

// debugLog prints to stderr when --debug is set. It is passed into
// subsystems that accept a logging callback.
func debugLog(format string, args ...any) {
	if debugFlag {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
