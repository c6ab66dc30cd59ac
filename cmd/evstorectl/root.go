package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/untoldecay/eventgraph/internal/config"
	"github.com/untoldecay/eventgraph/internal/eventstore"
	"github.com/untoldecay/eventgraph/internal/opslog"
)

var (
	dbFlag   string
	jsonFlag bool

	rootCtx = context.Background()
	logger  *opslog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "evstorectl",
	Short:         "Inspect and drive an agent conversation event store",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(); err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "store", Title: "Store commands:"},
		&cobra.Group{ID: "inspect", Title: "Inspection commands:"},
	)
	rootCmd.PersistentFlags().StringVar(&dbFlag, "db", "", "path to the store's SQLite database (default .evstore/store.db)")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "emit machine-readable JSON instead of text")
}

// openStore resolves the configured database path and opens a Store
// against it, creating the containing directory if needed.
func openStore(ctx context.Context) (*eventstore.Store, error) {
	path := config.DatabasePath(dbFlag)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	return eventstore.Open(ctx, path)
}

// opsLogger lazily starts the ambient JSONL+DB log sink for commands
// that want to record their own operational trail.
func opsLogger(store *eventstore.Store) *opslog.Logger {
	if logger != nil {
		return logger
	}
	logDir := config.GetString("log-dir")
	if logDir == "" {
		logDir = filepath.Join(filepath.Dir(config.DatabasePath(dbFlag)), "logs")
	}
	logger = opslog.New(store, opslog.Config{
		FilePath: filepath.Join(logDir, "evstorectl.log.jsonl"),
		MinLevel: opslog.Level(config.LogLevel()),
	})
	return logger
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "evstorectl: "+format+"\n", args...)
	os.Exit(1)
}
