// Package cli wires dromos's storage engine up to a cobra command tree.
// Every leaf command opens the Storage Manager in PersistentPreRun and
// closes it in PersistentPostRun. Commands go through the Manager; those
// that need rows or graph traversal beyond its operations (list, search,
// edit, check, export, import) reach the Repository or Graph through it.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danbrakeley/dromos/lib/config"
	"github.com/danbrakeley/dromos/lib/storage"
)

var (
	dbPath   string
	diffsDir string
	jsonOut  bool

	mgr *storage.Manager
)

var rootCmd = &cobra.Command{
	Use:   "dromos",
	Short: "Content-addressed ROM image storage and patch graph",
	Long: `dromos stores NES ROM images as nodes in a content-addressed graph and
the binary patches between them as edges, so a whole family of ROM
revisions can be kept as one original plus a web of small diffs instead
of many near-duplicate files.

Paths default to the platform's per-user data directory and can be
overridden with --db-path and --diffs-dir or the DROMOS_DB_PATH and
DROMOS_DIFFS_DIR environment variables.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg, err := resolveConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "dromos: %v\n", err)
			os.Exit(1)
		}
		m, err := storage.Open(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "dromos: %v\n", err)
			os.Exit(1)
		}
		mgr = m
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if mgr != nil {
			mgr.Close()
		}
	},
}

func resolveConfig() (config.StorageConfig, error) {
	cfg, err := config.DefaultPaths()
	if err != nil {
		return config.StorageConfig{}, err
	}
	if v := os.Getenv("DROMOS_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("DROMOS_DIFFS_DIR"); v != "" {
		cfg.DiffsDir = v
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if diffsDir != "" {
		cfg.DiffsDir = diffsDir
	}
	return cfg, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db-path", "", "path to the dromos database file (or set DROMOS_DB_PATH)")
	rootCmd.PersistentFlags().StringVar(&diffsDir, "diffs-dir", "", "path to the patch directory (or set DROMOS_DIFFS_DIR)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output machine-readable JSON where supported")
}

// Execute runs the command tree; main just reports its error and exits.
func Execute() error {
	return rootCmd.Execute()
}
