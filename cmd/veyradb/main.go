package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/veyradb/pkg/config"
	"github.com/cuemby/veyradb/pkg/database"
	"github.com/cuemby/veyradb/pkg/log"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "veyradb",
	Short: "veyradb - embedded document database engine",
	Long: `veyradb is an embedded document database engine: revision-tree
versioned documents, content-addressed blobs, and peer-to-peer sync
over BLIP, all behind a single SQLite-backed store.

This binary is a thin operator shell around the engine, not a server:
open a database, inspect it, compact it.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"veyradb version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file (defaults built in if omitted)")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(compactCmd)
	rootCmd.AddCommand(rekeyCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

// loadConfig resolves the --config flag against config.Default(), then
// overrides the data directory with the positional path every subcommand
// takes, the way warren-migrate takes its data-dir as a direct argument
// rather than a config field.
func loadConfig(cmd *cobra.Command, dataDir string) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg := config.Default()
	if path != "" {
		loaded, derr := config.Load(path)
		if derr != nil {
			return config.Config{}, derr
		}
		cfg = loaded
	}
	cfg.DataDirectory = dataDir
	if derr := cfg.Validate(); derr != nil {
		return config.Config{}, derr
	}
	return cfg, nil
}

var statsCmd = &cobra.Command{
	Use:   "stats <path>",
	Short: "Open a database and print document, blob, and sequence counts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, args[0])
		if err != nil {
			return err
		}
		cfg.Create = false

		db, derr := database.Open(args[0], cfg)
		if derr != nil {
			return fmt.Errorf("opening database: %v", derr)
		}
		defer db.Close()

		stats := database.NewStats(db)
		docs, err := stats.DocumentCount()
		if err != nil {
			return fmt.Errorf("reading document count: %v", err)
		}
		lastSeq, err := stats.LastSequence()
		if err != nil {
			return fmt.Errorf("reading last sequence: %v", err)
		}
		blobs, err := stats.BlobCount()
		if err != nil {
			return fmt.Errorf("reading blob count: %v", err)
		}
		blobBytes, err := stats.BlobBytes()
		if err != nil {
			return fmt.Errorf("reading blob bytes: %v", err)
		}

		fmt.Printf("Database: %s\n", db.Path())
		fmt.Printf("  Documents:      %d\n", docs)
		fmt.Printf("  Last sequence:  %d\n", lastSeq)
		fmt.Printf("  Blobs:          %d\n", blobs)
		fmt.Printf("  Blob bytes:     %d\n", blobBytes)
		return nil
	},
}

var compactCmd = &cobra.Command{
	Use:   "compact <path>",
	Short: "Remove soft-deleted documents and reclaim record-store space",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, args[0])
		if err != nil {
			return err
		}
		cfg.Create = false

		db, derr := database.Open(args[0], cfg)
		if derr != nil {
			return fmt.Errorf("opening database: %v", derr)
		}
		defer db.Close()

		fmt.Printf("Compacting %s...\n", db.Path())
		if derr := db.Compact(); derr != nil {
			return fmt.Errorf("compacting database: %v", derr)
		}
		fmt.Println("✓ Compaction complete")
		return nil
	},
}

var rekeyCmd = &cobra.Command{
	Use:   "rekey <path>",
	Short: "Change or remove at-rest encryption on a database's blob store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		disable, _ := cmd.Flags().GetBool("disable")
		key, _ := cmd.Flags().GetString("key")

		cfg, err := loadConfig(cmd, args[0])
		if err != nil {
			return err
		}
		cfg.Create = false

		db, derr := database.Open(args[0], cfg)
		if derr != nil {
			return fmt.Errorf("opening database: %v", derr)
		}
		defer db.Close()

		algorithm := config.EncryptionAES256
		var keyBytes []byte
		if disable {
			algorithm = config.EncryptionNone
		} else {
			if len(key) != 32 {
				return fmt.Errorf("--key must be exactly 32 bytes, got %d", len(key))
			}
			keyBytes = []byte(key)
		}

		if derr := db.Rekey(algorithm, keyBytes); derr != nil {
			return fmt.Errorf("rekeying database: %v", derr)
		}
		fmt.Println("✓ Rekey complete")
		return nil
	},
}

func init() {
	rekeyCmd.Flags().Bool("disable", false, "Remove encryption instead of setting a new key")
	rekeyCmd.Flags().String("key", "", "New 32-byte encryption key (required unless --disable)")
}
