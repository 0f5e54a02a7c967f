package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/EOSync/internal/archive"
	"github.com/TobiSchelling/EOSync/internal/config"
	"github.com/TobiSchelling/EOSync/internal/database"
	"github.com/TobiSchelling/EOSync/internal/ledger"
	"github.com/TobiSchelling/EOSync/internal/logger"
	"github.com/TobiSchelling/EOSync/internal/pipeline"
	"github.com/TobiSchelling/EOSync/internal/record"
	"github.com/TobiSchelling/EOSync/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	strict     bool
	dryRun     bool
	cfg        *config.Config
	log        *logrus.Logger
)

// errDegraded signals a completed but unhealthy run under --strict.
var errDegraded = errors.New("sync finished with problems")

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "eosync",
	Short:   "Track executive orders from the Federal Register",
	Long:    "EOSync records newly published executive orders in a CSV log and archives their full text as plain text files.",
	Version: version,
	Args:    cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		if dir := cfg.Output.DataDir; dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("creating data directory: %w", err)
			}
		}

		log = logger.New(logger.Config{
			Level:   cfg.Logging.Level,
			File:    cfg.Path(cfg.Logging.File),
			Verbose: verbose,
		})
		if verbose {
			log.SetLevel(logrus.DebugLevel)
		}
		return nil
	},
	RunE: runSync,
	// Problems are already reported through the logger.
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	rootCmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when the run had fetch or archive problems")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be recorded without writing anything")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
}

// --- sync (root) ---

func runSync(cmd *cobra.Command, args []string) error {
	var history *database.DB
	if cfg.Sync.History && !dryRun {
		db, err := database.Open(cfg.HistoryPath())
		if err != nil {
			// Run history is optional; the sync itself still works.
			log.Warnf("Run history unavailable: %v", err)
		} else {
			history = db
			defer db.Close()
		}
	}

	client := &http.Client{Timeout: cfg.HTTP.Timeout}
	pipe, err := pipeline.New(cfg, client, history, log)
	if err != nil {
		return err
	}

	ctx := context.Background()
	var summary *pipeline.Summary
	if dryRun {
		summary, err = pipe.DryRun(ctx)
	} else {
		summary, err = pipe.Run(ctx)
	}
	if err != nil {
		log.Errorf("Sync aborted: %v", err)
		return err
	}

	printSummary(summary)
	if strict && summary.Degraded() {
		return errDegraded
	}
	return nil
}

func printSummary(s *pipeline.Summary) {
	fields := logrus.Fields{
		"run_id":  s.RunID,
		"fetched": s.Fetched,
		"new":     s.NewRecords,
	}
	if s.DryRun {
		log.WithFields(fields).Info("Dry run complete")
		return
	}
	fields["written"] = s.Written
	fields["watermark"] = s.Watermark
	fields["archived"] = s.Count(archive.Archived)
	fields["skipped"] = s.Count(archive.Skipped)
	fields["failed"] = s.Count(archive.Failed)

	entry := log.WithFields(fields)
	if s.Degraded() {
		entry.Warn("Sync complete with problems")
		return
	}
	entry.Info("Sync complete")
}

// --- init ---

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to ./" + config.FileName,
	RunE: func(cmd *cobra.Command, args []string) error {
		target := config.FileName
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to change the output files, start date or CSV profile.")
		return nil
	},
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show watermark, log and archive status",
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := record.ProfileByName(cfg.Sync.Profile)
		if err != nil {
			return err
		}

		wm, err := ledger.NewWatermark(cfg.WatermarkPath(), cfg.Sync.DefaultStartDate).Load()
		if err != nil {
			return err
		}
		entries, err := ledger.NewLog(cfg.CSVPath(), profile).Entries()
		if err != nil {
			return err
		}
		texts, err := filepath.Glob(filepath.Join(cfg.TextDir(), "*.txt"))
		if err != nil {
			return err
		}

		fmt.Println("Sync state:")
		fmt.Printf("  Watermark: %s\n", wm)
		fmt.Printf("  Recorded orders: %d (%s)\n", len(entries), cfg.CSVPath())
		fmt.Printf("  Archived texts: %d (%s)\n", len(texts), cfg.TextDir())

		if !cfg.Sync.History {
			return nil
		}
		if _, err := os.Stat(cfg.HistoryPath()); err != nil {
			fmt.Println("\nRun history: none yet")
			return nil
		}
		db, err := database.Open(cfg.HistoryPath())
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}
		fmt.Println("\nRun history:")
		fmt.Printf("  Runs: %d\n", stats.Runs)
		if stats.LastRunAt != nil {
			fmt.Printf("  Last run: %s\n", *stats.LastRunAt)
		}
		fmt.Printf("  Archived: %d\n", stats.Archived)
		fmt.Printf("  Skipped: %d\n", stats.Skipped)
		fmt.Printf("  Failed: %d\n", stats.Failed)
		return nil
	},
}

// --- serve ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local read-only viewer",
	RunE: func(cmd *cobra.Command, args []string) error {
		var history *database.DB
		if cfg.Sync.History {
			db, err := database.Open(cfg.HistoryPath())
			if err != nil {
				return err
			}
			defer db.Close()
			history = db
		}

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		srv, err := server.New(cfg, history, log)
		if err != nil {
			return err
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return srv.ListenAndServe(port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("eosync", version)
	},
}
