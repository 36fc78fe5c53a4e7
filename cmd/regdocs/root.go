package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dgallion1/regdocs/internal/config"
)

var (
	cfgFile  string
	logLevel string
	dataDir  string

	// Set by the root command before any subcommand runs.
	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "regdocs",
	Short: "Regulatory document pipeline for retrieval",
	Long: `regdocs turns regulatory documents into a searchable vector collection.

Each stage reads the previous stage's JSONL file and writes its own:
  extract   document        -> {stem}_ekstrak.jsonl
  cleanse   _ekstrak.jsonl   -> {stem}_cleansing.jsonl
  chunk     _cleansing.jsonl -> {stem}_chunked.jsonl
  embed     _chunked.jsonl   -> {stem}_embedding.jsonl
  load      _embedding.jsonl -> vector collection

"run" executes every stage for one or more documents. "search", "query"
and "page" work against the loaded collection.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			c.LogLevel = logLevel
		}
		if cmd.Flags().Changed("data-dir") {
			c.DataDir = dataDir
		}

		var level slog.Level
		if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
			return fmt.Errorf("invalid log level %q", c.LogLevel)
		}
		cfg = c
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})).
			With("run_id", uuid.NewString())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./regdocs.yaml when present)",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info", "log level: debug, info, warn or error",
	)
	rootCmd.PersistentFlags().StringVar(
		&dataDir, "data-dir", "", "directory for stage files (default: data_dir setting)",
	)

	rootCmd.AddCommand(
		extractCmd, cleanseCmd, chunkCmd, embedCmd, loadCmd, runCmd,
		searchCmd, queryCmd, pageCmd,
		serveCmd, versionCmd,
	)
}
