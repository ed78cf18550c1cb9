package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"interview-session-service/internal/config"
	"interview-session-service/internal/observability/logging"
)

type rootOptions struct {
	envFile   string
	logLevel  string
	logFormat string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "interview",
		Short: "Run mock-interview sessions and assess them",
		Long: `interview drives a live mock-interview session against a media endpoint,
generates scored feedback from transcripts and reconciles report copies.

Configuration comes from the environment; --env-file loads a .env file first.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file to load when present")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "console", "log format: json or console")
	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if opts.envFile != "" {
			if err := godotenv.Load(opts.envFile); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("load %s: %w", opts.envFile, err)
			}
		}
		level := opts.logLevel
		if level == "" {
			level = os.Getenv("LOG_LEVEL")
		}
		logging.InitWithWriter(logging.Config{Level: level, Format: opts.logFormat, TimeFormat: time.RFC3339}, cmd.ErrOrStderr())
		return nil
	}

	cmd.AddCommand(newLiveCommand())
	cmd.AddCommand(newFeedbackCommand())
	cmd.AddCommand(newMergeCommand())
	return cmd
}

// loadConfig reads configuration after the dotenv file has been applied.
func loadConfig() *config.Configuration {
	return config.Load()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
