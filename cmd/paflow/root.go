package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/paflow/internal/config"
	"github.com/gyeh/paflow/internal/exitcode"
)

var cfg config.Config

var configFile string

var rootCmd = &cobra.Command{
	Use:   "paflow",
	Short: "Prior authorization adjudication pipeline",
	Long:  "Adjudicates healthcare prior authorization requests: extracts identifying fields from a clinical document, evaluates eligibility rules against reference data, verifies X-ray or lab evidence, and writes an immutable audit record.",
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfg.DSN, "dsn", os.Getenv("DATABASE_URL"), "Postgres connection string (or set DATABASE_URL)")
	pf.StringVar(&cfg.LogFormat, "log-format", "text", "Log format: text or json")
	pf.StringVar(&configFile, "config", "", "Path to YAML config file (model path, LLM settings)")

	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
}

// loadConfigFile merges the optional YAML config file into cfg before a
// command validates its inputs.
func loadConfigFile() error {
	if configFile == "" {
		return nil
	}
	return cfg.LoadFromFile(configFile)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitcode.UsageError)
	}
}
