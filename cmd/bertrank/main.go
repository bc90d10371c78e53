// Package main implements the bertrank CLI: BERT re-ranking of a candidate
// pool against TREC topics, written as a TREC run file.
package main

import (
	"fmt"
	"os"

	"github.com/fyrsmithlabs/bertrank/internal/config"
	"github.com/fyrsmithlabs/bertrank/internal/logging"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/log"
)

var (
	// configPath is the YAML config file; empty uses ~/.config/bertrank/config.yaml
	configPath string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "bertrank",
	Short: "Re-rank TREC candidate documents with a BERT encoder",
	Long: `bertrank scores every candidate document against every topic with a
BERT encoder, keeps the top documents per topic and writes them as a TREC
run file.

Configuration is read from ~/.config/bertrank/config.yaml (or --config),
then overridden by BERTRANK_* environment variables and command flags.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/bertrank/config.yaml)")
	rootCmd.AddCommand(rankCmd)
	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(fetchModelCmd)
	rootCmd.AddCommand(versionCmd)
}

// versionCmd prints the build version
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the bertrank version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "bertrank", version)
	},
}

// newLogger builds the process logger from the logging section.
// otelProvider may be nil.
func newLogger(c config.LoggingConfig, otelProvider log.LoggerProvider) (*logging.Logger, error) {
	cfg, err := logging.FromRunConfig(c, version)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(cfg, otelProvider)
}
