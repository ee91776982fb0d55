// Package main provides the phetools command line curation tool.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/phetools-curation-server/internal/app"
	"github.com/phetools-curation-server/internal/config"
)

const (
	Version = "1.0.0"
	appName = "phetools"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globals are the persistent flags shared by every subcommand.
type globals struct {
	configPath string
	hpoPath    string
	format     string
	logLevel   string
}

func rootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Curate HPO phenotype cohorts",
		Long: `phetools validates, sanitizes, merges and checks phenotype curation
templates: two-row headers of fixed columns followed by one column per HPO
term, one row per individual.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch g.format {
			case "json", "yaml":
				return nil
			}
			return fmt.Errorf("unsupported format %q (json or yaml)", g.format)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&g.configPath, "config", "c", "", "Config file path (YAML)")
	flags.StringVar(&g.hpoPath, "hpo", "", "Path to hp.obo (overrides ontology.obo_path)")
	flags.StringVarP(&g.format, "format", "f", "json", "Report format (json, yaml)")
	flags.StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		validateCmd(g),
		sanitizeCmd(g),
		mergeCmd(g),
		arrangeCmd(g),
		templateCmd(g),
		qcCmd(g),
		exportCmd(g),
		importCmd(g),
		setupCmd(g),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
			},
		},
	)
	return cmd
}

// open loads configuration and the ontology. Logs go to stderr so reports on
// stdout stay machine readable.
func (g *globals) open(ctx context.Context, opts ...app.Option) (*app.App, error) {
	manager, err := config.NewManager(g.configPath)
	if err != nil {
		return nil, err
	}
	cfg := manager.GetConfig()
	if g.hpoPath != "" {
		cfg.Ontology.OBOPath = g.hpoPath
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}
	if cfg.Logging.Output == "stdout" {
		cfg.Logging.Output = "stderr"
	}
	if err := manager.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	logger := config.NewLogger(cfg.Logging)
	return app.New(ctx, cfg, logger, opts...)
}

// print writes a report in the selected format.
func (g *globals) print(w io.Writer, v interface{}) error {
	if g.format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}
