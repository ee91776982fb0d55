// Package main provides the stdio MCP entry point for the curation server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/phetools-curation-server/internal/app"
	"github.com/phetools-curation-server/internal/config"
	"github.com/phetools-curation-server/internal/mcp"
	"github.com/phetools-curation-server/internal/setup"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		if err := runSetup(os.Args[2:]); err != nil {
			log.Fatalf("Setup failed: %v", err)
		}
		return
	}

	configPath := flag.String("config", "", "Config file path (YAML)")
	flag.Parse()

	configManager, err := config.NewManager(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg := configManager.GetConfig()
	// stdout carries the protocol.
	if cfg.Logging.Output == "stdout" {
		cfg.Logging.Output = "stderr"
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	logger := config.NewLogger(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger, app.WithoutStore(), app.WithoutVariantValidator())
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize")
	}
	defer a.Close()

	server, err := mcp.NewServer(cfg.MCP, a.Graph, a.Curation, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create MCP server")
	}

	logger.WithField("hpo_version", a.Graph.Version()).Info("Starting curation MCP server on stdio")
	if err := server.Start(ctx); err != nil && ctx.Err() == nil {
		logger.WithError(err).Fatal("MCP server failed")
	}
	logger.Info("Curation MCP server stopped")
}

// runSetup registers this binary with the desktop MCP client.
func runSetup(args []string) error {
	fs := flag.NewFlagSet("setup", flag.ContinueOnError)
	opts := setup.Options{}
	fs.StringVar(&opts.ClientConfigPath, "client-config", "", "MCP client config file (default: Claude Desktop)")
	fs.StringVar(&opts.ConfigFile, "config", "", "Server config file passed to the binary")
	fs.StringVar(&opts.OBOPath, "hpo", "", "Path to hp.obo")
	if err := fs.Parse(args); err != nil {
		return err
	}

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}
	opts.BinaryPath = self

	path, err := setup.Configure(opts)
	if err != nil {
		return err
	}
	fmt.Printf("Registered %s in %s\n", setup.ServerName, path)
	fmt.Println("Restart the MCP client to load the server.")
	return nil
}
