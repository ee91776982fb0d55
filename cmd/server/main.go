package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/phetools-curation-server/internal/api"
	"github.com/phetools-curation-server/internal/app"
	"github.com/phetools-curation-server/internal/config"
)

func main() {
	configPath := flag.String("config", "", "Config file path (YAML)")
	flag.Parse()

	// Load configuration
	configManager, err := config.NewManager(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := config.NewLogger(cfg.Logging)

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize")
	}
	defer a.Close()

	logger.WithFields(logrus.Fields{
		"host":        cfg.Server.Host,
		"port":        cfg.Server.Port,
		"hpo_version": a.Graph.Version(),
	}).Info("Starting curation server")

	server := api.NewServer(cfg.Server, a.Graph, a.Curation, logger)
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}
