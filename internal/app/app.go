// Package app wires configuration, ontology, storage and the curation service
// for the command line entry points.
package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/phetools-curation-server/internal/database"
	"github.com/phetools-curation-server/internal/domain"
	"github.com/phetools-curation-server/internal/ontology"
	"github.com/phetools-curation-server/internal/service"
	"github.com/phetools-curation-server/internal/store"
	"github.com/phetools-curation-server/pkg/external"
)

// App holds the long-lived components of a process.
type App struct {
	Config   *domain.Config
	Logger   *logrus.Logger
	Graph    *ontology.Graph
	Store    domain.CohortStore
	Curation *service.CurationService

	db *database.DB
}

type options struct {
	withStore     bool
	withVariants  bool
	databaseURL   string
	skipMigration bool
}

// Option adjusts which components New builds.
type Option func(*options)

// WithoutStore skips cohort storage; Save and Load then fail.
func WithoutStore() Option {
	return func(o *options) { o.withStore = false }
}

// WithoutVariantValidator skips the VariantValidator client.
func WithoutVariantValidator() Option {
	return func(o *options) { o.withVariants = false }
}

// WithDatabaseURL stores cohorts in the Postgres database at url, ignoring
// the configured driver.
func WithDatabaseURL(url string) Option {
	return func(o *options) { o.databaseURL = url }
}

// WithoutMigrations leaves the Postgres schema untouched.
func WithoutMigrations() Option {
	return func(o *options) { o.skipMigration = true }
}

// New loads the ontology and builds the curation service.
func New(ctx context.Context, cfg *domain.Config, logger *logrus.Logger, opts ...Option) (*App, error) {
	o := options{withStore: true, withVariants: true}
	for _, opt := range opts {
		opt(&o)
	}

	graphOpts := []ontology.GraphOption{}
	if cfg.Ontology.CacheSize > 0 {
		graphOpts = append(graphOpts, ontology.WithCacheSize(cfg.Ontology.CacheSize))
	}
	graph, err := ontology.LoadOBO(cfg.Ontology.OBOPath, graphOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load HPO from %s: %w", cfg.Ontology.OBOPath, err)
	}
	logger.WithFields(logrus.Fields{
		"obo_path":    cfg.Ontology.OBOPath,
		"hpo_version": graph.Version(),
		"terms":       graph.Len(),
	}).Info("Loaded HPO")

	a := &App{Config: cfg, Logger: logger, Graph: graph}

	if o.withStore {
		if err := a.openStore(ctx, o); err != nil {
			return nil, err
		}
	}

	var variants domain.VariantValidator
	if o.withVariants {
		client, err := external.NewVariantValidatorClient(cfg.VariantValidator, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create VariantValidator client: %w", err)
		}
		variants = client
	}

	a.Curation = service.NewCurationService(graph, a.Store, variants, cfg.Curation, logger)
	return a, nil
}

func (a *App) openStore(ctx context.Context, o options) error {
	cfg := a.Config.Database

	switch {
	case o.databaseURL != "":
		if !o.skipMigration {
			if err := database.Migrate(o.databaseURL, cfg.MigrationsPath, a.Logger); err != nil {
				return err
			}
		}
		s, err := store.NewPostgresStoreFromURL(o.databaseURL)
		if err != nil {
			return err
		}
		a.Store = s

	case cfg.Driver == "postgres":
		dbCfg := database.ConfigFrom(cfg)
		if !o.skipMigration {
			if err := database.Migrate(dbCfg.URL(), cfg.MigrationsPath, a.Logger); err != nil {
				return err
			}
		}
		db, err := database.NewConnection(ctx, dbCfg, a.Logger)
		if err != nil {
			return err
		}
		s, err := store.NewPostgresStore(db.SQL())
		if err != nil {
			db.Close()
			return err
		}
		a.db = db
		a.Store = s

	case cfg.Driver == "sqlite", cfg.Driver == "":
		s, err := store.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return err
		}
		a.Store = s

	default:
		return fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	a.Logger.WithField("driver", cfg.Driver).Info("Opened cohort store")
	return nil
}

// Close releases the store and the connection pool.
func (a *App) Close() {
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.WithError(err).Error("Failed to close cohort store")
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}
