package app

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phetools-curation-server/internal/domain"
	ot "github.com/phetools-curation-server/internal/ontology/ontologytest"
)

func testConfig(t *testing.T) *domain.Config {
	t.Helper()
	dir := t.TempDir()
	obo := filepath.Join(dir, "hp.obo")
	require.NoError(t, os.WriteFile(obo, []byte(ot.OBO()), 0644))

	return &domain.Config{
		Database: domain.DatabaseConfig{Driver: "sqlite", SQLitePath: filepath.Join(dir, "data", "cohorts.db")},
		Ontology: domain.OntologyConfig{OBOPath: obo, CacheSize: 64},
		Curation: domain.CurationConfig{Workers: 2},
	}
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestNew_SQLite(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, "2024-04-26", a.Graph.Version())
	require.NotNil(t, a.Store)
	require.NotNil(t, a.Curation)

	g := a.Graph
	c := domain.NewCohort(domain.Mendelian, nil, []domain.TermRef{ot.Ref(t, g, ot.Arachnodactyly)}, g.Version())
	require.NoError(t, a.Curation.Save(context.Background(), c))

	loaded, err := a.Curation.Load(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.TermIDs(), loaded.TermIDs())
}

func TestNew_WithoutStore(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), quietLogger(), WithoutStore(), WithoutVariantValidator())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Store)
	err = a.Curation.Save(context.Background(), &domain.Cohort{})
	assert.Equal(t, domain.ErrDatabaseError, domain.ErrorCode(err))
}

func TestNew_Errors(t *testing.T) {
	t.Run("missing ontology", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Ontology.OBOPath = filepath.Join(t.TempDir(), "absent.obo")
		_, err := New(context.Background(), cfg, quietLogger())
		assert.Error(t, err)
	})

	t.Run("unsupported driver", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Database.Driver = "mysql"
		_, err := New(context.Background(), cfg, quietLogger())
		assert.EqualError(t, err, "unsupported database driver: mysql")
	})

	t.Run("unsupported assembly", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.VariantValidator.GenomeAssembly = "hg19"
		_, err := New(context.Background(), cfg, quietLogger())
		assert.Error(t, err)
	})
}
