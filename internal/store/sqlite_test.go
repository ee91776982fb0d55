package store

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phetools-curation-server/internal/domain"
)

func testCohort(id string) *domain.Cohort {
	marfan := domain.DiseaseData{
		DiseaseID:             "OMIM:154700",
		DiseaseLabel:          "Marfan syndrome",
		ModeOfInheritanceList: []domain.ModeOfInheritance{{HPOID: domain.AutosomalDominantID}},
		GeneTranscriptList:    []domain.GeneTranscriptData{{HGNCID: "HGNC:3603", GeneSymbol: "FBN1", Transcript: "NM_000138.5"}},
	}
	c := domain.NewCohort(domain.Mendelian, []domain.DiseaseData{marfan}, []domain.TermRef{
		{ID: "HP:0001166", Label: "Arachnodactyly"},
		{ID: "HP:0001083", Label: "Ectopia lentis"},
	}, "2024-04-26")
	c.ID = id
	c.Acronym = "MFS"
	c.Rows = append(c.Rows, domain.Row{
		IndividualData: domain.IndividualData{PMID: "PMID:29482508", IndividualID: "P1", Sex: "M"},
		DiseaseIDs:     []string{"OMIM:154700"},
		AlleleCounts:   map[string]int{"c.8242G>T_FBN1_NM_000138.5": 1},
		CellValues:     []domain.CellValue{domain.Observed, domain.NewOnsetAge("P4Y")},
	})
	return c
}

func createTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "cohorts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "cohorts.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "Database file should exist")
}

func TestSQLiteStore_SaveGet(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	c := testCohort("c-1")
	require.NoError(t, store.Save(ctx, c))

	got, err := store.Get(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, c, got)

	// a second save replaces the stored version
	c.Rows[0].CellValues[0] = domain.Excluded
	require.NoError(t, store.Save(ctx, c))
	got, err = store.Get(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, domain.Excluded, got.Rows[0].CellValues[0])

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSQLiteStore_Errors(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, store.Delete(ctx, "missing"), domain.ErrNotFound)

	var ve *domain.ValidationError
	assert.ErrorAs(t, store.Save(ctx, testCohort("")), &ve)
}

func TestSQLiteStore_ListDelete(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"c-1", "c-2", "c-3"} {
		require.NoError(t, store.Save(ctx, testCohort(id)))
	}

	records, err := store.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}
	assert.ElementsMatch(t, []string{"c-1", "c-2", "c-3"}, ids)

	rec := records[0]
	assert.Equal(t, "MFS", rec.Acronym)
	assert.Equal(t, domain.Mendelian, rec.CohortType)
	assert.Equal(t, 1, rec.Individuals)
	assert.Equal(t, 2, rec.Terms)
	assert.Equal(t, "2024-04-26", rec.HPOVersion)
	assert.NotEmpty(t, rec.UpdatedAt)

	page, err := store.List(ctx, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page, 1)

	require.NoError(t, store.Delete(ctx, "c-2"))
	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestExportImportJSON(t *testing.T) {
	ctx := context.Background()
	source := createTestStore(t)
	require.NoError(t, source.Save(ctx, testCohort("c-1")))
	require.NoError(t, source.Save(ctx, testCohort("c-2")))

	var buf bytes.Buffer
	require.NoError(t, ExportJSON(ctx, source, &buf))
	assert.Contains(t, buf.String(), `"count": 2`)

	target := createTestStore(t)
	require.NoError(t, target.Save(ctx, testCohort("c-2")))

	imported, skipped, err := ImportJSON(ctx, target, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 1, imported)
	assert.Equal(t, 1, skipped)

	got, err := target.Get(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, testCohort("c-1"), got)

	_, _, err = ImportJSON(ctx, target, bytes.NewReader([]byte("not json")))
	assert.Error(t, err)
}
