package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/phetools-curation-server/internal/domain"
	ot "github.com/phetools-curation-server/internal/ontology/ontologytest"
	"github.com/phetools-curation-server/internal/schema"
)

// MockVariantValidator is a mock implementation of domain.VariantValidator
type MockVariantValidator struct {
	mock.Mock
}

func (m *MockVariantValidator) ValidateHGVS(ctx context.Context, hgvs, transcript string) (*domain.HgvsVariant, error) {
	args := m.Called(ctx, hgvs, transcript)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.HgvsVariant), args.Error(1)
}

// MockCohortStore is a mock implementation of domain.CohortStore
type MockCohortStore struct {
	mock.Mock
}

func (m *MockCohortStore) Save(ctx context.Context, cohort *domain.Cohort) error {
	return m.Called(ctx, cohort).Error(0)
}

func (m *MockCohortStore) Get(ctx context.Context, id string) (*domain.Cohort, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Cohort), args.Error(1)
}

func (m *MockCohortStore) List(ctx context.Context, limit, offset int) ([]domain.CohortRecord, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]domain.CohortRecord), args.Error(1)
}

func (m *MockCohortStore) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockCohortStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockCohortStore) Close() error {
	return m.Called().Error(0)
}

func newTestService(t *testing.T, store domain.CohortStore, variants domain.VariantValidator, cfg domain.CurationConfig) *CurationService {
	return NewCurationService(ot.Graph(t), store, variants, cfg, testLogger())
}

func templateMatrix(t *testing.T, terms []domain.TermID, lines ...[]string) [][]string {
	g := ot.Graph(t)
	refs := make([]domain.TermRef, len(terms))
	for i, id := range terms {
		refs[i] = ot.Ref(t, g, id)
	}
	return append(schema.NewTemplateMatrix(refs), lines...)
}

func templateLine(individual string, hpo ...string) []string {
	fixed := schema.FixedCells(
		domain.IndividualData{
			PMID: "PMID:29482508", Title: "Marfan syndrome in a family", IndividualID: individual,
			AgeOfOnset: "na", AgeAtLastEncounter: "P30Y", Deceased: "no", Sex: "M",
		},
		marfan,
		domain.GeneVariantData{HGNCID: "HGNC:3603", GeneSymbol: "FBN1", Transcript: "NM_000138.5", Allele1: "c.8242G>T", Allele2: "na"},
	)
	return append(fixed, hpo...)
}

func TestCurationService_ImportTable(t *testing.T) {
	terms := []domain.TermID{ot.Arachnodactyly, ot.Musculoskeletal, ot.EctopiaLentis}
	matrix := templateMatrix(t, terms,
		templateLine("P1", "observed", "observed", "na"),
		templateLine("P2", "excluded", "na", "P4Y"),
	)

	t.Run("arranges columns", func(t *testing.T) {
		svc := newTestService(t, nil, nil, domain.CurationConfig{Workers: 2})
		c, err := svc.ImportTable(context.Background(), matrix)
		require.NoError(t, err)

		assert.Equal(t, []domain.TermID{ot.EctopiaLentis, ot.Musculoskeletal, ot.Arachnodactyly}, c.TermIDs())
		assert.Equal(t, cells(na, obs, obs), c.Rows[0].CellValues)
		assert.Equal(t, cells(domain.NewOnsetAge("P4Y"), na, exc), c.Rows[1].CellValues)
	})

	t.Run("auto sanitize", func(t *testing.T) {
		svc := newTestService(t, nil, nil, domain.CurationConfig{Workers: 2, AutoSanitize: true})
		c, err := svc.ImportTable(context.Background(), matrix)
		require.NoError(t, err)
		assert.Equal(t, cells(na, na, obs), c.Rows[0].CellValues)
	})

	t.Run("auto sanitize cancelled", func(t *testing.T) {
		svc := newTestService(t, nil, nil, domain.CurationConfig{Workers: 2, AutoSanitize: true})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		c, err := svc.ImportTable(ctx, matrix)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, c)
	})

	t.Run("invalid template", func(t *testing.T) {
		svc := newTestService(t, nil, nil, domain.CurationConfig{})
		bad := templateMatrix(t, terms, templateLine("P1", "observed", "yes", "na"))
		_, err := svc.ImportTable(context.Background(), bad)
		var ce *domain.CellError
		assert.ErrorAs(t, err, &ce)
	})
}

func TestCurationService_Columns(t *testing.T) {
	g := ot.Graph(t)
	svc := newTestService(t, nil, nil, domain.CurationConfig{})
	c := testCohort(t, g, []domain.TermID{ot.EctopiaLentis, ot.Arachnodactyly}, cells(obs, exc), cells(na, obs))

	require.NoError(t, svc.AddTermColumn(c, ot.Ref(t, g, ot.AtrialSeptalDefect)))
	assert.Equal(t, []domain.TermID{ot.EctopiaLentis, ot.AtrialSeptalDefect, ot.Arachnodactyly}, c.TermIDs())
	assert.Equal(t, cells(obs, na, exc), c.Rows[0].CellValues)
	assert.Equal(t, cells(na, na, obs), c.Rows[1].CellValues)

	err := svc.AddTermColumn(c, ot.Ref(t, g, ot.AtrialSeptalDefect))
	assert.ErrorIs(t, err, domain.ErrDuplicateTerm)

	err = svc.AddTermColumn(c, domain.TermRef{ID: ot.ArachnodactylyAlt, Label: "Arachnodactyly"})
	var tle *domain.TermLookupError
	require.ErrorAs(t, err, &tle)
	assert.Equal(t, ot.Arachnodactyly, tle.Replacement)

	require.NoError(t, svc.RemoveTermColumn(c, ot.EctopiaLentis))
	assert.Equal(t, []domain.TermID{ot.AtrialSeptalDefect, ot.Arachnodactyly}, c.TermIDs())
	assert.Equal(t, cells(na, exc), c.Rows[0].CellValues)
	require.NoError(t, c.CheckWidth())

	assert.ErrorIs(t, svc.RemoveTermColumn(c, ot.EctopiaLentis), domain.ErrNotFound)
}

func TestCurationService_Rows(t *testing.T) {
	g := ot.Graph(t)
	svc := newTestService(t, nil, nil, domain.CurationConfig{AutoSanitize: true})
	c := testCohort(t, g, []domain.TermID{ot.Musculoskeletal, ot.Arachnodactyly}, cells(obs, na))

	in := RowInput{
		Individual: domain.IndividualData{
			PMID: "PMID:31234567", Title: "A second family", IndividualID: "III-2",
			AgeOfOnset: "Congenital onset", AgeAtLastEncounter: "P2Y", Deceased: "na", Sex: "U",
		},
		Disease: marfan,
		Gene: domain.GeneVariantData{
			HGNCID: "HGNC:3603", GeneSymbol: "FBN1", Transcript: "NM_000138.5",
			Allele1: "DEL: exons 5-7", Allele2: "na",
		},
		Annotations: map[domain.TermID]domain.CellValue{ot.Musculoskeletal: obs, ot.Arachnodactyly: obs},
	}
	require.NoError(t, svc.AddRow(c, in))
	require.Len(t, c.Rows, 2)
	assert.Equal(t, cells(na, obs), c.Rows[1].CellValues, "new row is sanitized")
	assert.Contains(t, c.StructuralVariants, "DEL: exons 5-7_FBN1_NM_000138.5")
	assert.Len(t, c.DiseaseList, 1)

	t.Run("rejects invalid input", func(t *testing.T) {
		bad := in
		bad.Individual.Sex = "female"
		bad.Annotations = map[domain.TermID]domain.CellValue{ot.EctopiaLentis: obs}
		err := svc.AddRow(c, bad)
		var errs *domain.ValidationErrors
		require.ErrorAs(t, err, &errs)
		// sex, unknown column, already curated individual
		assert.Equal(t, 3, errs.Len())
		assert.Len(t, c.Rows, 2)
	})

	t.Run("bad second allele leaves no variants behind", func(t *testing.T) {
		bad := in
		bad.Individual.IndividualID = "III-3"
		bad.Gene.Allele1 = "DUP: exon 9"
		bad.Gene.Allele2 = "FOO: exon 2"
		before := len(c.StructuralVariants)

		assert.Error(t, svc.AddRow(c, bad))
		assert.Len(t, c.StructuralVariants, before)
		assert.NotContains(t, c.StructuralVariants, "DUP: exon 9_FBN1_NM_000138.5")
		assert.Len(t, c.Rows, 2)
	})

	require.NoError(t, svc.DeleteRow(c, 0))
	require.Len(t, c.Rows, 1)
	assert.Equal(t, "III-2", c.Rows[0].IndividualData.IndividualID)
	assert.ErrorIs(t, svc.DeleteRow(c, 4), domain.ErrNotFound)
}

func TestCurationService_ValidateVariants(t *testing.T) {
	g := ot.Graph(t)

	t.Run("resolves missing variants", func(t *testing.T) {
		validator := new(MockVariantValidator)
		variant := &domain.HgvsVariant{
			Assembly: "hg38", Chr: "chr15", Position: 48411164, RefAllele: "C", AltAllele: "A",
			Symbol: "FBN1", HGNCID: "HGNC:3603", HGVS: "c.8242G>T", Transcript: "NM_000138.5",
		}
		validator.On("ValidateHGVS", mock.Anything, "c.8242G>T", "NM_000138.5").Return(variant, nil).Once()

		svc := newTestService(t, nil, validator, domain.CurationConfig{Workers: 2})
		c := testCohort(t, g, []domain.TermID{ot.Arachnodactyly}, cells(obs), cells(exc))

		require.NoError(t, svc.ValidateVariants(context.Background(), c))
		assert.Equal(t, *variant, c.HgvsVariants["c.8242G>T_FBN1_NM_000138.5"])

		// already known variants are not requested again
		require.NoError(t, svc.ValidateVariants(context.Background(), c))
		validator.AssertExpectations(t)
	})

	t.Run("collects failures", func(t *testing.T) {
		validator := new(MockVariantValidator)
		validator.On("ValidateHGVS", mock.Anything, "c.8242G>T", "NM_000138.5").Return(nil, errors.New("service unavailable"))

		svc := newTestService(t, nil, validator, domain.CurationConfig{})
		c := testCohort(t, g, []domain.TermID{ot.Arachnodactyly}, cells(obs))

		err := svc.ValidateVariants(context.Background(), c)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "service unavailable")
		assert.Empty(t, c.HgvsVariants)
	})

	t.Run("not configured", func(t *testing.T) {
		svc := newTestService(t, nil, nil, domain.CurationConfig{})
		c := testCohort(t, g, []domain.TermID{ot.Arachnodactyly}, cells(obs))

		var mcpErr *domain.MCPError
		require.ErrorAs(t, svc.ValidateVariants(context.Background(), c), &mcpErr)
		assert.Equal(t, domain.ErrExternalAPI, mcpErr.Code)
	})
}

func TestCurationService_Save(t *testing.T) {
	g := ot.Graph(t)
	store := new(MockCohortStore)
	store.On("Save", mock.Anything, mock.AnythingOfType("*domain.Cohort")).Return(nil).Once()

	svc := newTestService(t, store, nil, domain.CurationConfig{ORCID: "0000-0002-0736-9199"})
	svc.now = func() time.Time { return time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) }

	c := testCohort(t, g, []domain.TermID{ot.Arachnodactyly}, cells(obs))
	require.NoError(t, svc.Save(context.Background(), c))
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, []domain.CurationEvent{{ORCID: "0000-0002-0736-9199", Date: "2026-03-02"}}, c.CurationHistory)
	store.AssertExpectations(t)

	store.On("Get", mock.Anything, "missing").Return(nil, domain.ErrNotFound)
	_, err := svc.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	records := []domain.CohortRecord{{ID: c.ID, CohortType: domain.Mendelian, Individuals: 1, Terms: 1}}
	store.On("List", mock.Anything, 20, 0).Return(records, nil)
	store.On("Count", mock.Anything).Return(1, nil)
	got, total, err := svc.List(context.Background(), 20, 0)
	require.NoError(t, err)
	assert.Equal(t, records, got)
	assert.Equal(t, 1, total)

	store.On("Delete", mock.Anything, c.ID).Return(nil)
	require.NoError(t, svc.Delete(context.Background(), c.ID))
	store.AssertExpectations(t)
}

func TestCurationService_NoStore(t *testing.T) {
	svc := newTestService(t, nil, nil, domain.CurationConfig{})
	ctx := context.Background()

	_, err := svc.Load(ctx, "c-1")
	assert.Equal(t, domain.ErrDatabaseError, domain.ErrorCode(err))
	_, _, err = svc.List(ctx, 10, 0)
	assert.Equal(t, domain.ErrDatabaseError, domain.ErrorCode(err))
	assert.Equal(t, domain.ErrDatabaseError, domain.ErrorCode(svc.Delete(ctx, "c-1")))
}
