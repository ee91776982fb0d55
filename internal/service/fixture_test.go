package service

import (
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/phetools-curation-server/internal/domain"
	"github.com/phetools-curation-server/internal/ontology"
	"github.com/phetools-curation-server/internal/ontology/ontologytest"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress logs during testing
	return logger
}

var marfan = domain.DiseaseData{
	DiseaseID:    "OMIM:154700",
	DiseaseLabel: "Marfan syndrome",
	ModeOfInheritanceList: []domain.ModeOfInheritance{
		{HPOID: domain.AutosomalDominantID, HPOLabel: "Autosomal dominant inheritance", Citation: "PMID:29482508"},
	},
	GeneTranscriptList: []domain.GeneTranscriptData{
		{HGNCID: "HGNC:3603", GeneSymbol: "FBN1", Transcript: "NM_000138.5"},
	},
}

// testCohort builds a Mendelian cohort over terms with one row per cell list.
func testCohort(t *testing.T, g *ontology.Graph, terms []domain.TermID, rows ...[]domain.CellValue) *domain.Cohort {
	t.Helper()
	headers := make([]domain.TermRef, len(terms))
	for i, id := range terms {
		headers[i] = ontologytest.Ref(t, g, id)
	}
	c := domain.NewCohort(domain.Mendelian, []domain.DiseaseData{marfan}, headers, g.Version())
	for i, cells := range rows {
		if len(cells) != len(terms) {
			t.Fatalf("row %d has %d cells for %d terms", i, len(cells), len(terms))
		}
		c.Rows = append(c.Rows, domain.Row{
			IndividualData: domain.IndividualData{
				PMID:               "PMID:29482508",
				Title:              "Marfan syndrome in a family",
				IndividualID:       fmt.Sprintf("P%d", i+1),
				AgeOfOnset:         "Childhood onset",
				AgeAtLastEncounter: "na",
				Deceased:           "no",
				Sex:                "F",
			},
			DiseaseIDs:   []string{marfan.DiseaseID},
			AlleleCounts: map[string]int{"c.8242G>T_FBN1_NM_000138.5": 1},
			CellValues:   append([]domain.CellValue(nil), cells...),
		})
	}
	return c
}

func cells(vs ...domain.CellValue) []domain.CellValue {
	return vs
}

var (
	obs = domain.Observed
	exc = domain.Excluded
	na  = domain.NotAscertained
)
