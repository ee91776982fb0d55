package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/phetools-curation-server/internal/domain"
)

// NewTemplateMatrix returns the two header rows of an empty template for the
// given terms. The terms are written in the order given; callers arrange them
// first.
func NewTemplateMatrix(terms []domain.TermRef) [][]string {
	row1, row2 := NewSchema(terms).HeaderRows()
	return [][]string{row1, row2}
}

// Matrix renders a cohort as a template: the header rows followed by one line
// per individual. It is the inverse of ParseTable for cohorts with a single
// gene per disease.
func Matrix(c *domain.Cohort) ([][]string, error) {
	if err := c.CheckWidth(); err != nil {
		return nil, err
	}
	out := NewTemplateMatrix(c.TermHeaders)
	for i, r := range c.Rows {
		line, err := renderRow(c, r)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, line)
	}
	return out, nil
}

func renderRow(c *domain.Cohort, r domain.Row) ([]string, error) {
	if len(r.DiseaseIDs) == 0 {
		return nil, domain.NewStructuralError(domain.ErrNotFound, "individual %s has no disease", r.IndividualData.IndividualID)
	}
	var disease *domain.DiseaseData
	for i := range c.DiseaseList {
		if c.DiseaseList[i].DiseaseID == r.DiseaseIDs[0] {
			disease = &c.DiseaseList[i]
			break
		}
	}
	if disease == nil {
		return nil, domain.NewStructuralError(domain.ErrNotFound, "disease %s is not in the disease list", r.DiseaseIDs[0])
	}

	gene := domain.GeneVariantData{Allele1: "na", Allele2: "na"}
	if len(disease.GeneTranscriptList) > 0 {
		gt := disease.GeneTranscriptList[0]
		gene.HGNCID, gene.GeneSymbol, gene.Transcript = gt.HGNCID, gt.GeneSymbol, gt.Transcript
	}
	alleles := allelesOf(r.AlleleCounts, gene)
	if len(alleles) > 0 {
		gene.Allele1 = alleles[0]
	}
	if len(alleles) > 1 {
		gene.Allele2 = alleles[1]
	}

	line := append(FixedCells(r.IndividualData, *disease, gene), make([]string, len(r.CellValues))...)
	for j, v := range r.CellValues {
		line[FirstTermColumn+j] = v.String()
	}
	return line, nil
}

// allelesOf recovers allele text from the count map. A count of two is a
// homozygous genotype.
func allelesOf(counts map[string]int, g domain.GeneVariantData) []string {
	suffix := "_" + g.GeneSymbol + "_" + g.Transcript
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []string
	for _, k := range keys {
		allele := strings.TrimSuffix(k, suffix)
		for n := 0; n < counts[k] && len(out) < 2; n++ {
			out = append(out, allele)
		}
	}
	return out
}

// FixedCells renders the fixed block and the separator of one individual in
// template order.
func FixedCells(ind domain.IndividualData, disease domain.DiseaseData, gene domain.GeneVariantData) []string {
	line := make([]string, FirstTermColumn)
	for _, f := range []struct {
		col   Duplet
		value string
	}{
		{PMIDColumn, ind.PMID},
		{TitleColumn, ind.Title},
		{IndividualIDColumn, ind.IndividualID},
		{CommentColumn, ind.Comment},
		{DiseaseIDColumn, disease.DiseaseID},
		{DiseaseLabelColumn, disease.DiseaseLabel},
		{HGNCIDColumn, gene.HGNCID},
		{GeneSymbolColumn, gene.GeneSymbol},
		{TranscriptColumn, gene.Transcript},
		{Allele1Column, gene.Allele1},
		{Allele2Column, gene.Allele2},
		{VariantCommentColumn, gene.VariantComment},
		{AgeOfOnsetColumn, ind.AgeOfOnset},
		{AgeAtLastEncounterColumn, ind.AgeAtLastEncounter},
		{DeceasedColumn, ind.Deceased},
		{SexColumn, ind.Sex},
		{SeparatorColumn, "na"},
	} {
		line[int(f.col.Kind)] = f.value
	}
	return line
}

// ValidateFixedCells checks the fixed block of one line and returns every
// violation. row is recorded in the errors.
func ValidateFixedCells(cells []string, row int) error {
	var errs domain.ValidationErrors
	cols := append(FixedBlock(), SeparatorColumn)
	if len(cells) < len(cols) {
		return domain.NewStructuralError(domain.ErrWidthMismatch, "line has %d cells, the fixed block needs %d", len(cells), len(cols))
	}
	for i, col := range cols {
		if err := col.ValidateCell(cells[i]); err != nil {
			if ce, ok := err.(*domain.CellError); ok {
				ce.Row = row
			}
			errs.Add(err)
		}
	}
	return errs.Err()
}
