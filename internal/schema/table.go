package schema

import (
	"fmt"

	"github.com/phetools-curation-server/internal/domain"
	"github.com/phetools-curation-server/pkg/hgvs"
)

type versioned interface {
	Version() string
}

// ParseTable validates a raw template against the header schema and the
// hierarchy and converts it into a cohort. All header, cell and term problems
// are returned together; a data row of the wrong width stops parsing.
//
// Term columns keep their template order. HGVS alleles are counted but not
// resolved to genomic coordinates.
func ParseTable(matrix [][]string, h domain.Hierarchy) (*domain.Cohort, error) {
	if len(matrix) < 2 {
		return nil, domain.NewStructuralError(domain.ErrWidthMismatch, "a template needs two header rows, got %d rows", len(matrix))
	}
	s, err := BuildSchema(matrix[0], matrix[1])
	if err != nil {
		return nil, err
	}

	var errs domain.ValidationErrors
	errs.Add(CheckTerms(s.Terms, h))

	var hpoVersion string
	if v, ok := h.(versioned); ok {
		hpoVersion = v.Version()
	}
	cohort := domain.NewCohort(domain.Mendelian, nil, s.Terms, hpoVersion)
	diseases := newDiseaseCollector()

	for i, raw := range matrix[2:] {
		if len(raw) != s.Width() {
			return nil, domain.NewStructuralError(domain.ErrWidthMismatch,
				"row %d has %d cells but the header has %d columns", i, len(raw), s.Width())
		}
		rowOK := true
		for j, col := range s.Columns {
			if err := col.ValidateCell(raw[j]); err != nil {
				if ce, ok := err.(*domain.CellError); ok {
					ce.Row = i
				}
				errs.Add(err)
				rowOK = false
			}
		}
		if !rowOK {
			continue
		}

		row, gene, disease := rowFromCells(raw, len(s.Terms))
		diseases.add(disease, gene)
		svs, err := StructuralVariants(i, gene)
		if err != nil {
			errs.Add(err)
			continue
		}
		for _, sv := range svs {
			cohort.StructuralVariants[sv.VariantKey] = sv
		}
		cohort.Rows = append(cohort.Rows, row)
	}

	if err := errs.Err(); err != nil {
		return nil, err
	}
	cohort.DiseaseList = diseases.list()
	if len(cohort.DiseaseList) > 1 {
		cohort.CohortType = domain.Melded
	}
	return cohort, nil
}

// StructuralVariants builds the dictionary entries for the symbolic alleles
// of one row. Errors name the allele column at fault; nothing is returned
// unless every allele is valid.
func StructuralVariants(row int, gene domain.GeneVariantData) ([]domain.StructuralVariant, error) {
	var (
		out  []domain.StructuralVariant
		errs domain.ValidationErrors
	)
	for _, cell := range []struct {
		column Duplet
		allele string
	}{{Allele1Column, gene.Allele1}, {Allele2Column, gene.Allele2}} {
		if cell.allele == "na" || domain.IsHGVS(cell.allele) {
			continue
		}
		sv, err := hgvs.StructuralVariantFor(cell.allele, gene, "")
		if err != nil {
			errs.Add(&domain.CellError{Row: row, Column: cell.column.Row1, Value: cell.allele, Message: messageOf(err)})
			continue
		}
		out = append(out, sv)
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CheckTerms verifies every term column against the hierarchy: the identifier
// must be known and primary, and the label must be current.
func CheckTerms(terms []domain.TermRef, h domain.Hierarchy) error {
	var errs domain.ValidationErrors
	for _, t := range terms {
		if !h.TermExists(t.ID) {
			errs.Add(&domain.TermLookupError{ID: t.ID, Label: t.Label, Message: "not found in the ontology"})
			continue
		}
		if pid, ok := h.PrimaryIDOf(t.ID); ok && pid != t.ID {
			errs.Add(&domain.TermLookupError{ID: t.ID, Label: t.Label, Replacement: pid, Message: "obsolete or alternate identifier"})
			continue
		}
		if label, ok := h.LabelOf(t.ID); ok && label != t.Label {
			errs.Add(&domain.TermLookupError{ID: t.ID, Label: t.Label,
				Message: fmt.Sprintf("label '%s' does not match current label '%s'", t.Label, label)})
		}
	}
	return errs.Err()
}

func rowFromCells(raw []string, terms int) (domain.Row, domain.GeneVariantData, domain.DiseaseData) {
	cell := func(d Duplet) string {
		return raw[int(d.Kind)]
	}
	individual := domain.IndividualData{
		PMID:               cell(PMIDColumn),
		Title:              cell(TitleColumn),
		IndividualID:       cell(IndividualIDColumn),
		Comment:            cell(CommentColumn),
		AgeOfOnset:         cell(AgeOfOnsetColumn),
		AgeAtLastEncounter: cell(AgeAtLastEncounterColumn),
		Deceased:           cell(DeceasedColumn),
		Sex:                cell(SexColumn),
	}
	gene := domain.GeneVariantData{
		HGNCID:         cell(HGNCIDColumn),
		GeneSymbol:     cell(GeneSymbolColumn),
		Transcript:     cell(TranscriptColumn),
		Allele1:        cell(Allele1Column),
		Allele2:        cell(Allele2Column),
		VariantComment: cell(VariantCommentColumn),
	}
	disease := domain.DiseaseData{
		DiseaseID:    cell(DiseaseIDColumn),
		DiseaseLabel: cell(DiseaseLabelColumn),
	}

	counts := make(map[string]int)
	for _, k := range gene.AlleleKeys() {
		counts[k]++
	}
	values := make([]domain.CellValue, terms)
	for j := range values {
		// already validated by ValidateCell
		values[j], _ = domain.ParseCellValue(raw[FirstTermColumn+j])
	}
	return domain.Row{
		IndividualData: individual,
		DiseaseIDs:     []string{disease.DiseaseID},
		AlleleCounts:   counts,
		CellValues:     values,
	}, gene, disease
}

type diseaseCollector struct {
	order []string
	byID  map[string]*domain.DiseaseData
}

func newDiseaseCollector() *diseaseCollector {
	return &diseaseCollector{byID: make(map[string]*domain.DiseaseData)}
}

func (c *diseaseCollector) add(d domain.DiseaseData, g domain.GeneVariantData) {
	entry, ok := c.byID[d.DiseaseID]
	if !ok {
		entry = &domain.DiseaseData{DiseaseID: d.DiseaseID, DiseaseLabel: d.DiseaseLabel}
		c.byID[d.DiseaseID] = entry
		c.order = append(c.order, d.DiseaseID)
	}
	gt := domain.GeneTranscriptData{HGNCID: g.HGNCID, GeneSymbol: g.GeneSymbol, Transcript: g.Transcript}
	for _, existing := range entry.GeneTranscriptList {
		if existing == gt {
			return
		}
	}
	entry.GeneTranscriptList = append(entry.GeneTranscriptList, gt)
}

func (c *diseaseCollector) list() []domain.DiseaseData {
	out := make([]domain.DiseaseData, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.byID[id])
	}
	return out
}
