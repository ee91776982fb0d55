package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/phetools-curation-server/internal/domain"
)

// Merger combines independently curated cohorts.
type Merger struct {
	arranger  *Arranger
	sanitizer *Sanitizer
	logger    *logrus.Logger
}

// NewMerger creates a merger that arranges and sanitizes with the given components.
func NewMerger(arranger *Arranger, sanitizer *Sanitizer, logger *logrus.Logger) *Merger {
	return &Merger{arranger: arranger, sanitizer: sanitizer, logger: logger}
}

// Merge returns a new cohort holding the rows of a followed by the rows of b
// over the union of their term columns. Cells of columns a row's source did
// not have are not ascertained. Neither input is modified.
func (m *Merger) Merge(ctx context.Context, a, b *domain.Cohort) (*domain.Cohort, error) {
	if a.CohortType != b.CohortType {
		return nil, domain.NewStructuralError(domain.ErrIncompatibleCohorts,
			"cannot merge a %s cohort with a %s cohort", a.CohortType, b.CohortType)
	}
	for _, c := range []*domain.Cohort{a, b} {
		if err := c.CheckWidth(); err != nil {
			return nil, err
		}
	}

	union := append([]domain.TermRef(nil), a.TermHeaders...)
	seen := make(map[domain.TermID]struct{}, len(union))
	for _, t := range union {
		seen[t.ID] = struct{}{}
	}
	for _, t := range b.TermHeaders {
		if _, ok := seen[t.ID]; !ok {
			seen[t.ID] = struct{}{}
			union = append(union, t)
		}
	}
	headers, unreachable := m.arranger.ArrangeRefs(union)

	diseases := mergeDiseases(a.DiseaseList, b.DiseaseList)
	cohortType := a.CohortType
	if cohortType == domain.Mendelian && len(diseases) > 1 {
		cohortType = domain.Melded
	}
	merged := domain.NewCohort(cohortType, diseases, headers, a.HPOVersion)
	merged.Acronym = a.Acronym
	merged.CurationHistory = append(append([]domain.CurationEvent(nil), a.CurationHistory...), b.CurationHistory...)
	for _, src := range []*domain.Cohort{a, b} {
		for i := range src.Rows {
			merged.Rows = append(merged.Rows, expandRow(src, i, headers))
		}
		for k, v := range src.HgvsVariants {
			merged.HgvsVariants[k] = v
		}
		for k, v := range src.StructuralVariants {
			merged.StructuralVariants[k] = v
		}
	}

	corrected, err := m.sanitizer.SanitizeCohort(ctx, merged)
	if err != nil {
		return nil, err
	}
	if err := merged.CheckWidth(); err != nil {
		return nil, err
	}

	m.logger.WithFields(logrus.Fields{
		"rows_a":      len(a.Rows),
		"rows_b":      len(b.Rows),
		"terms":       len(headers),
		"unreachable": len(unreachable),
		"corrections": corrected,
	}).Info("Cohorts merged")
	return merged, nil
}

// expandRow copies row i of src onto the given header order.
func expandRow(src *domain.Cohort, i int, headers []domain.TermRef) domain.Row {
	values := src.RowAnnotations(i)
	row := src.Rows[i].Clone()
	row.CellValues = make([]domain.CellValue, len(headers))
	for j, h := range headers {
		if v, ok := values[h.ID]; ok {
			row.CellValues[j] = v
		} else {
			row.CellValues[j] = domain.NotAscertained
		}
	}
	return row
}

// mergeDiseases unions two disease lists by identifier, keeping the first
// occurrence and merging inheritance modes and genes.
func mergeDiseases(a, b []domain.DiseaseData) []domain.DiseaseData {
	var out []domain.DiseaseData
	index := make(map[string]int)
	for _, d := range append(append([]domain.DiseaseData(nil), a...), b...) {
		i, ok := index[d.DiseaseID]
		if !ok {
			index[d.DiseaseID] = len(out)
			d.ModeOfInheritanceList = append([]domain.ModeOfInheritance(nil), d.ModeOfInheritanceList...)
			d.GeneTranscriptList = append([]domain.GeneTranscriptData(nil), d.GeneTranscriptList...)
			out = append(out, d)
			continue
		}
		existing := &out[i]
		for _, moi := range d.ModeOfInheritanceList {
			if !containsMOI(existing.ModeOfInheritanceList, moi.HPOID) {
				existing.ModeOfInheritanceList = append(existing.ModeOfInheritanceList, moi)
			}
		}
		for _, gt := range d.GeneTranscriptList {
			if !containsGene(existing.GeneTranscriptList, gt) {
				existing.GeneTranscriptList = append(existing.GeneTranscriptList, gt)
			}
		}
	}
	return out
}

func containsMOI(list []domain.ModeOfInheritance, id domain.TermID) bool {
	for _, m := range list {
		if m.HPOID == id {
			return true
		}
	}
	return false
}

func containsGene(list []domain.GeneTranscriptData, gt domain.GeneTranscriptData) bool {
	for _, g := range list {
		if g == gt {
			return true
		}
	}
	return false
}
