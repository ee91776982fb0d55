package service

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/phetools-curation-server/internal/domain"
	"github.com/phetools-curation-server/internal/schema"
)

// RowConflict lists the corrections the sanitizer would apply to one row.
type RowConflict struct {
	Row          int          `json:"row"`
	IndividualID string       `json:"individualId"`
	PMID         string       `json:"pmid"`
	Corrections  []Correction `json:"corrections"`
}

// HeaderChange records a term column rewritten by SanitizeHeaders.
type HeaderChange struct {
	Column int            `json:"column"`
	From   domain.TermRef `json:"from"`
	To     domain.TermRef `json:"to"`
}

// QC performs quality control of curated cohorts.
type QC struct {
	hierarchy domain.Hierarchy
	sanitizer *Sanitizer
	logger    *logrus.Logger
}

// NewQC creates a quality checker.
func NewQC(h domain.Hierarchy, sanitizer *Sanitizer, logger *logrus.Logger) *QC {
	return &QC{hierarchy: h, sanitizer: sanitizer, logger: logger}
}

// Check returns every structural, ontology and metadata problem of the cohort
// as one *domain.ValidationErrors, or nil.
func (q *QC) Check(c *domain.Cohort) error {
	var errs domain.ValidationErrors

	errs.Add(c.CheckWidth())
	seen := make(map[domain.TermID]int, len(c.TermHeaders))
	for i, h := range c.TermHeaders {
		if prev, dup := seen[h.ID]; dup {
			errs.Add(domain.NewStructuralError(domain.ErrDuplicateTerm, "%s appears in columns %d and %d", h, prev, i))
			continue
		}
		seen[h.ID] = i
	}
	errs.Add(schema.CheckTerms(c.TermHeaders, q.hierarchy))

	rows := make(map[string]int, len(c.Rows))
	for i, r := range c.Rows {
		key := r.Key()
		if prev, dup := rows[key]; dup {
			errs.Add(&domain.CellError{
				Row:     i,
				Column:  schema.IndividualIDColumn.Row1,
				Value:   r.IndividualData.IndividualID,
				Message: fmt.Sprintf("duplicate of row %d (%s)", prev, r.IndividualData.PMID),
			})
			continue
		}
		rows[key] = i
	}

	errs.Add(q.checkMetadata(c))

	if err := errs.Err(); err != nil {
		q.logger.WithFields(logrus.Fields{
			"cohort_id": c.ID,
			"errors":    errs.Len(),
		}).Info("Cohort failed quality control")
		return err
	}
	return nil
}

func (q *QC) checkMetadata(c *domain.Cohort) error {
	var errs domain.ValidationErrors
	if !c.CohortType.IsValid() {
		errs.Add(domain.NewValidationError("cohortType", "Invalid cohort type", string(c.CohortType)))
	}
	if len(c.DiseaseList) == 0 {
		errs.Add(domain.NewValidationError("diseaseList", "Cohort has no disease", nil))
	}
	known := make(map[string]struct{}, len(c.DiseaseList))
	for _, d := range c.DiseaseList {
		known[d.DiseaseID] = struct{}{}
		if len(d.ModeOfInheritanceList) == 0 {
			errs.Add(domain.NewValidationError("modeOfInheritanceList",
				fmt.Sprintf("No mode of inheritance for %s (%s)", d.DiseaseLabel, d.DiseaseID), d.DiseaseID))
		}
	}
	for i, r := range c.Rows {
		for _, id := range r.DiseaseIDs {
			if _, ok := known[id]; !ok {
				errs.Add(&domain.CellError{Row: i, Column: schema.DiseaseIDColumn.Row1, Value: id, Message: "disease is not in the disease list"})
			}
		}
	}
	return errs.Err()
}

// Conflicts reports, per row, the annotations the sanitizer would correct.
// The cohort is not modified.
func (q *QC) Conflicts(c *domain.Cohort) []RowConflict {
	var out []RowConflict
	for i, r := range c.Rows {
		corrections := q.sanitizer.Corrections(c.RowAnnotations(i))
		if len(corrections) == 0 {
			continue
		}
		out = append(out, RowConflict{
			Row:          i,
			IndividualID: r.IndividualData.IndividualID,
			PMID:         r.IndividualData.PMID,
			Corrections:  corrections,
		})
	}
	return out
}

// SanitizeHeaders replaces alternate and obsolete identifiers with their
// primary identifier and refreshes outdated labels. Unknown terms are left in
// place for Check to report. Rewriting a column onto a term already present is
// a structural error and leaves the cohort unchanged.
func (q *QC) SanitizeHeaders(c *domain.Cohort) ([]HeaderChange, error) {
	updated := append([]domain.TermRef(nil), c.TermHeaders...)
	var changes []HeaderChange
	for i, h := range updated {
		pid, ok := q.hierarchy.PrimaryIDOf(h.ID)
		if !ok {
			continue
		}
		label, _ := q.hierarchy.LabelOf(pid)
		next := domain.TermRef{ID: pid, Label: label}
		if next == h {
			continue
		}
		updated[i] = next
		changes = append(changes, HeaderChange{Column: i, From: h, To: next})
	}

	seen := make(map[domain.TermID]int, len(updated))
	for i, h := range updated {
		if prev, dup := seen[h.ID]; dup {
			return nil, domain.NewStructuralError(domain.ErrDuplicateTerm,
				"columns %d and %d both resolve to %s", prev, i, h)
		}
		seen[h.ID] = i
	}

	c.TermHeaders = updated
	for _, ch := range changes {
		q.logger.WithFields(logrus.Fields{
			"column": ch.Column,
			"from":   ch.From.ID,
			"to":     ch.To.ID,
			"label":  ch.To.Label,
		}).Info("Updated term column header")
	}
	return changes, nil
}
