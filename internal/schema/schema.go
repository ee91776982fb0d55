package schema

import (
	"fmt"

	"github.com/phetools-curation-server/internal/domain"
)

// Schema is a validated template header.
type Schema struct {
	Columns []Duplet
	Terms   []domain.TermRef
}

// Width is the number of cells every data row must have.
func (s *Schema) Width() int {
	return len(s.Columns)
}

// HeaderRows renders the two header rows.
func (s *Schema) HeaderRows() ([]string, []string) {
	row1 := make([]string, len(s.Columns))
	row2 := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		row1[i], row2[i] = c.ExpectedHeader()
	}
	return row1, row2
}

// NewSchema builds the schema of a template with the given term columns.
func NewSchema(terms []domain.TermRef) *Schema {
	cols := make([]Duplet, 0, FirstTermColumn+len(terms))
	cols = append(cols, fixedBlock...)
	cols = append(cols, SeparatorColumn)
	for _, t := range terms {
		cols = append(cols, TermColumn(t))
	}
	return &Schema{Columns: cols, Terms: append([]domain.TermRef(nil), terms...)}
}

// BuildSchema validates the two header rows positionally and returns every
// violation at once. The rows must have the same length.
func BuildSchema(row1, row2 []string) (*Schema, error) {
	if len(row1) != len(row2) {
		return nil, domain.NewStructuralError(domain.ErrWidthMismatch,
			"header rows differ in length: %d vs %d", len(row1), len(row2))
	}

	var errs domain.ValidationErrors
	expected := append(FixedBlock(), SeparatorColumn)
	for i, d := range expected {
		if i >= len(row1) {
			errs.Add(domain.NewHeaderError(i, d.String(), "(missing)"))
			continue
		}
		errs.Add(d.ValidateHeader(i, row1[i], row2[i]))
	}

	s := &Schema{Columns: expected}
	seen := make(map[domain.TermID]int)
	for i := len(expected); i < len(row1); i++ {
		if err := validateTermHeader(i, row1[i], row2[i]); err != nil {
			errs.Add(err)
			continue
		}
		ref := domain.TermRef{ID: domain.TermID(row2[i]), Label: row1[i]}
		if prev, dup := seen[ref.ID]; dup {
			errs.Add(domain.NewHeaderError(i, "unique HPO term column", fmt.Sprintf("duplicate of column %d %s", prev, ref)))
			continue
		}
		seen[ref.ID] = i
		s.Columns = append(s.Columns, TermColumn(ref))
		s.Terms = append(s.Terms, ref)
	}

	if err := errs.Err(); err != nil {
		return nil, err
	}
	return s, nil
}
