// Package domain contains the core entities of phenotype cohort curation: ontology
// concept references, per-cell annotation values, and the cohort table that ties
// individuals, diseases, variants and HPO annotations together.
//
// Reference: Köhler et al. (2021) The Human Phenotype Ontology in 2021.
// Nucleic Acids Res. 49(D1):D1207-D1217. doi: 10.1093/nar/gkaa1043
package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// TermID is an ontology concept identifier such as "HP:0001166".
type TermID string

// Well-known HPO identifiers used as traversal roots and mode-of-inheritance codes.
const (
	PhenotypicAbnormalityID TermID = "HP:0000118"
	NeoplasmID              TermID = "HP:0002664"
)

const (
	AutosomalDominantID        TermID = "HP:0000006"
	AutosomalRecessiveID       TermID = "HP:0000007"
	XLinkedInheritanceID       TermID = "HP:0001417"
	XLinkedDominantID          TermID = "HP:0001423"
	XLinkedRecessiveID         TermID = "HP:0001419"
	PseudoautosomalDominantID  TermID = "HP:0034340"
	PseudoautosomalRecessiveID TermID = "HP:0034341"
)

// SchemaVersion is the version of the serialized cohort layout.
const SchemaVersion = "0.3"

var hpoIDPattern = regexp.MustCompile(`^HP:\d{7}$`)

// IsValid reports whether the identifier has the HP:nnnnnnn shape.
func (id TermID) IsValid() bool {
	return hpoIDPattern.MatchString(string(id))
}

func (id TermID) String() string {
	return string(id)
}

// TermRef identifies an ontology concept. Two references are the same concept when
// their identifiers are equal; the label is display data only.
type TermRef struct {
	ID    TermID `json:"hpoId"`
	Label string `json:"hpoLabel"`
}

// NewTermRef creates a TermRef with a trimmed label.
func NewTermRef(id, label string) TermRef {
	return TermRef{ID: TermID(strings.TrimSpace(id)), Label: strings.TrimSpace(label)}
}

// Key returns the identity of the reference.
func (t TermRef) Key() TermID {
	return t.ID
}

// Same reports whether both references denote the same concept.
func (t TermRef) Same(other TermRef) bool {
	return t.ID == other.ID
}

func (t TermRef) String() string {
	return fmt.Sprintf("%s (%s)", t.Label, t.ID)
}

// CohortType describes how diseases and genes relate within a cohort.
type CohortType string

const (
	Mendelian CohortType = "mendelian"
	Melded    CohortType = "melded"
	Digenic   CohortType = "digenic"
)

// Validation errors for cohort data integrity
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidCohortType   = errors.New("invalid cohort type")
	ErrWidthMismatch       = errors.New("row width does not match header")
	ErrIncompatibleCohorts = errors.New("incompatible cohorts")
	ErrDuplicateTerm       = errors.New("duplicate HPO term column")
)

// IsValid reports whether the cohort type is one of the supported kinds.
func (c CohortType) IsValid() bool {
	switch c {
	case Mendelian, Melded, Digenic:
		return true
	default:
		return false
	}
}

func (c CohortType) String() string {
	return string(c)
}

// ParseCohortType parses a cohort type case-insensitively.
func ParseCohortType(s string) (CohortType, error) {
	ct := CohortType(strings.ToLower(strings.TrimSpace(s)))
	if !ct.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCohortType, s)
	}
	return ct, nil
}

// LogFields returns structured logging fields for a term reference.
func (t TermRef) LogFields() map[string]interface{} {
	return map[string]interface{}{
		"term_id":    string(t.ID),
		"term_label": t.Label,
	}
}
