package domain

import "context"

// Hierarchy is a read-only view of the ontology DAG. Implementations must be safe
// for concurrent use; the annotation engine never writes to it.
type Hierarchy interface {
	// TermExists reports whether id is a current or alternate identifier.
	TermExists(id TermID) bool
	// LabelOf returns the canonical label of a term.
	LabelOf(id TermID) (string, bool)
	// IsDescendantOf reports whether id is a proper descendant of ancestor.
	IsDescendantOf(id, ancestor TermID) bool
	// ChildrenOf returns the direct children of id in the ontology's native order.
	ChildrenOf(id TermID) []TermID
	// PrimaryIDOf resolves alternate and obsolete identifiers.
	PrimaryIDOf(id TermID) (TermID, bool)
}

// CohortStore persists curated cohorts.
type CohortStore interface {
	Save(ctx context.Context, cohort *Cohort) error
	Get(ctx context.Context, id string) (*Cohort, error)
	List(ctx context.Context, limit, offset int) ([]CohortRecord, error)
	Count(ctx context.Context) (int, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// CohortRecord is the listing entry of a stored cohort.
type CohortRecord struct {
	ID          string     `json:"id"`
	Acronym     string     `json:"acronym"`
	CohortType  CohortType `json:"cohortType"`
	Individuals int        `json:"individuals"`
	Terms       int        `json:"terms"`
	HPOVersion  string     `json:"hpoVersion"`
	UpdatedAt   string     `json:"updatedAt"`
}

// VariantValidator validates an HGVS allele on a transcript and returns the
// genomic representation.
type VariantValidator interface {
	ValidateHGVS(ctx context.Context, hgvs, transcript string) (*HgvsVariant, error)
}
