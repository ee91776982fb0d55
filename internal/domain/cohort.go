package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// IndividualData holds the demographic block of a row.
type IndividualData struct {
	PMID               string `json:"pmid"`
	Title              string `json:"title"`
	IndividualID       string `json:"individualId"`
	Comment            string `json:"comment"`
	AgeOfOnset         string `json:"ageOfOnset"`
	AgeAtLastEncounter string `json:"ageAtLastEncounter"`
	Deceased           string `json:"deceased"`
	Sex                string `json:"sex"`
}

// GeneVariantData is the gene/variant block of a template row.
type GeneVariantData struct {
	HGNCID         string `json:"hgncId"`
	GeneSymbol     string `json:"geneSymbol"`
	Transcript     string `json:"transcript"`
	Allele1        string `json:"allele1"`
	Allele2        string `json:"allele2"`
	VariantComment string `json:"variantComment"`
}

// AlleleKey returns the variant dictionary key of an allele.
func (g GeneVariantData) AlleleKey(allele string) string {
	if allele == "" || allele == "na" {
		return "na"
	}
	return fmt.Sprintf("%s_%s_%s", allele, g.GeneSymbol, g.Transcript)
}

// AlleleKeys returns the keys of the alleles recorded for the individual.
// A homozygous entry yields the same key twice.
func (g GeneVariantData) AlleleKeys() []string {
	var keys []string
	for _, a := range []string{g.Allele1, g.Allele2} {
		if k := g.AlleleKey(a); k != "na" {
			keys = append(keys, k)
		}
	}
	return keys
}

// IsHGVS reports whether an allele uses transcript-level HGVS notation.
func IsHGVS(allele string) bool {
	return strings.HasPrefix(allele, "c.") || strings.HasPrefix(allele, "n.")
}

// ModeOfInheritance is an HPO inheritance term with its supporting citation.
type ModeOfInheritance struct {
	HPOID    TermID `json:"hpoId"`
	HPOLabel string `json:"hpoLabel"`
	Citation string `json:"citation"`
}

func (m ModeOfInheritance) IsAutosomalDominant() bool  { return m.HPOID == AutosomalDominantID }
func (m ModeOfInheritance) IsAutosomalRecessive() bool { return m.HPOID == AutosomalRecessiveID }

func (m ModeOfInheritance) IsXChromosomal() bool {
	switch m.HPOID {
	case XLinkedInheritanceID, XLinkedDominantID, XLinkedRecessiveID:
		return true
	}
	return false
}

func (m ModeOfInheritance) IsPseudoautosomal() bool {
	return m.HPOID == PseudoautosomalDominantID || m.HPOID == PseudoautosomalRecessiveID
}

// GeneTranscriptData names a gene and its transcript of reference.
type GeneTranscriptData struct {
	HGNCID     string `json:"hgncId"`
	GeneSymbol string `json:"geneSymbol"`
	Transcript string `json:"transcript"`
}

// DiseaseData describes a disease in focus and its associated genes.
type DiseaseData struct {
	DiseaseID             string               `json:"diseaseId"`
	DiseaseLabel          string               `json:"diseaseLabel"`
	ModeOfInheritanceList []ModeOfInheritance  `json:"modeOfInheritanceList"`
	GeneTranscriptList    []GeneTranscriptData `json:"geneTranscriptList"`
}

// HgvsVariant is a small variant validated against a reference genome.
type HgvsVariant struct {
	Assembly   string `json:"assembly"`
	Chr        string `json:"chr"`
	Position   uint32 `json:"position"`
	RefAllele  string `json:"refAllele"`
	AltAllele  string `json:"altAllele"`
	Symbol     string `json:"symbol"`
	HGNCID     string `json:"hgncId"`
	HGVS       string `json:"hgvs"`
	Transcript string `json:"transcript"`
	GHGVS      string `json:"gHgvs"`
}

// VariantKey matches GeneVariantData.AlleleKey.
func (v HgvsVariant) VariantKey() string {
	return fmt.Sprintf("%s_%s_%s", v.HGVS, v.Symbol, v.Transcript)
}

// IsXChromosomal reports whether the variant lies on chromosome X.
func (v HgvsVariant) IsXChromosomal() bool {
	return strings.Contains(v.Chr, "X")
}

// SvType is the category of a structural variant.
type SvType string

const (
	SvDeletion      SvType = "DEL"
	SvInversion     SvType = "INV"
	SvTranslocation SvType = "TRANSL"
	SvDuplication   SvType = "DUP"
	SvInsertion     SvType = "INS"
	SvUnspecified   SvType = "SV"
)

// StructuralVariant is a symbolic variant described in free text.
type StructuralVariant struct {
	Label      string `json:"label"`
	GeneSymbol string `json:"geneSymbol"`
	Transcript string `json:"transcript"`
	HGNCID     string `json:"hgncId"`
	SvType     SvType `json:"svType"`
	Chromosome string `json:"chromosome"`
	VariantKey string `json:"variantKey"`
}

// CurationEvent records who curated the cohort and when.
type CurationEvent struct {
	ORCID string `json:"orcid"`
	Date  string `json:"date"`
}

// NewCurationEvent stamps an event with today's date.
func NewCurationEvent(orcid string, now time.Time) CurationEvent {
	return CurationEvent{ORCID: orcid, Date: now.Format("2006-01-02")}
}

// Row is one individual of the cohort. CellValues is aligned with the cohort's
// TermHeaders.
type Row struct {
	IndividualData IndividualData `json:"individualData"`
	DiseaseIDs     []string       `json:"diseaseIdList"`
	AlleleCounts   map[string]int `json:"alleleCountMap"`
	CellValues     []CellValue    `json:"hpoData"`
}

// Key identifies an individual within a cohort.
func (r Row) Key() string {
	return r.IndividualData.PMID + "|" + r.IndividualData.IndividualID
}

// Clone returns a deep copy of the row.
func (r Row) Clone() Row {
	out := r
	out.DiseaseIDs = append([]string(nil), r.DiseaseIDs...)
	out.CellValues = append([]CellValue(nil), r.CellValues...)
	if r.AlleleCounts != nil {
		out.AlleleCounts = make(map[string]int, len(r.AlleleCounts))
		for k, v := range r.AlleleCounts {
			out.AlleleCounts[k] = v
		}
	}
	return out
}

// Cohort is the annotation table of a cohort: term columns plus one row per
// individual. Every row has exactly len(TermHeaders) cells.
type Cohort struct {
	ID                 string                       `json:"id,omitempty"`
	CohortType         CohortType                   `json:"cohortType"`
	DiseaseList        []DiseaseData                `json:"diseaseList"`
	TermHeaders        []TermRef                    `json:"hpoHeaders"`
	Rows               []Row                        `json:"rows"`
	HgvsVariants       map[string]HgvsVariant       `json:"hgvsVariants"`
	StructuralVariants map[string]StructuralVariant `json:"structuralVariants"`
	SchemaVersion      string                       `json:"phetoolsSchemaVersion"`
	HPOVersion         string                       `json:"hpoVersion"`
	Acronym            string                       `json:"cohortAcronym,omitempty"`
	CurationHistory    []CurationEvent              `json:"curationHistory,omitempty"`
}

// NewCohort creates an empty cohort of the given type.
func NewCohort(ct CohortType, diseases []DiseaseData, headers []TermRef, hpoVersion string) *Cohort {
	return &Cohort{
		CohortType:         ct,
		DiseaseList:        diseases,
		TermHeaders:        headers,
		Rows:               []Row{},
		HgvsVariants:       map[string]HgvsVariant{},
		StructuralVariants: map[string]StructuralVariant{},
		SchemaVersion:      SchemaVersion,
		HPOVersion:         hpoVersion,
	}
}

// TermIndex returns the column of a term, or -1.
func (c *Cohort) TermIndex(id TermID) int {
	for i, h := range c.TermHeaders {
		if h.ID == id {
			return i
		}
	}
	return -1
}

// TermIDs returns the term column identifiers in order.
func (c *Cohort) TermIDs() []TermID {
	ids := make([]TermID, len(c.TermHeaders))
	for i, h := range c.TermHeaders {
		ids[i] = h.ID
	}
	return ids
}

// CheckWidth verifies that every row is aligned with the term headers.
func (c *Cohort) CheckWidth() error {
	for i, r := range c.Rows {
		if len(r.CellValues) != len(c.TermHeaders) {
			return NewStructuralError(ErrWidthMismatch, "row %d has %d HPO cells but the header has %d terms",
				i, len(r.CellValues), len(c.TermHeaders))
		}
	}
	return nil
}

// RowAnnotations returns the cells of row i keyed by term identifier.
func (c *Cohort) RowAnnotations(i int) map[TermID]CellValue {
	out := make(map[TermID]CellValue, len(c.TermHeaders))
	for j, h := range c.TermHeaders {
		out[h.ID] = c.Rows[i].CellValues[j]
	}
	return out
}

// Triples calls fn for every (row, term, value) in row-major, column order.
func (c *Cohort) Triples(fn func(row int, term TermRef, value CellValue)) {
	for i, r := range c.Rows {
		for j, h := range c.TermHeaders {
			fn(i, h, r.CellValues[j])
		}
	}
}

// Clone returns a deep copy of the cohort.
func (c *Cohort) Clone() *Cohort {
	out := *c
	out.DiseaseList = append([]DiseaseData(nil), c.DiseaseList...)
	out.TermHeaders = append([]TermRef(nil), c.TermHeaders...)
	out.Rows = make([]Row, len(c.Rows))
	for i, r := range c.Rows {
		out.Rows[i] = r.Clone()
	}
	out.HgvsVariants = make(map[string]HgvsVariant, len(c.HgvsVariants))
	for k, v := range c.HgvsVariants {
		out.HgvsVariants[k] = v
	}
	out.StructuralVariants = make(map[string]StructuralVariant, len(c.StructuralVariants))
	for k, v := range c.StructuralVariants {
		out.StructuralVariants[k] = v
	}
	out.CurationHistory = append([]CurationEvent(nil), c.CurationHistory...)
	return &out
}

// CohortSummary counts the contents of a cohort.
type CohortSummary struct {
	CohortType      CohortType     `json:"cohortType" yaml:"cohort_type"`
	Acronym         string         `json:"acronym,omitempty" yaml:"acronym,omitempty"`
	Individuals     int            `json:"individuals" yaml:"individuals"`
	Terms           int            `json:"terms" yaml:"terms"`
	Diseases        int            `json:"diseases" yaml:"diseases"`
	HgvsVariants    int            `json:"hgvsVariants" yaml:"hgvs_variants"`
	StructuralVars  int            `json:"structuralVariants" yaml:"structural_variants"`
	CellCounts      map[string]int `json:"cellCounts" yaml:"cell_counts"`
	ObservedPerTerm map[TermID]int `json:"observedPerTerm,omitempty" yaml:"observed_per_term,omitempty"`
	PMIDs           []string       `json:"pmids" yaml:"pmids"`
}

// Summary computes a CohortSummary.
func (c *Cohort) Summary() CohortSummary {
	s := CohortSummary{
		CohortType:      c.CohortType,
		Acronym:         c.Acronym,
		Individuals:     len(c.Rows),
		Terms:           len(c.TermHeaders),
		Diseases:        len(c.DiseaseList),
		HgvsVariants:    len(c.HgvsVariants),
		StructuralVars:  len(c.StructuralVariants),
		CellCounts:      map[string]int{},
		ObservedPerTerm: map[TermID]int{},
	}
	pmids := map[string]struct{}{}
	for _, r := range c.Rows {
		pmids[r.IndividualData.PMID] = struct{}{}
	}
	c.Triples(func(_ int, term TermRef, value CellValue) {
		s.CellCounts[value.Kind().String()]++
		if value.IsObserved() || value.HasOnset() {
			s.ObservedPerTerm[term.ID]++
		}
	})
	for p := range pmids {
		s.PMIDs = append(s.PMIDs, p)
	}
	sort.Strings(s.PMIDs)
	return s
}
