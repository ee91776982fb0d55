// Package ontologytest provides a small HPO excerpt for tests.
package ontologytest

import (
	_ "embed"
	"strings"
	"testing"

	"github.com/phetools-curation-server/internal/domain"
	"github.com/phetools-curation-server/internal/ontology"
)

//go:embed mini_hp.obo
var miniHPO string

// Identifiers present in the fixture.
const (
	All                     domain.TermID = "HP:0000001"
	ModeOfInheritance       domain.TermID = "HP:0000005"
	AbnormalityOfKidney     domain.TermID = "HP:0000077"
	PhenotypicAbnormality   domain.TermID = "HP:0000118"
	Genitourinary           domain.TermID = "HP:0000119"
	HeadOrNeck              domain.TermID = "HP:0000152"
	AbnormalityOfHead       domain.TermID = "HP:0000234"
	Macrocephaly            domain.TermID = "HP:0000256"
	AbnormalityOfEye        domain.TermID = "HP:0000478"
	PectusExcavatum         domain.TermID = "HP:0000767"
	Skeletal                domain.TermID = "HP:0000924"
	EctopiaLentis           domain.TermID = "HP:0001083"
	AbnormalityOfHand       domain.TermID = "HP:0001155"
	Arachnodactyly          domain.TermID = "HP:0001166"
	ArachnodactylyAlt       domain.TermID = "HP:0001505"
	ObsoleteSlenderFingers  domain.TermID = "HP:0001248"
	Cardiovascular          domain.TermID = "HP:0001626"
	AbnormalHeartMorphology domain.TermID = "HP:0001627"
	AtrialSeptalDefect      domain.TermID = "HP:0001631"
	CardiacSeptum           domain.TermID = "HP:0001671"
	AorticRootAneurysm      domain.TermID = "HP:0002616"
	Neoplasm                domain.TermID = "HP:0002664"
	Lymphoma                domain.TermID = "HP:0002665"
	RenalNeoplasm           domain.TermID = "HP:0009726"
	SkeletalMorphology      domain.TermID = "HP:0011842"
	CardiovascularMorph     domain.TermID = "HP:0030680"
	Musculoskeletal         domain.TermID = "HP:0033127"
)

// OBO returns the fixture in OBO format.
func OBO() string {
	return miniHPO
}

// Graph parses the fixture, failing the test on error.
func Graph(t testing.TB) *ontology.Graph {
	t.Helper()
	g, err := ontology.ParseOBO(strings.NewReader(miniHPO))
	if err != nil {
		t.Fatalf("failed to parse fixture ontology: %v", err)
	}
	return g
}

// Ref returns the fixture term as a TermRef with its current label.
func Ref(t testing.TB, g *ontology.Graph, id domain.TermID) domain.TermRef {
	t.Helper()
	label, ok := g.LabelOf(id)
	if !ok {
		t.Fatalf("fixture has no term %s", id)
	}
	return domain.TermRef{ID: id, Label: label}
}
