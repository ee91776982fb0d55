package hgvs

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/phetools-curation-server/internal/domain"
)

// Allele notation patterns for template validation
var (
	// Transcript-level small variant: c.8242G>T, c.123_125del, c.76_77insT
	codingPattern = regexp.MustCompile(`^c\.([-*]?[\d_+\-]+)(.*)$`)

	// Substitution tail: G>T (intronic offsets such as +1G>A are captured by the position)
	substitutionPattern = regexp.MustCompile(`^([ACGT]+)>([ACGT]+)$`)

	insertionPattern = regexp.MustCompile(`^ins([ACGT]+)$`)
	delinsPattern    = regexp.MustCompile(`^delins([ACGT]+)$`)

	// Transcript ID pattern: NM_000138.5, ENST00000316623.10
	transcriptPattern = regexp.MustCompile(`^(NM_|ENST)[0-9A-Za-z_]*\.\d+$`)
)

// structuralPrefixes are the accepted symbolic variant categories, written
// before a colon, e.g. "DEL: exons 5-7".
var structuralPrefixes = map[string]domain.SvType{
	"DEL":    domain.SvDeletion,
	"DUP":    domain.SvDuplication,
	"INV":    domain.SvInversion,
	"INS":    domain.SvInsertion,
	"TRANSL": domain.SvTranslocation,
}

// AlleleKind classifies an allele cell.
type AlleleKind string

const (
	AlleleAbsent     AlleleKind = "absent"
	AlleleSmall      AlleleKind = "hgvs"
	AlleleStructural AlleleKind = "structural"
)

// Validator provides allele notation validation for curation templates
type Validator struct{}

// NewValidator creates a new allele validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateHGVS validates a transcript-level HGVS allele without the transcript
// prefix, as written in the allele columns.
func (v *Validator) ValidateHGVS(allele string) error {
	if allele == "" {
		return domain.NewValidationError("hgvs", "HGVS cannot be empty", allele)
	}
	if _, err := v.ParseCoding(allele); err != nil {
		return err
	}
	return nil
}

// ValidateStructural validates a symbolic variant such as "DEL: exon 5".
func (v *Validator) ValidateStructural(allele string) error {
	if _, _, err := ParseStructural(allele); err != nil {
		return err
	}
	return nil
}

// ValidateAllele validates one allele cell and reports its kind. "na" is only
// accepted when allowAbsent is set.
func (v *Validator) ValidateAllele(allele string, allowAbsent bool) (AlleleKind, error) {
	switch {
	case allele == "na" && allowAbsent:
		return AlleleAbsent, nil
	case strings.HasPrefix(allele, "c."):
		return AlleleSmall, v.ValidateHGVS(allele)
	default:
		return AlleleStructural, v.ValidateStructural(allele)
	}
}

// ValidateGeneSymbol validates gene symbol format
func (v *Validator) ValidateGeneSymbol(symbol string) error {
	if symbol == "" {
		return domain.NewValidationError("gene_symbol", "Gene symbol cannot be empty", symbol)
	}
	if strings.ContainsAny(symbol, " \t") {
		return domain.NewValidationError("gene_symbol", "Gene symbol must not contain whitespace", symbol)
	}
	return nil
}

// ValidateTranscript validates transcript ID format
func (v *Validator) ValidateTranscript(transcript string) error {
	if transcript == "" {
		return domain.NewValidationError("transcript", "Transcript cannot be empty", transcript)
	}
	if !strings.HasPrefix(transcript, "NM_") && !strings.HasPrefix(transcript, "ENST") {
		return domain.NewValidationError("transcript", "Unrecognized transcript prefix", transcript)
	}
	if !strings.Contains(transcript, ".") {
		return domain.NewValidationError("transcript", "Transcript is missing a version", transcript)
	}
	if !transcriptPattern.MatchString(transcript) {
		return domain.NewValidationError("transcript", "Malformed transcript version", transcript)
	}
	return nil
}

// ValidateGeneVariant validates the gene/variant block of a template row and
// returns every violation.
func (v *Validator) ValidateGeneVariant(g domain.GeneVariantData) []error {
	var errors []error

	if err := v.ValidateGeneSymbol(g.GeneSymbol); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateTranscript(g.Transcript); err != nil {
		errors = append(errors, err)
	}
	if _, err := v.ValidateAllele(g.Allele1, false); err != nil {
		errors = append(errors, err)
	}
	if _, err := v.ValidateAllele(g.Allele2, true); err != nil {
		errors = append(errors, err)
	}

	return errors
}

// CodingComponents represents the parts of a c. allele
type CodingComponents struct {
	Original  string `json:"original"`
	Type      string `json:"type"`     // substitution, deletion, duplication, insertion, delins
	Position  string `json:"position"` // 8242, 123_125, 76+1
	RefAllele string `json:"ref_allele,omitempty"`
	AltAllele string `json:"alt_allele,omitempty"`
}

// ParseCoding extracts components from a c. allele
func (v *Validator) ParseCoding(allele string) (*CodingComponents, error) {
	m := codingPattern.FindStringSubmatch(allele)
	if m == nil {
		return nil, domain.NewValidationError("hgvs", fmt.Sprintf("Malformed HGVS '%s'", allele), allele)
	}
	position, tail := m[1], m[2]

	c := &CodingComponents{Original: allele, Position: position}
	switch {
	case substitutionPattern.MatchString(tail):
		sm := substitutionPattern.FindStringSubmatch(tail)
		c.Type, c.RefAllele, c.AltAllele = "substitution", sm[1], sm[2]
	case tail == "del":
		c.Type = "deletion"
	case tail == "dup":
		c.Type = "duplication"
	case insertionPattern.MatchString(tail):
		c.Type, c.AltAllele = "insertion", insertionPattern.FindStringSubmatch(tail)[1]
	case delinsPattern.MatchString(tail):
		c.Type, c.AltAllele = "delins", delinsPattern.FindStringSubmatch(tail)[1]
	default:
		return nil, domain.NewValidationError("hgvs", fmt.Sprintf("Malformed HGVS '%s'", allele), allele)
	}
	if strings.HasSuffix(position, "_") || strings.HasPrefix(position, "_") || !strings.ContainsAny(position, "0123456789") {
		return nil, domain.NewValidationError("hgvs", fmt.Sprintf("Malformed HGVS position in '%s'", allele), allele)
	}
	return c, nil
}

// ParseStructural splits a symbolic variant into its category and description.
func ParseStructural(allele string) (domain.SvType, string, error) {
	prefix, rest, ok := strings.Cut(allele, ":")
	if !ok {
		return "", "", domain.NewValidationError("allele", fmt.Sprintf("Malformed structural variant '%s'", allele), allele)
	}
	sv, known := structuralPrefixes[prefix]
	if !known {
		return "", "", domain.NewValidationError("allele", fmt.Sprintf("Malformed structural variant '%s'", allele), allele)
	}
	label := strings.TrimSpace(rest)
	if label == "" {
		return "", "", domain.NewValidationError("allele", fmt.Sprintf("Structural variant '%s' has no description", allele), allele)
	}
	return sv, label, nil
}

// StructuralVariantFor builds the dictionary entry for a symbolic allele.
func StructuralVariantFor(allele string, g domain.GeneVariantData, chromosome string) (domain.StructuralVariant, error) {
	sv, label, err := ParseStructural(allele)
	if err != nil {
		return domain.StructuralVariant{}, err
	}
	if g.GeneSymbol == "" || g.HGNCID == "" {
		return domain.StructuralVariant{}, domain.NewValidationError("allele",
			fmt.Sprintf("Malformed structural variant %s: a gene symbol and HGNC id are required", allele), allele)
	}
	return domain.StructuralVariant{
		Label:      label,
		GeneSymbol: g.GeneSymbol,
		Transcript: g.Transcript,
		HGNCID:     g.HGNCID,
		SvType:     sv,
		Chromosome: chromosome,
		VariantKey: g.AlleleKey(allele),
	}, nil
}
