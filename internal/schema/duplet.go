// Package schema implements the two-row header of curation templates: a fixed
// block of typed columns, the HPO separator, and one column per HPO term.
package schema

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/phetools-curation-server/internal/domain"
	"github.com/phetools-curation-server/pkg/hgvs"
)

// ColumnKind identifies the validation rule of a column.
type ColumnKind int

const (
	KindPMID ColumnKind = iota
	KindTitle
	KindIndividualID
	KindComment
	KindDiseaseID
	KindDiseaseLabel
	KindHGNCID
	KindGeneSymbol
	KindTranscript
	KindAllele1
	KindAllele2
	KindVariantComment
	KindAgeOfOnset
	KindAgeAtLastEncounter
	KindDeceased
	KindSex
	KindSeparator
	KindHPOTerm
)

// Duplet is one header column: the label in row 1, the type marker in row 2.
type Duplet struct {
	Row1 string
	Row2 string
	Kind ColumnKind
}

// The fixed block, in template order, followed by the separator.
var (
	PMIDColumn               = Duplet{"PMID", "CURIE", KindPMID}
	TitleColumn              = Duplet{"title", "str", KindTitle}
	IndividualIDColumn       = Duplet{"individual_id", "str", KindIndividualID}
	CommentColumn            = Duplet{"comment", "optional", KindComment}
	DiseaseIDColumn          = Duplet{"disease_id", "CURIE", KindDiseaseID}
	DiseaseLabelColumn       = Duplet{"disease_label", "str", KindDiseaseLabel}
	HGNCIDColumn             = Duplet{"HGNC_id", "CURIE", KindHGNCID}
	GeneSymbolColumn         = Duplet{"gene_symbol", "str", KindGeneSymbol}
	TranscriptColumn         = Duplet{"transcript", "str", KindTranscript}
	Allele1Column            = Duplet{"allele_1", "str", KindAllele1}
	Allele2Column            = Duplet{"allele_2", "str", KindAllele2}
	VariantCommentColumn     = Duplet{"variant.comment", "optional", KindVariantComment}
	AgeOfOnsetColumn         = Duplet{"age_of_onset", "age", KindAgeOfOnset}
	AgeAtLastEncounterColumn = Duplet{"age_at_last_encounter", "age", KindAgeAtLastEncounter}
	DeceasedColumn           = Duplet{"deceased", "yes/no/na", KindDeceased}
	SexColumn                = Duplet{"sex", "M:F:O:U", KindSex}
	SeparatorColumn          = Duplet{"HPO", "na", KindSeparator}
)

var fixedBlock = []Duplet{
	PMIDColumn,
	TitleColumn,
	IndividualIDColumn,
	CommentColumn,
	DiseaseIDColumn,
	DiseaseLabelColumn,
	HGNCIDColumn,
	GeneSymbolColumn,
	TranscriptColumn,
	Allele1Column,
	Allele2Column,
	VariantCommentColumn,
	AgeOfOnsetColumn,
	AgeAtLastEncounterColumn,
	DeceasedColumn,
	SexColumn,
}

// FixedBlock returns the fixed columns in template order.
func FixedBlock() []Duplet {
	out := make([]Duplet, len(fixedBlock))
	copy(out, fixedBlock)
	return out
}

// FirstTermColumn is the index of the first HPO term column: sixteen fixed
// columns and the separator precede it.
const FirstTermColumn = 17

// TermColumn returns the header duplet of an HPO term.
func TermColumn(t domain.TermRef) Duplet {
	return Duplet{Row1: t.Label, Row2: string(t.ID), Kind: KindHPOTerm}
}

// ExpectedHeader returns the two header strings.
func (d Duplet) ExpectedHeader() (string, string) {
	return d.Row1, d.Row2
}

func (d Duplet) String() string {
	return fmt.Sprintf("(%s, %s)", d.Row1, d.Row2)
}

// ValidateHeader compares the observed header pair at pos with the duplet.
// Fixed columns require exact equality of both rows; term columns are checked
// structurally.
func (d Duplet) ValidateHeader(pos int, row1, row2 string) error {
	observed := fmt.Sprintf("(%s, %s)", row1, row2)
	if d.Kind == KindHPOTerm {
		return validateTermHeader(pos, row1, row2)
	}
	if row1 != d.Row1 || row2 != d.Row2 {
		return domain.NewHeaderError(pos, d.String(), observed)
	}
	return nil
}

func validateTermHeader(pos int, label, id string) error {
	observed := fmt.Sprintf("(%s, %s)", label, id)
	switch {
	case label == "":
		return domain.NewHeaderError(pos, "(HPO label, HP:nnnnnnn)", observed)
	case strings.TrimSpace(label) != label:
		return domain.NewHeaderError(pos, "HPO label without leading or trailing whitespace", observed)
	case !domain.TermID(id).IsValid():
		return domain.NewHeaderError(pos, "(HPO label, HP:nnnnnnn)", observed)
	}
	return nil
}

var (
	forbiddenIDChars      = "/\\()."
	forbiddenCommentChars = "/\\()"
)

// ValidateCell checks one cell against the rule of the column.
func (d Duplet) ValidateCell(text string) error {
	var msg string
	switch d.Kind {
	case KindPMID:
		msg = firstFailure(text, checkCURIE, prefixRule("PMID", "Invalid PubMed prefix"))
	case KindTitle, KindDiseaseLabel:
		msg = firstFailure(text, checkNotEmpty, checkWhitespace)
	case KindIndividualID:
		msg = firstFailure(text, forbiddenRule(forbiddenIDChars), checkNotEmpty, checkWhitespace)
	case KindComment:
		msg = firstFailure(text, forbiddenRule(forbiddenCommentChars))
	case KindDiseaseID:
		msg = firstFailure(text, checkCURIE, checkDiseaseID)
	case KindHGNCID:
		msg = firstFailure(text, checkCURIE, prefixRule("HGNC", "HGNC id has invalid prefix"))
	case KindGeneSymbol:
		msg = firstFailure(text, checkNotEmpty, checkWhitespace, validatorRule(alleles.ValidateGeneSymbol))
	case KindTranscript:
		msg = firstFailure(text, checkNotEmpty, validatorRule(alleles.ValidateTranscript))
	case KindAllele1:
		msg = firstFailure(text, checkNotEmpty, checkWhitespace, alleleRule(false))
	case KindAllele2:
		msg = firstFailure(text, checkNotEmpty, checkWhitespace, alleleRule(true))
	case KindVariantComment:
		if strings.Contains(text, "\t") {
			msg = "must not contain a tab character"
		}
	case KindAgeOfOnset, KindAgeAtLastEncounter:
		msg = checkAge(text)
	case KindDeceased:
		if text != "yes" && text != "no" && text != "na" {
			msg = "Malformed deceased entry"
		}
	case KindSex:
		if text != "M" && text != "F" && text != "O" && text != "U" {
			msg = "Malformed sex entry"
		}
	case KindSeparator:
		if text != "na" {
			msg = "separator column must contain na"
		}
	case KindHPOTerm:
		if _, err := domain.ParseCellValue(text); err != nil {
			msg = err.Error()
		}
	}
	if msg == "" {
		return nil
	}
	return domain.NewCellError(d.Row1, text, msg)
}

var alleles = hgvs.NewValidator()

type cellRule func(string) string

func firstFailure(text string, rules ...cellRule) string {
	for _, rule := range rules {
		if msg := rule(text); msg != "" {
			return msg
		}
	}
	return ""
}

func checkNotEmpty(s string) string {
	if s == "" {
		return "Value must not be empty"
	}
	return ""
}

func checkWhitespace(s string) string {
	r := []rune(s)
	switch {
	case len(r) == 0:
		return ""
	case unicode.IsSpace(r[len(r)-1]):
		return "Trailing whitespace"
	case unicode.IsSpace(r[0]):
		return "Leading whitespace"
	case strings.Contains(s, "  "):
		return "Consecutive whitespace"
	}
	return ""
}

func forbiddenRule(chars string) cellRule {
	return func(s string) string {
		if i := strings.IndexAny(s, chars); i >= 0 {
			return fmt.Sprintf("Forbidden character '%c'", s[i])
		}
		return ""
	}
}

// checkCURIE requires a non-empty prefix, exactly one colon and a numeric suffix.
func checkCURIE(s string) string {
	if s == "" {
		return "Empty CURIE"
	}
	if strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return "Contains stray whitespace"
	}
	switch strings.Count(s, ":") {
	case 0:
		return "Invalid CURIE with no colon"
	case 1:
	default:
		return "Invalid CURIE with more than one colon"
	}
	prefix, suffix, _ := strings.Cut(s, ":")
	if prefix == "" {
		return "Invalid CURIE with no prefix"
	}
	if suffix == "" {
		return "Invalid CURIE with no suffix"
	}
	for _, c := range suffix {
		if c < '0' || c > '9' {
			return "Invalid CURIE with non-digit characters in suffix"
		}
	}
	return ""
}

func prefixRule(prefix, msg string) cellRule {
	return func(s string) string {
		if !strings.HasPrefix(s, prefix) {
			return msg
		}
		return ""
	}
}

func checkDiseaseID(s string) string {
	if !strings.HasPrefix(s, "OMIM") && !strings.HasPrefix(s, "MONDO") {
		return "Disease id has invalid prefix"
	}
	if strings.HasPrefix(s, "OMIM:") && len(s) != len("OMIM:")+6 {
		return "OMIM identifiers must have 6 digits"
	}
	return ""
}

func checkAge(s string) string {
	switch {
	case s == "":
		return "Empty age string not allowed (use na)"
	case s == "na", domain.IsAgeString(s):
		return ""
	}
	return "Malformed age string"
}

func validatorRule(fn func(string) error) cellRule {
	return func(s string) string {
		return messageOf(fn(s))
	}
}

func alleleRule(allowAbsent bool) cellRule {
	return func(s string) string {
		_, err := alleles.ValidateAllele(s, allowAbsent)
		return messageOf(err)
	}
}

func messageOf(err error) string {
	if err == nil {
		return ""
	}
	if ve, ok := err.(*domain.ValidationError); ok {
		return ve.Message
	}
	return err.Error()
}
