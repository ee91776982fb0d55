package domain

import (
	"encoding/json"
	"fmt"
)

// CellKind is the discriminant of a CellValue.
type CellKind int

const (
	cellInvalid CellKind = iota
	CellObserved
	CellExcluded
	CellNotAscertained
	CellOnsetAge
	CellModifier
)

var cellKindNames = map[CellKind]string{
	CellObserved:       "Observed",
	CellExcluded:       "Excluded",
	CellNotAscertained: "Na",
	CellOnsetAge:       "OnsetAge",
	CellModifier:       "Modifier",
}

func (k CellKind) String() string {
	if name, ok := cellKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("CellKind(%d)", int(k))
}

// CellValue is the content of one (individual, concept) cell. The zero value is
// not a valid cell; every cell of a cohort is one of the five kinds.
type CellValue struct {
	kind CellKind
	text string
}

// The three payload-free cell values.
var (
	Observed       = CellValue{kind: CellObserved}
	Excluded       = CellValue{kind: CellExcluded}
	NotAscertained = CellValue{kind: CellNotAscertained}
)

// NewOnsetAge returns an observed-with-onset cell. The text is not revalidated.
func NewOnsetAge(text string) CellValue {
	return CellValue{kind: CellOnsetAge, text: text}
}

// NewModifier returns a modifier cell.
func NewModifier(text string) CellValue {
	return CellValue{kind: CellModifier, text: text}
}

// ParseCellValue parses the textual content of a concept cell. Matching is exact
// and case-sensitive: "observed", "excluded" and "na" take priority, then the onset
// grammar, then modifiers.
func ParseCellValue(text string) (CellValue, error) {
	switch text {
	case "observed":
		return Observed, nil
	case "excluded":
		return Excluded, nil
	case "na":
		return NotAscertained, nil
	}
	if IsAgeString(text) {
		return NewOnsetAge(text), nil
	}
	if IsModifier(text) {
		return NewModifier(text), nil
	}
	return CellValue{}, NewMalformedCellError(text)
}

// IsModifier recognizes clinical modifier cells.
// TODO: accept HPO Clinical modifier (HP:0012823) descendants once modifier curation is enabled.
func IsModifier(string) bool {
	return false
}

// Kind returns the discriminant.
func (c CellValue) Kind() CellKind { return c.kind }

// Text returns the payload of OnsetAge and Modifier cells, empty otherwise.
func (c CellValue) Text() string { return c.text }

func (c CellValue) IsObserved() bool       { return c.kind == CellObserved }
func (c CellValue) IsExcluded() bool       { return c.kind == CellExcluded }
func (c CellValue) IsNotAscertained() bool { return c.kind == CellNotAscertained }
func (c CellValue) HasOnset() bool         { return c.kind == CellOnsetAge }
func (c CellValue) HasModifier() bool      { return c.kind == CellModifier }

// IsValid reports whether the cell carries one of the five kinds.
func (c CellValue) IsValid() bool {
	_, ok := cellKindNames[c.kind]
	return ok
}

// IsAscertained reports whether anything was recorded for the concept.
func (c CellValue) IsAscertained() bool {
	return c.IsValid() && c.kind != CellNotAscertained
}

// String renders the cell in template form. ParseCellValue(c.String()) == c for
// every valid cell.
func (c CellValue) String() string {
	switch c.kind {
	case CellObserved:
		return "observed"
	case CellExcluded:
		return "excluded"
	case CellNotAscertained:
		return "na"
	case CellOnsetAge, CellModifier:
		return c.text
	default:
		return ""
	}
}

type cellValueJSON struct {
	Type string  `json:"type"`
	Data *string `json:"data,omitempty"`
}

// MarshalJSON encodes the cell as {"type": "...", "data": "..."}.
func (c CellValue) MarshalJSON() ([]byte, error) {
	if !c.IsValid() {
		return nil, fmt.Errorf("cannot encode invalid cell value")
	}
	out := cellValueJSON{Type: c.kind.String()}
	if c.kind == CellOnsetAge || c.kind == CellModifier {
		text := c.text
		out.Data = &text
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the tagged form written by MarshalJSON.
func (c *CellValue) UnmarshalJSON(b []byte) error {
	var in cellValueJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	switch in.Type {
	case "Observed":
		*c = Observed
	case "Excluded":
		*c = Excluded
	case "Na":
		*c = NotAscertained
	case "OnsetAge", "Modifier":
		if in.Data == nil {
			return fmt.Errorf("cell value of type %s requires data", in.Type)
		}
		if in.Type == "OnsetAge" {
			*c = NewOnsetAge(*in.Data)
		} else {
			*c = NewModifier(*in.Data)
		}
	default:
		return fmt.Errorf("unknown cell value type %q", in.Type)
	}
	return nil
}
