package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MCPError represents a standardized error response
type MCPError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface
func (e *MCPError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrInvalidInput   = "INVALID_INPUT"
	ErrDatabaseError  = "DATABASE_ERROR"
	ErrExternalAPI    = "EXTERNAL_API_ERROR"
	ErrInternalServer = "INTERNAL_SERVER_ERROR"
	ErrValidation     = "VALIDATION_ERROR"
	ErrStructural     = "STRUCTURAL_ERROR"
	ErrTermLookup     = "TERM_LOOKUP_ERROR"
	ErrNotFoundCode   = "NOT_FOUND"
)

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewMCPError creates a new MCPError with timestamp
func NewMCPError(code, message, details, requestID string) *MCPError {
	return &MCPError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// HeaderError reports a header duplet that does not match the expected schema.
// Position is zero-based.
type HeaderError struct {
	Position int    `json:"position"`
	Expected string `json:"expected"`
	Observed string `json:"observed"`
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("header column %d: expected '%s' but found '%s'", e.Position, e.Expected, e.Observed)
}

// NewHeaderError creates a HeaderError.
func NewHeaderError(position int, expected, observed string) *HeaderError {
	return &HeaderError{Position: position, Expected: expected, Observed: observed}
}

// CellError reports a cell that violates the rule of its column. Row is the
// zero-based data row, or -1 when the cell was validated outside a table.
type CellError struct {
	Row     int    `json:"row"`
	Column  string `json:"column"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

func (e *CellError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("%s: %s ('%s')", e.Column, e.Message, e.Value)
	}
	return fmt.Sprintf("row %d, %s: %s ('%s')", e.Row, e.Column, e.Message, e.Value)
}

// NewCellError creates a CellError not yet bound to a row.
func NewCellError(column, value, message string) *CellError {
	return &CellError{Row: -1, Column: column, Value: value, Message: message}
}

// MalformedCellError reports concept cell text outside the cell grammar.
type MalformedCellError struct {
	Text string `json:"text"`
}

func (e *MalformedCellError) Error() string {
	return fmt.Sprintf("Malformed HPO cell contents: '%s'", e.Text)
}

// NewMalformedCellError creates a MalformedCellError.
func NewMalformedCellError(text string) *MalformedCellError {
	return &MalformedCellError{Text: text}
}

// StructuralError reports a shape problem that cannot be accumulated, such as a
// row of the wrong width or cohorts that cannot be merged.
type StructuralError struct {
	Kind    error  `json:"-"`
	Message string `json:"message"`
}

func (e *StructuralError) Error() string {
	if e.Kind == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the sentinel kind for errors.Is.
func (e *StructuralError) Unwrap() error {
	return e.Kind
}

// NewStructuralError creates a StructuralError of the given sentinel kind.
func NewStructuralError(kind error, format string, args ...interface{}) *StructuralError {
	return &StructuralError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// TermLookupError reports a concept identifier the hierarchy cannot resolve, or
// one that resolves to a different primary identifier or label.
type TermLookupError struct {
	ID          TermID `json:"id"`
	Label       string `json:"label,omitempty"`
	Replacement TermID `json:"replacement,omitempty"`
	Message     string `json:"message"`
}

func (e *TermLookupError) Error() string {
	if e.Replacement != "" {
		return fmt.Sprintf("%s: %s (use %s)", e.ID, e.Message, e.Replacement)
	}
	return fmt.Sprintf("%s: %s", e.ID, e.Message)
}

// ValidationErrors accumulates independent violations so a curator can fix a
// whole template in one pass.
type ValidationErrors struct {
	Errs []error `json:"errors"`
}

// Add appends non-nil errors, flattening nested ValidationErrors.
func (v *ValidationErrors) Add(errs ...error) {
	for _, err := range errs {
		if err == nil {
			continue
		}
		if nested, ok := err.(*ValidationErrors); ok {
			v.Errs = append(v.Errs, nested.Errs...)
			continue
		}
		v.Errs = append(v.Errs, err)
	}
}

// Len returns the number of violations.
func (v *ValidationErrors) Len() int {
	return len(v.Errs)
}

// Err returns nil when nothing was accumulated.
func (v *ValidationErrors) Err() error {
	if v == nil || len(v.Errs) == 0 {
		return nil
	}
	return v
}

// Messages returns one message per violation.
func (v *ValidationErrors) Messages() []string {
	out := make([]string, len(v.Errs))
	for i, err := range v.Errs {
		out[i] = err.Error()
	}
	return out
}

func (v *ValidationErrors) Error() string {
	if len(v.Errs) == 1 {
		return v.Errs[0].Error()
	}
	return fmt.Sprintf("%d validation errors:\n%s", len(v.Errs), strings.Join(v.Messages(), "\n"))
}

// Unwrap supports errors.Is and errors.As over every violation.
func (v *ValidationErrors) Unwrap() []error {
	return v.Errs
}

// ErrorCode maps an error onto the response codes above.
func ErrorCode(err error) string {
	var (
		mcpErr    *MCPError
		errs      *ValidationErrors
		se        *StructuralError
		tle       *TermLookupError
		ce        *CellError
		he        *HeaderError
		malformed *MalformedCellError
		ve        *ValidationError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &mcpErr):
		return mcpErr.Code
	case errors.As(err, &errs):
		return ErrValidation
	case errors.Is(err, ErrNotFound):
		return ErrNotFoundCode
	case errors.As(err, &se):
		return ErrStructural
	case errors.As(err, &tle):
		return ErrTermLookup
	case errors.As(err, &ce), errors.As(err, &he), errors.As(err, &malformed):
		return ErrValidation
	case errors.As(err, &ve):
		return ErrInvalidInput
	default:
		return ErrInternalServer
	}
}
