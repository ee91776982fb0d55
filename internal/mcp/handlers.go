package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/phetools-curation-server/internal/domain"
	"github.com/phetools-curation-server/internal/schema"
	"github.com/phetools-curation-server/internal/service"
)

// ParseCellParams defines parameters for parse_cell tool
type ParseCellParams struct {
	Text string `json:"text"`
}

// ParseCellResult defines the result structure for parse_cell tool
type ParseCellResult struct {
	Kind string `json:"kind"`
	Text string `json:"text,omitempty"`
}

// ArrangeTermsParams defines parameters for arrange_terms tool
type ArrangeTermsParams struct {
	Terms []string `json:"terms"`
}

// TableParams carries one tab-separated curation template.
type TableParams struct {
	Table string `json:"table"`
}

// TableResult is a cohort rendered back into template form.
type TableResult struct {
	Valid   bool                  `json:"valid"`
	Errors  []string              `json:"errors,omitempty"`
	Table   string                `json:"table,omitempty"`
	Summary *domain.CohortSummary `json:"summary,omitempty"`
}

// SanitizeResult defines the result structure for sanitize_cohort tool
type SanitizeResult struct {
	Corrections int    `json:"corrections"`
	Table       string `json:"table"`
}

// MergeParams defines parameters for merge_cohorts tool
type MergeParams struct {
	TableA string `json:"table_a"`
	TableB string `json:"table_b"`
}

// QCResult defines the result structure for qc_cohort tool
type QCResult struct {
	Valid     bool     `json:"valid"`
	Errors    []string `json:"errors,omitempty"`
	Conflicts []string `json:"conflicts,omitempty"`
}

func (s *Server) handleParseCell(ctx context.Context, req *mcp.CallToolRequest, params ParseCellParams) (*mcp.CallToolResult, ParseCellResult, error) {
	value, err := domain.ParseCellValue(params.Text)
	if err != nil {
		return s.createErrorResult("Invalid cell", err), ParseCellResult{}, nil
	}
	result := ParseCellResult{Kind: value.Kind().String(), Text: value.Text()}
	return textResult(result), result, nil
}

func (s *Server) handleArrangeTerms(ctx context.Context, req *mcp.CallToolRequest, params ArrangeTermsParams) (*mcp.CallToolResult, service.ArrangeResult, error) {
	if len(params.Terms) == 0 {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("terms is required")), service.ArrangeResult{}, nil
	}
	ids := make([]domain.TermID, len(params.Terms))
	for i, t := range params.Terms {
		ids[i] = domain.TermID(strings.TrimSpace(t))
	}
	result := s.curation.Arranger().Arrange(ids)
	return textResult(result), result, nil
}

// handleValidateTemplate reports problems in the template as a result rather
// than a tool failure.
func (s *Server) handleValidateTemplate(ctx context.Context, req *mcp.CallToolRequest, params TableParams) (*mcp.CallToolResult, TableResult, error) {
	cohort, err := s.importTable(ctx, params.Table)
	if err != nil {
		if domain.ErrorCode(err) == domain.ErrInternalServer {
			return s.createErrorResult("Template could not be read", err), TableResult{}, nil
		}
		result := TableResult{Valid: false, Errors: messagesOf(err)}
		return textResult(result), result, nil
	}
	table, err := renderTable(cohort)
	if err != nil {
		return s.createErrorResult("Template could not be rendered", err), TableResult{}, nil
	}
	summary := cohort.Summary()
	result := TableResult{Valid: true, Table: table, Summary: &summary}
	return textResult(result), result, nil
}

func (s *Server) handleSanitizeCohort(ctx context.Context, req *mcp.CallToolRequest, params TableParams) (*mcp.CallToolResult, SanitizeResult, error) {
	cohort, err := s.importTable(ctx, params.Table)
	if err != nil {
		return s.createErrorResult("Invalid template", err), SanitizeResult{}, nil
	}
	n, err := s.curation.Sanitizer().SanitizeCohort(ctx, cohort)
	if err != nil {
		return s.createErrorResult("Sanitization was interrupted", err), SanitizeResult{}, nil
	}
	table, err := renderTable(cohort)
	if err != nil {
		return s.createErrorResult("Template could not be rendered", err), SanitizeResult{}, nil
	}
	result := SanitizeResult{Corrections: n, Table: table}
	return textResult(result), result, nil
}

func (s *Server) handleMergeCohorts(ctx context.Context, req *mcp.CallToolRequest, params MergeParams) (*mcp.CallToolResult, TableResult, error) {
	a, err := s.importTable(ctx, params.TableA)
	if err != nil {
		return s.createErrorResult("Invalid table_a", err), TableResult{}, nil
	}
	b, err := s.importTable(ctx, params.TableB)
	if err != nil {
		return s.createErrorResult("Invalid table_b", err), TableResult{}, nil
	}
	merged, err := s.curation.Merger().Merge(ctx, a, b)
	if err != nil {
		return s.createErrorResult("Cohorts could not be merged", err), TableResult{}, nil
	}
	table, err := renderTable(merged)
	if err != nil {
		return s.createErrorResult("Template could not be rendered", err), TableResult{}, nil
	}
	summary := merged.Summary()
	result := TableResult{Valid: true, Table: table, Summary: &summary}
	return textResult(result), result, nil
}

func (s *Server) handleQCCohort(ctx context.Context, req *mcp.CallToolRequest, params TableParams) (*mcp.CallToolResult, QCResult, error) {
	cohort, err := s.importTable(ctx, params.Table)
	if err != nil {
		result := QCResult{Valid: false, Errors: messagesOf(err)}
		return textResult(result), result, nil
	}

	result := QCResult{Valid: true}
	if err := s.curation.QC().Check(cohort); err != nil {
		result.Valid = false
		result.Errors = messagesOf(err)
	}
	for _, conflict := range s.curation.QC().Conflicts(cohort) {
		for _, corr := range conflict.Corrections {
			result.Conflicts = append(result.Conflicts, fmt.Sprintf("%s %s: %s (%s over %s, %s set to na)",
				conflict.PMID, conflict.IndividualID, corr.Rule, corr.Ancestor, corr.Descendant, corr.Target))
		}
	}
	return textResult(result), result, nil
}

func (s *Server) importTable(ctx context.Context, text string) (*domain.Cohort, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.NewMCPError(domain.ErrInvalidInput, "table is required", "", "")
	}
	matrix, err := schema.ReadTSV(strings.NewReader(text))
	if err != nil {
		return nil, domain.NewMCPError(domain.ErrInvalidInput, "Invalid TSV", err.Error(), "")
	}
	return s.curation.ImportTable(ctx, matrix)
}

func renderTable(c *domain.Cohort) (string, error) {
	matrix, err := schema.Matrix(c)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := schema.WriteTSV(&buf, matrix); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func messagesOf(err error) []string {
	var errs *domain.ValidationErrors
	if errors.As(err, &errs) {
		return errs.Messages()
	}
	return []string{err.Error()}
}

// textResult mirrors the structured output as JSON text for clients that
// only read content.
func textResult(v any) *mcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		data = []byte(fmt.Sprintf("%v", v))
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}
}

// createErrorResult creates a standardized error result for tool calls
func (s *Server) createErrorResult(message string, err error) *mcp.CallToolResult {
	errorText := fmt.Sprintf("Error [%s]: %s", domain.ErrorCode(err), message)
	for _, msg := range messagesOf(err) {
		errorText += "\n - " + msg
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: errorText},
		},
		IsError: true,
	}
}
