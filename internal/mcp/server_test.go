package mcp

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phetools-curation-server/internal/domain"
	ot "github.com/phetools-curation-server/internal/ontology/ontologytest"
	"github.com/phetools-curation-server/internal/schema"
	"github.com/phetools-curation-server/internal/service"
)

var marfan = domain.DiseaseData{
	DiseaseID:    "OMIM:154700",
	DiseaseLabel: "Marfan syndrome",
	ModeOfInheritanceList: []domain.ModeOfInheritance{
		{HPOID: domain.AutosomalDominantID, HPOLabel: "Autosomal dominant inheritance", Citation: "PMID:29482508"},
	},
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	g := ot.Graph(t)
	curation := service.NewCurationService(g, nil, nil, domain.CurationConfig{Workers: 2}, logger)
	server, err := NewServer(domain.MCPConfig{RequestTimeout: 5 * time.Second}, g, curation, logger)
	require.NoError(t, err)
	return server
}

// template renders a Mendelian template over terms with one line per
// individual.
func template(t *testing.T, terms []domain.TermID, lines map[string][]string) string {
	t.Helper()
	g := ot.Graph(t)
	refs := make([]domain.TermRef, len(terms))
	for i, id := range terms {
		refs[i] = ot.Ref(t, g, id)
	}
	matrix := schema.NewTemplateMatrix(refs)
	for _, individual := range []string{"P1", "P2", "P3"} {
		cells, ok := lines[individual]
		if !ok {
			continue
		}
		fixed := schema.FixedCells(
			domain.IndividualData{
				PMID: "PMID:29482508", Title: "Marfan syndrome in a family", IndividualID: individual,
				AgeOfOnset: "na", AgeAtLastEncounter: "P30Y", Deceased: "no", Sex: "F",
			},
			marfan,
			domain.GeneVariantData{HGNCID: "HGNC:3603", GeneSymbol: "FBN1", Transcript: "NM_000138.5", Allele1: "c.8242G>T", Allele2: "na"},
		)
		matrix = append(matrix, append(fixed, cells...))
	}

	var buf bytes.Buffer
	require.NoError(t, schema.WriteTSV(&buf, matrix))
	return buf.String()
}

func resultText(t *testing.T, r *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, r)
	require.Len(t, r.Content, 1)
	text, ok := r.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestNewServer(t *testing.T) {
	server := newTestServer(t)
	assert.NotNil(t, server.mcpServer)
	assert.Equal(t, "phetools-curation-server", server.config.ServerName)
	assert.Equal(t, "v1.0.0", server.config.ServerVersion)
}

func TestHandleParseCell(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		text    string
		want    ParseCellResult
		wantErr bool
	}{
		{name: "observed", text: "observed", want: ParseCellResult{Kind: "Observed"}},
		{name: "not ascertained", text: "na", want: ParseCellResult{Kind: "Na"}},
		{name: "iso8601 onset", text: "P4Y", want: ParseCellResult{Kind: "OnsetAge", Text: "P4Y"}},
		{name: "gestational onset", text: "G32w2d", want: ParseCellResult{Kind: "OnsetAge", Text: "G32w2d"}},
		{name: "unrecognized", text: "yes", wantErr: true},
		{name: "empty", text: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, out, err := server.handleParseCell(ctx, nil, ParseCellParams{Text: tt.text})
			require.NoError(t, err)
			if tt.wantErr {
				assert.True(t, result.IsError)
				assert.Contains(t, resultText(t, result), "Invalid cell")
				return
			}
			assert.False(t, result.IsError)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestHandleArrangeTerms(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	result, out, err := server.handleArrangeTerms(ctx, nil, ArrangeTermsParams{
		Terms: []string{string(ot.Lymphoma), string(ot.Arachnodactyly), " " + string(ot.EctopiaLentis) + " "},
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, []domain.TermID{ot.EctopiaLentis, ot.Arachnodactyly, ot.Lymphoma}, out.Ordered)
	assert.Empty(t, out.Unreachable)
	assert.Contains(t, resultText(t, result), `"ordered"`)

	result, _, err = server.handleArrangeTerms(ctx, nil, ArrangeTermsParams{})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleValidateTemplate(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	t.Run("valid template is arranged", func(t *testing.T) {
		table := template(t, []domain.TermID{ot.Arachnodactyly, ot.EctopiaLentis}, map[string][]string{
			"P1": {"observed", "na"},
			"P2": {"excluded", "P4Y"},
		})
		result, out, err := server.handleValidateTemplate(ctx, nil, TableParams{Table: table})
		require.NoError(t, err)
		assert.False(t, result.IsError)
		require.True(t, out.Valid, out.Errors)
		require.NotNil(t, out.Summary)
		assert.Equal(t, 2, out.Summary.Individuals)

		header := strings.SplitN(out.Table, "\n", 3)[1]
		assert.True(t, strings.HasSuffix(header, string(ot.EctopiaLentis)+"\t"+string(ot.Arachnodactyly)), header)
	})

	t.Run("invalid cells are reported", func(t *testing.T) {
		table := template(t, []domain.TermID{ot.Arachnodactyly, ot.EctopiaLentis}, map[string][]string{
			"P1": {"yes", "na"},
		})
		result, out, err := server.handleValidateTemplate(ctx, nil, TableParams{Table: table})
		require.NoError(t, err)
		assert.False(t, result.IsError)
		assert.False(t, out.Valid)
		assert.NotEmpty(t, out.Errors)
	})

	t.Run("empty table", func(t *testing.T) {
		_, out, err := server.handleValidateTemplate(ctx, nil, TableParams{Table: "  "})
		require.NoError(t, err)
		assert.False(t, out.Valid)
		assert.Equal(t, []string{"INVALID_INPUT: table is required"}, out.Errors)
	})
}

func TestHandleSanitizeCohort(t *testing.T) {
	server := newTestServer(t)

	table := template(t, []domain.TermID{ot.Musculoskeletal, ot.Arachnodactyly}, map[string][]string{
		"P1": {"observed", "observed"},
	})
	result, out, err := server.handleSanitizeCohort(context.Background(), nil, TableParams{Table: table})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, 1, out.Corrections)

	lines := strings.Split(strings.TrimSpace(out.Table), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasSuffix(lines[2], "na\tobserved"), lines[2])
}

func TestHandleMergeCohorts(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	a := template(t, []domain.TermID{ot.Arachnodactyly}, map[string][]string{"P1": {"observed"}})
	b := template(t, []domain.TermID{ot.EctopiaLentis}, map[string][]string{"P2": {"excluded"}})

	result, out, err := server.handleMergeCohorts(ctx, nil, MergeParams{TableA: a, TableB: b})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	require.NotNil(t, out.Summary)
	assert.Equal(t, 2, out.Summary.Individuals)
	assert.Equal(t, 2, out.Summary.Terms)

	result, _, err = server.handleMergeCohorts(ctx, nil, MergeParams{TableA: a})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "Invalid table_b")
}

func TestHandleQCCohort(t *testing.T) {
	server := newTestServer(t)

	table := template(t, []domain.TermID{ot.Musculoskeletal, ot.Arachnodactyly}, map[string][]string{
		"P1": {"excluded", "observed"},
	})
	result, out, err := server.handleQCCohort(context.Background(), nil, TableParams{Table: table})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	require.Len(t, out.Conflicts, 1)
	assert.Contains(t, out.Conflicts[0], "excluded_ancestor_of_observed")
	assert.Contains(t, out.Conflicts[0], "PMID:29482508 P1")
}
