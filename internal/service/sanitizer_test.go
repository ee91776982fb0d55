package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phetools-curation-server/internal/domain"
	ot "github.com/phetools-curation-server/internal/ontology/ontologytest"
)

type row = map[domain.TermID]domain.CellValue

func TestSanitizer_SanitizeRow(t *testing.T) {
	g := ot.Graph(t)
	sanitizer := NewSanitizer(g, testLogger(), 2)

	tests := []struct {
		name string
		in   row
		want row
	}{
		{
			name: "observed ancestor of observed term",
			in:   row{ot.Musculoskeletal: obs, ot.Arachnodactyly: obs},
			want: row{ot.Musculoskeletal: na, ot.Arachnodactyly: obs},
		},
		{
			name: "excluded ancestor of observed term",
			in:   row{ot.Cardiovascular: exc, ot.AtrialSeptalDefect: obs},
			want: row{ot.Cardiovascular: na, ot.AtrialSeptalDefect: obs},
		},
		{
			name: "excluded descendant of excluded term",
			in:   row{ot.Cardiovascular: exc, ot.AtrialSeptalDefect: exc},
			want: row{ot.Cardiovascular: exc, ot.AtrialSeptalDefect: na},
		},
		{
			name: "observed ancestor of excluded term is kept",
			in:   row{ot.Musculoskeletal: obs, ot.Arachnodactyly: exc},
			want: row{ot.Musculoskeletal: obs, ot.Arachnodactyly: exc},
		},
		{
			name: "onset ages do not take part",
			in:   row{ot.Musculoskeletal: obs, ot.Arachnodactyly: domain.NewOnsetAge("P2Y")},
			want: row{ot.Musculoskeletal: obs, ot.Arachnodactyly: domain.NewOnsetAge("P2Y")},
		},
		{
			name: "not ascertained cells are untouched",
			in:   row{ot.Musculoskeletal: na, ot.Arachnodactyly: obs},
			want: row{ot.Musculoskeletal: na, ot.Arachnodactyly: obs},
		},
		{
			name: "unrelated terms",
			in:   row{ot.EctopiaLentis: obs, ot.Arachnodactyly: obs, ot.AorticRootAneurysm: exc},
			want: row{ot.EctopiaLentis: obs, ot.Arachnodactyly: obs, ot.AorticRootAneurysm: exc},
		},
		{
			name: "several levels apart",
			in: row{
				ot.Cardiovascular:          obs,
				ot.AbnormalHeartMorphology: obs,
				ot.AtrialSeptalDefect:      obs,
			},
			want: row{
				ot.Cardiovascular:          na,
				ot.AbnormalHeartMorphology: na,
				ot.AtrialSeptalDefect:      obs,
			},
		},
		{
			name: "excluded chain keeps the top",
			in: row{
				ot.Cardiovascular:          exc,
				ot.AbnormalHeartMorphology: exc,
				ot.AtrialSeptalDefect:      exc,
			},
			want: row{
				ot.Cardiovascular:          exc,
				ot.AbnormalHeartMorphology: na,
				ot.AtrialSeptalDefect:      na,
			},
		},
		{
			name: "mixed chain",
			in: row{
				ot.Cardiovascular:          exc,
				ot.AbnormalHeartMorphology: exc,
				ot.AtrialSeptalDefect:      obs,
				ot.AorticRootAneurysm:      exc,
			},
			want: row{
				ot.Cardiovascular:          na,
				ot.AbnormalHeartMorphology: na,
				ot.AtrialSeptalDefect:      obs,
				ot.AorticRootAneurysm:      na,
			},
		},
		{
			name: "empty row",
			in:   row{},
			want: row{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := make(row, len(tt.in))
			for k, v := range tt.in {
				before[k] = v
			}

			got := sanitizer.SanitizeRow(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, before, tt.in, "input must not be modified")

			again := sanitizer.SanitizeRow(got)
			assert.Equal(t, got, again, "sanitizing twice must be a no-op")
		})
	}
}

func TestSanitizer_Corrections(t *testing.T) {
	g := ot.Graph(t)
	sanitizer := NewSanitizer(g, testLogger(), 1)

	corrections := sanitizer.Corrections(row{
		ot.Musculoskeletal:    obs,
		ot.Arachnodactyly:     obs,
		ot.Cardiovascular:     exc,
		ot.AtrialSeptalDefect: exc,
	})
	require.Len(t, corrections, 2)
	assert.ElementsMatch(t, []Correction{
		{Rule: RuleRedundantObserved, Ancestor: ot.Musculoskeletal, Descendant: ot.Arachnodactyly, Target: ot.Musculoskeletal},
		{Rule: RuleRedundantExcluded, Ancestor: ot.Cardiovascular, Descendant: ot.AtrialSeptalDefect, Target: ot.AtrialSeptalDefect},
	}, corrections)
	assert.Equal(t, "redundant_observed_ancestor", RuleRedundantObserved.String())

	var decoded Rule
	require.NoError(t, decoded.UnmarshalText([]byte("excluded_ancestor_of_observed")))
	assert.Equal(t, RuleExcludedAncestor, decoded)
	assert.Error(t, decoded.UnmarshalText([]byte("unknown")))
}

func TestSanitizer_SanitizeCohort(t *testing.T) {
	g := ot.Graph(t)
	sanitizer := NewSanitizer(g, testLogger(), 3)

	terms := []domain.TermID{ot.Cardiovascular, ot.AtrialSeptalDefect, ot.Musculoskeletal, ot.Arachnodactyly}
	c := testCohort(t, g, terms,
		cells(obs, obs, na, obs),
		cells(exc, obs, obs, obs),
		cells(na, na, obs, exc),
		cells(exc, exc, na, na),
		cells(obs, na, na, na),
	)

	changed, err := sanitizer.SanitizeCohort(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, 4, changed)
	assert.Equal(t, cells(na, obs, na, obs), c.Rows[0].CellValues)
	assert.Equal(t, cells(na, obs, na, obs), c.Rows[1].CellValues)
	assert.Equal(t, cells(na, na, obs, exc), c.Rows[2].CellValues)
	assert.Equal(t, cells(exc, na, na, na), c.Rows[3].CellValues)
	assert.Equal(t, cells(obs, na, na, na), c.Rows[4].CellValues)

	changed, err = sanitizer.SanitizeCohort(context.Background(), c)
	require.NoError(t, err)
	assert.Zero(t, changed)
}

func TestSanitizer_SanitizeCohortCancelled(t *testing.T) {
	g := ot.Graph(t)
	sanitizer := NewSanitizer(g, testLogger(), 2)
	c := testCohort(t, g, []domain.TermID{ot.Musculoskeletal, ot.Arachnodactyly}, cells(obs, obs))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := sanitizer.SanitizeCohort(ctx, c)
	assert.ErrorIs(t, err, context.Canceled)
}
