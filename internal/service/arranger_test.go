package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phetools-curation-server/internal/domain"
	ot "github.com/phetools-curation-server/internal/ontology/ontologytest"
)

func TestArranger_Arrange(t *testing.T) {
	g := ot.Graph(t)
	arranger := NewArranger(g, testLogger())

	tests := []struct {
		name            string
		input           []domain.TermID
		wantOrdered     []domain.TermID
		wantUnreachable []domain.TermID
	}{
		{
			name:        "empty input",
			input:       nil,
			wantOrdered: []domain.TermID{},
		},
		{
			name:        "ancestors precede descendants",
			input:       []domain.TermID{ot.AtrialSeptalDefect, ot.Cardiovascular, ot.Arachnodactyly, ot.Musculoskeletal},
			wantOrdered: []domain.TermID{ot.Cardiovascular, ot.AtrialSeptalDefect, ot.Musculoskeletal, ot.Arachnodactyly},
		},
		{
			name:        "siblings in native child order",
			input:       []domain.TermID{ot.AbnormalityOfHand, ot.PectusExcavatum, ot.AorticRootAneurysm, ot.AbnormalHeartMorphology},
			wantOrdered: []domain.TermID{ot.AbnormalHeartMorphology, ot.AorticRootAneurysm, ot.PectusExcavatum, ot.AbnormalityOfHand},
		},
		{
			name: "neoplasms last",
			input: []domain.TermID{
				ot.RenalNeoplasm, ot.Arachnodactyly, ot.Lymphoma, ot.Macrocephaly,
				ot.AorticRootAneurysm, ot.AtrialSeptalDefect, ot.EctopiaLentis,
			},
			wantOrdered: []domain.TermID{
				ot.Macrocephaly, ot.EctopiaLentis, ot.AtrialSeptalDefect, ot.AorticRootAneurysm,
				ot.Arachnodactyly, ot.Lymphoma, ot.RenalNeoplasm,
			},
		},
		{
			name:        "neoplasm root itself",
			input:       []domain.TermID{ot.Lymphoma, ot.Neoplasm, ot.AbnormalityOfKidney},
			wantOrdered: []domain.TermID{ot.AbnormalityOfKidney, ot.Neoplasm, ot.Lymphoma},
		},
		{
			name:            "unreachable terms appended",
			input:           []domain.TermID{domain.AutosomalDominantID, ot.Arachnodactyly, "HP:9999999"},
			wantOrdered:     []domain.TermID{ot.Arachnodactyly, domain.AutosomalDominantID, "HP:9999999"},
			wantUnreachable: []domain.TermID{domain.AutosomalDominantID, "HP:9999999"},
		},
		{
			name:        "duplicates collapse",
			input:       []domain.TermID{ot.Arachnodactyly, ot.Arachnodactyly},
			wantOrdered: []domain.TermID{ot.Arachnodactyly},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := arranger.Arrange(tt.input)
			assert.Equal(t, tt.wantOrdered, res.Ordered)
			assert.Equal(t, tt.wantUnreachable, res.Unreachable)
		})
	}
}

func TestArranger_Permutation(t *testing.T) {
	g := ot.Graph(t)
	arranger := NewArranger(g, testLogger())

	input := []domain.TermID{
		ot.Lymphoma, ot.Skeletal, ot.AorticRootAneurysm, ot.Genitourinary, ot.RenalNeoplasm,
		ot.CardiacSeptum, ot.HeadOrNeck, ot.AbnormalityOfHead, ot.EctopiaLentis, ot.Arachnodactyly,
		ot.SkeletalMorphology, ot.CardiovascularMorph, ot.AbnormalityOfEye,
	}
	res := arranger.Arrange(input)
	assert.ElementsMatch(t, input, res.Ordered)
	assert.Empty(t, res.Unreachable)

	pos := make(map[domain.TermID]int)
	for i, id := range res.Ordered {
		pos[id] = i
	}
	for _, anc := range input {
		for _, desc := range input {
			if !g.IsDescendantOf(desc, anc) || g.IsDescendantOf(desc, domain.NeoplasmID) {
				continue
			}
			assert.Less(t, pos[anc], pos[desc], "%s should precede %s", anc, desc)
		}
	}
	for _, id := range []domain.TermID{ot.Lymphoma, ot.RenalNeoplasm} {
		for _, other := range input {
			if other == ot.Lymphoma || other == ot.RenalNeoplasm {
				continue
			}
			assert.Greater(t, pos[id], pos[other])
		}
	}
}

func TestArranger_ArrangeRefs(t *testing.T) {
	g := ot.Graph(t)
	arranger := NewArranger(g, testLogger())

	refs := []domain.TermRef{ot.Ref(t, g, ot.Arachnodactyly), ot.Ref(t, g, ot.EctopiaLentis)}
	ordered, unreachable := arranger.ArrangeRefs(refs)
	require.Len(t, ordered, 2)
	assert.Equal(t, refs[1], ordered[0])
	assert.Equal(t, refs[0], ordered[1])
	assert.Empty(t, unreachable)
}
