package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTermIDIsValid(t *testing.T) {
	tests := []struct {
		id    TermID
		valid bool
	}{
		{"HP:0001166", true},
		{"HP:0000118", true},
		{"HP:000118", false},
		{"HP:00011660", false},
		{"hp:0001166", false},
		{"MONDO:0007947", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.id), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.id.IsValid())
		})
	}
}

func TestTermRefIdentity(t *testing.T) {
	a := NewTermRef("HP:0001166", "Arachnodactyly")
	b := NewTermRef(" HP:0001166 ", "Spider fingers ")

	assert.True(t, a.Same(b))
	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, "Spider fingers", b.Label)
	assert.Equal(t, "Arachnodactyly (HP:0001166)", a.String())
	assert.False(t, a.Same(NewTermRef("HP:0001631", "Arachnodactyly")))
}

func TestCohortTypeIsValid(t *testing.T) {
	tests := []struct {
		name  string
		value CohortType
		valid bool
	}{
		{"mendelian", Mendelian, true},
		{"melded", Melded, true},
		{"digenic", Digenic, true},
		{"uppercase", CohortType("MENDELIAN"), false},
		{"empty", CohortType(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.value.IsValid())
		})
	}
}

func TestParseCohortType(t *testing.T) {
	ct, err := ParseCohortType(" Mendelian ")
	require.NoError(t, err)
	assert.Equal(t, Mendelian, ct)

	_, err = ParseCohortType("oligogenic")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidCohortType))
}
