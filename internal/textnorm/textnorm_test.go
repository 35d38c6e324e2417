package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpace(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a b c", Space("  a \n\t b   c "))
	assert.Equal(t, "", Space(" \n "))
}

func TestTitle(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"kristiansand":     "Kristiansand",
		"ÅLESUND":          "Ålesund",
		"nord-fron":        "Nord-Fron",
		"  more og romsdal": "More Og Romsdal",
		"":                 "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Title(in), "input %q", in)
	}
}

func TestFold(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "besoksadresse", Fold("Besøksadresse"))
	assert.Equal(t, "lokalforeninger i agder", Fold("  Lokalforeninger  i Agder "))
	assert.Equal(t, "raede", Fold("Ræde"))
	assert.Equal(t, "tromso", Fold("Tromsø"))
	assert.Equal(t, "aland", Fold("Åland"))
}
