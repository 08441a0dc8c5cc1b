package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTheme_WordsRoundTrip(t *testing.T) {
	theme := &Theme{Title: "Animais"}

	assert.Empty(t, theme.Words())

	theme.SetWords([]string{"capivara", "tucano", "arara"})

	words := theme.Words()
	require.Len(t, words, 3)
	assert.Equal(t, "capivara", words[0], "word order is preserved")

	theme.WordsState = "{broken"
	assert.Empty(t, theme.Words())
}

func TestNormalizeThemeCode(t *testing.T) {
	assert.Equal(t, "TEMA01", NormalizeThemeCode("tema01"))
	assert.Equal(t, "TEMA01", NormalizeThemeCode("  Tema01  "))
	assert.Equal(t, "", NormalizeThemeCode("   "))
}
