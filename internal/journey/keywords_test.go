package journey

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractKeywords_RanksByFrequency(t *testing.T) {
	text := "Rabbits burrow. Rabbits dig tunnels, and rabbits sleep in tunnels! The burrow is deep."

	got := ExtractKeywords(text, 3)

	assert.Equal(t, []string{"rabbits", "burrow", "tunnels"}, got)
}

func TestExtractKeywords_DropsShortAndStopWords(t *testing.T) {
	got := ExtractKeywords("about which people would there golang", DefaultKeywordLimit)
	assert.Equal(t, []string{"golang"}, got)
}

func TestExtractKeywords_Empty(t *testing.T) {
	assert.Nil(t, ExtractKeywords("", DefaultKeywordLimit))
	assert.Nil(t, ExtractKeywords("some text here", 0))
	assert.Empty(t, ExtractKeywords("a an the of", DefaultKeywordLimit))
}
