package search

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractKeywords(t *testing.T) {
	keywords := ExtractKeywords("What did Alice say about the budget deadline?")
	require.Equal(t, []string{"alice", "say", "budget", "deadline"}, keywords)
}

func TestExtractKeywordsDedupes(t *testing.T) {
	keywords := ExtractKeywords("budget budget Budget")
	require.Equal(t, []string{"budget"}, keywords)
}

func TestExtractKeywordsDropsShortAndStopwords(t *testing.T) {
	require.Empty(t, ExtractKeywords("is it in at the and for"))
	require.Empty(t, ExtractKeywords(""))
}

func TestExtractKeywordsSplitsOnPunctuation(t *testing.T) {
	keywords := ExtractKeywords("project-alpha, milestone: review!")
	require.Equal(t, []string{"project", "alpha", "milestone", "review"}, keywords)
}
