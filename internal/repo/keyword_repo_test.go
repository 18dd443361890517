package repo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildKeywordQuery(t *testing.T) {
	table := keywordTable{
		name:      "emails",
		titleCols: []string{"subject"},
		bodyCols:  []string{"body", "from_user", "to_user"},
	}
	query, args := buildKeywordQuery(table, []string{"budget", "deadline"})
	require.Len(t, args, 8)
	require.Equal(t, "%budget%", args[0])
	require.Equal(t, "%deadline%", args[4])
	require.Equal(t, 8, strings.Count(query, "CASE WHEN"))
	require.Equal(t, 2, strings.Count(query, "THEN 0.5"))
	require.Equal(t, 6, strings.Count(query, "THEN 0.3"))
	require.Contains(t, query, "FROM emails")
	require.Contains(t, query, "user_id = ?")
	require.Contains(t, query, "WHERE score > 0")
}

func TestBuildKeywordQuerySingleKeyword(t *testing.T) {
	table := keywordTable{
		name:      "schedules",
		titleCols: []string{"summary"},
		bodyCols:  []string{"description", "location"},
	}
	query, args := buildKeywordQuery(table, []string{"standup"})
	require.Len(t, args, 3)
	for _, arg := range args {
		require.Equal(t, "%standup%", arg)
	}
	require.Equal(t, 1, strings.Count(query, "THEN 0.5"))
	require.Equal(t, 2, strings.Count(query, "THEN 0.3"))
}
