package retrieval

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseToolAliases(t *testing.T) {
	tool, ok := ParseTool("vector_search")
	require.True(t, ok)
	require.Equal(t, ToolSemanticSearch, tool)

	tool, ok = ParseTool(" Keyword_Search ")
	require.True(t, ok)
	require.Equal(t, ToolKeywordSearch, tool)

	_, ok = ParseTool("web_search")
	require.False(t, ok)
}

func TestParseActionFinal(t *testing.T) {
	action := ParseAction("Thought: I have enough information.\nFinal: The deadline is Friday.\nREFERENCE_IDS: email_1")
	require.Equal(t, ActionFinish, action.Kind)
	require.Equal(t, "The deadline is Friday.\nREFERENCE_IDS: email_1", action.Answer)

	answer, ids := ParseReferenceIDs(action.Answer)
	require.Equal(t, "The deadline is Friday.", answer)
	require.Equal(t, []string{"email_1"}, ids)
}

func TestParseActionSearch(t *testing.T) {
	action := ParseAction("Thought: I should look for the budget email.\nAction: semantic_search budget deadline email")
	require.Equal(t, ActionSearch, action.Kind)
	require.Equal(t, ToolSemanticSearch, action.Tool)
	require.Equal(t, "budget deadline email", action.Query)
}

func TestParseActionIgnoresMidSentenceMentions(t *testing.T) {
	action := ParseAction("Thought: maybe semantic_search would help, or keyword_search.")
	require.Equal(t, ActionNone, action.Kind)
}

func TestParseActionFinalWinsOverLaterAction(t *testing.T) {
	action := ParseAction("Final: done\nAction: keyword_search foo")
	require.Equal(t, ActionFinish, action.Kind)
	require.Equal(t, "done\nAction: keyword_search foo", action.Answer)
}

func TestParseActionUnknownToolSkipped(t *testing.T) {
	action := ParseAction("Action: web_search something\nAction: keyword_search budget")
	require.Equal(t, ActionSearch, action.Kind)
	require.Equal(t, ToolKeywordSearch, action.Tool)
	require.Equal(t, "budget", action.Query)
}

func TestParseActionNone(t *testing.T) {
	action := ParseAction("I think the answer might be in an email somewhere.")
	require.Equal(t, ActionNone, action.Kind)
}
