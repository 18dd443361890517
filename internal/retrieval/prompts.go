package retrieval

import (
	"fmt"

	"github.com/xxxsen/recall/internal/ai"
)

const reactSystemPrompt = `You are a research assistant answering questions from the user's personal data: emails, schedules, files and email attachments.

You work in steps. At each step, output exactly one of:

Thought: <your reasoning about what to search next>
Action: <tool> <query>

or, once you have enough information:

Final: <your answer>
REFERENCE_IDS: <comma-separated ids of the records you used, e.g. email_12, file_3, or "none">

Available tools:
- semantic_search: finds records by meaning. Use natural language queries.
- keyword_search: finds records containing exact words. Use short, specific terms.
- approximate_search: finds records with near-matching text. Use when spellings may differ.

Rules:
- Search before answering. Never invent facts that are not in the observations.
- Cite only ids that appear in observations, in the [Type ID: ...] headers.
- If repeated searches find nothing relevant, say so in the Final answer with REFERENCE_IDS: none.
- Never write an Observation yourself. Observations are provided to you.`

const groundingPromptTemplate = `Answer the user's question using ONLY the personal data below.

%s

Question: %s

Rules:
- Base the answer strictly on the data above. Do not invent details.
- End your answer with a line "REFERENCE_IDS: <ids>" listing the ids of the records you actually used (as shown in the [Type ID: ...] headers), comma-separated.
- If none of the data answers the question, say so and end with "REFERENCE_IDS: none".`

const emptyContextPromptTemplate = `The user asked a question but no matching records were found in their personal data.

Question: %s

Tell the user that nothing relevant was found in their emails, schedules, files or attachments. Do not invent an answer. End with the line "REFERENCE_IDS: none".`

// BuildGroundingPrompt renders the single-shot answer prompt. With no
// retrieved context the model is still called, instructed to report that
// nothing was found.
func BuildGroundingPrompt(question, context string) string {
	if context == "" {
		return fmt.Sprintf(emptyContextPromptTemplate, question)
	}
	return fmt.Sprintf(groundingPromptTemplate, context, question)
}

// SearchToolSpecs describes the three signals for providers with native tool
// calling.
func SearchToolSpecs() []ai.ToolSpec {
	queryParam := func(desc string) []ai.ToolParam {
		return []ai.ToolParam{{
			Name:        "query",
			Type:        "string",
			Description: desc,
			Required:    true,
		}}
	}
	return []ai.ToolSpec{
		{
			Name:        string(ToolSemanticSearch),
			Description: "Search the user's personal data by meaning.",
			Params:      queryParam("Natural language description of what to find."),
		},
		{
			Name:        string(ToolKeywordSearch),
			Description: "Search the user's personal data for exact words.",
			Params:      queryParam("Short, specific search terms."),
		},
		{
			Name:        string(ToolApproximateSearch),
			Description: "Search the user's personal data tolerating misspellings and near matches.",
			Params:      queryParam("Text that may be spelled slightly differently in the data."),
		},
	}
}
