package retrieval

import "strings"

// Tool identifies one search signal the agent may invoke.
type Tool string

const (
	ToolSemanticSearch    Tool = "semantic_search"
	ToolKeywordSearch     Tool = "keyword_search"
	ToolApproximateSearch Tool = "approximate_search"
)

// ParseTool accepts the canonical tool names plus the legacy vector_search
// alias the model sometimes falls back to.
func ParseTool(name string) (Tool, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "semantic_search", "vector_search":
		return ToolSemanticSearch, true
	case "keyword_search":
		return ToolKeywordSearch, true
	case "approximate_search", "fuzzy_search":
		return ToolApproximateSearch, true
	}
	return "", false
}

type ActionKind int

const (
	// ActionNone means the model emitted neither a usable action nor a final
	// answer; the loop records the thought and asks again.
	ActionNone ActionKind = iota
	ActionSearch
	ActionFinish
)

type Action struct {
	Kind   ActionKind
	Tool   Tool
	Query  string
	Answer string
}

// ParseAction scans the model output line by line. The first "Final:" line
// wins and everything after the marker, following lines included, becomes the
// candidate answer (the REFERENCE_IDS line usually trails it). Otherwise the
// first "Action:" line naming a known tool wins. Tool mentions embedded
// mid-sentence never count.
func ParseAction(output string) Action {
	lines := strings.Split(output, "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if answer, ok := strings.CutPrefix(line, "Final:"); ok {
			parts := append([]string{strings.TrimSpace(answer)}, lines[i+1:]...)
			return Action{Kind: ActionFinish, Answer: strings.TrimSpace(strings.Join(parts, "\n"))}
		}
		rest, ok := strings.CutPrefix(line, "Action:")
		if !ok {
			continue
		}
		rest = strings.TrimSpace(rest)
		name, query, _ := strings.Cut(rest, " ")
		tool, ok := ParseTool(name)
		if !ok {
			continue
		}
		return Action{Kind: ActionSearch, Tool: tool, Query: strings.TrimSpace(query)}
	}
	return Action{Kind: ActionNone}
}
