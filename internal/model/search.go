package model

type Signal string

const (
	SignalSemantic    Signal = "semantic"
	SignalKeyword     Signal = "keyword"
	SignalApproximate Signal = "approximate"
)

// SearchHit is one signal's candidate match. Scores are signal-local until
// fusion; fused hits carry the combined score.
type SearchHit struct {
	Type   RecordType `json:"type"`
	ID     string     `json:"id"`
	Score  float64    `json:"score"`
	Signal Signal     `json:"signal"`
}

// Reference is the lightweight display summary built alongside the context
// block, one per materialized hit.
type Reference struct {
	Type      RecordType `json:"type"`
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	From      string     `json:"from,omitempty"`
	Date      string     `json:"date,omitempty"`
	StartTime string     `json:"start_time,omitempty"`
	Location  string     `json:"location,omitempty"`
	Path      string     `json:"path,omitempty"`
	MimeType  string     `json:"mime_type,omitempty"`
	EmailID   string     `json:"email_id,omitempty"`
	Subject   string     `json:"subject,omitempty"`
}

// FusionResult is the fused, deduplicated output of one query. Scores are
// comparable only within a single result.
type FusionResult struct {
	Hits       []SearchHit `json:"hits"`
	Context    string      `json:"context"`
	References []Reference `json:"references"`
}

// RetrievalResult is the uniform payload of every retrieval mode.
type RetrievalResult struct {
	Content    string    `json:"content"`
	References []*Record `json:"references"`
}
