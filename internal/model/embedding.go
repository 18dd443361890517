package model

type RecordEmbedding struct {
	RecordType  RecordType `json:"record_type"`
	RecordID    string     `json:"record_id"`
	UserID      string     `json:"user_id"`
	Embedding   []float32  `json:"embedding"`
	ContentHash string     `json:"content_hash"`
	Mtime       int64      `json:"mtime"`
}

// PendingEmbedding is a corpus record that has no embedding row yet, with its
// embeddable text already composed.
type PendingEmbedding struct {
	Type   RecordType
	ID     string
	UserID string
	Text   string
}

type EmbeddingCache struct {
	ModelName   string    `json:"model_name"`
	TaskType    string    `json:"task_type"`
	ContentHash string    `json:"content_hash"`
	Embedding   []float32 `json:"embedding"`
	Ctime       int64     `json:"ctime"`
}
