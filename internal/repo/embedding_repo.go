package repo

import (
	"context"
	"database/sql"

	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/recall/internal/model"
)

type EmbeddingRepo struct {
	db *sql.DB
}

func NewEmbeddingRepo(db *sql.DB) *EmbeddingRepo {
	return &EmbeddingRepo{db: db}
}

func (r *EmbeddingRepo) Save(ctx context.Context, emb *model.RecordEmbedding) error {
	const query = `
		INSERT INTO record_embeddings (record_type, record_id, user_id, embedding, content_hash, mtime)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (record_type, record_id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			content_hash = EXCLUDED.content_hash,
			mtime = EXCLUDED.mtime
	`
	_, err := r.db.ExecContext(ctx, query,
		emb.RecordType,
		emb.RecordID,
		emb.UserID,
		pgvector.NewVector(emb.Embedding),
		emb.ContentHash,
		emb.Mtime,
	)
	return err
}

func (r *EmbeddingRepo) Get(ctx context.Context, typ model.RecordType, id string) (*model.RecordEmbedding, error) {
	const query = `
		SELECT record_type, record_id, user_id, embedding, content_hash, mtime
		FROM record_embeddings
		WHERE record_type = $1 AND record_id = $2
	`
	row := r.db.QueryRowContext(ctx, query, typ, id)
	var item model.RecordEmbedding
	var vec pgvector.Vector
	if err := row.Scan(&item.RecordType, &item.RecordID, &item.UserID, &vec, &item.ContentHash, &item.Mtime); err != nil {
		return nil, err
	}
	item.Embedding = vec.Slice()
	return &item, nil
}

// Search returns the user's records ordered by cosine similarity against the
// query vector, dropping anything below minScore.
func (r *EmbeddingRepo) Search(ctx context.Context, userID string, embedding []float32, minScore float64, limit int) ([]model.SearchHit, error) {
	const query = `
		SELECT record_type, record_id, score FROM (
			SELECT record_type, record_id, 1 - (embedding <=> $2) AS score
			FROM record_embeddings
			WHERE user_id = $1
		) scored
		WHERE score >= $3
		ORDER BY score DESC, record_id
		LIMIT $4
	`
	rows, err := r.db.QueryContext(ctx, query, userID, pgvector.NewVector(embedding), minScore, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var hits []model.SearchHit
	for rows.Next() {
		var hit model.SearchHit
		if err := rows.Scan(&hit.Type, &hit.ID, &hit.Score); err != nil {
			return nil, err
		}
		hit.Signal = model.SignalSemantic
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// ListMissing finds corpus records with no embedding row yet, with the text
// each record should be embedded from.
func (r *EmbeddingRepo) ListMissing(ctx context.Context, limit int) ([]model.PendingEmbedding, error) {
	const query = `
		SELECT kind, id, user_id, text FROM (
			SELECT 'email' AS kind, e.id, e.user_id, e.subject || E'\n' || e.body AS text, e.ctime
			FROM emails e
			LEFT JOIN record_embeddings re ON re.record_type = 'email' AND re.record_id = e.id
			WHERE re.record_id IS NULL
			UNION ALL
			SELECT 'schedule', s.id, s.user_id, s.summary || E'\n' || s.description || E'\n' || s.location, s.ctime
			FROM schedules s
			LEFT JOIN record_embeddings re ON re.record_type = 'schedule' AND re.record_id = s.id
			WHERE re.record_id IS NULL
			UNION ALL
			SELECT 'file', f.id, f.user_id, f.name || E'\n' || f.content, f.ctime
			FROM files f
			LEFT JOIN record_embeddings re ON re.record_type = 'file' AND re.record_id = f.id
			WHERE re.record_id IS NULL
			UNION ALL
			SELECT 'attachment', a.id, a.user_id, a.filename || E'\n' || a.content, a.ctime
			FROM attachments a
			LEFT JOIN record_embeddings re ON re.record_type = 'attachment' AND re.record_id = a.id
			WHERE re.record_id IS NULL
		) pending
		ORDER BY ctime
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var items []model.PendingEmbedding
	for rows.Next() {
		var item model.PendingEmbedding
		if err := rows.Scan(&item.Type, &item.ID, &item.UserID, &item.Text); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
