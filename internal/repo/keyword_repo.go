package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/xxxsen/recall/internal/model"
	"github.com/xxxsen/recall/internal/pkg/dbutil"
)

const (
	keywordTitleScore = 0.5
	keywordBodyScore  = 0.3
)

type keywordTable struct {
	name      string
	typ       model.RecordType
	titleCols []string
	bodyCols  []string
}

var keywordTables = []keywordTable{
	{name: "emails", typ: model.RecordTypeEmail, titleCols: []string{"subject"}, bodyCols: []string{"body", "from_user", "to_user"}},
	{name: "schedules", typ: model.RecordTypeSchedule, titleCols: []string{"summary"}, bodyCols: []string{"description", "location"}},
	{name: "files", typ: model.RecordTypeFile, titleCols: []string{"name"}, bodyCols: []string{"content", "summary"}},
	{name: "attachments", typ: model.RecordTypeAttachment, titleCols: []string{"filename"}, bodyCols: []string{"content", "summary"}},
}

// KeywordRepo scores records by exact substring matches. Title columns weigh
// more than body columns, accumulated per keyword.
type KeywordRepo struct {
	db *sql.DB
}

func NewKeywordRepo(db *sql.DB) *KeywordRepo {
	return &KeywordRepo{db: db}
}

func (r *KeywordRepo) Search(ctx context.Context, userID string, keywords []string, limit int) ([]model.SearchHit, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	var hits []model.SearchHit
	for _, table := range keywordTables {
		tableHits, err := r.searchTable(ctx, table, userID, keywords, limit)
		if err != nil {
			return nil, err
		}
		hits = append(hits, tableHits...)
	}
	return hits, nil
}

func (r *KeywordRepo) searchTable(ctx context.Context, table keywordTable, userID string, keywords []string, limit int) ([]model.SearchHit, error) {
	sqlStr, args := buildKeywordQuery(table, keywords)
	args = append(args, userID, limit)
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var hits []model.SearchHit
	for rows.Next() {
		var hit model.SearchHit
		if err := rows.Scan(&hit.ID, &hit.Score); err != nil {
			return nil, err
		}
		hit.Type = table.typ
		hit.Signal = model.SignalKeyword
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

func buildKeywordQuery(table keywordTable, keywords []string) (string, []interface{}) {
	var terms []string
	var args []interface{}
	for _, keyword := range keywords {
		pattern := "%" + keyword + "%"
		for _, col := range table.titleCols {
			terms = append(terms, fmt.Sprintf("CASE WHEN %s ILIKE ? THEN %.1f ELSE 0 END", col, keywordTitleScore))
			args = append(args, pattern)
		}
		for _, col := range table.bodyCols {
			terms = append(terms, fmt.Sprintf("CASE WHEN %s ILIKE ? THEN %.1f ELSE 0 END", col, keywordBodyScore))
			args = append(args, pattern)
		}
	}
	query := fmt.Sprintf(
		"SELECT id, score FROM (SELECT id, (%s) AS score FROM %s WHERE user_id = ?) scored WHERE score > 0 ORDER BY score DESC, id LIMIT ?",
		strings.Join(terms, " + "), table.name)
	return query, args
}
