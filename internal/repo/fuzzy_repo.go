package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/xxxsen/recall/internal/model"
	"github.com/xxxsen/recall/internal/pkg/dbutil"
)

const fuzzyMinScore = 0.3

// FuzzyRepo matches records whose text is close to the query without being an
// exact substring, using pg_trgm trigram similarity.
type FuzzyRepo struct {
	db *sql.DB
}

func NewFuzzyRepo(db *sql.DB) *FuzzyRepo {
	return &FuzzyRepo{db: db}
}

func (r *FuzzyRepo) Search(ctx context.Context, userID, query string, limit int) ([]model.SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	var hits []model.SearchHit
	for _, table := range keywordTables {
		tableHits, err := r.searchTable(ctx, table, userID, query, limit)
		if err != nil {
			return nil, err
		}
		hits = append(hits, tableHits...)
	}
	return hits, nil
}

func (r *FuzzyRepo) searchTable(ctx context.Context, table keywordTable, userID, query string, limit int) ([]model.SearchHit, error) {
	cols := append(append([]string{}, table.titleCols...), table.bodyCols...)
	var terms []string
	var args []interface{}
	for _, col := range cols {
		terms = append(terms, fmt.Sprintf("similarity(%s, ?)", col))
		args = append(args, query)
	}
	sqlStr := fmt.Sprintf(
		"SELECT id, score FROM (SELECT id, GREATEST(%s) AS score FROM %s WHERE user_id = ?) scored WHERE score >= ? ORDER BY score DESC, id LIMIT ?",
		strings.Join(terms, ", "), table.name)
	args = append(args, userID, fuzzyMinScore, limit)
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
		hit.Signal = model.SignalApproximate
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}
