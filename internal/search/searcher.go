package search

import (
	"context"
	"strings"
	"unicode"

	"github.com/xxxsen/recall/internal/ai"
	"github.com/xxxsen/recall/internal/model"
	"github.com/xxxsen/recall/internal/repo"
)

const queryTaskType = "RETRIEVAL_QUERY"

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "was": true,
	"were": true, "with": true, "this": true, "that": true, "from": true,
	"have": true, "has": true, "had": true, "you": true, "your": true,
	"about": true, "what": true, "when": true, "where": true, "who": true,
	"how": true, "did": true, "does": true, "can": true, "could": true,
	"would": true, "should": true, "will": true, "all": true, "any": true,
	"our": true, "their": true, "there": true, "them": true, "they": true,
	"his": true, "her": true, "its": true, "into": true, "out": true,
	"not": true, "but": true, "get": true, "got": true, "please": true,
	"tell": true, "show": true, "find": true, "send": true, "sent": true,
	"latest": true, "recent": true,
}

// Searcher runs the three retrieval signals independently. Each method
// returns hits scored in that signal's own scale.
type Searcher struct {
	embedder       ai.IEmbedder
	embeddings     *repo.EmbeddingRepo
	keywords       *repo.KeywordRepo
	fuzzy          *repo.FuzzyRepo
	matchThreshold float64
}

func NewSearcher(embedder ai.IEmbedder, embeddings *repo.EmbeddingRepo, keywords *repo.KeywordRepo, fuzzy *repo.FuzzyRepo, matchThreshold float64) *Searcher {
	return &Searcher{
		embedder:       embedder,
		embeddings:     embeddings,
		keywords:       keywords,
		fuzzy:          fuzzy,
		matchThreshold: matchThreshold,
	}
}

func (s *Searcher) Semantic(ctx context.Context, userID, query string, limit int) ([]model.SearchHit, error) {
	embedding, err := s.embedder.Embed(ctx, query, queryTaskType)
	if err != nil {
		return nil, err
	}
	return s.embeddings.Search(ctx, userID, embedding, s.matchThreshold, limit)
}

func (s *Searcher) Keyword(ctx context.Context, userID, query string, limit int) ([]model.SearchHit, error) {
	keywords := ExtractKeywords(query)
	if len(keywords) == 0 {
		return nil, nil
	}
	return s.keywords.Search(ctx, userID, keywords, limit)
}

func (s *Searcher) Approximate(ctx context.Context, userID, query string, limit int) ([]model.SearchHit, error) {
	return s.fuzzy.Search(ctx, userID, query, limit)
}

// ExtractKeywords splits the query into lowercase terms, dropping short
// tokens and common words that only add noise to substring matching.
func ExtractKeywords(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	seen := make(map[string]bool)
	var keywords []string
	for _, field := range fields {
		if len(field) <= 2 || stopwords[field] || seen[field] {
			continue
		}
		seen[field] = true
		keywords = append(keywords, field)
	}
	return keywords
}
