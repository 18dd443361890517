package retrieval

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/recall/internal/model"
)

type fakeSearcher struct {
	semantic    []model.SearchHit
	keyword     []model.SearchHit
	approximate []model.SearchHit
	semanticErr error
	keywordErr  error
	fuzzyErr    error
}

func (f *fakeSearcher) Semantic(ctx context.Context, userID, query string, limit int) ([]model.SearchHit, error) {
	return f.semantic, f.semanticErr
}

func (f *fakeSearcher) Keyword(ctx context.Context, userID, query string, limit int) ([]model.SearchHit, error) {
	return f.keyword, f.keywordErr
}

func (f *fakeSearcher) Approximate(ctx context.Context, userID, query string, limit int) ([]model.SearchHit, error) {
	return f.approximate, f.fuzzyErr
}

func hit(typ model.RecordType, id string, score float64, signal model.Signal) model.SearchHit {
	return model.SearchHit{Type: typ, ID: id, Score: score, Signal: signal}
}

func allEmailsFetcher(n int) *fakeFetcher {
	records := make(map[string]*model.Record)
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("%d", i)
		records["email_"+id] = emailRecord(id, "subject "+id)
	}
	return &fakeFetcher{records: records}
}

func TestFuseDeduplicatesAcrossSignals(t *testing.T) {
	searcher := &fakeSearcher{
		semantic: []model.SearchHit{hit(model.RecordTypeEmail, "1", 0.9, model.SignalSemantic)},
		keyword:  []model.SearchHit{hit(model.RecordTypeEmail, "1", 0.8, model.SignalKeyword)},
		approximate: []model.SearchHit{
			hit(model.RecordTypeEmail, "1", 0.7, model.SignalApproximate),
		},
	}
	fuser := NewFuser(searcher, allEmailsFetcher(3), Config{})
	result, err := fuser.Fuse(context.Background(), "u1", "query", 5)
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	require.Equal(t, "1", result.Hits[0].ID)
	// 0.6*0.9 + 0.4*0.8 + 0.6*0.7
	require.InDelta(t, 1.28, result.Hits[0].Score, 1e-9)
}

func TestFuseWeightedRanking(t *testing.T) {
	searcher := &fakeSearcher{
		semantic: []model.SearchHit{
			hit(model.RecordTypeEmail, "1", 0.9, model.SignalSemantic),
			hit(model.RecordTypeEmail, "2", 0.5, model.SignalSemantic),
		},
		keyword: []model.SearchHit{
			hit(model.RecordTypeEmail, "2", 1.0, model.SignalKeyword),
		},
	}
	fuser := NewFuser(searcher, allEmailsFetcher(3), Config{})
	result, err := fuser.Fuse(context.Background(), "u1", "query", 5)
	require.NoError(t, err)
	require.Len(t, result.Hits, 2)
	// email 2: 0.6*0.5 + 0.4*1.0 = 0.7 beats email 1: 0.6*0.9 = 0.54
	require.Equal(t, "2", result.Hits[0].ID)
	require.Equal(t, "1", result.Hits[1].ID)
}

func TestFuseWeakSemanticReweights(t *testing.T) {
	searcher := &fakeSearcher{
		semantic: []model.SearchHit{
			hit(model.RecordTypeEmail, "1", 0.3, model.SignalSemantic),
		},
		keyword: []model.SearchHit{
			hit(model.RecordTypeEmail, "2", 0.5, model.SignalKeyword),
		},
	}
	fuser := NewFuser(searcher, allEmailsFetcher(3), Config{})
	result, err := fuser.Fuse(context.Background(), "u1", "query", 5)
	require.NoError(t, err)
	require.Len(t, result.Hits, 2)
	// weak weights: email 2 scores 0.4*0.5 = 0.2, email 1 scores 0.3*0.3 = 0.09
	require.Equal(t, "2", result.Hits[0].ID)
	require.InDelta(t, 0.2, result.Hits[0].Score, 1e-9)
	require.InDelta(t, 0.09, result.Hits[1].Score, 1e-9)
}

func TestFuseWeakAppliesOnEmptySemantic(t *testing.T) {
	searcher := &fakeSearcher{
		keyword: []model.SearchHit{
			hit(model.RecordTypeEmail, "1", 1.0, model.SignalKeyword),
		},
	}
	fuser := NewFuser(searcher, allEmailsFetcher(1), Config{})
	result, err := fuser.Fuse(context.Background(), "u1", "query", 5)
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	require.InDelta(t, 0.4, result.Hits[0].Score, 1e-9)
}

func TestFuseDiversityForcesKeywordHit(t *testing.T) {
	semantic := make([]model.SearchHit, 0, 6)
	for i := 1; i <= 6; i++ {
		semantic = append(semantic, hit(model.RecordTypeEmail, fmt.Sprintf("%d", i), 0.9-float64(i)*0.01, model.SignalSemantic))
	}
	searcher := &fakeSearcher{
		semantic: semantic,
		keyword: []model.SearchHit{
			hit(model.RecordTypeEmail, "99", 0.5, model.SignalKeyword),
		},
	}
	fetcher := allEmailsFetcher(6)
	fetcher.records["email_99"] = emailRecord("99", "forced in")
	fuser := NewFuser(searcher, fetcher, Config{})
	result, err := fuser.Fuse(context.Background(), "u1", "query", 5)
	require.NoError(t, err)
	require.Len(t, result.Hits, 5)
	ids := make(map[string]bool)
	for _, h := range result.Hits {
		ids[h.ID] = true
	}
	require.True(t, ids["99"], "best keyword hit must survive fusion")
}

func TestFuseDegradesOnSignalError(t *testing.T) {
	searcher := &fakeSearcher{
		semantic: []model.SearchHit{
			hit(model.RecordTypeEmail, "1", 0.9, model.SignalSemantic),
		},
		keywordErr: errors.New("db down"),
		fuzzyErr:   errors.New("db down"),
	}
	fuser := NewFuser(searcher, allEmailsFetcher(1), Config{})
	result, err := fuser.Fuse(context.Background(), "u1", "query", 5)
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
}

func TestFuseFailsWhenAllSignalsFail(t *testing.T) {
	searcher := &fakeSearcher{
		semanticErr: errors.New("embed down"),
		keywordErr:  errors.New("db down"),
		fuzzyErr:    errors.New("db down"),
	}
	fuser := NewFuser(searcher, allEmailsFetcher(1), Config{})
	_, err := fuser.Fuse(context.Background(), "u1", "query", 5)
	require.Error(t, err)
	var sigErr *SignalError
	require.ErrorAs(t, err, &sigErr)
}

func TestFuseSkipsVanishedRecords(t *testing.T) {
	searcher := &fakeSearcher{
		semantic: []model.SearchHit{
			hit(model.RecordTypeEmail, "1", 0.9, model.SignalSemantic),
			hit(model.RecordTypeEmail, "404", 0.8, model.SignalSemantic),
		},
	}
	fuser := NewFuser(searcher, allEmailsFetcher(1), Config{})
	result, err := fuser.Fuse(context.Background(), "u1", "query", 5)
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	require.Len(t, result.References, 1)
	require.Equal(t, "1", result.References[0].ID)
}

func TestFuseSingleSignal(t *testing.T) {
	searcher := &fakeSearcher{
		keyword: []model.SearchHit{
			hit(model.RecordTypeEmail, "1", 1.0, model.SignalKeyword),
		},
	}
	fuser := NewFuser(searcher, allEmailsFetcher(1), Config{})
	result, err := fuser.FuseSignals(context.Background(), "u1", "query", 3, model.SignalKeyword)
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	require.Contains(t, result.Context, "[Email ID: email_1]")
	// full keyword weight applies when semantic was never requested
	require.InDelta(t, 0.4, result.Hits[0].Score, 1e-9)
}

func TestFuseContextRendering(t *testing.T) {
	searcher := &fakeSearcher{
		semantic: []model.SearchHit{
			hit(model.RecordTypeEmail, "1", 0.9, model.SignalSemantic),
			hit(model.RecordTypeEmail, "2", 0.8, model.SignalSemantic),
		},
	}
	fuser := NewFuser(searcher, allEmailsFetcher(2), Config{})
	result, err := fuser.Fuse(context.Background(), "u1", "query", 5)
	require.NoError(t, err)
	require.Contains(t, result.Context, "[Email ID: email_1]")
	require.Contains(t, result.Context, "[Email ID: email_2]")
	require.Contains(t, result.Context, "\n---\n")
}
