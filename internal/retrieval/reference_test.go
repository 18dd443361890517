package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/recall/internal/model"
	appErr "github.com/xxxsen/recall/internal/pkg/errors"
)

func TestParseReferenceIDs(t *testing.T) {
	answer, ids := ParseReferenceIDs("The deadline is Friday.\nREFERENCE_IDS: email_1, file_2")
	require.Equal(t, "The deadline is Friday.", answer)
	require.Equal(t, []string{"email_1", "file_2"}, ids)
}

func TestParseReferenceIDsNone(t *testing.T) {
	answer, ids := ParseReferenceIDs("Nothing relevant found.\nREFERENCE_IDS: none")
	require.Equal(t, "Nothing relevant found.", answer)
	require.Empty(t, ids)
}

func TestParseReferenceIDsMissingLine(t *testing.T) {
	answer, ids := ParseReferenceIDs("Just an answer with no citations.")
	require.Equal(t, "Just an answer with no citations.", answer)
	require.Empty(t, ids)
}

func TestParseReferenceIDsCaseInsensitiveAndDedupes(t *testing.T) {
	answer, ids := ParseReferenceIDs("Answer.\nreference_ids: email_1, email_1, schedule_9")
	require.Equal(t, "Answer.", answer)
	require.Equal(t, []string{"email_1", "schedule_9"}, ids)
}

func TestParseReferenceIDsMidTextLine(t *testing.T) {
	answer, ids := ParseReferenceIDs("Part one.\nREFERENCE_IDS: email_3\nPart two.")
	require.Contains(t, answer, "Part one.")
	require.Contains(t, answer, "Part two.")
	require.Equal(t, []string{"email_3"}, ids)
}

type fakeFetcher struct {
	records map[string]*model.Record
}

func (f *fakeFetcher) Fetch(ctx context.Context, userID string, typ model.RecordType, id string) (*model.Record, error) {
	record, ok := f.records[string(typ)+"_"+id]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return record, nil
}

func emailRecord(id, subject string) *model.Record {
	return &model.Record{
		Type:  model.RecordTypeEmail,
		Email: &model.Email{ID: id, Subject: subject},
	}
}

func TestResolveRoundTrip(t *testing.T) {
	fetcher := &fakeFetcher{records: map[string]*model.Record{
		"email_1": emailRecord("1", "budget"),
		"email_2": emailRecord("2", "standup"),
	}}
	resolver := NewResolver(fetcher)
	records := resolver.Resolve(context.Background(), "u1", []string{"email_2", "email_1"}, nil)
	require.Len(t, records, 2)
	require.Equal(t, "email_2", records[0].RefID())
	require.Equal(t, "email_1", records[1].RefID())
}

func TestResolveSkipsUnresolvable(t *testing.T) {
	fetcher := &fakeFetcher{records: map[string]*model.Record{
		"email_1": emailRecord("1", "budget"),
	}}
	resolver := NewResolver(fetcher)
	records := resolver.Resolve(context.Background(), "u1",
		[]string{"email_1", "email_999", "bogus", "dragon_7"}, nil)
	require.Len(t, records, 1)
	require.Equal(t, "email_1", records[0].RefID())
}

func TestResolveBareIDUsesPriorHits(t *testing.T) {
	fetcher := &fakeFetcher{records: map[string]*model.Record{
		"email_7": emailRecord("7", "budget"),
	}}
	resolver := NewResolver(fetcher)
	hits := []model.SearchHit{
		{Type: model.RecordTypeEmail, ID: "7", Score: 0.9, Signal: model.SignalSemantic},
	}
	records := resolver.Resolve(context.Background(), "u1", []string{"7", "8"}, hits)
	require.Len(t, records, 1)
	require.Equal(t, "email_7", records[0].RefID())
}
