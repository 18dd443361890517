package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/recall/internal/ai"
	"github.com/xxxsen/recall/internal/model"
	appErr "github.com/xxxsen/recall/internal/pkg/errors"
	"github.com/xxxsen/recall/internal/retrieval"
)

type stubFuser struct {
	fuseResult   *model.FusionResult
	fuseErr      error
	signalResult *model.FusionResult
	signalCalls  []model.Signal
	queries      []string
}

func (f *stubFuser) Fuse(ctx context.Context, userID, query string, topK int) (*model.FusionResult, error) {
	f.queries = append(f.queries, query)
	return f.fuseResult, f.fuseErr
}

func (f *stubFuser) FuseSignals(ctx context.Context, userID, query string, topK int, signals ...model.Signal) (*model.FusionResult, error) {
	f.queries = append(f.queries, query)
	f.signalCalls = append(f.signalCalls, signals...)
	return f.signalResult, nil
}

type stubChatter struct {
	responses []*ai.ChatResponse
	err       error
	requests  []*ai.ChatRequest
}

func (s *stubChatter) Chat(ctx context.Context, req *ai.ChatRequest) (*ai.ChatResponse, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	idx := len(s.requests) - 1
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return s.responses[idx], nil
}

type stubAgent struct {
	result *model.RetrievalResult
	err    error
	runs   int
}

func (s *stubAgent) Run(ctx context.Context, userID, question string) (*model.RetrievalResult, error) {
	s.runs++
	return s.result, s.err
}

type mapFetcher struct {
	records map[string]*model.Record
}

func (f *mapFetcher) Fetch(ctx context.Context, userID string, typ model.RecordType, id string) (*model.Record, error) {
	record, ok := f.records[string(typ)+"_"+id]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return record, nil
}

func newService(fuser FusionRunner, agent AgentRunner, chatter retrieval.ChatCompleter, records map[string]*model.Record) *RetrievalService {
	resolver := retrieval.NewResolver(&mapFetcher{records: records})
	return NewRetrievalService(fuser, agent, chatter, resolver, RetrievalOptions{TopK: 5, AgentTopK: 3, MaxToolCalls: 2})
}

func budgetEmail() *model.Record {
	return &model.Record{
		Type: model.RecordTypeEmail,
		Email: &model.Email{
			ID:       "42",
			Subject:  "Q3 budget deadline",
			Body:     "The budget submission deadline is Friday, June 6.",
			FromUser: "alice@example.com",
			ToUser:   "me@example.com",
			Date:     "2025-06-02",
		},
	}
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("direct")
	require.NoError(t, err)
	require.Equal(t, ModeDirect, mode)

	mode, err = ParseMode("")
	require.NoError(t, err)
	require.Equal(t, ModeDirect, mode)

	mode, err = ParseMode("Tool-Augmented")
	require.NoError(t, err)
	require.Equal(t, ModeToolAugmented, mode)

	mode, err = ParseMode("autonomous")
	require.NoError(t, err)
	require.Equal(t, ModeAutonomous, mode)

	_, err = ParseMode("mystery")
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestDirectModeEndToEnd(t *testing.T) {
	fuser := &stubFuser{fuseResult: &model.FusionResult{
		Hits:    []model.SearchHit{{Type: model.RecordTypeEmail, ID: "42", Score: 0.8, Signal: model.SignalSemantic}},
		Context: "[Email ID: email_42]\nFrom: alice@example.com, To: me@example.com\nSubject: Q3 budget deadline, Date: 2025-06-02\nContent: The budget submission deadline is Friday, June 6.",
	}}
	chatter := &stubChatter{responses: []*ai.ChatResponse{{
		Content: "The budget deadline is Friday, June 6.\nREFERENCE_IDS: email_42",
	}}}
	svc := newService(fuser, &stubAgent{}, chatter, map[string]*model.Record{
		"email_42": budgetEmail(),
	})

	result, err := svc.Retrieve(context.Background(), "u1", "When is the budget deadline?", ModeDirect)
	require.NoError(t, err)
	require.Equal(t, "The budget deadline is Friday, June 6.", result.Content)
	require.Len(t, result.References, 1)
	require.Equal(t, "email_42", result.References[0].RefID())
	require.Equal(t, "Q3 budget deadline", result.References[0].Email.Subject)

	require.Len(t, chatter.requests, 1)
	prompt := chatter.requests[0].Messages[0].Content
	require.Contains(t, prompt, "[Email ID: email_42]")
	require.Contains(t, prompt, "When is the budget deadline?")
}

func TestDirectModeEmptyFusionStillCallsModel(t *testing.T) {
	fuser := &stubFuser{fuseResult: &model.FusionResult{}}
	chatter := &stubChatter{responses: []*ai.ChatResponse{{
		Content: "Nothing relevant was found in your personal data.\nREFERENCE_IDS: none",
	}}}
	svc := newService(fuser, &stubAgent{}, chatter, nil)

	result, err := svc.Retrieve(context.Background(), "u1", "Who won the 1962 world cup?", ModeDirect)
	require.NoError(t, err)
	require.Equal(t, "Nothing relevant was found in your personal data.", result.Content)
	require.Empty(t, result.References)
	require.Len(t, chatter.requests, 1)
	require.Contains(t, chatter.requests[0].Messages[0].Content, "no matching records were found")
}

func TestDirectModeUpstreamFailurePropagates(t *testing.T) {
	fuser := &stubFuser{fuseResult: &model.FusionResult{}}
	chatter := &stubChatter{err: ai.ErrUnavailable}
	svc := newService(fuser, &stubAgent{}, chatter, nil)

	_, err := svc.Retrieve(context.Background(), "u1", "q", ModeDirect)
	require.ErrorIs(t, err, ai.ErrUnavailable)
}

func TestAutonomousModeDelegatesToAgent(t *testing.T) {
	agent := &stubAgent{result: &model.RetrievalResult{Content: "agent answer", References: []*model.Record{}}}
	svc := newService(&stubFuser{}, agent, &stubChatter{}, nil)

	result, err := svc.Retrieve(context.Background(), "u1", "q", ModeAutonomous)
	require.NoError(t, err)
	require.Equal(t, "agent answer", result.Content)
	require.Equal(t, 1, agent.runs)
}

func TestToolAugmentedModeRunsToolCalls(t *testing.T) {
	fuser := &stubFuser{
		fuseResult: &model.FusionResult{Context: "[Email ID: email_42]\nContent: seed context"},
		signalResult: &model.FusionResult{
			Hits:    []model.SearchHit{{Type: model.RecordTypeEmail, ID: "42", Score: 0.5, Signal: model.SignalKeyword}},
			Context: "[Email ID: email_42]\nContent: The deadline is Friday.",
		},
	}
	chatter := &stubChatter{responses: []*ai.ChatResponse{
		{ToolCalls: []ai.ToolCall{{ID: "c1", Name: "keyword_search", Arguments: `{"query":"budget deadline"}`}}},
		{Content: "The deadline is Friday.\nREFERENCE_IDS: email_42"},
	}}
	svc := newService(fuser, &stubAgent{}, chatter, map[string]*model.Record{
		"email_42": budgetEmail(),
	})

	result, err := svc.Retrieve(context.Background(), "u1", "When is the deadline?", ModeToolAugmented)
	require.NoError(t, err)
	require.Equal(t, "The deadline is Friday.", result.Content)
	require.Len(t, result.References, 1)

	require.Contains(t, fuser.signalCalls, model.SignalKeyword)
	require.Len(t, chatter.requests, 2)
	last := chatter.requests[1].Messages
	toolMsg := last[len(last)-1]
	require.Equal(t, "tool", toolMsg.Role)
	require.Equal(t, "c1", toolMsg.ToolCallID)
	require.Contains(t, toolMsg.Content, `"ok":true`)
	require.Contains(t, toolMsg.Content, `"result_count":1`)
}

func TestToolAugmentedModeForcesFinalAfterBudget(t *testing.T) {
	fuser := &stubFuser{
		fuseResult:   &model.FusionResult{Context: "seed"},
		signalResult: &model.FusionResult{Context: "more"},
	}
	toolCall := []ai.ToolCall{{ID: "c1", Name: "semantic_search", Arguments: `{"query":"x"}`}}
	chatter := &stubChatter{responses: []*ai.ChatResponse{
		{ToolCalls: toolCall},
		{ToolCalls: toolCall},
		{Content: "forced final\nREFERENCE_IDS: none"},
	}}
	svc := newService(fuser, &stubAgent{}, chatter, nil)

	result, err := svc.Retrieve(context.Background(), "u1", "q", ModeToolAugmented)
	require.NoError(t, err)
	require.Equal(t, "forced final", result.Content)
	// two tool rounds plus the forced no-tools completion
	require.Len(t, chatter.requests, 3)
	require.Empty(t, chatter.requests[2].Tools)
}

func TestSearchReturnsRawFusion(t *testing.T) {
	fusion := &model.FusionResult{Context: "ctx"}
	fuser := &stubFuser{fuseResult: fusion}
	svc := newService(fuser, &stubAgent{}, &stubChatter{}, nil)

	result, err := svc.Search(context.Background(), "u1", "query", 0)
	require.NoError(t, err)
	require.Equal(t, fusion, result)
}

func TestRetrieveFusionErrorPropagates(t *testing.T) {
	fuser := &stubFuser{fuseErr: errors.New("all signals failed")}
	svc := newService(fuser, &stubAgent{}, &stubChatter{}, nil)

	_, err := svc.Retrieve(context.Background(), "u1", "q", ModeDirect)
	require.Error(t, err)
}
