package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/recall/internal/ai"
	"github.com/xxxsen/recall/internal/model"
)

type scriptedChatter struct {
	responses []string
	err       error
	requests  []*ai.ChatRequest
}

func (s *scriptedChatter) Chat(ctx context.Context, req *ai.ChatRequest) (*ai.ChatResponse, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	idx := len(s.requests) - 1
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return &ai.ChatResponse{Content: s.responses[idx]}, nil
}

type fakeFuser struct {
	result  *model.FusionResult
	err     error
	queries []string
	signals []model.Signal
}

func (f *fakeFuser) FuseSignals(ctx context.Context, userID, query string, topK int, signals ...model.Signal) (*model.FusionResult, error) {
	f.queries = append(f.queries, query)
	f.signals = append(f.signals, signals...)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newTestAgent(chatter ChatCompleter, fuser FusionEngine, records map[string]*model.Record) *Agent {
	resolver := NewResolver(&fakeFetcher{records: records})
	return NewAgent(fuser, chatter, resolver, AgentConfig{MaxIterations: 3, TopK: 3})
}

func TestAgentSearchThenFinish(t *testing.T) {
	chatter := &scriptedChatter{responses: []string{
		"Thought: I should search.\nAction: keyword_search budget deadline",
		"Final: The deadline is Friday.\nREFERENCE_IDS: email_1",
	}}
	fuser := &fakeFuser{result: &model.FusionResult{Context: "[Email ID: email_1]\nContent: deadline Friday"}}
	agent := newTestAgent(chatter, fuser, map[string]*model.Record{
		"email_1": emailRecord("1", "budget"),
	})

	result, err := agent.Run(context.Background(), "u1", "When is the budget deadline?")
	require.NoError(t, err)
	require.Equal(t, "The deadline is Friday.", result.Content)
	require.Len(t, result.References, 1)
	require.Equal(t, "email_1", result.References[0].RefID())

	require.Equal(t, []string{"budget deadline"}, fuser.queries)
	require.Equal(t, []model.Signal{model.SignalKeyword}, fuser.signals)
	require.Len(t, chatter.requests, 2)
	require.Contains(t, chatter.requests[1].Messages[1].Content, "Observation: [Email ID: email_1]")
	require.Equal(t, []string{"Observation:"}, chatter.requests[0].Stop)
}

func TestAgentIterationCapFallback(t *testing.T) {
	chatter := &scriptedChatter{responses: []string{
		"Thought: searching.\nAction: semantic_search anything",
	}}
	fuser := &fakeFuser{result: &model.FusionResult{Context: "[Email ID: email_1]\nContent: noise"}}
	agent := newTestAgent(chatter, fuser, nil)

	result, err := agent.Run(context.Background(), "u1", "unanswerable question")
	require.NoError(t, err)
	require.Equal(t, fallbackAnswer, result.Content)
	require.Empty(t, result.References)
	require.Len(t, chatter.requests, 3)
}

func TestAgentStripsHallucinatedObservation(t *testing.T) {
	chatter := &scriptedChatter{responses: []string{
		"Thought: looking.\nAction: keyword_search budget\nObservation: [Email ID: email_9]\nContent: fabricated",
		"Final: answer\nREFERENCE_IDS: none",
	}}
	fuser := &fakeFuser{result: &model.FusionResult{Context: "[Email ID: email_1]\nContent: real"}}
	agent := newTestAgent(chatter, fuser, nil)

	result, err := agent.Run(context.Background(), "u1", "q")
	require.NoError(t, err)
	require.Equal(t, "answer", result.Content)
	transcript := chatter.requests[1].Messages[1].Content
	require.NotContains(t, transcript, "fabricated")
	require.Contains(t, transcript, "Observation: [Email ID: email_1]")
}

func TestAgentEmptySearchResult(t *testing.T) {
	chatter := &scriptedChatter{responses: []string{
		"Action: approximate_search misspeled term",
		"Final: Nothing found.\nREFERENCE_IDS: none",
	}}
	fuser := &fakeFuser{result: &model.FusionResult{}}
	agent := newTestAgent(chatter, fuser, nil)

	result, err := agent.Run(context.Background(), "u1", "q")
	require.NoError(t, err)
	require.Equal(t, "Nothing found.", result.Content)
	require.Contains(t, chatter.requests[1].Messages[1].Content, "Observation: No results found.")
}

func TestAgentThoughtOnlyContinues(t *testing.T) {
	chatter := &scriptedChatter{responses: []string{
		"Thought: let me think about this.",
		"Final: done\nREFERENCE_IDS: none",
	}}
	fuser := &fakeFuser{}
	agent := newTestAgent(chatter, fuser, nil)

	result, err := agent.Run(context.Background(), "u1", "q")
	require.NoError(t, err)
	require.Equal(t, "done", result.Content)
	require.Empty(t, fuser.queries)
	require.Contains(t, chatter.requests[1].Messages[1].Content, "Thought: let me think about this.")
}

func TestAgentChatErrorPropagates(t *testing.T) {
	upstream := errors.New("upstream 503")
	chatter := &scriptedChatter{err: upstream}
	agent := newTestAgent(chatter, &fakeFuser{}, nil)

	_, err := agent.Run(context.Background(), "u1", "q")
	require.ErrorIs(t, err, upstream)
}

func TestAgentSearchErrorBecomesEmptyObservation(t *testing.T) {
	chatter := &scriptedChatter{responses: []string{
		"Action: semantic_search budget",
		"Final: partial answer\nREFERENCE_IDS: none",
	}}
	fuser := &fakeFuser{err: errors.New("all signals down")}
	agent := newTestAgent(chatter, fuser, nil)

	result, err := agent.Run(context.Background(), "u1", "q")
	require.NoError(t, err)
	require.Equal(t, "partial answer", result.Content)
	require.Contains(t, chatter.requests[1].Messages[1].Content, "Observation: No results found.")
}
