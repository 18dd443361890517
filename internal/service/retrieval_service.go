package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/recall/internal/ai"
	"github.com/xxxsen/recall/internal/model"
	appErr "github.com/xxxsen/recall/internal/pkg/errors"
	"github.com/xxxsen/recall/internal/retrieval"
)

type Mode string

const (
	// ModeDirect fuses once and answers in a single completion.
	ModeDirect Mode = "direct"
	// ModeToolAugmented seeds the model with fused context and lets it issue
	// native tool calls for follow-up searches.
	ModeToolAugmented Mode = "tool-augmented"
	// ModeAutonomous hands the question to the ReAct agent.
	ModeAutonomous Mode = "autonomous"
)

func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeDirect, "":
		return ModeDirect, nil
	case ModeToolAugmented:
		return ModeToolAugmented, nil
	case ModeAutonomous:
		return ModeAutonomous, nil
	}
	return "", fmt.Errorf("%w: unknown retrieval mode %q", appErr.ErrInvalid, value)
}

type FusionRunner interface {
	Fuse(ctx context.Context, userID, query string, topK int) (*model.FusionResult, error)
	FuseSignals(ctx context.Context, userID, query string, topK int, signals ...model.Signal) (*model.FusionResult, error)
}

type AgentRunner interface {
	Run(ctx context.Context, userID, question string) (*model.RetrievalResult, error)
}

type RetrievalOptions struct {
	TopK         int
	AgentTopK    int
	MaxToolCalls int
}

// RetrievalService dispatches a question to one of the three retrieval modes
// and returns the uniform answer-plus-references payload.
type RetrievalService struct {
	fuser    FusionRunner
	agent    AgentRunner
	chatter  retrieval.ChatCompleter
	resolver *retrieval.Resolver
	opts     RetrievalOptions
}

func NewRetrievalService(fuser FusionRunner, agent AgentRunner, chatter retrieval.ChatCompleter, resolver *retrieval.Resolver, opts RetrievalOptions) *RetrievalService {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.AgentTopK <= 0 {
		opts.AgentTopK = 3
	}
	if opts.MaxToolCalls <= 0 {
		opts.MaxToolCalls = 5
	}
	return &RetrievalService{
		fuser:    fuser,
		agent:    agent,
		chatter:  chatter,
		resolver: resolver,
		opts:     opts,
	}
}

func (s *RetrievalService) Retrieve(ctx context.Context, userID, query string, mode Mode) (*model.RetrievalResult, error) {
	switch mode {
	case ModeDirect:
		return s.direct(ctx, userID, query)
	case ModeToolAugmented:
		return s.toolAugmented(ctx, userID, query)
	case ModeAutonomous:
		return s.agent.Run(ctx, userID, query)
	}
	return nil, fmt.Errorf("%w: unknown retrieval mode %q", appErr.ErrInvalid, mode)
}

// Search exposes raw fusion results without a model round trip. A topK of
// zero or less falls back to the configured default.
func (s *RetrievalService) Search(ctx context.Context, userID, query string, topK int) (*model.FusionResult, error) {
	if topK <= 0 {
		topK = s.opts.TopK
	}
	return s.fuser.Fuse(ctx, userID, query, topK)
}

// direct makes exactly one model call, even when fusion found nothing: the
// model then reports the miss instead of the service guessing.
func (s *RetrievalService) direct(ctx context.Context, userID, query string) (*model.RetrievalResult, error) {
	fusion, err := s.fuser.Fuse(ctx, userID, query, s.opts.TopK)
	if err != nil {
		return nil, err
	}
	prompt := retrieval.BuildGroundingPrompt(query, fusion.Context)
	resp, err := s.chatter.Chat(ctx, &ai.ChatRequest{
		Messages: []ai.ChatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, err
	}
	answer, refIDs := retrieval.ParseReferenceIDs(resp.Content)
	records := s.resolver.Resolve(ctx, userID, refIDs, fusion.Hits)
	return &model.RetrievalResult{Content: answer, References: records}, nil
}

type toolObservation struct {
	OK          bool   `json:"ok"`
	ResultCount int    `json:"result_count"`
	Context     string `json:"context"`
}

func (s *RetrievalService) toolAugmented(ctx context.Context, userID, query string) (*model.RetrievalResult, error) {
	fusion, err := s.fuser.Fuse(ctx, userID, query, s.opts.TopK)
	if err != nil {
		return nil, err
	}
	messages := []ai.ChatMessage{
		{Role: "system", Content: "You answer questions from the user's personal data: emails, schedules, files and attachments. Use the search tools when the provided context is not enough. Base the final answer only on retrieved data. End the final answer with a line \"REFERENCE_IDS: <ids>\" citing the record ids you used, or \"REFERENCE_IDS: none\"."},
		{Role: "user", Content: retrieval.BuildGroundingPrompt(query, fusion.Context)},
	}
	tools := retrieval.SearchToolSpecs()
	seenHits := append([]model.SearchHit(nil), fusion.Hits...)
	var resp *ai.ChatResponse
	for i := 0; i < s.opts.MaxToolCalls; i++ {
		resp, err = s.chatter.Chat(ctx, &ai.ChatRequest{Messages: messages, Tools: tools})
		if err != nil {
			return nil, err
		}
		if len(resp.ToolCalls) == 0 {
			break
		}
		messages = append(messages, ai.ChatMessage{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls})
		for _, call := range resp.ToolCalls {
			msg, hits := s.runToolCall(ctx, userID, call)
			messages = append(messages, msg)
			seenHits = append(seenHits, hits...)
		}
		resp = nil
	}
	if resp == nil || len(resp.ToolCalls) > 0 {
		// tool budget exhausted; force a plain completion
		resp, err = s.chatter.Chat(ctx, &ai.ChatRequest{Messages: messages})
		if err != nil {
			return nil, err
		}
	}
	answer, refIDs := retrieval.ParseReferenceIDs(resp.Content)
	records := s.resolver.Resolve(ctx, userID, refIDs, seenHits)
	return &model.RetrievalResult{Content: answer, References: records}, nil
}

func (s *RetrievalService) runToolCall(ctx context.Context, userID string, call ai.ToolCall) (ai.ChatMessage, []model.SearchHit) {
	observation := toolObservation{}
	var hits []model.SearchHit
	tool, ok := retrieval.ParseTool(call.Name)
	if ok {
		var args struct {
			Query string `json:"query"`
		}
		_ = json.Unmarshal([]byte(call.Arguments), &args)
		if args.Query != "" {
			result, err := s.fuser.FuseSignals(ctx, userID, args.Query, s.opts.AgentTopK, toolSignal(tool))
			if err != nil {
				logutil.GetLogger(ctx).Warn("tool call search failed",
					zap.String("tool", call.Name), zap.Error(err))
			} else {
				observation.OK = true
				observation.ResultCount = len(result.Hits)
				observation.Context = result.Context
				hits = result.Hits
			}
		}
	}
	payload, err := json.Marshal(observation)
	if err != nil {
		payload = []byte(`{"ok":false}`)
	}
	return ai.ChatMessage{
		Role:       "tool",
		Content:    string(payload),
		ToolCallID: call.ID,
		Name:       call.Name,
	}, hits
}

func toolSignal(tool retrieval.Tool) model.Signal {
	switch tool {
	case retrieval.ToolKeywordSearch:
		return model.SignalKeyword
	case retrieval.ToolApproximateSearch:
		return model.SignalApproximate
	default:
		return model.SignalSemantic
	}
}
