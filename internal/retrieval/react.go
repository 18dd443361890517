package retrieval

import (
	"context"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/recall/internal/ai"
	"github.com/xxxsen/recall/internal/model"
)

const (
	observationMarker = "Observation:"
	noResultsMessage  = "No results found."
	fallbackAnswer    = "Maximum search iterations reached. No sufficient information found in user's personal data."
)

// FusionEngine is the slice of the fuser the agent needs.
type FusionEngine interface {
	FuseSignals(ctx context.Context, userID, query string, topK int, signals ...model.Signal) (*model.FusionResult, error)
}

type ChatCompleter interface {
	Chat(ctx context.Context, req *ai.ChatRequest) (*ai.ChatResponse, error)
}

type AgentConfig struct {
	MaxIterations int
	TopK          int
}

// Agent runs the autonomous Thought/Action/Observation loop. The model
// chooses the signal and query each round; observations come exclusively
// from real searches.
type Agent struct {
	fuser    FusionEngine
	chatter  ChatCompleter
	resolver *Resolver
	cfg      AgentConfig
}

func NewAgent(fuser FusionEngine, chatter ChatCompleter, resolver *Resolver, cfg AgentConfig) *Agent {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 10
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	return &Agent{fuser: fuser, chatter: chatter, resolver: resolver, cfg: cfg}
}

func (a *Agent) Run(ctx context.Context, userID, question string) (*model.RetrievalResult, error) {
	var transcript strings.Builder
	transcript.WriteString("Question: " + question + "\n")
	var seenHits []model.SearchHit
	for i := 0; i < a.cfg.MaxIterations; i++ {
		resp, err := a.chatter.Chat(ctx, &ai.ChatRequest{
			Messages: []ai.ChatMessage{
				{Role: "system", Content: reactSystemPrompt},
				{Role: "user", Content: transcript.String()},
			},
			Stop: []string{observationMarker},
		})
		if err != nil {
			return nil, err
		}
		output := truncateAtObservation(ctx, resp.Content)
		action := ParseAction(output)
		switch action.Kind {
		case ActionFinish:
			answer, refIDs := ParseReferenceIDs(action.Answer)
			records := a.resolver.Resolve(ctx, userID, refIDs, seenHits)
			return &model.RetrievalResult{Content: answer, References: records}, nil
		case ActionSearch:
			observation, hits := a.observe(ctx, userID, action)
			seenHits = append(seenHits, hits...)
			transcript.WriteString(output + "\n" + observationMarker + " " + observation + "\n")
		default:
			transcript.WriteString(output + "\n")
		}
	}
	logutil.GetLogger(ctx).Warn("agent hit iteration cap", zap.Int("max_iterations", a.cfg.MaxIterations))
	return &model.RetrievalResult{Content: fallbackAnswer, References: []*model.Record{}}, nil
}

func (a *Agent) observe(ctx context.Context, userID string, action Action) (string, []model.SearchHit) {
	if action.Query == "" {
		return noResultsMessage, nil
	}
	result, err := a.fuser.FuseSignals(ctx, userID, action.Query, a.cfg.TopK, toolSignal(action.Tool))
	if err != nil {
		logutil.GetLogger(ctx).Warn("agent search failed",
			zap.String("tool", string(action.Tool)), zap.Error(err))
		return noResultsMessage, nil
	}
	if result.Context == "" {
		return noResultsMessage, nil
	}
	return result.Context, result.Hits
}

func toolSignal(tool Tool) model.Signal {
	switch tool {
	case ToolKeywordSearch:
		return model.SignalKeyword
	case ToolApproximateSearch:
		return model.SignalApproximate
	default:
		return model.SignalSemantic
	}
}

// truncateAtObservation cuts away any observation the model hallucinated past
// the stop sequence.
func truncateAtObservation(ctx context.Context, output string) string {
	idx := strings.Index(strings.ToLower(output), strings.ToLower(observationMarker))
	if idx < 0 {
		return strings.TrimSpace(output)
	}
	logutil.GetLogger(ctx).Warn("model fabricated observation, truncating output")
	return strings.TrimSpace(output[:idx])
}
