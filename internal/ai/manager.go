package ai

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type ManagerConfig struct {
	Timeout       int
	MaxInputChars int
	Retry         RetryPolicy
}

// Manager wraps the bound chatter and embedder with timeouts and retries so
// callers never talk to a provider directly.
type Manager struct {
	chatter  IChatter
	embedder IEmbedder
	cfg      ManagerConfig
}

func NewManager(chatter IChatter, embedder IEmbedder, cfg ManagerConfig) *Manager {
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryPolicy(3)
	}
	return &Manager{
		chatter:  chatter,
		embedder: embedder,
		cfg:      cfg,
	}
}

func (m *Manager) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if m.chatter == nil {
		return nil, fmt.Errorf("chatter not configured")
	}
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(m.cfg.Timeout)*time.Second)
		defer cancel()
	}
	var resp *ChatResponse
	err := m.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		var callErr error
		resp, callErr = m.chatter.Chat(ctx, req)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	if resp.Content == "" && len(resp.ToolCalls) == 0 {
		return nil, fmt.Errorf("empty ai response")
	}
	return resp, nil
}

// Complete is the single-prompt convenience over Chat.
func (m *Manager) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := m.Chat(ctx, &ChatRequest{
		Messages: []ChatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (m *Manager) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if m.embedder == nil {
		return nil, fmt.Errorf("embedder not configured")
	}
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(m.cfg.Timeout)*time.Second)
		defer cancel()
	}
	var embedding []float32
	err := m.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		var callErr error
		embedding, callErr = m.embedder.Embed(ctx, text, taskType)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return embedding, nil
}

func (m *Manager) Summarize(ctx context.Context, text string) (string, error) {
	if max := m.cfg.MaxInputChars; max > 0 && len(text) > max {
		text = text[:max]
	}
	prompt := fmt.Sprintf(`You are a helpful assistant.
Summarize the following document into a concise paragraph (2-4 sentences).
- Use the same language as the content.
- Keep factual accuracy and key points.
- Output ONLY the summary text.

CONTENT:
%s`, text)
	result, err := m.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(result), nil
}

func (m *Manager) MaxInputChars() int {
	return m.cfg.MaxInputChars
}

func (m *Manager) EmbeddingModelName() string {
	if m.embedder == nil {
		return ""
	}
	return m.embedder.ModelName()
}
