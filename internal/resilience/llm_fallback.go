package resilience

import (
	"context"
	"errors"
	"strings"

	"github.com/nclamvn/teacherAI/pkg/provider/llm"
)

// ErrEmptyCompletion is reported for a backend that answered without text.
// The next backend is tried.
var ErrEmptyCompletion = errors.New("empty completion")

// LLMFallback implements [llm.TextGenerator] with automatic failover across
// several LLM backends.
type LLMFallback struct {
	group *FallbackGroup[llm.TextGenerator]
}

var _ llm.TextGenerator = (*LLMFallback)(nil)

// NewLLMFallback creates an [LLMFallback] with primary as the preferred backend.
func NewLLMFallback(primary llm.TextGenerator, primaryName string, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional LLM backend.
func (f *LLMFallback) AddFallback(name string, g llm.TextGenerator) {
	f.group.AddFallback(name, g)
}

// Complete sends the request to the first healthy backend. A blank reply
// counts as a failure of that backend.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(f.group, func(g llm.TextGenerator) (*llm.CompletionResponse, error) {
		resp, err := g.Complete(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp == nil || strings.TrimSpace(resp.Content) == "" {
			return nil, ErrEmptyCompletion
		}
		return resp, nil
	})
}

// Healthy reports whether at least one backend would accept a call.
func (f *LLMFallback) Healthy() bool { return f.group.Healthy() }

// States reports the breaker state of every backend keyed by name.
func (f *LLMFallback) States() map[string]State { return f.group.States() }
