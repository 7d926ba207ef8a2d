// Package mock provides a test double for the llm.TextGenerator interface.
//
// Use Generator in unit tests to feed controlled completions to the feedback
// generator and to inspect the requests it built.
//
// Example:
//
//	g := &mock.Generator{
//	    CompleteResponse: &llm.CompletionResponse{Content: `{"feedback_en":"Good job"}`},
//	}
package mock

import (
	"context"
	"sync"

	"github.com/nclamvn/teacherAI/pkg/provider/llm"
)

// Compile-time assertion that Generator implements llm.TextGenerator.
var _ llm.TextGenerator = (*Generator)(nil)

// CompleteCall records a single invocation of Complete.
type CompleteCall struct {
	Ctx context.Context
	Req llm.CompletionRequest
}

// Generator is a mock implementation of llm.TextGenerator. A nil
// CompleteResponse with a nil CompleteErr returns (nil, nil).
type Generator struct {
	mu sync.Mutex

	// CompleteResponse is returned by Complete.
	CompleteResponse *llm.CompletionResponse

	// CompleteErr, if non-nil, is returned as the error from Complete.
	CompleteErr error

	// CompleteFunc, if set, takes precedence over CompleteResponse and
	// CompleteErr.
	CompleteFunc func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)

	// CompleteCalls records every invocation of Complete in order.
	CompleteCalls []CompleteCall
}

// Complete implements llm.TextGenerator.
func (g *Generator) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	g.mu.Lock()
	g.CompleteCalls = append(g.CompleteCalls, CompleteCall{Ctx: ctx, Req: req})
	fn, resp, err := g.CompleteFunc, g.CompleteResponse, g.CompleteErr
	g.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}
	out := *resp
	return &out, nil
}

// CallCount returns the number of Complete invocations so far.
func (g *Generator) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.CompleteCalls)
}

// Reset clears all recorded calls. Configured responses are kept.
func (g *Generator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.CompleteCalls = nil
}
