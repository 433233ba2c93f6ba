package resilience

import (
	"context"
	"strings"

	"github.com/MrWong99/realtalk/pkg/provider/llm"
)

var _ llm.Provider = (*LLMFallback)(nil)

// LLMFallback is an [llm.Provider] that fails over across translation backends.
type LLMFallback struct {
	chain *Chain[llm.Provider]
}

// NewLLMFallback wraps primary. Add secondaries with [LLMFallback.Add].
func NewLLMFallback(primary llm.Provider, cfg BreakerConfig) *LLMFallback {
	return &LLMFallback{chain: NewChain(primary.Name(), primary, cfg)}
}

// Add registers a fallback backend.
func (f *LLMFallback) Add(p llm.Provider) {
	f.chain.Add(p.Name(), p)
}

// Complete implements llm.Provider.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return Call(f.chain, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// Name joins the backend names with "|".
func (f *LLMFallback) Name() string {
	names := make([]string, 0, f.chain.Len())
	for _, l := range f.chain.links {
		names = append(names, l.name)
	}
	return strings.Join(names, "|")
}
