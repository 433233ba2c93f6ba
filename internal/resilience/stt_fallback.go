package resilience

import (
	"context"

	"github.com/MrWong99/realtalk/pkg/provider/stt"
)

var _ stt.Provider = (*STTFallback)(nil)

// STTFallback is an [stt.Provider] that fails over when a recognizer cannot be
// created. Once a recognizer is running, its errors belong to the caller.
type STTFallback struct {
	chain *Chain[stt.Provider]
}

// NewSTTFallback wraps primary under name.
func NewSTTFallback(name string, primary stt.Provider, cfg BreakerConfig) *STTFallback {
	return &STTFallback{chain: NewChain(name, primary, cfg)}
}

// Add registers a fallback backend.
func (f *STTFallback) Add(name string, p stt.Provider) {
	f.chain.Add(name, p)
}

// NewRecognizer implements stt.Provider.
func (f *STTFallback) NewRecognizer(ctx context.Context, cfg stt.StreamConfig) (stt.Recognizer, error) {
	return Call(f.chain, func(p stt.Provider) (stt.Recognizer, error) {
		return p.NewRecognizer(ctx, cfg)
	})
}

// Close releases backends holding native resources.
func (f *STTFallback) Close() error {
	return f.chain.Close()
}
