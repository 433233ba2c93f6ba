package config

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/MrWong99/realtalk/pkg/audio"
	"github.com/MrWong99/realtalk/pkg/provider/llm"
	"github.com/MrWong99/realtalk/pkg/provider/stt"
	"github.com/MrWong99/realtalk/pkg/provider/vad"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Factory signatures.
type (
	LLMFactory    func(ProviderEntry) (llm.Provider, error)
	STTFactory    func(ProviderEntry) (stt.Provider, error)
	VADFactory    func(VADConfig) (vad.Engine, error)
	SourceFactory func(AudioConfig) (audio.Source, error)
)

// Registry maps backend names to their constructors. It is safe for
// concurrent use.
type Registry struct {
	mu     sync.RWMutex
	llm    map[string]LLMFactory
	stt    map[string]STTFactory
	vad    map[string]VADFactory
	source map[string]SourceFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		llm:    make(map[string]LLMFactory),
		stt:    make(map[string]STTFactory),
		vad:    make(map[string]VADFactory),
		source: make(map[string]SourceFactory),
	}
}

// RegisterLLM registers an LLM provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterLLM(name string, f LLMFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = f
}

// RegisterSTT registers a speech recognizer factory under name.
func (r *Registry) RegisterSTT(name string, f STTFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = f
}

// RegisterVAD registers a VAD engine factory under name.
func (r *Registry) RegisterVAD(name string, f VADFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vad[name] = f
}

// RegisterSource registers an audio source factory under name.
func (r *Registry) RegisterSource(name string, f SourceFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.source[name] = f
}

// CreateLLM instantiates the LLM provider registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for
// that name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	f, ok := r.llm[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: llm/%q", ErrProviderNotRegistered, entry.Name)
	}
	return f(entry)
}

// CreateSTT instantiates the recognizer provider registered under entry.Name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	r.mu.RLock()
	f, ok := r.stt[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrProviderNotRegistered, entry.Name)
	}
	return f(entry)
}

// CreateVAD instantiates the engine registered under cfg.Engine.
func (r *Registry) CreateVAD(cfg VADConfig) (vad.Engine, error) {
	r.mu.RLock()
	f, ok := r.vad[cfg.Engine]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: vad/%q", ErrProviderNotRegistered, cfg.Engine)
	}
	return f(cfg)
}

// CreateSource instantiates the audio source registered under cfg.Source.
func (r *Registry) CreateSource(cfg AudioConfig) (audio.Source, error) {
	r.mu.RLock()
	f, ok := r.source[cfg.Source]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: audio/%q", ErrProviderNotRegistered, cfg.Source)
	}
	return f(cfg)
}

// LLMNames returns the registered LLM provider names in sorted order.
func (r *Registry) LLMNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.llm))
	for n := range r.llm {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
