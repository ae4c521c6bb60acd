package voice

import (
	"fmt"
	"sync"

	"github.com/crosstalk-ai/crosstalk/pkg/inference"
	"github.com/crosstalk-ai/crosstalk/pkg/stt"
	"github.com/crosstalk-ai/crosstalk/pkg/tts"
)

// Registry maps provider names to factories for each pipeline stage.
// It is an explicit object built in main and injected; registration
// happens during startup, lookups afterwards.
type Registry struct {
	mu  sync.RWMutex
	stt map[string]func() (stt.Provider, error)
	llm map[string]func() (inference.Provider, error)
	tts map[string]func() (tts.Provider, error)
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		stt: make(map[string]func() (stt.Provider, error)),
		llm: make(map[string]func() (inference.Provider, error)),
		tts: make(map[string]func() (tts.Provider, error)),
	}
}

// RegisterSTT adds a speech-to-text factory under name.
func (r *Registry) RegisterSTT(name string, f func() (stt.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = f
}

// RegisterLLM adds an inference factory under name.
func (r *Registry) RegisterLLM(name string, f func() (inference.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = f
}

// RegisterTTS adds a text-to-speech factory under name.
func (r *Registry) RegisterTTS(name string, f func() (tts.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = f
}

// NewSTT constructs the named speech-to-text provider.
func (r *Registry) NewSTT(name string) (stt.Provider, error) {
	r.mu.RLock()
	f, ok := r.stt[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("voice: unknown stt provider %q", name)
	}
	return f()
}

// NewLLM constructs the named inference provider.
func (r *Registry) NewLLM(name string) (inference.Provider, error) {
	r.mu.RLock()
	f, ok := r.llm[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("voice: unknown llm provider %q", name)
	}
	return f()
}

// NewTTS constructs the named text-to-speech provider.
func (r *Registry) NewTTS(name string) (tts.Provider, error) {
	r.mu.RLock()
	f, ok := r.tts[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("voice: unknown tts provider %q", name)
	}
	return f()
}
