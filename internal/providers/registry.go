package providers

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ruizhaoca/document-intelligence-pipeline/internal/config"
)

// ProbeResult is the explicit outcome of probing one configured backend.
// Err is set when the backend was excluded, with the reason.
type ProbeResult struct {
	Name     string
	Provider Provider
	Err      error
}

// Available reports whether the probe admitted the provider.
func (r ProbeResult) Available() bool { return r.Err == nil }

// Registry holds the set of providers that passed their startup probe.
// The set is immutable after construction and safe for concurrent reads;
// it is never re-evaluated per request.
type Registry struct {
	providers []Provider
	probes    []ProbeResult
	log       *logrus.Logger
}

// NewRegistry probes every configured backend once and keeps the
// survivors. Hosted backends are probed for credential presence only;
// the local Ollama service gets a short liveness request. An excluded
// backend is logged, not an error.
func NewRegistry(ctx context.Context, cfg config.ProvidersConfig, log *logrus.Logger) *Registry {
	if log == nil {
		log = logrus.StandardLogger()
	}
	r := &Registry{log: log}

	probes := []ProbeResult{
		probeOpenAI(cfg),
		probeGemini(cfg),
		probeOllama(ctx, cfg.Ollama),
	}
	for _, probe := range probes {
		if !probe.Available() {
			log.WithFields(logrus.Fields{
				"provider": probe.Name,
				"reason":   probe.Err,
			}).Info("provider excluded")
			continue
		}
		log.WithField("provider", probe.Name).Info("provider available")
		r.providers = append(r.providers, probe.Provider)
	}
	r.probes = probes
	return r
}

// Discover returns the startup snapshot of usable providers.
func (r *Registry) Discover() []Provider {
	out := make([]Provider, len(r.providers))
	copy(out, r.providers)
	return out
}

// Probes returns the per-backend probe outcomes, including exclusions.
// Used by the health endpoint.
func (r *Registry) Probes() []ProbeResult {
	out := make([]ProbeResult, len(r.probes))
	copy(out, r.probes)
	return out
}

func probeOpenAI(cfg config.ProvidersConfig) ProbeResult {
	if cfg.OpenAI.APIKey == "" {
		return ProbeResult{Name: "openai", Err: fmt.Errorf("OPENAI_API_KEY not set")}
	}
	p := NewOpenAIProvider(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model,
		cfg.ClassifyTimeout, cfg.ExtractTimeout)
	return ProbeResult{Name: p.Name(), Provider: p}
}

func probeGemini(cfg config.ProvidersConfig) ProbeResult {
	if cfg.Gemini.APIKey == "" {
		return ProbeResult{Name: "gemini", Err: fmt.Errorf("GEMINI_API_KEY not set")}
	}
	p := NewGeminiProvider(cfg.Gemini.APIKey, cfg.Gemini.BaseURL, cfg.Gemini.Model,
		cfg.ClassifyTimeout, cfg.ExtractTimeout)
	return ProbeResult{Name: p.Name(), Provider: p}
}

func probeOllama(ctx context.Context, cfg config.OllamaConfig) ProbeResult {
	p := NewOllamaProvider(cfg.BaseURL, cfg.Model)
	probeCtx, cancel := context.WithTimeout(ctx, cfg.ProbeTimeout)
	defer cancel()
	if err := p.HealthCheck(probeCtx); err != nil {
		return ProbeResult{Name: p.Name(), Err: fmt.Errorf("service unreachable: %w", err)}
	}
	return ProbeResult{Name: p.Name(), Provider: p}
}
