// Package providers contains the inference backend clients and the
// registry that discovers which of them are usable at startup.
//
// Each client normalizes one remote API (OpenAI, Gemini, Ollama) into the
// same classify/extract contract and keeps that backend's transport and
// parsing failures to itself. Clients hold no shared mutable state; a
// client value is safe for concurrent use.
package providers

import (
	"context"

	"github.com/ruizhaoca/document-intelligence-pipeline/internal/models"
)

// Provider is one inference backend capable of answering a classify or
// extract request.
type Provider interface {
	// Name returns the stable provider identifier (e.g. "openai").
	Name() string

	// Classify asks the backend to label the document text. The prompt
	// template's {text} placeholder is filled with a provider-specific
	// prefix of the text, not the whole document.
	Classify(ctx context.Context, text, promptTemplate string) (*models.ClassificationVote, error)

	// Extract asks the backend for a field map. The full text is sent.
	Extract(ctx context.Context, text, promptTemplate string) (*models.ExtractionVote, error)

	// HealthCheck probes backend reachability. Used by the registry at
	// startup and by the health endpoint.
	HealthCheck(ctx context.Context) error

	Capabilities() *models.ProviderCapabilities
}
