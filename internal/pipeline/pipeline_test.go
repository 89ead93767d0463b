package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruizhaoca/document-intelligence-pipeline/internal/ensemble"
	"github.com/ruizhaoca/document-intelligence-pipeline/internal/models"
	"github.com/ruizhaoca/document-intelligence-pipeline/internal/prompts"
	"github.com/ruizhaoca/document-intelligence-pipeline/internal/providers"
)

// fakeProvider answers classify and extract with canned results.
type fakeProvider struct {
	name       string
	label      string
	confidence float64
	fields     map[string]interface{}
	fail       bool
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Classify(ctx context.Context, text, promptTemplate string) (*models.ClassificationVote, error) {
	if f.fail {
		return nil, &providers.CallError{Provider: f.name, Stage: providers.StageTransport, Err: errors.New("down")}
	}
	return &models.ClassificationVote{Provider: f.name, Label: f.label, Confidence: f.confidence}, nil
}

func (f *fakeProvider) Extract(ctx context.Context, text, promptTemplate string) (*models.ExtractionVote, error) {
	if f.fail {
		return nil, &providers.CallError{Provider: f.name, Stage: providers.StageTransport, Err: errors.New("down")}
	}
	return &models.ExtractionVote{Provider: f.name, Fields: f.fields}, nil
}

func (f *fakeProvider) HealthCheck(ctx context.Context) error { return nil }

func (f *fakeProvider) Capabilities() *models.ProviderCapabilities {
	return &models.ProviderCapabilities{SupportsClassify: true, SupportsExtract: true}
}

type fakeSet struct{ provs []providers.Provider }

func (s *fakeSet) Discover() []providers.Provider { return s.provs }

func newPipeline(provs ...providers.Provider) *Pipeline {
	orchestrator := ensemble.New(&fakeSet{provs: provs}, nil, nil)
	return New(nil, orchestrator, prompts.Default(), nil)
}

func TestProcessText_HappyPath(t *testing.T) {
	pipe := newPipeline(
		&fakeProvider{
			name: "openai", label: "invoice", confidence: 0.9,
			fields: map[string]interface{}{
				"invoice_number":   "INV-1",
				"total_amount":     100.0,
				"involved_parties": []interface{}{"Acme"},
			},
		},
		&fakeProvider{
			name: "ollama", label: "invoice", confidence: 0.7,
			fields: map[string]interface{}{
				"invoice_number": "INV-1",
				"total_amount":   200.0,
			},
		},
	)

	doc, err := pipe.ProcessText(context.Background(), "invoice text", "invoice.pdf")
	require.NoError(t, err)
	assert.Equal(t, models.DocumentTypeInvoice, doc.Type)
	assert.Equal(t, "invoice.pdf", doc.FileName)
	assert.InDelta(t, 0.8, doc.ConfidenceScore, 1e-9)
	assert.Equal(t, "INV-1", doc.Fields["invoice_number"])
	assert.Equal(t, 150.0, doc.Fields["total_amount"])
	assert.Equal(t, []string{"Acme"}, doc.InvolvedParties)
}

func TestProcessText_UnknownTypeHasNoPrompt(t *testing.T) {
	pipe := newPipeline(&fakeProvider{name: "openai", label: "unknown", confidence: 0.3})

	_, err := pipe.ProcessText(context.Background(), "gibberish", "mystery.pdf")
	assert.ErrorIs(t, err, ErrNoPrompt)
}

func TestProcessText_AllProvidersFailing(t *testing.T) {
	// Total failure degrades the classification to unknown, which then
	// has no extraction prompt.
	pipe := newPipeline(
		&fakeProvider{name: "openai", fail: true},
		&fakeProvider{name: "gemini", fail: true},
	)

	_, err := pipe.ProcessText(context.Background(), "text", "doc.pdf")
	assert.ErrorIs(t, err, ErrNoPrompt)
}

func TestProcessText_NoProviders(t *testing.T) {
	pipe := newPipeline()

	_, err := pipe.ProcessText(context.Background(), "text", "doc.pdf")
	assert.ErrorIs(t, err, ensemble.ErrNoProviders)
}

func TestProcessText_EmptyText(t *testing.T) {
	pipe := newPipeline(&fakeProvider{name: "openai", label: "invoice", confidence: 0.9})

	_, err := pipe.ProcessText(context.Background(), "", "doc.pdf")
	assert.ErrorIs(t, err, ensemble.ErrEmptyText)
}

func TestProcessFile_RequiresIngestor(t *testing.T) {
	pipe := newPipeline(&fakeProvider{name: "openai", label: "invoice", confidence: 0.9})

	_, err := pipe.ProcessFile(context.Background(), "doc.pdf")
	assert.Error(t, err)

	_, err = pipe.ProcessDirectory(context.Background(), "docs")
	assert.Error(t, err)
}
