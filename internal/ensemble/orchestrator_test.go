package ensemble

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruizhaoca/document-intelligence-pipeline/internal/models"
	"github.com/ruizhaoca/document-intelligence-pipeline/internal/providers"
)

// stubProvider is a controllable in-memory Provider.
type stubProvider struct {
	name      string
	delay     time.Duration
	classify  func() (*models.ClassificationVote, error)
	extract   func() (*models.ExtractionVote, error)
	healthErr error
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Classify(ctx context.Context, text, promptTemplate string) (*models.ClassificationVote, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return s.classify()
}

func (s *stubProvider) Extract(ctx context.Context, text, promptTemplate string) (*models.ExtractionVote, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return s.extract()
}

func (s *stubProvider) HealthCheck(ctx context.Context) error { return s.healthErr }

func (s *stubProvider) Capabilities() *models.ProviderCapabilities {
	return &models.ProviderCapabilities{SupportsClassify: true, SupportsExtract: true}
}

func (s *stubProvider) wait(ctx context.Context) error {
	if s.delay == 0 {
		return nil
	}
	select {
	case <-time.After(s.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stubSet is a fixed provider snapshot.
type stubSet struct {
	provs []providers.Provider
}

func (s *stubSet) Discover() []providers.Provider { return s.provs }

func classifyVote(name, label string, confidence float64) func() (*models.ClassificationVote, error) {
	return func() (*models.ClassificationVote, error) {
		return &models.ClassificationVote{Provider: name, Label: label, Confidence: confidence}, nil
	}
}

func extractVote(name string, fields map[string]interface{}) func() (*models.ExtractionVote, error) {
	return func() (*models.ExtractionVote, error) {
		return &models.ExtractionVote{Provider: name, Fields: fields}, nil
	}
}

func callFailure(name string) error {
	return &providers.CallError{Provider: name, Stage: providers.StageTransport, Err: errors.New("connection refused")}
}

func TestEnsembleClassify_AllProvidersAgree(t *testing.T) {
	set := &stubSet{provs: []providers.Provider{
		&stubProvider{name: "openai", classify: classifyVote("openai", "invoice", 0.9)},
		&stubProvider{name: "gemini", classify: classifyVote("gemini", "invoice", 0.7)},
	}}
	o := New(set, nil, nil)

	consensus, err := o.EnsembleClassify(context.Background(), "some invoice text", "{text}")
	require.NoError(t, err)
	assert.Equal(t, "invoice", consensus.Label)
	assert.InDelta(t, 0.8, consensus.Confidence, 1e-9)
	assert.ElementsMatch(t, []string{"openai", "gemini"}, consensus.ContributingProviders)
}

func TestEnsembleClassify_PartialFailure(t *testing.T) {
	set := &stubSet{provs: []providers.Provider{
		&stubProvider{name: "openai", classify: classifyVote("openai", "invoice", 0.9)},
		&stubProvider{name: "gemini", classify: func() (*models.ClassificationVote, error) {
			return nil, callFailure("gemini")
		}},
		&stubProvider{name: "ollama", classify: classifyVote("ollama", "invoice", 0.5)},
	}}
	o := New(set, nil, nil)

	consensus, err := o.EnsembleClassify(context.Background(), "text", "{text}")
	require.NoError(t, err)
	assert.Equal(t, "invoice", consensus.Label)
	assert.Len(t, consensus.ContributingProviders, 2)
	assert.ElementsMatch(t, []string{"openai", "ollama"}, consensus.ContributingProviders)
	assert.InDelta(t, 0.7, consensus.Confidence, 1e-9)
}

func TestEnsembleClassify_TotalFailureYieldsEmptyConsensus(t *testing.T) {
	failing := func(name string) *stubProvider {
		return &stubProvider{name: name, classify: func() (*models.ClassificationVote, error) {
			return nil, callFailure(name)
		}}
	}
	set := &stubSet{provs: []providers.Provider{failing("openai"), failing("gemini"), failing("ollama")}}
	o := New(set, nil, nil)

	consensus, err := o.EnsembleClassify(context.Background(), "text", "{text}")
	require.NoError(t, err)
	assert.Equal(t, "unknown", consensus.Label)
	assert.Equal(t, 0.0, consensus.Confidence)
	assert.Empty(t, consensus.ContributingProviders)
}

func TestEnsembleClassify_NoProviders(t *testing.T) {
	o := New(&stubSet{}, nil, nil)

	_, err := o.EnsembleClassify(context.Background(), "text", "{text}")
	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestEnsembleClassify_EmptyText(t *testing.T) {
	set := &stubSet{provs: []providers.Provider{
		&stubProvider{name: "openai", classify: classifyVote("openai", "invoice", 0.9)},
	}}
	o := New(set, nil, nil)

	_, err := o.EnsembleClassify(context.Background(), "   \n", "{text}")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestEnsembleExtract_MergesFieldMaps(t *testing.T) {
	set := &stubSet{provs: []providers.Provider{
		&stubProvider{name: "openai", extract: extractVote("openai", map[string]interface{}{
			"vendor_name": "Acme", "total": 100.0,
		})},
		&stubProvider{name: "gemini", extract: extractVote("gemini", map[string]interface{}{
			"vendor_name": "Acme", "total": 200.0, "currency": "USD",
		})},
	}}
	o := New(set, nil, nil)

	merged, err := o.EnsembleExtract(context.Background(), "text", models.DocumentTypeInvoice, "{text}")
	require.NoError(t, err)
	assert.Equal(t, "Acme", merged.Fields["vendor_name"])
	assert.Equal(t, 150.0, merged.Fields["total"])
	assert.Equal(t, "USD", merged.Fields["currency"])
	assert.Len(t, merged.ContributingProviders, 2)
}

func TestEnsembleExtract_TotalFailureYieldsEmptyFields(t *testing.T) {
	failing := func(name string) *stubProvider {
		return &stubProvider{name: name, extract: func() (*models.ExtractionVote, error) {
			return nil, callFailure(name)
		}}
	}
	set := &stubSet{provs: []providers.Provider{failing("openai"), failing("gemini")}}
	o := New(set, nil, nil)

	merged, err := o.EnsembleExtract(context.Background(), "text", models.DocumentTypeInvoice, "{text}")
	require.NoError(t, err)
	assert.Empty(t, merged.Fields)
	assert.Empty(t, merged.ContributingProviders)
}

func TestEnsembleExtract_NoProviders(t *testing.T) {
	o := New(&stubSet{}, nil, nil)

	_, err := o.EnsembleExtract(context.Background(), "text", models.DocumentTypeInvoice, "{text}")
	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestFanOut_WaitsForSlowestProvider(t *testing.T) {
	// One slow provider, two near-instant ones. The round must take at
	// least the slow provider's delay (no early return) but not much
	// more than it (siblings run concurrently).
	const slow = 200 * time.Millisecond
	set := &stubSet{provs: []providers.Provider{
		&stubProvider{name: "openai", classify: classifyVote("openai", "invoice", 0.9)},
		&stubProvider{name: "gemini", classify: classifyVote("gemini", "invoice", 0.8)},
		&stubProvider{name: "ollama", delay: slow, classify: classifyVote("ollama", "contract", 0.4)},
	}}
	o := New(set, nil, nil)

	start := time.Now()
	consensus, err := o.EnsembleClassify(context.Background(), "text", "{text}")
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Len(t, consensus.ContributingProviders, 3)
	assert.GreaterOrEqual(t, elapsed, slow)
	assert.Less(t, elapsed, slow+150*time.Millisecond)
}

func TestFanOut_FailureDoesNotCancelSiblings(t *testing.T) {
	set := &stubSet{provs: []providers.Provider{
		&stubProvider{name: "openai", classify: func() (*models.ClassificationVote, error) {
			return nil, callFailure("openai")
		}},
		&stubProvider{name: "gemini", delay: 50 * time.Millisecond, classify: classifyVote("gemini", "email", 0.6)},
	}}
	o := New(set, nil, nil)

	consensus, err := o.EnsembleClassify(context.Background(), "text", "{text}")
	require.NoError(t, err)
	assert.Equal(t, "email", consensus.Label)
	assert.Equal(t, []string{"gemini"}, consensus.ContributingProviders)
}

func TestFanOut_CallerCancellationStopsRound(t *testing.T) {
	set := &stubSet{provs: []providers.Provider{
		&stubProvider{name: "openai", delay: 5 * time.Second, classify: classifyVote("openai", "invoice", 0.9)},
		&stubProvider{name: "gemini", delay: 5 * time.Second, classify: classifyVote("gemini", "invoice", 0.9)},
	}}
	o := New(set, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	consensus, err := o.EnsembleClassify(ctx, "text", "{text}")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	// Both calls observed cancellation, so the round degrades to the
	// defined empty consensus.
	assert.Equal(t, "unknown", consensus.Label)
	assert.Empty(t, consensus.ContributingProviders)
}
