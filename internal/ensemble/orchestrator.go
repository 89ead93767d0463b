// Package ensemble fans a single inference request out to every
// available provider and reduces the successful answers to one
// consensus. Partial success is the expected common case: provider
// failures are logged and dropped, never surfaced to the caller.
package ensemble

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ruizhaoca/document-intelligence-pipeline/internal/models"
	"github.com/ruizhaoca/document-intelligence-pipeline/internal/observability/metrics"
	"github.com/ruizhaoca/document-intelligence-pipeline/internal/providers"
)

// ErrNoProviders is returned when the registry snapshot is empty before
// any call is made. Distinct from all providers failing their calls,
// which yields the empty consensus value instead.
var ErrNoProviders = errors.New("no providers available")

// ErrEmptyText rejects malformed top-level input.
var ErrEmptyText = errors.New("document text is empty")

// ProviderSet is the registry contract the orchestrator consumes.
type ProviderSet interface {
	Discover() []providers.Provider
}

// Orchestrator composes fan-out and consensus merging over a provider
// set fixed at construction time.
type Orchestrator struct {
	registry ProviderSet
	log      *logrus.Logger
	metrics  *metrics.Collector
}

// New builds an orchestrator over an explicitly constructed provider
// set. A nil logger falls back to the standard logger; a nil collector
// disables instrumentation.
func New(registry ProviderSet, log *logrus.Logger, collector *metrics.Collector) *Orchestrator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Orchestrator{registry: registry, log: log, metrics: collector}
}

// EnsembleClassify asks every available provider to label the text and
// merges the votes: plurality label, mean confidence. A round where all
// providers fail returns the defined empty consensus, not an error.
func (o *Orchestrator) EnsembleClassify(ctx context.Context, text, promptTemplate string) (*models.ConsensusClassification, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	provs := o.registry.Discover()
	if len(provs) == 0 {
		return nil, ErrNoProviders
	}

	start := time.Now()
	o.log.WithField("providers", len(provs)).Info("ensemble classification round")

	outcomes := fanOut(ctx, provs, func(ctx context.Context, p providers.Provider) (*models.ClassificationVote, error) {
		return p.Classify(ctx, text, promptTemplate)
	})

	votes := make([]models.ClassificationVote, 0, len(outcomes))
	for _, out := range outcomes {
		o.observeCall("classify", out.provider, out.elapsed, out.err)
		if out.err != nil {
			o.log.WithFields(logrus.Fields{
				"provider": out.provider,
				"error":    out.err,
			}).Warn("classification call failed")
			continue
		}
		o.log.WithFields(logrus.Fields{
			"provider":   out.provider,
			"label":      out.value.Label,
			"confidence": out.value.Confidence,
		}).Info("classification vote")
		votes = append(votes, *out.value)
	}

	consensus := MergeClassifications(votes)
	o.observeRound("classify", start, len(votes))
	o.log.WithFields(logrus.Fields{
		"label":      consensus.Label,
		"confidence": consensus.Confidence,
		"votes":      len(votes),
	}).Info("ensemble vote")
	return consensus, nil
}

// EnsembleExtract asks every available provider for a field map and
// merges them field by field. docType only selects the caller's prompt;
// the orchestrator itself is agnostic to it and uses it for logging.
func (o *Orchestrator) EnsembleExtract(ctx context.Context, text string, docType models.DocumentType, promptTemplate string) (*models.ConsensusFields, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	provs := o.registry.Discover()
	if len(provs) == 0 {
		return nil, ErrNoProviders
	}

	start := time.Now()
	o.log.WithFields(logrus.Fields{
		"providers": len(provs),
		"doc_type":  docType,
	}).Info("ensemble extraction round")

	outcomes := fanOut(ctx, provs, func(ctx context.Context, p providers.Provider) (*models.ExtractionVote, error) {
		return p.Extract(ctx, text, promptTemplate)
	})

	votes := make([]models.ExtractionVote, 0, len(outcomes))
	for _, out := range outcomes {
		o.observeCall("extract", out.provider, out.elapsed, out.err)
		if out.err != nil {
			o.log.WithFields(logrus.Fields{
				"provider": out.provider,
				"error":    out.err,
			}).Warn("extraction call failed")
			continue
		}
		o.log.WithFields(logrus.Fields{
			"provider": out.provider,
			"fields":   len(out.value.Fields),
		}).Info("extraction vote")
		votes = append(votes, *out.value)
	}

	if len(votes) == 0 {
		o.log.Error("all providers failed extraction")
	}
	merged := MergeExtractions(votes)
	o.observeRound("extract", start, len(votes))
	o.log.WithFields(logrus.Fields{
		"votes":  len(votes),
		"fields": len(merged.Fields),
	}).Info("ensemble merge complete")
	return merged, nil
}

func (o *Orchestrator) observeCall(operation, provider string, elapsed time.Duration, err error) {
	if o.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	o.metrics.ProviderLatency.WithLabelValues(provider, operation).Observe(elapsed.Seconds())
	o.metrics.ProviderCalls.WithLabelValues(provider, operation, outcome).Inc()
}

func (o *Orchestrator) observeRound(operation string, start time.Time, votes int) {
	if o.metrics == nil {
		return
	}
	outcome := "consensus"
	if votes == 0 {
		outcome = "empty"
	}
	o.metrics.RoundDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	o.metrics.RoundCount.WithLabelValues(operation, outcome).Inc()
	o.metrics.RoundVotes.WithLabelValues(operation).Observe(float64(votes))
}
