// Package pipeline composes ingestion, ensemble classification,
// ensemble extraction and document construction into the end-to-end
// processing flow.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ruizhaoca/document-intelligence-pipeline/internal/ensemble"
	"github.com/ruizhaoca/document-intelligence-pipeline/internal/ingest"
	"github.com/ruizhaoca/document-intelligence-pipeline/internal/models"
	"github.com/ruizhaoca/document-intelligence-pipeline/internal/prompts"
)

// ErrNoPrompt is returned when a document classified to a type the
// prompt catalog has no extraction template for.
var ErrNoPrompt = errors.New("no extraction prompt for document type")

// Pipeline runs documents through the full classify-and-extract flow.
type Pipeline struct {
	ingestor     *ingest.Ingestor
	orchestrator *ensemble.Orchestrator
	catalog      *prompts.Catalog
	log          *logrus.Logger
}

// New composes a pipeline. The ingestor may be nil when only text input
// is processed (the HTTP classify/extract endpoints).
func New(ingestor *ingest.Ingestor, orchestrator *ensemble.Orchestrator, catalog *prompts.Catalog, log *logrus.Logger) *Pipeline {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pipeline{
		ingestor:     ingestor,
		orchestrator: orchestrator,
		catalog:      catalog,
		log:          log,
	}
}

// ProcessText classifies the text, extracts fields with the matching
// prompt and builds a Document. Unknown classifications surface
// ErrNoPrompt rather than a half-built record.
func (p *Pipeline) ProcessText(ctx context.Context, text, fileName string) (*models.Document, error) {
	classification, err := p.orchestrator.EnsembleClassify(ctx, text, p.catalog.Classification)
	if err != nil {
		return nil, err
	}
	docType, err := models.ParseDocumentType(classification.Label)
	if err != nil {
		return nil, err
	}
	p.log.WithFields(logrus.Fields{
		"file":       fileName,
		"type":       docType,
		"confidence": classification.Confidence,
		"providers":  classification.ContributingProviders,
	}).Info("document classified")

	template, ok := p.catalog.ExtractionFor(docType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoPrompt, docType)
	}

	merged, err := p.orchestrator.EnsembleExtract(ctx, text, docType, template)
	if err != nil {
		return nil, err
	}
	p.log.WithFields(logrus.Fields{
		"file":      fileName,
		"fields":    len(merged.Fields),
		"providers": merged.ContributingProviders,
	}).Info("document extracted")

	return models.NewDocument(docType, fileName, classification.Confidence, merged.Fields), nil
}

// ProcessFile ingests one PDF and processes its text.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) (*models.Document, error) {
	if p.ingestor == nil {
		return nil, errors.New("pipeline has no ingestor configured")
	}
	doc, err := p.ingestor.IngestPDF(path)
	if err != nil {
		return nil, err
	}
	return p.ProcessText(ctx, doc.Text, doc.Metadata.FileName)
}

// ProcessDirectory ingests and processes every PDF in a directory.
// Per-file failures are logged and skipped; the round only fails when
// no providers are available at all.
func (p *Pipeline) ProcessDirectory(ctx context.Context, dir string) ([]*models.Document, error) {
	if p.ingestor == nil {
		return nil, errors.New("pipeline has no ingestor configured")
	}
	ingested, err := p.ingestor.BatchIngest(dir, "*.pdf")
	if err != nil {
		return nil, err
	}

	docs := make([]*models.Document, 0, len(ingested))
	for _, in := range ingested {
		doc, err := p.ProcessText(ctx, in.Text, in.Metadata.FileName)
		if err != nil {
			if errors.Is(err, ensemble.ErrNoProviders) {
				return docs, err
			}
			p.log.WithFields(logrus.Fields{
				"file":  in.Metadata.FileName,
				"error": err,
			}).Error("processing failed")
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
