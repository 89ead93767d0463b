// Command pipeline runs the batch flow: ingest a directory of PDFs,
// classify and extract each with the provider ensemble, and export the
// results as JSON files plus a CSV master sheet.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/ruizhaoca/document-intelligence-pipeline/internal/config"
	"github.com/ruizhaoca/document-intelligence-pipeline/internal/ensemble"
	"github.com/ruizhaoca/document-intelligence-pipeline/internal/export"
	"github.com/ruizhaoca/document-intelligence-pipeline/internal/ingest"
	"github.com/ruizhaoca/document-intelligence-pipeline/internal/observability/metrics"
	"github.com/ruizhaoca/document-intelligence-pipeline/internal/pipeline"
	"github.com/ruizhaoca/document-intelligence-pipeline/internal/prompts"
	"github.com/ruizhaoca/document-intelligence-pipeline/internal/providers"
)

func main() {
	inputDir := flag.String("input", "data/input", "directory of PDF files to process")
	outputDir := flag.String("output", "", "output directory (overrides EXPORT_* settings)")
	flag.Parse()

	_ = godotenv.Load()
	log := logrus.StandardLogger()
	cfg := config.Load()
	if *outputDir != "" {
		cfg.Export.JSONDir = filepath.Join(*outputDir, "json")
		cfg.Export.CSVFile = filepath.Join(*outputDir, "master_data.csv")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog, err := prompts.Load(cfg.Prompts.File)
	if err != nil {
		log.WithError(err).Fatal("load prompts")
	}

	registry := providers.NewRegistry(ctx, cfg.Providers, log)
	orchestrator := ensemble.New(registry, log, metrics.NewCollector())
	ingestor := ingest.New(cfg.Ingest, log)
	pipe := pipeline.New(ingestor, orchestrator, catalog, log)

	docs, err := pipe.ProcessDirectory(ctx, *inputDir)
	if err != nil {
		log.WithError(err).Fatal("pipeline failed")
	}
	if len(docs) == 0 {
		log.Warn("no documents processed")
		return
	}

	if err := export.SaveJSON(docs, cfg.Export.JSONDir); err != nil {
		log.WithError(err).Fatal("save JSON")
	}
	if err := export.SaveCSV(docs, cfg.Export.CSVFile); err != nil {
		log.WithError(err).Fatal("save CSV")
	}

	total := 0.0
	for _, doc := range docs {
		total += doc.ConfidenceScore
	}
	log.WithFields(logrus.Fields{
		"documents":      len(docs),
		"avg_confidence": total / float64(len(docs)),
	}).Info("pipeline complete")
}
