package main

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/ruizhaoca/document-intelligence-pipeline/internal/config"
	"github.com/ruizhaoca/document-intelligence-pipeline/internal/ensemble"
	"github.com/ruizhaoca/document-intelligence-pipeline/internal/ingest"
	"github.com/ruizhaoca/document-intelligence-pipeline/internal/observability/metrics"
	"github.com/ruizhaoca/document-intelligence-pipeline/internal/pipeline"
	"github.com/ruizhaoca/document-intelligence-pipeline/internal/prompts"
	"github.com/ruizhaoca/document-intelligence-pipeline/internal/providers"
	"github.com/ruizhaoca/document-intelligence-pipeline/internal/server"
)

func main() {
	_ = godotenv.Load()
	log := logrus.StandardLogger()
	cfg := config.Load()

	catalog, err := prompts.Load(cfg.Prompts.File)
	if err != nil {
		log.WithError(err).Fatal("load prompts")
	}

	registry := providers.NewRegistry(context.Background(), cfg.Providers, log)
	if len(registry.Discover()) == 0 {
		log.Warn("no providers available; classify and extract will return 503")
	}

	collector := metrics.NewCollector()
	orchestrator := ensemble.New(registry, log, collector)
	ingestor := ingest.New(cfg.Ingest, log)
	pipe := pipeline.New(ingestor, orchestrator, catalog, log)

	srv := server.New(registry, orchestrator, pipe, catalog, collector)
	log.WithField("port", cfg.Server.Port).Info("starting server")
	if err := srv.Run(cfg.Server); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}
