// Package server exposes the pipeline over HTTP.
package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ruizhaoca/document-intelligence-pipeline/internal/config"
	"github.com/ruizhaoca/document-intelligence-pipeline/internal/ensemble"
	"github.com/ruizhaoca/document-intelligence-pipeline/internal/models"
	"github.com/ruizhaoca/document-intelligence-pipeline/internal/observability/metrics"
	"github.com/ruizhaoca/document-intelligence-pipeline/internal/pipeline"
	"github.com/ruizhaoca/document-intelligence-pipeline/internal/prompts"
	"github.com/ruizhaoca/document-intelligence-pipeline/internal/providers"
)

// Server wires the HTTP routes to the pipeline components.
type Server struct {
	registry     *providers.Registry
	orchestrator *ensemble.Orchestrator
	pipeline     *pipeline.Pipeline
	catalog      *prompts.Catalog
	collector    *metrics.Collector
}

// New builds the server.
func New(registry *providers.Registry, orchestrator *ensemble.Orchestrator, pipe *pipeline.Pipeline, catalog *prompts.Catalog, collector *metrics.Collector) *Server {
	return &Server{
		registry:     registry,
		orchestrator: orchestrator,
		pipeline:     pipe,
		catalog:      catalog,
		collector:    collector,
	}
}

// Router builds the gin engine with all routes attached.
func (s *Server) Router() *gin.Engine {
	r := gin.Default()

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(s.collector.Handler()))
	r.POST("/v1/classify", s.handleClassify)
	r.POST("/v1/extract", s.handleExtract)
	r.POST("/v1/process", s.handleProcess)

	return r
}

// Run starts the HTTP server.
func (s *Server) Run(cfg config.ServerConfig) error {
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      s.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return srv.ListenAndServe()
}

func (s *Server) handleHealth(c *gin.Context) {
	probes := s.registry.Probes()
	statuses := make([]gin.H, 0, len(probes))
	available := 0
	for _, probe := range probes {
		status := gin.H{"provider": probe.Name, "available": probe.Available()}
		if probe.Err != nil {
			status["reason"] = probe.Err.Error()
		} else {
			available++
		}
		statuses = append(statuses, status)
	}

	code := http.StatusOK
	if available == 0 {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": "healthy", "providers": statuses})
}

type classifyRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleClassify(c *gin.Context) {
	var req classifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	consensus, err := s.orchestrator.EnsembleClassify(c.Request.Context(), req.Text, s.catalog.Classification)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, consensus)
}

type extractRequest struct {
	Text         string `json:"text"`
	DocumentType string `json:"document_type"`
}

func (s *Server) handleExtract(c *gin.Context) {
	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	docType, err := models.ParseDocumentType(req.DocumentType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	template, ok := s.catalog.ExtractionFor(docType)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no extraction prompt for document type: " + req.DocumentType})
		return
	}
	merged, err := s.orchestrator.EnsembleExtract(c.Request.Context(), req.Text, docType, template)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, merged)
}

type processRequest struct {
	Text     string `json:"text"`
	FileName string `json:"file_name"`
	Path     string `json:"path"`
}

func (s *Server) handleProcess(c *gin.Context) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var doc *models.Document
	var err error
	switch {
	case req.Path != "":
		doc, err = s.pipeline.ProcessFile(c.Request.Context(), req.Path)
	case req.Text != "":
		doc, err = s.pipeline.ProcessText(c.Request.Context(), req.Text, req.FileName)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "either text or path is required"})
		return
	}
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ensemble.ErrNoProviders):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, ensemble.ErrEmptyText), errors.Is(err, pipeline.ErrNoPrompt):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
