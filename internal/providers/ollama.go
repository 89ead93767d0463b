package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ruizhaoca/document-intelligence-pipeline/internal/models"
)

const (
	ollamaDefaultURL   = "http://localhost:11434"
	ollamaDefaultModel = "qwen2.5:7b"

	ollamaClassifyPrefix = 3000

	// Local generation is slower than hosted APIs, and extraction prompts
	// carry the full document text.
	ollamaClassifyTimeout = 30 * time.Second
	ollamaExtractTimeout  = 60 * time.Second
)

// OllamaProvider implements Provider against a local Ollama service.
type OllamaProvider struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

type ollamaRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Stream      bool    `json:"stream"`
	Temperature float64 `json:"temperature,omitempty"`
}

type ollamaResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// NewOllamaProvider creates an Ollama provider for a local service.
func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	if baseURL == "" {
		baseURL = ollamaDefaultURL
	}
	if model == "" {
		model = ollamaDefaultModel
	}
	return &OllamaProvider{
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{},
	}
}

func (p *OllamaProvider) Name() string { return "ollama" }

// Classify implements Provider.
func (p *OllamaProvider) Classify(ctx context.Context, text, promptTemplate string) (*models.ClassificationVote, error) {
	prompt := renderPrompt(promptTemplate, truncate(text, ollamaClassifyPrefix))
	content, err := p.generate(ctx, prompt, ollamaClassifyTimeout)
	if err != nil {
		return nil, err
	}
	obj, err := decodeObject(p.Name(), content)
	if err != nil {
		return nil, err
	}
	return classificationFromObject(p.Name(), obj)
}

// Extract implements Provider.
func (p *OllamaProvider) Extract(ctx context.Context, text, promptTemplate string) (*models.ExtractionVote, error) {
	prompt := renderPrompt(promptTemplate, text)
	content, err := p.generate(ctx, prompt, ollamaExtractTimeout)
	if err != nil {
		return nil, err
	}
	fields, err := decodeObject(p.Name(), content)
	if err != nil {
		return nil, err
	}
	return &models.ExtractionVote{Provider: p.Name(), Fields: fields}, nil
}

// HealthCheck probes the local service's tag listing endpoint.
func (p *OllamaProvider) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("build health check request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status %d", resp.StatusCode)
	}
	return nil
}

func (p *OllamaProvider) Capabilities() *models.ProviderCapabilities {
	return &models.ProviderCapabilities{
		Models:           []string{"qwen2.5:7b", "llama3.1:8b", "mistral"},
		SupportsClassify: true,
		SupportsExtract:  true,
		Local:            true,
		MaxInputChars:    ollamaClassifyPrefix,
	}
}

func (p *OllamaProvider) generate(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(ollamaRequest{
		Model:       p.model,
		Prompt:      prompt,
		Stream:      false,
		Temperature: 0.1,
	})
	if err != nil {
		return "", &CallError{Provider: p.Name(), Stage: StageTransport, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", &CallError{Provider: p.Name(), Stage: StageTransport, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", &CallError{Provider: p.Name(), Stage: StageTransport, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &CallError{Provider: p.Name(), Stage: StageTransport, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", callErr(p.Name(), StageStatus, "API returned status %d: %s", resp.StatusCode, data)
	}

	var parsed ollamaResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", &CallError{Provider: p.Name(), Stage: StageParse, Err: err}
	}
	return parsed.Response, nil
}
