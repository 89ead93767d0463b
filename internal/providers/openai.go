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
	openAIAPIURL       = "https://api.openai.com/v1/chat/completions"
	openAIModelsURL    = "https://api.openai.com/v1/models"
	openAIDefaultModel = "gpt-4o"

	// Classification only needs the document head; extraction sends the
	// full text.
	openAIClassifyPrefix = 3000

	classifierSystemPrompt = "You are a document classifier. Respond only with valid JSON."
	extractorSystemPrompt  = "You are a precise data extraction specialist. Respond only with valid JSON."
)

// OpenAIProvider implements Provider against the OpenAI chat completions API.
type OpenAIProvider struct {
	apiKey          string
	baseURL         string
	modelsURL       string
	model           string
	classifyTimeout time.Duration
	extractTimeout  time.Duration
	httpClient      *http.Client
}

type openAIRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIMessage       `json:"messages"`
	Temperature    float64               `json:"temperature,omitempty"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
}

type openAIChoice struct {
	Message      openAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

// NewOpenAIProvider creates an OpenAI provider. Empty baseURL and model
// fall back to the public API and gpt-4o.
func NewOpenAIProvider(apiKey, baseURL, model string, classifyTimeout, extractTimeout time.Duration) *OpenAIProvider {
	if baseURL == "" {
		baseURL = openAIAPIURL
	}
	if model == "" {
		model = openAIDefaultModel
	}
	return &OpenAIProvider{
		apiKey:          apiKey,
		baseURL:         baseURL,
		modelsURL:       openAIModelsURL,
		model:           model,
		classifyTimeout: classifyTimeout,
		extractTimeout:  extractTimeout,
		httpClient:      &http.Client{},
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

// Classify implements Provider.
func (p *OpenAIProvider) Classify(ctx context.Context, text, promptTemplate string) (*models.ClassificationVote, error) {
	prompt := renderPrompt(promptTemplate, truncate(text, openAIClassifyPrefix))
	content, err := p.complete(ctx, classifierSystemPrompt, prompt, p.classifyTimeout)
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
func (p *OpenAIProvider) Extract(ctx context.Context, text, promptTemplate string) (*models.ExtractionVote, error) {
	prompt := renderPrompt(promptTemplate, text)
	content, err := p.complete(ctx, extractorSystemPrompt, prompt, p.extractTimeout)
	if err != nil {
		return nil, err
	}
	fields, err := decodeObject(p.Name(), content)
	if err != nil {
		return nil, err
	}
	return &models.ExtractionVote{Provider: p.Name(), Fields: fields}, nil
}

// HealthCheck verifies the API key against the models endpoint.
func (p *OpenAIProvider) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.modelsURL, nil)
	if err != nil {
		return fmt.Errorf("build health check request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

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

func (p *OpenAIProvider) Capabilities() *models.ProviderCapabilities {
	return &models.ProviderCapabilities{
		Models:           []string{"gpt-4o", "gpt-4o-mini"},
		SupportsClassify: true,
		SupportsExtract:  true,
		Local:            false,
		MaxInputChars:    openAIClassifyPrefix,
	}
}

func (p *OpenAIProvider) complete(ctx context.Context, system, prompt string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(openAIRequest{
		Model: p.model,
		Messages: []openAIMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Temperature:    0.1,
		ResponseFormat: &openAIResponseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", &CallError{Provider: p.Name(), Stage: StageTransport, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", &CallError{Provider: p.Name(), Stage: StageTransport, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

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

	var parsed openAIResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", &CallError{Provider: p.Name(), Stage: StageParse, Err: err}
	}
	if len(parsed.Choices) == 0 {
		return "", callErr(p.Name(), StageParse, "response has no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
