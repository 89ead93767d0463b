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
	geminiAPIURL       = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent"
	geminiDefaultModel = "gemini-2.5-flash"

	geminiClassifyPrefix    = 3000
	geminiClassifyMaxTokens = 512
	geminiExtractMaxTokens  = 2048
)

// geminiSafetyCategories are all disabled: business documents trip the
// default filters often enough to poison the ensemble.
var geminiSafetyCategories = []string{
	"HARM_CATEGORY_HARASSMENT",
	"HARM_CATEGORY_HATE_SPEECH",
	"HARM_CATEGORY_SEXUALLY_EXPLICIT",
	"HARM_CATEGORY_DANGEROUS_CONTENT",
}

// GeminiProvider implements Provider against the Gemini generateContent API.
type GeminiProvider struct {
	apiKey          string
	baseURL         string
	model           string
	classifyTimeout time.Duration
	extractTimeout  time.Duration
	httpClient      *http.Client
}

type geminiRequest struct {
	Contents         []geminiContent       `json:"contents"`
	GenerationConfig geminiGenConfig       `json:"generationConfig,omitempty"`
	SafetySettings   []geminiSafetySetting `json:"safetySettings,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiGenConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiSafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type geminiResponse struct {
	Candidates     []geminiCandidate `json:"candidates"`
	PromptFeedback *geminiFeedback   `json:"promptFeedback,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiFeedback struct {
	BlockReason string `json:"blockReason"`
}

// NewGeminiProvider creates a Gemini provider. Empty baseURL and model
// fall back to the public API and gemini-2.5-flash.
func NewGeminiProvider(apiKey, baseURL, model string, classifyTimeout, extractTimeout time.Duration) *GeminiProvider {
	if model == "" {
		model = geminiDefaultModel
	}
	if baseURL == "" {
		baseURL = fmt.Sprintf(geminiAPIURL, model)
	}
	return &GeminiProvider{
		apiKey:          apiKey,
		baseURL:         baseURL,
		model:           model,
		classifyTimeout: classifyTimeout,
		extractTimeout:  extractTimeout,
		httpClient:      &http.Client{},
	}
}

func (p *GeminiProvider) Name() string { return "gemini" }

// Classify implements Provider.
func (p *GeminiProvider) Classify(ctx context.Context, text, promptTemplate string) (*models.ClassificationVote, error) {
	prompt := renderPrompt(promptTemplate, truncate(text, geminiClassifyPrefix))
	content, err := p.generate(ctx, prompt, geminiClassifyMaxTokens, p.classifyTimeout)
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
func (p *GeminiProvider) Extract(ctx context.Context, text, promptTemplate string) (*models.ExtractionVote, error) {
	prompt := renderPrompt(promptTemplate, text)
	content, err := p.generate(ctx, prompt, geminiExtractMaxTokens, p.extractTimeout)
	if err != nil {
		return nil, err
	}
	fields, err := decodeObject(p.Name(), content)
	if err != nil {
		return nil, err
	}
	return &models.ExtractionVote{Provider: p.Name(), Fields: fields}, nil
}

// HealthCheck sends a minimal generation request to verify the key works.
func (p *GeminiProvider) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := p.generate(ctx, "ping", 8, 10*time.Second)
	return err
}

func (p *GeminiProvider) Capabilities() *models.ProviderCapabilities {
	return &models.ProviderCapabilities{
		Models:           []string{"gemini-2.5-flash", "gemini-2.0-flash"},
		SupportsClassify: true,
		SupportsExtract:  true,
		Local:            false,
		MaxInputChars:    geminiClassifyPrefix,
	}
}

func (p *GeminiProvider) generate(ctx context.Context, prompt string, maxTokens int, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	safety := make([]geminiSafetySetting, 0, len(geminiSafetyCategories))
	for _, category := range geminiSafetyCategories {
		safety = append(safety, geminiSafetySetting{Category: category, Threshold: "BLOCK_NONE"})
	}

	body, err := json.Marshal(geminiRequest{
		Contents:         []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenConfig{Temperature: 0.1, MaxOutputTokens: maxTokens},
		SafetySettings:   safety,
	})
	if err != nil {
		return "", &CallError{Provider: p.Name(), Stage: StageTransport, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"?key="+p.apiKey, bytes.NewReader(body))
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

	var parsed geminiResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", &CallError{Provider: p.Name(), Stage: StageParse, Err: err}
	}
	if parsed.PromptFeedback != nil && parsed.PromptFeedback.BlockReason != "" {
		return "", callErr(p.Name(), StageParse, "response blocked: %s", parsed.PromptFeedback.BlockReason)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", callErr(p.Name(), StageParse, "response has no candidates")
	}
	text := parsed.Candidates[0].Content.Parts[0].Text
	if text == "" {
		return "", callErr(p.Name(), StageParse, "response candidate is empty")
	}
	return text, nil
}
