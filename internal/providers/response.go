package providers

import (
	"encoding/json"
	"strings"

	"github.com/ruizhaoca/document-intelligence-pipeline/internal/models"
)

// extractJSONSpan locates the span between the first '{' and the last '}'
// in a raw model response. Models routinely wrap their JSON answer in
// prose or markdown fences; only the span is parsed.
func extractJSONSpan(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return "", false
	}
	return raw[start : end+1], true
}

// decodeObject parses the JSON object span out of a raw textual response.
func decodeObject(provider, raw string) (map[string]interface{}, error) {
	span, ok := extractJSONSpan(raw)
	if !ok {
		return nil, callErr(provider, StageParse, "no JSON object in response")
	}
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(span), &obj); err != nil {
		return nil, &CallError{Provider: provider, Stage: StageParse, Err: err}
	}
	return obj, nil
}

// classificationFromObject builds a vote from a decoded {"type": ...,
// "confidence": ...} object. A missing label degrades to "unknown"; a
// missing, non-numeric or out-of-range confidence rejects the call rather
// than clamping, so a misbehaving backend is not silently masked.
func classificationFromObject(provider string, obj map[string]interface{}) (*models.ClassificationVote, error) {
	label := "unknown"
	if s, ok := obj["type"].(string); ok && s != "" {
		label = s
	}
	raw, ok := obj["confidence"]
	if !ok {
		return nil, callErr(provider, StageConfidence, "confidence missing from response")
	}
	conf, ok := raw.(float64)
	if !ok {
		return nil, callErr(provider, StageConfidence, "confidence is not a number: %v", raw)
	}
	if conf < 0 || conf > 1 {
		return nil, callErr(provider, StageConfidence, "confidence %v outside [0,1]", conf)
	}
	return &models.ClassificationVote{Provider: provider, Label: label, Confidence: conf}, nil
}

// renderPrompt substitutes the document text into a prompt template.
func renderPrompt(template, text string) string {
	return strings.ReplaceAll(template, "{text}", text)
}

// truncate bounds the text sent in classification prompts. Extraction
// always sends the full text.
func truncate(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return text
	}
	return text[:limit]
}
