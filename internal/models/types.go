package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DocumentType identifies the category a document was classified into.
type DocumentType string

const (
	DocumentTypeInvoice        DocumentType = "invoice"
	DocumentTypeContract       DocumentType = "contract"
	DocumentTypeEmail          DocumentType = "email"
	DocumentTypeMeetingMinutes DocumentType = "meeting_minutes"
	DocumentTypeUnknown        DocumentType = "unknown"
)

// SupportedDocumentTypes lists every type the pipeline has extraction
// prompts for. Unknown is deliberately excluded.
var SupportedDocumentTypes = []DocumentType{
	DocumentTypeInvoice,
	DocumentTypeContract,
	DocumentTypeEmail,
	DocumentTypeMeetingMinutes,
}

// ParseDocumentType validates a raw classification label.
func ParseDocumentType(s string) (DocumentType, error) {
	switch DocumentType(s) {
	case DocumentTypeInvoice, DocumentTypeContract, DocumentTypeEmail, DocumentTypeMeetingMinutes:
		return DocumentType(s), nil
	case DocumentTypeUnknown, "":
		return DocumentTypeUnknown, nil
	}
	return DocumentTypeUnknown, fmt.Errorf("unsupported document type: %q", s)
}

// ClassificationVote is one provider's answer to a classify request.
type ClassificationVote struct {
	Provider   string  `json:"provider"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// ExtractionVote is one provider's answer to an extract request. Field
// values are whatever the provider's JSON decoded to: nil, float64,
// string, []interface{}, bool or map[string]interface{}.
type ExtractionVote struct {
	Provider string                 `json:"provider"`
	Fields   map[string]interface{} `json:"fields"`
}

// ConsensusClassification is the merged answer of one classify round.
// Confidence is the arithmetic mean of every contributing vote's
// confidence, regardless of which label that vote chose.
type ConsensusClassification struct {
	Label                 string   `json:"label"`
	Confidence            float64  `json:"confidence"`
	ContributingProviders []string `json:"contributing_providers"`
}

// ConsensusFields is the merged answer of one extract round.
type ConsensusFields struct {
	Fields                map[string]interface{} `json:"fields"`
	ContributingProviders []string               `json:"contributing_providers"`
}

// ProviderCapabilities describes what a provider backend can do.
type ProviderCapabilities struct {
	Models           []string `json:"models"`
	SupportsClassify bool     `json:"supports_classify"`
	SupportsExtract  bool     `json:"supports_extract"`
	Local            bool     `json:"local"`
	MaxInputChars    int      `json:"max_input_chars"`
}

// Document is a fully processed record ready for export. Fields holds the
// merged extraction output keyed by schema field name; the pipeline does
// not validate values against the schema, consumers do.
type Document struct {
	ID                  string                 `json:"document_id"`
	Type                DocumentType           `json:"document_type"`
	FileName            string                 `json:"file_name"`
	ProcessingTimestamp time.Time              `json:"processing_timestamp"`
	ConfidenceScore     float64                `json:"confidence_score"`
	InvolvedParties     []string               `json:"involved_parties"`
	Fields              map[string]interface{} `json:"fields"`
}

// NewDocument builds a Document from a consensus extraction result. The
// involved_parties field is promoted out of the field map when present so
// every document type carries it at the top level.
func NewDocument(docType DocumentType, fileName string, confidence float64, fields map[string]interface{}) *Document {
	doc := &Document{
		ID:                  uuid.NewString(),
		Type:                docType,
		FileName:            fileName,
		ProcessingTimestamp: time.Now(),
		ConfidenceScore:     confidence,
		Fields:              map[string]interface{}{},
	}
	for k, v := range fields {
		if k == "involved_parties" {
			doc.InvolvedParties = toStringSlice(v)
			continue
		}
		doc.Fields[k] = v
	}
	return doc
}

func toStringSlice(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		if s, ok := v.(string); ok && s != "" {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
