// Package prompts holds the classification and per-type extraction
// prompt templates. Templates use a {text} placeholder filled by the
// provider clients. Defaults are compiled in; a YAML file can override
// any of them.
package prompts

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ruizhaoca/document-intelligence-pipeline/internal/models"
)

const classificationPrompt = `You are a document classifier. Classify this document:

{text}

Respond ONLY with JSON:
{"type": "invoice", "confidence": 0.95}

Valid types: invoice, contract, email, meeting_minutes`

const invoicePrompt = `Extract the following fields from this invoice document:

{text}

Extract and return ONLY a JSON object with these fields:
{
  "invoice_number": "the invoice number or ID",
  "invoice_date": "the invoice date in YYYY-MM-DD format",
  "client_name": "the client or customer name",
  "vendor_name": "the vendor or company issuing invoice",
  "total_amount": the total amount as a number,
  "currency": "the currency code (USD, CAD, etc)",
  "subtotal": the subtotal as a number,
  "tax": the tax amount as a number,
  "payment_method": "payment method used",
  "involved_parties": ["list", "of", "all", "parties"]
}

If a field is not found, use null. For amounts, use numbers without currency symbols.`

const contractPrompt = `Extract the following fields from this contract document:

{text}

Extract and return ONLY a JSON object with these fields:
{
  "contract_id": "the contract number or ID",
  "contract_date": "the contract date in YYYY-MM-DD format",
  "parties": ["list", "of", "contracting", "parties"],
  "contract_value": the contract value as a number,
  "currency": "the currency code (USD, CAD, etc)",
  "effective_date": "the effective date in YYYY-MM-DD format",
  "expiry_date": "the expiry date in YYYY-MM-DD format",
  "key_terms": "a short summary of the key terms",
  "contract_type": "the kind of contract",
  "involved_parties": ["list", "of", "all", "parties"]
}

If a field is not found, use null. For amounts, use numbers without currency symbols.`

const emailPrompt = `Extract the following fields from this email:

{text}

Extract and return ONLY a JSON object with these fields:
{
  "sender": "the sender's name or address",
  "recipients": ["list", "of", "recipients"],
  "email_date": "the email date in YYYY-MM-DD format",
  "subject": "the subject line",
  "key_points": "a short summary of the key points",
  "attachments": ["list", "of", "attachment", "names"],
  "involved_parties": ["list", "of", "all", "parties"]
}

If a field is not found, use null.`

const meetingMinutesPrompt = `Extract the following fields from these meeting minutes:

{text}

Extract and return ONLY a JSON object with these fields:
{
  "meeting_date": "the meeting date in YYYY-MM-DD format",
  "meeting_title": "the meeting title",
  "attendees": ["list", "of", "attendees"],
  "agenda_items": ["list", "of", "agenda", "items"],
  "decisions": ["list", "of", "decisions"],
  "next_meeting": "the next meeting date if mentioned",
  "involved_parties": ["list", "of", "all", "parties"]
}

If a field is not found, use null.`

// Catalog is the prompt template set used by one pipeline instance.
type Catalog struct {
	Classification string
	Extraction     map[models.DocumentType]string
}

// Default returns the compiled-in templates.
func Default() *Catalog {
	return &Catalog{
		Classification: classificationPrompt,
		Extraction: map[models.DocumentType]string{
			models.DocumentTypeInvoice:        invoicePrompt,
			models.DocumentTypeContract:       contractPrompt,
			models.DocumentTypeEmail:          emailPrompt,
			models.DocumentTypeMeetingMinutes: meetingMinutesPrompt,
		},
	}
}

type catalogFile struct {
	Classification string            `yaml:"classification"`
	Extraction     map[string]string `yaml:"extraction"`
}

// Load overlays templates from a YAML file on top of the defaults. An
// empty path returns the defaults unchanged.
func Load(path string) (*Catalog, error) {
	catalog := Default()
	if path == "" {
		return catalog, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts file: %w", err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse prompts file: %w", err)
	}

	if file.Classification != "" {
		catalog.Classification = file.Classification
	}
	for name, template := range file.Extraction {
		docType, err := models.ParseDocumentType(name)
		if err != nil {
			return nil, fmt.Errorf("prompts file: %w", err)
		}
		catalog.Extraction[docType] = template
	}
	return catalog, nil
}

// ExtractionFor returns the extraction template for a document type.
// Unknown types have no template; the pipeline skips extraction for
// those documents.
func (c *Catalog) ExtractionFor(docType models.DocumentType) (string, bool) {
	template, ok := c.Extraction[docType]
	return template, ok
}
