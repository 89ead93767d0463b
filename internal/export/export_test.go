package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruizhaoca/document-intelligence-pipeline/internal/models"
)

func sampleDocs(t *testing.T) []*models.Document {
	t.Helper()
	ts := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	return []*models.Document{
		{
			ID:                  "11112222-3333-4444-5555-666677778888",
			Type:                models.DocumentTypeInvoice,
			FileName:            "invoice_001.pdf",
			ProcessingTimestamp: ts,
			ConfidenceScore:     0.91,
			InvolvedParties:     []string{"Acme Corp", "Globex Inc"},
			Fields: map[string]interface{}{
				"invoice_number": "INV-42",
				"total_amount":   1250.0,
				"tax":            62.5,
				"line_items":     []interface{}{"widgets", "gadgets"},
			},
		},
		{
			ID:                  "aaaabbbb-cccc-dddd-eeee-ffff00001111",
			Type:                models.DocumentTypeContract,
			FileName:            "contract_007.pdf",
			ProcessingTimestamp: ts,
			ConfidenceScore:     0.78,
			Fields: map[string]interface{}{
				"contract_id": "C-007",
				"vendor": map[string]interface{}{
					"name": "Globex Inc",
					"address": map[string]interface{}{
						"city": "Springfield",
					},
				},
			},
		},
	}
}

func TestSaveJSON(t *testing.T) {
	dir := t.TempDir()
	docs := sampleDocs(t)

	require.NoError(t, SaveJSON(docs, dir))

	path := filepath.Join(dir, "invoice_11112222.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var restored models.Document
	require.NoError(t, json.Unmarshal(data, &restored))
	assert.Equal(t, docs[0].ID, restored.ID)
	assert.Equal(t, models.DocumentTypeInvoice, restored.Type)
	assert.Equal(t, "INV-42", restored.Fields["invoice_number"])

	_, err = os.Stat(filepath.Join(dir, "contract_aaaabbbb.json"))
	assert.NoError(t, err)
}

func TestSaveJSON_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "json")
	require.NoError(t, SaveJSON(sampleDocs(t), dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestSaveCSV(t *testing.T) {
	file := filepath.Join(t.TempDir(), "out", "master_data.csv")
	require.NoError(t, SaveCSV(sampleDocs(t), file))

	f, err := os.Open(file)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	header := rows[0]
	assert.Equal(t, baseColumns, header[:len(baseColumns)])
	// Flattened extras are sorted after the base columns.
	assert.Equal(t, []string{
		"contract_id", "invoice_number", "line_items", "tax",
		"total_amount", "vendor_address_city", "vendor_name",
	}, header[len(baseColumns):])

	byColumn := func(row []string) map[string]string {
		m := make(map[string]string, len(header))
		for i, col := range header {
			m[col] = row[i]
		}
		return m
	}

	invoice := byColumn(rows[1])
	assert.Equal(t, "invoice", invoice["document_type"])
	assert.Equal(t, "invoice_001.pdf", invoice["file_name"])
	assert.Equal(t, "2024-03-15T10:30:00", invoice["processing_timestamp"])
	assert.Equal(t, "0.91", invoice["confidence_score"])
	assert.Equal(t, `["Acme Corp","Globex Inc"]`, invoice["involved_parties"])
	assert.Equal(t, "1250", invoice["total_amount"])
	assert.Equal(t, "62.5", invoice["tax"])
	assert.Equal(t, `["widgets","gadgets"]`, invoice["line_items"])
	assert.Equal(t, "", invoice["contract_id"])

	contract := byColumn(rows[2])
	assert.Equal(t, "C-007", contract["contract_id"])
	assert.Equal(t, "Globex Inc", contract["vendor_name"])
	assert.Equal(t, "Springfield", contract["vendor_address_city"])
	assert.Equal(t, "", contract["total_amount"])
}

func TestSaveCSV_NoDocuments(t *testing.T) {
	file := filepath.Join(t.TempDir(), "master_data.csv")
	require.NoError(t, SaveCSV(nil, file))

	f, err := os.Open(file)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, baseColumns, rows[0])
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "", formatValue(nil))
	assert.Equal(t, "hello", formatValue("hello"))
	assert.Equal(t, "42", formatValue(42.0))
	assert.Equal(t, "3.14", formatValue(3.14))
	assert.Equal(t, "true", formatValue(true))
	assert.Equal(t, `["a","b"]`, formatValue([]interface{}{"a", "b"}))
}
