package prompts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruizhaoca/document-intelligence-pipeline/internal/models"
)

func TestDefault_CoversAllExtractableTypes(t *testing.T) {
	catalog := Default()
	assert.Contains(t, catalog.Classification, "{text}")

	for _, docType := range []models.DocumentType{
		models.DocumentTypeInvoice,
		models.DocumentTypeContract,
		models.DocumentTypeEmail,
		models.DocumentTypeMeetingMinutes,
	} {
		template, ok := catalog.ExtractionFor(docType)
		require.True(t, ok, "missing template for %s", docType)
		assert.Contains(t, template, "{text}")
		assert.Contains(t, template, "involved_parties")
	}

	_, ok := catalog.ExtractionFor(models.DocumentTypeUnknown)
	assert.False(t, ok)
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	catalog, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Classification, catalog.Classification)
}

func TestLoad_OverlaysFileOnDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	content := `classification: "Custom classify: {text}"
extraction:
  invoice: "Custom invoice: {text}"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	catalog, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Custom classify: {text}", catalog.Classification)

	invoice, ok := catalog.ExtractionFor(models.DocumentTypeInvoice)
	require.True(t, ok)
	assert.Equal(t, "Custom invoice: {text}", invoice)

	// Untouched types keep their defaults.
	contract, ok := catalog.ExtractionFor(models.DocumentTypeContract)
	require.True(t, ok)
	assert.Contains(t, contract, "contract_id")
}

func TestLoad_RejectsUnknownDocumentType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("extraction:\n  receipt: \"{text}\"\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("classification: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
