// Package export writes processed documents to JSON files and a CSV
// master sheet.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/ruizhaoca/document-intelligence-pipeline/internal/models"
)

// Leading CSV columns, before the flattened extraction fields.
var baseColumns = []string{
	"document_id",
	"document_type",
	"file_name",
	"processing_timestamp",
	"confidence_score",
	"involved_parties",
}

// SaveJSON writes one pretty-printed JSON file per document, named
// <type>_<id8>.json.
func SaveJSON(docs []*models.Document, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	for _, doc := range docs {
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal document %s: %w", doc.ID, err)
		}
		name := fmt.Sprintf("%s_%s.json", doc.Type, shortID(doc.ID))
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		logrus.WithField("file", name).Info("saved document")
	}
	logrus.WithFields(logrus.Fields{"count": len(docs), "dir": dir}).Info("saved JSON output")
	return nil
}

// SaveCSV writes all documents into a single CSV file. Nested maps are
// flattened with an underscore separator; lists are JSON-encoded into
// their cell. The header is the base columns followed by the sorted
// union of every document's flattened field keys.
func SaveCSV(docs []*models.Document, file string) error {
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	records := make([]map[string]string, 0, len(docs))
	fieldKeys := make(map[string]bool)
	for _, doc := range docs {
		record := flattenDocument(doc)
		records = append(records, record)
		for k := range record {
			if !isBaseColumn(k) {
				fieldKeys[k] = true
			}
		}
	}

	header := append([]string{}, baseColumns...)
	extras := make([]string, 0, len(fieldKeys))
	for k := range fieldKeys {
		extras = append(extras, k)
	}
	sort.Strings(extras)
	header = append(header, extras...)

	f, err := os.Create(file)
	if err != nil {
		return fmt.Errorf("create %s: %w", file, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, record := range records {
		row := make([]string, len(header))
		for i, col := range header {
			row[i] = record[col]
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	logrus.WithFields(logrus.Fields{"count": len(docs), "file": file}).Info("saved CSV output")
	return nil
}

func flattenDocument(doc *models.Document) map[string]string {
	record := map[string]string{
		"document_id":          doc.ID,
		"document_type":        string(doc.Type),
		"file_name":            doc.FileName,
		"processing_timestamp": doc.ProcessingTimestamp.Format("2006-01-02T15:04:05"),
		"confidence_score":     formatValue(doc.ConfidenceScore),
		"involved_parties":     formatValue(toInterfaceSlice(doc.InvolvedParties)),
	}
	flattenInto(record, "", doc.Fields)
	return record
}

func flattenInto(record map[string]string, prefix string, fields map[string]interface{}) {
	for k, v := range fields {
		key := k
		if prefix != "" {
			key = prefix + "_" + k
		}
		if nested, ok := v.(map[string]interface{}); ok {
			flattenInto(record, key, nested)
			continue
		}
		record[key] = formatValue(v)
	}
}

func formatValue(v interface{}) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case float64:
		// Trim the decimal point from whole numbers so IDs and counts
		// round-trip cleanly.
		if value == float64(int64(value)) {
			return fmt.Sprintf("%d", int64(value))
		}
		return fmt.Sprintf("%g", value)
	case bool:
		return fmt.Sprintf("%t", value)
	case []interface{}, []string:
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprintf("%v", value)
		}
		return string(data)
	default:
		return fmt.Sprintf("%v", value)
	}
}

func toInterfaceSlice(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func isBaseColumn(k string) bool {
	for _, col := range baseColumns {
		if k == col {
			return true
		}
	}
	return false
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
