// Package ingest turns PDF files into plain text for the ensemble,
// falling back to OCR when the embedded text layer is thin or when OCR
// is preferred outright.
package ingest

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/otiai10/gosseract/v2"
	"github.com/sirupsen/logrus"

	"github.com/ruizhaoca/document-intelligence-pipeline/internal/config"
)

// Metadata describes one ingested file. HasTables is a layout heuristic
// over the embedded text layer, not a cell-level extraction.
type Metadata struct {
	FileName   string `json:"file_name"`
	FilePath   string `json:"file_path"`
	NumPages   int    `json:"num_pages"`
	FileSize   int64  `json:"file_size"`
	HasTables  bool   `json:"has_tables"`
	UsedOCR    bool   `json:"used_ocr"`
	TextLength int    `json:"text_length"`
}

// IngestedDocument is the plain text plus metadata handed to the
// orchestrating pipeline.
type IngestedDocument struct {
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// Ingestor extracts text from PDFs with an OCR fallback. The page
// renderer and recognizer are injectable so tests run without poppler
// and tesseract installed.
type Ingestor struct {
	useOCR       bool
	preferOCR    bool
	ocrThreshold int
	dpi          int
	log          *logrus.Logger

	renderPages func(path string, dpi int) ([]string, error)
	recognize   func(imagePath string) (string, error)
}

// New builds an ingestor from config. PreferOCR runs OCR on every file
// regardless of the text layer; otherwise OCR only triggers when the
// text layer is below the threshold.
func New(cfg config.IngestConfig, log *logrus.Logger) *Ingestor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Ingestor{
		useOCR:       cfg.UseOCR,
		preferOCR:    cfg.PreferOCR,
		ocrThreshold: cfg.OCRThreshold,
		dpi:          cfg.OCRDPI,
		log:          log,
		renderPages:  renderWithPdftoppm,
		recognize:    recognizeWithTesseract,
	}
}

// IngestPDF extracts text and metadata from one PDF file.
func (i *Ingestor) IngestPDF(path string) (*IngestedDocument, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return nil, fmt.Errorf("unsupported format: %s", filepath.Ext(path))
	}

	text, numPages, err := extractTextLayer(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	// Table presence is judged on the text layer even when OCR text is
	// used for the ensemble; OCR output loses column alignment.
	hasTables := detectTables(text)

	needsOCR := i.preferOCR
	if !i.preferOCR {
		needsOCR = len(strings.TrimSpace(text)) < i.ocrThreshold
		if needsOCR {
			i.log.WithFields(logrus.Fields{
				"file":  filepath.Base(path),
				"chars": len(text),
			}).Warn("low text extraction, attempting OCR")
		}
	}

	if needsOCR && i.useOCR {
		ocrText := i.extractTextWithOCR(path)
		if len(ocrText) > len(text) || i.preferOCR {
			text = ocrText
			i.log.WithField("file", filepath.Base(path)).Info("using OCR text")
		}
	}

	doc := &IngestedDocument{
		Text: text,
		Metadata: Metadata{
			FileName:   filepath.Base(path),
			FilePath:   path,
			NumPages:   numPages,
			FileSize:   info.Size(),
			HasTables:  hasTables,
			UsedOCR:    needsOCR && i.useOCR,
			TextLength: len(text),
		},
	}
	i.log.WithFields(logrus.Fields{
		"file":   doc.Metadata.FileName,
		"pages":  numPages,
		"chars":  len(text),
		"tables": hasTables,
	}).Info("ingested document")
	return doc, nil
}

// detectTables reports whether the text layer looks like it carries
// tabular data: at least three lines broken into columns by tabs or by
// runs of two or more spaces. A table needs a header row plus rows, so
// one or two columnar lines (an address block, a signature line) don't
// count.
func detectTables(text string) bool {
	columnar := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, " \t")
		if strings.Count(line, "\t") >= 2 || wideGaps(line) >= 2 {
			columnar++
			if columnar >= 3 {
				return true
			}
		}
	}
	return false
}

// wideGaps counts interior runs of two or more spaces in a line.
func wideGaps(line string) int {
	gaps, run := 0, 0
	for _, r := range line {
		if r == ' ' {
			run++
			continue
		}
		if run >= 2 {
			gaps++
		}
		run = 0
	}
	return gaps
}

// BatchIngest processes every matching PDF in a directory. Files that
// fail to ingest are logged and skipped.
func (i *Ingestor) BatchIngest(dir, pattern string) ([]*IngestedDocument, error) {
	if pattern == "" {
		pattern = "*.pdf"
	}
	paths, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", dir, err)
	}
	if len(paths) == 0 {
		i.log.WithField("dir", dir).Warn("no PDF files found")
		return nil, nil
	}
	sort.Strings(paths)

	docs := make([]*IngestedDocument, 0, len(paths))
	for _, path := range paths {
		doc, err := i.IngestPDF(path)
		if err != nil {
			i.log.WithFields(logrus.Fields{
				"file":  path,
				"error": err,
			}).Error("ingest failed")
			continue
		}
		docs = append(docs, doc)
	}
	i.log.WithFields(logrus.Fields{
		"ingested": len(docs),
		"total":    len(paths),
	}).Info("batch ingest complete")
	return docs, nil
}

// extractTextWithOCR renders every page to an image and runs OCR over
// them. OCR failure degrades to empty text rather than failing the
// ingest, matching the text-layer-or-nothing fallback.
func (i *Ingestor) extractTextWithOCR(path string) string {
	pages, err := i.renderPages(path, i.dpi)
	if err != nil {
		i.log.WithFields(logrus.Fields{
			"file":  path,
			"error": err,
		}).Error("page rendering for OCR failed")
		return ""
	}
	defer func() {
		for _, page := range pages {
			os.Remove(page)
		}
		if len(pages) > 0 {
			os.Remove(filepath.Dir(pages[0]))
		}
	}()

	texts := make([]string, 0, len(pages))
	for n, page := range pages {
		pageText, err := i.recognize(page)
		if err != nil {
			i.log.WithFields(logrus.Fields{
				"file":  path,
				"page":  n + 1,
				"error": err,
			}).Error("OCR failed")
			continue
		}
		if strings.TrimSpace(pageText) != "" {
			texts = append(texts, pageText)
		}
	}
	full := strings.Join(texts, "\n\n")
	i.log.WithFields(logrus.Fields{
		"file":  filepath.Base(path),
		"pages": len(pages),
		"chars": len(full),
	}).Info("OCR extracted text")
	return full
}

func extractTextLayer(path string) (string, int, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	numPages := reader.NumPage()
	texts := make([]string, 0, numPages)
	for n := 1; n <= numPages; n++ {
		page := reader.Page(n)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(pageText) != "" {
			texts = append(texts, pageText)
		}
	}
	return strings.Join(texts, "\n\n"), numPages, nil
}

// renderWithPdftoppm rasterizes PDF pages to PNGs in a temp directory.
func renderWithPdftoppm(path string, dpi int) ([]string, error) {
	tmpDir, err := os.MkdirTemp("", "ingest-ocr-")
	if err != nil {
		return nil, err
	}
	prefix := filepath.Join(tmpDir, "page")
	cmd := exec.Command("pdftoppm", "-png", "-r", strconv.Itoa(dpi), path, prefix)
	if out, err := cmd.CombinedOutput(); err != nil {
		os.RemoveAll(tmpDir)
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, out)
	}
	pages, err := filepath.Glob(prefix + "*.png")
	if err != nil {
		os.RemoveAll(tmpDir)
		return nil, err
	}
	sort.Strings(pages)
	return pages, nil
}

func recognizeWithTesseract(imagePath string) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()
	if err := client.SetImage(imagePath); err != nil {
		return "", err
	}
	return client.Text()
}
