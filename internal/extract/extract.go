// Package extract is the document-extraction collaborator: best-effort text
// from uploaded files, with a capability flag instead of hard failures.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// maxPDFPages caps extraction cost on large documents.
const maxPDFPages = 5

// Extractor reads text from .txt and .pdf uploads. Other types yield empty
// text without error; the intake pipeline continues regardless.
type Extractor struct {
	pdfEnabled bool
}

// New returns an Extractor. PDF support can be disabled (e.g. for
// constrained deployments); the capability flag is reported via PDFCapable.
func New(pdfEnabled bool) *Extractor {
	return &Extractor{pdfEnabled: pdfEnabled}
}

// PDFCapable reports whether PDF text extraction is available.
func (e *Extractor) PDFCapable() bool { return e.pdfEnabled }

// ExtractText returns best-effort text for the stored file. Errors are
// advisory: the caller may still use whatever text came back.
func (e *Extractor) ExtractText(path, filename string) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt":
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read text file: %w", err)
		}
		return string(raw), nil
	case ".pdf":
		if !e.pdfEnabled {
			return "", nil
		}
		return extractPDF(path)
	default:
		return "", nil
	}
}

// extractPDF pulls plain text from the first few pages.
func extractPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	pages := reader.NumPage()
	if pages > maxPDFPages {
		pages = maxPDFPages
	}
	var b strings.Builder
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Partial text is still useful; report the page error upward.
			return b.String(), fmt.Errorf("extract pdf page %d: %w", i, err)
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String(), nil
}
