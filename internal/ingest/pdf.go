package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/ragchat/ragchat/internal/core"
	"github.com/ragchat/ragchat/internal/logger"
)

// extractPDFText is swappable in tests.
var extractPDFText = readPDFText

// PDFResult describes what a PDF ingestion stored.
type PDFResult struct {
	Filename string `json:"filename"`
	Chunks   int    `json:"chunks_added"`
	Pages    int    `json:"pages"`
}

// IngestPDF extracts text from the PDF at path, chunks it and stores the
// chunks under ids pdf_<filename>_<index>. Pages that fail to parse are
// skipped; only a fully unreadable document is an error.
func (p *Pipeline) IngestPDF(ctx context.Context, path string) (PDFResult, error) {
	filename := filepath.Base(path)
	logger.RAGInfo("Ingesting PDF: %s", filename)

	text, pages, err := extractPDFText(path)
	if err != nil {
		return PDFResult{}, fmt.Errorf("failed to read PDF %s: %w", filename, err)
	}

	cleaned := collapseWhitespace(text)
	if cleaned == "" {
		return PDFResult{}, fmt.Errorf("no extractable text in PDF %s", filename)
	}

	stored, err := p.storeChunks(ctx, cleaned, "pdf_"+filename, core.Chunk{
		Source: "PDF: " + filename,
		Type:   core.SourcePDF,
	})
	if err != nil {
		return PDFResult{}, err
	}

	logger.RAGInfo("Stored %d chunks from %d pages of %s", stored, pages, filename)
	return PDFResult{Filename: filename, Chunks: stored, Pages: pages}, nil
}

// readPDFText extracts plain text from every parseable page, separated by
// page markers.
func readPDFText(path string) (string, int, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	total := r.NumPage()
	var b strings.Builder
	for i := 1; i <= total; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			logger.RAGError("Skipping unreadable page %d of %s: %v", i, filepath.Base(path), err)
			continue
		}
		fmt.Fprintf(&b, "\n--- Page %d ---\n%s", i, content)
	}
	return b.String(), total, nil
}
