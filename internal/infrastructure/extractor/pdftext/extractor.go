package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	pdf "github.com/ledongthuc/pdf"

	"github.com/antonkom/warranty-pilot/internal/core/domain"
	"github.com/antonkom/warranty-pilot/internal/core/ports"
)

// Extractor pulls the text layer out of stored artifacts. PDFs are
// sniffed by magic bytes, anything that reads as text passes through
// as-is; scans and other binaries yield nothing so the pipeline falls
// back to optical recognition.
type Extractor struct {
	storage ports.ArtifactStore
}

func NewExtractor(storage ports.ArtifactStore) *Extractor {
	return &Extractor{storage: storage}
}

func (e *Extractor) Extract(ctx context.Context, artifact *domain.Artifact) (string, error) {
	reader, err := e.storage.Open(ctx, artifact.StoragePath)
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read artifact: %w", err)
	}
	if len(raw) == 0 {
		return "", nil
	}

	if isPDF(raw) {
		return extractPDF(raw)
	}
	if isProbablyText(raw) {
		return collapseWhitespace(string(raw)), nil
	}
	// Image or unknown binary: no text layer to offer.
	return "", nil
}

func isPDF(b []byte) bool {
	return len(b) >= 5 && string(b[:5]) == "%PDF-"
}

// isProbablyText accepts byte streams that are mostly printable and
// carry no NUL bytes, which covers exported invoices and portal dumps.
func isProbablyText(b []byte) bool {
	sample := b
	if len(sample) > 4096 {
		sample = sample[:4096]
	}
	good := 0
	for _, c := range sample {
		if c == 0x00 {
			return false
		}
		if c == '\n' || c == '\r' || c == '\t' || (c >= 0x20 && c <= 0x7E) || c >= 0x80 {
			good++
		}
	}
	return float64(good)/float64(len(sample)) > 0.9
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdf reader: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("pdf plain text: %w", err)
	}
	text, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("pdf read: %w", err)
	}
	return collapseWhitespace(string(text)), nil
}

func collapseWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}
