package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/antonkom/warranty-pilot/internal/core/domain"
	"github.com/antonkom/warranty-pilot/internal/core/ports"
)

// ExtractionResult is what the engine hands the orchestrator: the best
// text either path produced, plus how it got there.
type ExtractionResult struct {
	Text         string
	UsedFallback bool
	Degraded     bool
	Detail       string
}

// ExtractionEngine tries direct text extraction first and falls back to
// optical recognition when the direct yield is below the configured
// minimum. An unreachable OCR backend degrades the result instead of
// failing it, as long as any direct text exists.
type ExtractionEngine struct {
	direct     ports.TextExtractor
	ocr        ports.OCREngine
	minChars   int
	ocrTimeout time.Duration
}

func NewExtractionEngine(direct ports.TextExtractor, ocr ports.OCREngine, minChars int, ocrTimeout time.Duration) *ExtractionEngine {
	if minChars <= 0 {
		minChars = 200
	}
	if ocrTimeout <= 0 {
		ocrTimeout = 20 * time.Second
	}
	return &ExtractionEngine{
		direct:     direct,
		ocr:        ocr,
		minChars:   minChars,
		ocrTimeout: ocrTimeout,
	}
}

func (e *ExtractionEngine) ExtractText(ctx context.Context, artifact *domain.Artifact) (ExtractionResult, error) {
	directText := ""
	if e.direct != nil {
		text, err := e.direct.Extract(ctx, artifact)
		if err != nil {
			slog.Warn("direct_extraction_failed", "artifact_id", artifact.ID, "error", err)
		} else {
			directText = strings.TrimSpace(text)
		}
	}

	if len(directText) >= e.minChars {
		return ExtractionResult{Text: directText, Detail: "direct"}, nil
	}

	ocrText, ocrErr := e.recognize(ctx, artifact)
	if ocrErr != nil {
		if directText == "" {
			return ExtractionResult{}, domain.WrapError(
				domain.ErrExtractionUnavailable,
				"extract text",
				fmt.Errorf("no direct text and optical recognition failed: %w", ocrErr),
			)
		}
		// Partial direct text still completes the job, flagged degraded.
		return ExtractionResult{
			Text:     directText,
			Degraded: true,
			Detail:   "ocr unavailable: " + ocrErr.Error(),
		}, nil
	}

	if ocrText == "" && directText == "" {
		return ExtractionResult{}, domain.WrapError(
			domain.ErrExtractionUnavailable,
			"extract text",
			errors.New("neither direct extraction nor optical recognition yielded text"),
		)
	}

	// Keep whichever path produced more signal. A noisy OCR result is
	// returned rather than failed; downstream tolerates it.
	if len(ocrText) > len(directText) {
		return ExtractionResult{Text: ocrText, UsedFallback: true, Detail: "ocr"}, nil
	}
	return ExtractionResult{Text: directText, Detail: "direct"}, nil
}

func (e *ExtractionEngine) recognize(ctx context.Context, artifact *domain.Artifact) (string, error) {
	if e.ocr == nil {
		return "", errors.New("ocr engine not configured")
	}
	ocrCtx, cancel := context.WithTimeout(ctx, e.ocrTimeout)
	defer cancel()

	if err := e.ocr.Health(ocrCtx); err != nil {
		return "", fmt.Errorf("ocr health: %w", err)
	}
	text, err := e.ocr.Recognize(ocrCtx, artifact)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
