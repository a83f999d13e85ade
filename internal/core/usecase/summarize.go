package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/antonkom/warranty-pilot/internal/core/domain"
	"github.com/antonkom/warranty-pilot/internal/core/ports"
)

const (
	SummarySourceTemplate = "template"
	SummarySourceOllama   = "ollama"
)

// Summarizer renders a human-readable summary of a canonical record.
// The template path is always available; the inference path is optional
// and any failure there falls back to the template, so summarization
// always succeeds given a record.
type Summarizer struct {
	engine    string
	inference ports.SummaryRenderer
	timeout   time.Duration
	now       ports.Clock
}

func NewSummarizer(engine string, inference ports.SummaryRenderer, timeout time.Duration, now ports.Clock) *Summarizer {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if now == nil {
		now = time.Now
	}
	return &Summarizer{
		engine:    engine,
		inference: inference,
		timeout:   timeout,
		now:       now,
	}
}

func (s *Summarizer) Summarize(ctx context.Context, record *domain.WarrantyRecord) *domain.WarrantySummary {
	if s.engine == SummarySourceOllama && s.inference != nil {
		renderCtx, cancel := context.WithTimeout(ctx, s.timeout)
		text, err := s.inference.Render(renderCtx, record)
		cancel()
		if err == nil && strings.TrimSpace(text) != "" {
			return &domain.WarrantySummary{
				WarrantyID: record.ID,
				Text:       strings.TrimSpace(text),
				Source:     SummarySourceOllama,
				CreatedAt:  s.now().UTC(),
			}
		}
		if err != nil {
			slog.Warn("inference_summary_failed",
				"warranty_id", record.ID,
				"error", domain.WrapError(domain.ErrInferenceUnavailable, "render summary", err),
			)
		}
	}

	return &domain.WarrantySummary{
		WarrantyID: record.ID,
		Text:       TemplateSummary(record),
		Source:     SummarySourceTemplate,
		CreatedAt:  s.now().UTC(),
	}
}

// TemplateSummary fills a fixed sentence structure from canonical fields,
// substituting "unknown" for anything absent. Deterministic by design of
// the caller's inputs: no clock, no randomness.
func TemplateSummary(record *domain.WarrantyRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Product: %s %s\n", orUnknown(record.Brand), orUnknown(record.Model))
	fmt.Fprintf(&b, "Serial: %s\n", orUnknown(record.Serial))
	fmt.Fprintf(&b, "Purchase date: %s\n", dateOrUnknown(record.PurchaseDate))
	if record.CoverageMonths > 0 {
		fmt.Fprintf(&b, "Coverage: %d months\n", record.CoverageMonths)
	} else {
		b.WriteString("Coverage: unknown\n")
	}
	fmt.Fprintf(&b, "Expiry date: %s\n", dateOrUnknown(record.ExpiryDate))
	fmt.Fprintf(&b, "Terms: %s\n", joinOrPending(record.Terms))
	fmt.Fprintf(&b, "Exclusions: %s\n", joinOrPending(record.Exclusions))
	fmt.Fprintf(&b, "Claim steps: %s", joinOrPending(record.ClaimSteps))
	if NeedsConfirmation(record) {
		b.WriteString("\nNote: terms need confirmation; coverage window could not be established.")
	}
	return b.String()
}

func orUnknown(v string) string {
	if strings.TrimSpace(v) == "" {
		return "unknown"
	}
	return v
}

func dateOrUnknown(t *time.Time) string {
	if t == nil {
		return "unknown"
	}
	return t.Format("2006-01-02")
}

func joinOrPending(items []string) string {
	if len(items) == 0 {
		return "not available yet"
	}
	return strings.Join(items, "; ")
}
