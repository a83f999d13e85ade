package ollama

import (
	"fmt"
	"strings"

	"github.com/antonkom/warranty-pilot/internal/core/domain"
)

// buildSummaryPrompt hands the model only canonical facts. The model
// rephrases; it must not invent coverage the record does not carry.
func buildSummaryPrompt(record *domain.WarrantyRecord) string {
	var facts strings.Builder
	writeFact := func(label, value string) {
		if strings.TrimSpace(value) == "" {
			value = "unknown"
		}
		fmt.Fprintf(&facts, "%s: %s\n", label, value)
	}

	writeFact("Brand", record.Brand)
	writeFact("Model", record.Model)
	writeFact("Serial", record.Serial)
	if record.PurchaseDate != nil {
		writeFact("Purchase date", record.PurchaseDate.Format("2006-01-02"))
	} else {
		writeFact("Purchase date", "")
	}
	if record.CoverageMonths > 0 {
		writeFact("Coverage months", fmt.Sprintf("%d", record.CoverageMonths))
	} else {
		writeFact("Coverage months", "")
	}
	if record.ExpiryDate != nil {
		writeFact("Expiry date", record.ExpiryDate.Format("2006-01-02"))
	} else {
		writeFact("Expiry date", "")
	}
	writeFact("Terms", strings.Join(record.Terms, "; "))
	writeFact("Exclusions", strings.Join(record.Exclusions, "; "))
	writeFact("Claim steps", strings.Join(record.ClaimSteps, "; "))

	return `Write a short, plain-language warranty summary for a product owner.
Use only the facts below. Where a fact says "unknown", say it is unknown.
Do not invent coverage, dates, or conditions. No markdown.

Facts:
` + facts.String()
}
