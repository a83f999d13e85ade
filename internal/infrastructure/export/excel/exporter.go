package excel

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/antonkom/warranty-pilot/internal/core/domain"
)

// Exporter renders a canonical warranty record as an XLSX workbook with a
// facts sheet and a per-field provenance sheet.
type Exporter struct{}

func NewExporter() *Exporter {
	return &Exporter{}
}

const (
	factsSheet  = "Warranty"
	fieldsSheet = "Fields"
)

func (e *Exporter) Export(record *domain.WarrantyRecord, summary *domain.WarrantySummary) ([]byte, error) {
	if record == nil {
		return nil, fmt.Errorf("export: nil record")
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", factsSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(fieldsSheet); err != nil {
		return nil, fmt.Errorf("add fields sheet: %w", err)
	}

	if err := writeFacts(f, record, summary); err != nil {
		return nil, err
	}
	if err := writeFields(f, record); err != nil {
		return nil, err
	}

	_ = f.SetColWidth(factsSheet, "A", "A", 20)
	_ = f.SetColWidth(factsSheet, "B", "B", 64)
	_ = f.SetColWidth(fieldsSheet, "A", "A", 18)
	_ = f.SetColWidth(fieldsSheet, "B", "B", 28)
	_ = f.SetColWidth(fieldsSheet, "C", "E", 14)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeFacts(f *excelize.File, record *domain.WarrantyRecord, summary *domain.WarrantySummary) error {
	rows := [][2]string{
		{"Warranty ID", record.ID},
		{"Version", fmt.Sprintf("%d", record.Version)},
		{"Brand", record.Brand},
		{"Model", record.Model},
		{"Serial", record.Serial},
		{"Invoice no.", record.InvoiceNo},
		{"Purchase date", dateOrBlank(record.PurchaseDate)},
		{"Coverage months", monthsOrBlank(record.CoverageMonths)},
		{"Expiry date", dateOrBlank(record.ExpiryDate)},
		{"Terms", strings.Join(record.Terms, "; ")},
		{"Exclusions", strings.Join(record.Exclusions, "; ")},
		{"Claim steps", strings.Join(record.ClaimSteps, "; ")},
	}
	if summary != nil {
		rows = append(rows, [2]string{"Summary", summary.Text})
	}

	for i, row := range rows {
		labelCell, _ := excelize.CoordinatesToCellName(1, i+1)
		valueCell, _ := excelize.CoordinatesToCellName(2, i+1)
		if err := f.SetCellValue(factsSheet, labelCell, row[0]); err != nil {
			return fmt.Errorf("write facts row: %w", err)
		}
		if err := f.SetCellValue(factsSheet, valueCell, row[1]); err != nil {
			return fmt.Errorf("write facts row: %w", err)
		}
	}
	return nil
}

func writeFields(f *excelize.File, record *domain.WarrantyRecord) error {
	headers := []string{"Field", "Value", "Confidence", "Source", "Alternates"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(fieldsSheet, cell, h); err != nil {
			return fmt.Errorf("write field header: %w", err)
		}
	}

	names := make([]string, 0, len(record.Chosen))
	for name := range record.Chosen {
		names = append(names, name)
	}
	sort.Strings(names)

	for i, name := range names {
		chosen := record.Chosen[name]
		alternates := make([]string, 0, len(chosen.Alternates))
		for _, alt := range chosen.Alternates {
			alternates = append(alternates, fmt.Sprintf("%s (%.2f)", alt.Value, alt.Confidence))
		}

		values := []any{name, chosen.Value, chosen.Confidence, string(chosen.Source), strings.Join(alternates, "; ")}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			if err := f.SetCellValue(fieldsSheet, cell, v); err != nil {
				return fmt.Errorf("write field row: %w", err)
			}
		}
	}
	return nil
}

func dateOrBlank(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func monthsOrBlank(months int) string {
	if months <= 0 {
		return ""
	}
	return fmt.Sprintf("%d", months)
}
