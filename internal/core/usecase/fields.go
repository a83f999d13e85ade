package usecase

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/antonkom/warranty-pilot/internal/core/domain"
)

// fieldRule is one pattern in the fixed, ordered rule set for a field.
// Declaration order is the tie-break when two rules score equally.
type fieldRule struct {
	field     string
	re        *regexp.Regexp
	group     int
	base      float64
	keyword   string // grants the proximity bonus when found near the match
	normalize func(string) (string, bool)
}

const (
	keywordBonus   = 0.15
	keywordWindow  = 30
	maxConfidence  = 0.99
)

// FieldExtractor turns raw text into per-field candidates with retained
// alternates. It never fails: absence of a match yields no candidate.
type FieldExtractor struct {
	maxAlternates int
	rules         []fieldRule
}

func NewFieldExtractor(maxAlternates int) *FieldExtractor {
	if maxAlternates <= 0 {
		maxAlternates = 3
	}
	return &FieldExtractor{
		maxAlternates: maxAlternates,
		rules:         buildRules(),
	}
}

func buildRules() []fieldRule {
	ident := func(v string) (string, bool) {
		v = strings.TrimSpace(v)
		return v, v != ""
	}
	upper := func(v string) (string, bool) {
		v = strings.ToUpper(strings.TrimSpace(v))
		return v, v != ""
	}
	return []fieldRule{
		{
			field: domain.FieldBrand,
			re:    regexp.MustCompile(`(?i)\bbrand\b[:\s]+([A-Za-z0-9][A-Za-z0-9\-]{1,39})`),
			group: 1, base: 0.70, normalize: ident,
		},
		{
			field: domain.FieldBrand,
			re:    regexp.MustCompile(`(?i)\bmanufacturer\b[:\s]+([A-Za-z0-9][A-Za-z0-9\-]{1,39})`),
			group: 1, base: 0.60, normalize: ident,
		},
		{
			field: domain.FieldBrand,
			re:    regexp.MustCompile(`(?i)\bbrand\b[:\s]+([A-Za-z0-9\-]+ [A-Za-z0-9\-]+)`),
			group: 1, base: 0.45, normalize: ident,
		},
		{
			field: domain.FieldModel,
			re:    regexp.MustCompile(`(?i)\bmodel(?:\s*(?:no|number|code))?\b\.?\s*[:#]?\s*([A-Za-z0-9][A-Za-z0-9\-/]{1,49})`),
			group: 1, base: 0.65, normalize: upper,
		},
		{
			field: domain.FieldSerial,
			re:    regexp.MustCompile(`(?i)\b(?:serial(?:\s*(?:no|number))?|s/n|sn)\b\s*[:#\-]?\s*([A-Za-z0-9\-]{6,})`),
			group: 1, base: 0.60, keyword: "serial", normalize: upper,
		},
		{
			// Bare alphanumeric run: weak signal, kept as an alternate.
			field: domain.FieldSerial,
			re:    regexp.MustCompile(`\b([A-Z0-9]{10,})\b`),
			group: 1, base: 0.30, normalize: upper,
		},
		{
			field: domain.FieldPurchaseDate,
			re:    regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`),
			group: 1, base: 0.60, keyword: "purchase", normalize: normalizeDate,
		},
		{
			field: domain.FieldPurchaseDate,
			re:    regexp.MustCompile(`\b(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})\b`),
			group: 1, base: 0.50, keyword: "purchase", normalize: normalizeDate,
		},
		{
			field: domain.FieldCoverageMonths,
			re:    regexp.MustCompile(`(?i)\b(\d{1,3})\s*(?:months?|mo)\b`),
			group: 1, base: 0.55, keyword: "warranty", normalize: ident,
		},
		{
			field: domain.FieldCoverageMonths,
			re:    regexp.MustCompile(`(?i)\b(\d{1,2})\s*(?:years?|yrs?)\b`),
			group: 1, base: 0.50, keyword: "warranty", normalize: yearsToMonths,
		},
		{
			field: domain.FieldInvoiceNo,
			re:    regexp.MustCompile(`(?i)\binvoice(?:\s*(?:no|number))?\b\.?\s*[:#]?\s*([A-Za-z0-9][A-Za-z0-9\-/]{2,29})`),
			group: 1, base: 0.60, normalize: upper,
		},
	}
}

// dateLayouts are tried in declared order; day-first forms win over
// month-first ambiguity, matching the invoice formats this system sees.
var dateLayouts = []string{
	"2006-01-02",
	"2-1-2006",
	"2/1/2006",
	"2-1-06",
	"2/1/06",
}

func parseFlexibleDate(raw string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func normalizeDate(raw string) (string, bool) {
	t, ok := parseFlexibleDate(strings.TrimSpace(raw))
	if !ok {
		return "", false
	}
	return t.Format("2006-01-02"), true
}

func yearsToMonths(raw string) (string, bool) {
	years, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || years <= 0 {
		return "", false
	}
	return strconv.Itoa(years * 12), true
}

type scoredValue struct {
	value      string
	confidence float64
	order      int
}

// Extract applies every rule to the text and selects, per field, the
// highest-confidence value as primary with up to maxAlternates next-best
// distinct values retained. The source tags where the text came from
// (regex over direct text, or ocr when the fallback path produced it).
func (e *FieldExtractor) Extract(text string, source domain.CandidateSource) map[string]domain.FieldCandidate {
	if strings.TrimSpace(text) == "" {
		return map[string]domain.FieldCandidate{}
	}

	byField := make(map[string][]scoredValue)
	for order, rule := range e.rules {
		for _, loc := range rule.re.FindAllStringSubmatchIndex(text, -1) {
			start, end := loc[2*rule.group], loc[2*rule.group+1]
			if start < 0 || end < 0 {
				continue
			}
			value, ok := rule.normalize(text[start:end])
			if !ok {
				continue
			}
			conf := rule.base
			if rule.keyword != "" && keywordNear(text, loc[0], loc[1], rule.keyword) {
				conf += keywordBonus
			}
			conf = math.Min(round2(conf), maxConfidence)
			byField[rule.field] = append(byField[rule.field], scoredValue{
				value:      value,
				confidence: conf,
				order:      order,
			})
		}
	}

	out := make(map[string]domain.FieldCandidate, len(byField))
	for field, values := range byField {
		out[field] = e.pick(field, values, source)
	}
	return out
}

func (e *FieldExtractor) pick(field string, values []scoredValue, source domain.CandidateSource) domain.FieldCandidate {
	// Keep the best score per distinct value; stable insertion order
	// preserves rule declaration order as the tie-break.
	best := make(map[string]scoredValue)
	var distinct []string
	for _, v := range values {
		prev, seen := best[v.value]
		if !seen {
			best[v.value] = v
			distinct = append(distinct, v.value)
			continue
		}
		if v.confidence > prev.confidence {
			best[v.value] = v
		}
	}

	// Selection sort by descending confidence, earlier rule wins ties.
	ranked := make([]scoredValue, 0, len(distinct))
	for _, value := range distinct {
		ranked = append(ranked, best[value])
	}
	for i := 0; i < len(ranked); i++ {
		top := i
		for j := i + 1; j < len(ranked); j++ {
			if ranked[j].confidence > ranked[top].confidence ||
				(ranked[j].confidence == ranked[top].confidence && ranked[j].order < ranked[top].order) {
				top = j
			}
		}
		ranked[i], ranked[top] = ranked[top], ranked[i]
	}

	primary := ranked[0]
	candidate := domain.FieldCandidate{
		Field:      field,
		Value:      primary.value,
		Confidence: primary.confidence,
		Source:     source,
	}
	for _, alt := range ranked[1:] {
		if len(candidate.Alternates) >= e.maxAlternates {
			break
		}
		candidate.Alternates = append(candidate.Alternates, domain.Alternate{
			Value:      alt.value,
			Confidence: alt.confidence,
		})
	}
	return candidate
}

func keywordNear(text string, start, end int, keyword string) bool {
	lo := start - keywordWindow
	if lo < 0 {
		lo = 0
	}
	hi := end + keywordWindow
	if hi > len(text) {
		hi = len(text)
	}
	return strings.Contains(strings.ToLower(text[lo:hi]), keyword)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
