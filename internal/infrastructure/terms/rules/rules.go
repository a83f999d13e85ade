package rules

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/antonkom/warranty-pilot/internal/core/domain"
)

//go:embed defaults.yaml
var embeddedRules []byte

type ruleEntry struct {
	Brand          string   `yaml:"brand"`
	ModelPrefix    string   `yaml:"model_prefix"`
	DurationMonths int      `yaml:"duration_months"`
	Terms          []string `yaml:"terms"`
	Exclusions     []string `yaml:"exclusions"`
	ClaimSteps     []string `yaml:"claim_steps"`
}

type ruleFile struct {
	Default ruleEntry   `yaml:"default"`
	Brands  []ruleEntry `yaml:"brands"`
}

// Catalog holds the generic coverage rules used when the external terms
// directory cannot answer. Rules are matched per brand (and optional
// model prefix) in declaration order; the default entry always matches.
type Catalog struct {
	file ruleFile
}

// Load reads rules from path, or the embedded defaults when path is
// empty.
func Load(path string) (*Catalog, error) {
	raw := embeddedRules
	if path != "" {
		var err error
		raw, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read terms rules: %w", err)
		}
	}

	var file ruleFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse terms rules: %w", err)
	}
	if file.Default.DurationMonths <= 0 {
		return nil, fmt.Errorf("terms rules: default entry needs a positive duration")
	}
	return &Catalog{file: file}, nil
}

func (c *Catalog) Defaults(brand, model string) *domain.TermsEntry {
	entry := c.file.Default
	for _, rule := range c.file.Brands {
		if !strings.EqualFold(rule.Brand, brand) {
			continue
		}
		if rule.ModelPrefix != "" && !strings.HasPrefix(strings.ToUpper(model), strings.ToUpper(rule.ModelPrefix)) {
			continue
		}
		entry = rule
		break
	}

	return &domain.TermsEntry{
		Brand:          brand,
		Model:          model,
		DurationMonths: entry.DurationMonths,
		Terms:          append([]string(nil), entry.Terms...),
		Exclusions:     append([]string(nil), entry.Exclusions...),
		ClaimSteps:     append([]string(nil), entry.ClaimSteps...),
	}
}
