package pricing

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"regexp"

	"github.com/shopspring/decimal"
)

//go:embed pricing.json
var defaultPricingJSON []byte

// ModelPricing holds USD prices per one million tokens.
type ModelPricing struct {
	Input  decimal.Decimal `json:"input"`
	Output decimal.Decimal `json:"output"`
}

type PricingTable map[string]ModelPricing

func LoadDefault() (PricingTable, error) {
	var table PricingTable
	if err := json.Unmarshal(defaultPricingJSON, &table); err != nil {
		return nil, err
	}
	return table, nil
}

// LoadFile reads a pricing table in the same JSON shape as the embedded default.
func LoadFile(path string) (PricingTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pricing file: %w", err)
	}
	var table PricingTable
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse pricing file: %w", err)
	}
	return table, nil
}

// Load returns the embedded table, overlaid with overridePath when it is set.
func Load(overridePath string) (PricingTable, error) {
	table, err := LoadDefault()
	if err != nil {
		return nil, err
	}
	if overridePath == "" {
		return table, nil
	}
	override, err := LoadFile(overridePath)
	if err != nil {
		return nil, err
	}
	table.Merge(override)
	return table, nil
}

// Merge adds entries from other into pt. Existing keys are overwritten.
func (pt PricingTable) Merge(other PricingTable) {
	for k, v := range other {
		pt[k] = v
	}
}

// datedSuffix matches release-date suffixes such as "-2024-08-06" or "-20240806".
var datedSuffix = regexp.MustCompile(`-(\d{4}-\d{2}-\d{2}|\d{8})$`)

// Lookup finds pricing for a model by exact id. A dated snapshot
// ("gpt-4o-2024-08-06") falls back to its base id; any other unknown id has
// no price, so "chat-model-large-v2" is not billed as "chat-model-large".
func (pt PricingTable) Lookup(model string) (ModelPricing, bool) {
	if model == "" {
		return ModelPricing{}, false
	}
	if p, ok := pt[model]; ok {
		return p, true
	}
	if base := datedSuffix.ReplaceAllString(model, ""); base != model {
		p, ok := pt[base]
		return p, ok
	}
	return ModelPricing{}, false
}
