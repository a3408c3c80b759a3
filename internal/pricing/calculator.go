package pricing

import "github.com/shopspring/decimal"

var perMillion = decimal.NewFromInt(1_000_000)

type Calculator struct {
	table PricingTable
}

func NewCalculator(table PricingTable) *Calculator {
	return &Calculator{table: table}
}

// Price returns the per-million-token prices for model, if known.
func (c *Calculator) Price(model string) (ModelPricing, bool) {
	return c.table.Lookup(model)
}

// SetPrice registers or replaces the price of a single model.
func (c *Calculator) SetPrice(model string, p ModelPricing) {
	c.table[model] = p
}

// Cost returns the USD cost of a call. Unknown models cost zero.
func (c *Calculator) Cost(model string, inputTokens, outputTokens int) decimal.Decimal {
	p, ok := c.table.Lookup(model)
	if !ok {
		return decimal.Zero
	}

	inputCost := decimal.NewFromInt(int64(inputTokens)).Mul(p.Input).Div(perMillion)
	outputCost := decimal.NewFromInt(int64(outputTokens)).Mul(p.Output).Div(perMillion)

	return inputCost.Add(outputCost)
}
