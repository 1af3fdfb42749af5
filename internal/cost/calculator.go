// Package cost estimates model spend from token usage.
package cost

// ModelRate is the price of one concrete model in USD per million tokens,
// plus any flat per-request fee.
type ModelRate struct {
	Input      float64 `yaml:"input" mapstructure:"input"`
	Output     float64 `yaml:"output" mapstructure:"output"`
	PerRequest float64 `yaml:"per_request" mapstructure:"per_request"`
}

// Rates maps concrete model ids to their prices.
type Rates map[string]ModelRate

// Calculator computes costs for model usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Known reports whether model has a rate.
func (c *Calculator) Known(model string) bool {
	_, ok := c.rates[model]
	return ok
}

// Tokens returns the cost of one call to model. Unknown models cost 0.
func (c *Calculator) Tokens(model string, input, output int64) float64 {
	rate, ok := c.rates[model]
	if !ok {
		return 0
	}
	return (float64(input)/1e6)*rate.Input + (float64(output)/1e6)*rate.Output + rate.PerRequest
}

// DefaultRates returns list prices for the models in the built-in registry.
func DefaultRates() Rates {
	return Rates{
		"gemini-2.5-flash":          {Input: 0.30, Output: 2.50},
		"gemini-1.5-flash":          {Input: 0.075, Output: 0.30},
		"mistral-small-2503":        {Input: 0.10, Output: 0.30},
		"gpt-4o-mini":               {Input: 0.15, Output: 0.60},
		"claude-haiku-4-5-20251001": {Input: 1.00, Output: 5.00},
		"sonar":                     {Input: 1.00, Output: 1.00, PerRequest: 0.005},
	}
}
