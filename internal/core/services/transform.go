package services

import (
	"math"
	"strconv"

	"github.com/storekit-labs/storekit-core/internal/core/domain"
)

// TransformPipeline adapts source items to one target store: currency
// conversion on price fields and locale-rule substitution on text fields.
// Transformations never mutate the source item.
type TransformPipeline struct {
	cfg    domain.SyncConfig
	source *domain.Store
	target *domain.Store
}

// NewTransformPipeline builds the per-target pipeline.
func NewTransformPipeline(cfg domain.SyncConfig, source, target *domain.Store) *TransformPipeline {
	return &TransformPipeline{cfg: cfg, source: source, target: target}
}

// Apply returns a copy of the item shaped for the target store.
func (p *TransformPipeline) Apply(item *domain.Item) *domain.Item {
	out := item.Clone()

	if rate, ok := p.conversionRate(); ok {
		out.RegularPrice = ConvertPrice(out.RegularPrice, rate)
		out.SalePrice = ConvertPrice(out.SalePrice, rate)
	}

	if rules, ok := p.cfg.TranslationRules[p.target.Locale]; ok {
		if translated, ok := rules[out.Name]; ok {
			out.Name = translated
		}
		if translated, ok := rules[out.Description]; ok {
			out.Description = translated
		}
	}

	return out
}

// conversionRate resolves the source-to-target rate. No rate is needed
// when both stores trade in the same currency; a missing rate for a
// differing currency means prices pass through unchanged.
func (p *TransformPipeline) conversionRate() (float64, bool) {
	if p.source.Currency == p.target.Currency {
		return 0, false
	}
	rate, ok := p.cfg.CurrencyConversion[p.target.Currency]
	return rate, ok
}

// ConvertPrice scales a decimal price string by rate, rounding to two
// decimals. Unparseable or empty prices pass through unchanged.
func ConvertPrice(price string, rate float64) string {
	if price == "" {
		return price
	}
	v, err := strconv.ParseFloat(price, 64)
	if err != nil {
		return price
	}
	converted := math.Round(v*rate*100) / 100
	return strconv.FormatFloat(converted, 'f', 2, 64)
}
