// Package predict estimates second-hand prices from previously recorded analyses.
package predict

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"secondhand-price/internal/model"
	"secondhand-price/internal/stats"
)

var (
	// ErrInvalidInput is returned when the product lacks a name or condition
	ErrInvalidInput = errors.New("product name and condition are required")

	// ErrInsufficientData is returned when there are no comparables and no reference price
	ErrInsufficientData = errors.New("no comparable analyses and no reference price")
)

const (
	minSameCondition = 3 // comparables needed before restricting to the same condition
	maxSimilarItems  = 5
)

// Predictor turns a product description into a price analysis
type Predictor interface {
	Predict(ctx context.Context, input model.ProductInput, settings model.Settings) (model.AnalysisResult, error)
}

// HistorySource provides the analyses used as comparables
type HistorySource interface {
	History() []model.HistoryEntry
}

// conditionFactors discount a reference (new) price by item condition
var conditionFactors = map[string]float64{
	"new":      1.00,
	"like_new": 0.90,
	"good":     0.80,
	"fair":     0.65,
	"poor":     0.50,
}

// strategyFactors position the suggested price against the market price
var strategyFactors = map[model.PriceStrategy]float64{
	model.StrategyFast:        0.90,
	model.StrategyRecommended: 1.00,
	model.StrategyProfit:      1.10,
}

// ConditionFactor returns the multiplier for a condition; unknown conditions count as "good"
func ConditionFactor(condition string) float64 {
	if f, ok := conditionFactors[normalizeCondition(condition)]; ok {
		return f
	}
	return conditionFactors["good"]
}

func normalizeCondition(c string) string {
	c = strings.ToLower(strings.TrimSpace(c))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(c)
}

// ComparablesPredictor prices an item from the market prices of earlier
// analyses in the same category, falling back to the condition-adjusted
// reference price when there are none. It is deterministic.
type ComparablesPredictor struct {
	source HistorySource
}

// NewComparablesPredictor creates a predictor reading comparables from source
func NewComparablesPredictor(source HistorySource) *ComparablesPredictor {
	return &ComparablesPredictor{source: source}
}

// Predict implements Predictor
func (p *ComparablesPredictor) Predict(ctx context.Context, input model.ProductInput, settings model.Settings) (model.AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return model.AnalysisResult{}, err
	}
	if strings.TrimSpace(input.Name) == "" || strings.TrimSpace(input.Condition) == "" {
		return model.AnalysisResult{}, ErrInvalidInput
	}
	if input.ReferencePrice < 0 {
		return model.AnalysisResult{}, fmt.Errorf("%w: negative reference price", ErrInvalidInput)
	}

	category := input.Category
	if category == "" {
		category = settings.DefaultCategory
	}
	strategy := settings.PreferredPriceStrategy
	if !strategy.Valid() {
		strategy = model.StrategyRecommended
	}

	comparables, sameCondition := p.comparables(input, category)

	result := model.AnalysisResult{
		Strategy:     strategy,
		PriceFactors: make([]model.PriceFactor, 0),
		SimilarItems: make([]model.SimilarItem, 0),
	}

	switch {
	case len(comparables) > 0:
		prices := make([]int64, len(comparables))
		for i, c := range comparables {
			prices[i] = c.MarketPrice
		}
		result.MarketPrice = stats.Median(prices)
		result.Distribution = distribution(prices)
		result.Confidence = confidence(len(comparables), sameCondition)

		detail := fmt.Sprintf("median of %d analyses in %q", len(comparables), category)
		if sameCondition {
			detail += " with the same condition"
		}
		result.PriceFactors = append(result.PriceFactors, model.PriceFactor{Name: "comparables", Impact: 1, Detail: detail})

		for i, c := range comparables {
			if i >= maxSimilarItems {
				break
			}
			result.SimilarItems = append(result.SimilarItems, model.SimilarItem{
				ID: c.ID, Name: c.Name, Condition: c.Condition, Price: c.MarketPrice,
			})
		}

	case input.ReferencePrice > 0:
		factor := ConditionFactor(input.Condition)
		result.MarketPrice = scale(input.ReferencePrice, factor)
		result.Distribution = model.PriceDistribution{
			Min: result.MarketPrice, Median: result.MarketPrice, Max: result.MarketPrice, Count: 0,
		}
		result.Confidence = confidence(0, false)
		result.PriceFactors = append(result.PriceFactors, model.PriceFactor{
			Name: "condition", Impact: factor, Detail: "reference price adjusted for condition " + normalizeCondition(input.Condition),
		})

	default:
		return model.AnalysisResult{}, ErrInsufficientData
	}

	sf := strategyFactors[strategy]
	result.SuggestedPrice = scale(result.MarketPrice, sf)
	result.PriceFactors = append(result.PriceFactors, model.PriceFactor{
		Name: "strategy", Impact: sf, Detail: string(strategy),
	})
	result.BelowThreshold = result.Confidence < settings.ConfidenceThreshold

	return result, nil
}

// comparables returns history entries in the same category, restricted to the
// same condition when enough of those exist, excluding the item itself
func (p *ComparablesPredictor) comparables(input model.ProductInput, category string) ([]model.HistoryEntry, bool) {
	if p.source == nil || category == "" {
		return nil, false
	}

	self := input.ID
	if self == "" {
		self = model.GenerateID(input.Name, category, input.Condition)
	}
	cond := normalizeCondition(input.Condition)

	var inCategory, sameCondition []model.HistoryEntry
	for _, e := range p.source.History() {
		if e.ID == self || e.Category != category || e.MarketPrice <= 0 {
			continue
		}
		inCategory = append(inCategory, e)
		if normalizeCondition(e.Condition) == cond {
			sameCondition = append(sameCondition, e)
		}
	}

	if len(sameCondition) >= minSameCondition {
		return sameCondition, true
	}
	return inCategory, false
}

// confidence grows with the number of comparables
func confidence(n int, sameCondition bool) int {
	if n == 0 {
		return 30
	}
	c := 50 + 10*min(n, 4)
	if sameCondition {
		c += 5
	}
	return min(c, 95)
}

func distribution(prices []int64) model.PriceDistribution {
	sorted := make([]int64, len(prices))
	copy(sorted, prices)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	return model.PriceDistribution{
		Min:    sorted[0],
		Median: stats.Median(sorted),
		Max:    sorted[len(sorted)-1],
		Count:  len(sorted),
	}
}

// scale multiplies a TWD amount and rounds to a whole dollar
func scale(amount int64, factor float64) int64 {
	return decimal.NewFromInt(amount).Mul(decimal.NewFromFloat(factor)).Round(0).IntPart()
}
