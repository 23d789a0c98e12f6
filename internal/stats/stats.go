// Package stats derives dashboard aggregates from analysis history.
// Every function here is pure: the result depends only on its arguments.
package stats

import (
	"sort"

	"github.com/shopspring/decimal"

	"secondhand-price/internal/model"
)

// CategoryStats aggregates the analyses of one category
type CategoryStats struct {
	Category          string `json:"category"`
	Count             int    `json:"count"`
	AvgSuggestedPrice int64  `json:"avgSuggestedPrice"`
	AvgMarketPrice    int64  `json:"avgMarketPrice"`
}

// Summary is the dashboard view of the history
type Summary struct {
	TotalAnalyses     int                  `json:"totalAnalyses"`
	AvgSuggestedPrice int64                `json:"avgSuggestedPrice"`
	AvgMarketPrice    int64                `json:"avgMarketPrice"`
	AvgPremium        int64                `json:"avgPremium"` // suggested minus market
	TotalMarketValue  int64                `json:"totalMarketValue"`
	Categories        []CategoryStats      `json:"categories"`
	Recent            []model.HistoryEntry `json:"recent"`
}

// Compute builds the summary of history. recent limits how many of the
// newest entries are included; history order is preserved.
func Compute(history []model.HistoryEntry, recent int) Summary {
	summary := Summary{
		TotalAnalyses: len(history),
		Categories:    make([]CategoryStats, 0),
		Recent:        make([]model.HistoryEntry, 0),
	}
	if len(history) == 0 {
		return summary
	}

	var suggested, market []int64
	byCategory := make(map[string]*categoryAcc)
	var order []string

	for _, e := range history {
		suggested = append(suggested, e.SuggestedPrice)
		market = append(market, e.MarketPrice)
		summary.TotalMarketValue += e.MarketPrice

		acc, ok := byCategory[e.Category]
		if !ok {
			acc = &categoryAcc{}
			byCategory[e.Category] = acc
			order = append(order, e.Category)
		}
		acc.suggested = append(acc.suggested, e.SuggestedPrice)
		acc.market = append(acc.market, e.MarketPrice)
	}

	summary.AvgSuggestedPrice = Average(suggested)
	summary.AvgMarketPrice = Average(market)
	summary.AvgPremium = averageDiff(suggested, market)

	for _, name := range order {
		acc := byCategory[name]
		summary.Categories = append(summary.Categories, CategoryStats{
			Category:          name,
			Count:             len(acc.suggested),
			AvgSuggestedPrice: Average(acc.suggested),
			AvgMarketPrice:    Average(acc.market),
		})
	}
	// most analysed first; ties keep first-seen order
	sort.SliceStable(summary.Categories, func(i, j int) bool {
		return summary.Categories[i].Count > summary.Categories[j].Count
	})

	if recent > len(history) {
		recent = len(history)
	}
	for i := 0; i < recent; i++ {
		summary.Recent = append(summary.Recent, history[i].Clone())
	}

	return summary
}

type categoryAcc struct {
	suggested []int64
	market    []int64
}

// Average returns the mean of values rounded half away from zero to a whole TWD.
// An empty slice averages to 0.
func Average(values []int64) int64 {
	if len(values) == 0 {
		return 0
	}
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(decimal.NewFromInt(v))
	}
	return sum.Div(decimal.NewFromInt(int64(len(values)))).Round(0).IntPart()
}

// Median returns the middle value, averaging the two middle values for an
// even count. values is not modified.
func Median(values []int64) int64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]int64, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return Average([]int64{sorted[mid-1], sorted[mid]})
}

func averageDiff(a, b []int64) int64 {
	diffs := make([]int64, len(a))
	for i := range a {
		diffs[i] = a[i] - b[i]
	}
	return Average(diffs)
}
