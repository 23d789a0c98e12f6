package model

import (
	"encoding/json"
	"hash/fnv"
)

// HistoryEntry is one recorded price analysis of a second-hand item
type HistoryEntry struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Category       string `json:"category"`
	Condition      string `json:"condition"`
	SuggestedPrice int64  `json:"suggestedPrice"` // TWD
	MarketPrice    int64  `json:"marketPrice"`    // TWD
	AnalysisDate   string `json:"analysisDate"`   // RFC 3339
	ImageURL       string `json:"imageUrl,omitempty"`

	// Produced by the predictor; stored and returned without interpretation.
	AnalysisResults json.RawMessage `json:"analysisResults,omitempty"`
}

// Clone returns a copy that shares no memory with e
func (e HistoryEntry) Clone() HistoryEntry {
	if e.AnalysisResults != nil {
		raw := make(json.RawMessage, len(e.AnalysisResults))
		copy(raw, e.AnalysisResults)
		e.AnalysisResults = raw
	}
	return e
}

// ProductInput describes an item submitted for analysis
type ProductInput struct {
	ID             string `json:"id,omitempty"`
	Name           string `json:"name"`
	Category       string `json:"category"`
	Condition      string `json:"condition"`
	ReferencePrice int64  `json:"referencePrice"` // retail or asking price, TWD
	ImageURL       string `json:"imageUrl,omitempty"`
	Description    string `json:"description,omitempty"`
}

// PriceFactor explains one adjustment applied by the predictor
type PriceFactor struct {
	Name   string  `json:"name"`
	Impact float64 `json:"impact"` // multiplier, 1.0 = neutral
	Detail string  `json:"detail,omitempty"`
}

// SimilarItem is a comparable analysis taken from history
type SimilarItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Condition string `json:"condition"`
	Price     int64  `json:"price"`
}

// PriceDistribution summarizes the comparables' market prices
type PriceDistribution struct {
	Min    int64 `json:"min"`
	Median int64 `json:"median"`
	Max    int64 `json:"max"`
	Count  int   `json:"count"`
}

// AnalysisResult is the output of a price prediction
type AnalysisResult struct {
	SuggestedPrice int64             `json:"suggestedPrice"`
	MarketPrice    int64             `json:"marketPrice"`
	Confidence     int               `json:"confidence"` // 0-100
	BelowThreshold bool              `json:"belowThreshold"`
	Strategy       PriceStrategy     `json:"strategy"`
	PriceFactors   []PriceFactor     `json:"priceFactors"`
	SimilarItems   []SimilarItem     `json:"similarItems"`
	Distribution   PriceDistribution `json:"priceDistribution"`
}

// GenerateID derives a stable entry ID from the identifying fields of an item,
// so re-analysing the same item updates its history entry in place
func GenerateID(name, category, condition string) string {
	return "item:" + hashString(name+"|"+category+"|"+condition)
}

// idHashLen base36 digits hold any 64-bit value
const idHashLen = 13

func hashString(s string) string {
	h := fnv.New64a()
	h.Write([]byte(s))
	sum := h.Sum64()

	// base36 for a compact representation
	const charset = "0123456789abcdefghijklmnopqrstuvwxyz"
	var result [idHashLen]byte
	for i := range result {
		result[i] = charset[sum%36]
		sum /= 36
	}
	return string(result[:])
}
