package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"secondhand-price/internal/model"
	"secondhand-price/internal/predict"
)

// RepriceResult counts what one re-pricing pass did
type RepriceResult struct {
	Checked int `json:"checked"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// Reprice predicts entry again from the current comparables only; its
// original reference price is not kept. The entry is recorded again, with a
// fresh analysis date, only when the suggested or market price moved.
func (s *Service) Reprice(ctx context.Context, entry model.HistoryEntry) (model.HistoryEntry, bool, error) {
	input := model.ProductInput{
		ID:        entry.ID,
		Name:      entry.Name,
		Category:  entry.Category,
		Condition: entry.Condition,
		ImageURL:  entry.ImageURL,
	}

	result, err := s.predictor.Predict(ctx, input, s.store.Settings())
	if err != nil {
		return entry, false, err
	}
	if result.SuggestedPrice == entry.SuggestedPrice && result.MarketPrice == entry.MarketPrice {
		return entry, false, nil
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return entry, false, fmt.Errorf("failed to encode analysis result: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"entry": entry.ID,
		"from":  entry.SuggestedPrice,
		"to":    result.SuggestedPrice,
	}).Debug("entry repriced")

	entry.SuggestedPrice = result.SuggestedPrice
	entry.MarketPrice = result.MarketPrice
	entry.AnalysisDate = s.now().UTC().Format(time.RFC3339)
	entry.AnalysisResults = raw

	stored, err := s.Record(entry)
	if err != nil {
		return entry, false, err
	}
	return stored, true, nil
}

// RepriceAll reprices every entry in the history. Entries the predictor
// cannot price are skipped; any other failure ends the pass.
func (s *Service) RepriceAll(ctx context.Context) (RepriceResult, error) {
	var res RepriceResult
	for _, entry := range s.store.History() {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Checked++

		_, changed, err := s.Reprice(ctx, entry)
		switch {
		case errors.Is(err, predict.ErrInsufficientData), errors.Is(err, predict.ErrInvalidInput):
			res.Skipped++
		case err != nil:
			return res, fmt.Errorf("reprice %s: %w", entry.ID, err)
		case changed:
			res.Updated++
		}
	}
	return res, nil
}
