// Package analysis runs price predictions and records them in the analysis store.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"secondhand-price/internal/model"
	"secondhand-price/internal/notify"
	"secondhand-price/internal/predict"
)

// Store is the part of the analysis store the service writes through
type Store interface {
	History() []model.HistoryEntry
	Settings() model.Settings
	Upsert(entry model.HistoryEntry) (previous model.HistoryEntry, replaced bool, err error)
}

// Notifier delivers price-drop notifications
type Notifier interface {
	NotifyPriceDrop(d notify.PriceDrop) error
}

// Service turns product descriptions into stored history entries
type Service struct {
	store     Store
	predictor predict.Predictor
	notifier  Notifier
	log       *logrus.Entry
	now       func() time.Time

	pending sync.WaitGroup
}

// NewService creates a service. notifier may be nil to disable notifications.
func NewService(store Store, predictor predict.Predictor, notifier Notifier, log *logrus.Entry) *Service {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Service{
		store:     store,
		predictor: predictor,
		notifier:  notifier,
		log:       log.WithField("component", "analysis"),
		now:       time.Now,
	}
}

// Analyze prices input with the current settings and records the result.
// The entry id is input.ID, or derived from name, category and condition.
func (s *Service) Analyze(ctx context.Context, input model.ProductInput) (model.HistoryEntry, error) {
	settings := s.store.Settings()
	if strings.TrimSpace(input.Category) == "" {
		input.Category = settings.DefaultCategory
	}

	result, err := s.predictor.Predict(ctx, input, settings)
	if err != nil {
		return model.HistoryEntry{}, err
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return model.HistoryEntry{}, fmt.Errorf("failed to encode analysis result: %w", err)
	}

	id := input.ID
	if id == "" {
		id = model.GenerateID(input.Name, input.Category, input.Condition)
	}

	entry := model.HistoryEntry{
		ID:              id,
		Name:            input.Name,
		Category:        input.Category,
		Condition:       input.Condition,
		SuggestedPrice:  result.SuggestedPrice,
		MarketPrice:     result.MarketPrice,
		AnalysisDate:    s.now().UTC().Format(time.RFC3339),
		ImageURL:        input.ImageURL,
		AnalysisResults: raw,
	}

	s.log.WithFields(logrus.Fields{
		"entry":      id,
		"category":   entry.Category,
		"suggested":  result.SuggestedPrice,
		"confidence": result.Confidence,
	}).Info("analysis completed")

	return s.Record(entry)
}

// Record upserts entry and returns it as stored. When it replaces an entry
// with a higher suggested price, a price-drop notification is sent if enabled.
func (s *Service) Record(entry model.HistoryEntry) (model.HistoryEntry, error) {
	previous, replaced, err := s.store.Upsert(entry)
	if err != nil {
		return model.HistoryEntry{}, err
	}

	if !replaced || entry.SuggestedPrice >= previous.SuggestedPrice {
		return entry, nil
	}
	if s.notifier == nil || !s.store.Settings().NotifyPriceDrops {
		return entry, nil
	}

	drop := notify.PriceDrop{
		EntryID:   entry.ID,
		Name:      entry.Name,
		Category:  entry.Category,
		Condition: entry.Condition,
		OldPrice:  previous.SuggestedPrice,
		NewPrice:  entry.SuggestedPrice,
	}

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.notifier.NotifyPriceDrop(drop); err != nil {
			s.log.WithError(err).WithField("entry", drop.EntryID).Warn("price drop notification incomplete")
		}
	}()
	return entry, nil
}

// Wait blocks until in-flight notifications have been sent
func (s *Service) Wait() {
	s.pending.Wait()
}
