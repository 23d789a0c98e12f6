package store

import (
	"secondhand-price/internal/model"
)

// StoreInterface is the contract every consumer of analysis state programs against:
// two read-only views plus the history and settings mutations
type StoreInterface interface {
	// Read-only views
	History() []model.HistoryEntry
	Settings() model.Settings
	Get(id string) (model.HistoryEntry, bool)

	// History operations
	AddOrUpdate(entry model.HistoryEntry) error
	Upsert(entry model.HistoryEntry) (previous model.HistoryEntry, replaced bool, err error)
	Remove(id string) error
	Clear() error

	// Settings operations
	UpdateSettings(patch model.SettingsPatch) (model.Settings, error)
}

// Ensure AnalysisStore implements the interface
var _ StoreInterface = (*AnalysisStore)(nil)
