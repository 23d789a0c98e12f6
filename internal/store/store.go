package store

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"secondhand-price/internal/kv"
	"secondhand-price/internal/model"
)

// Keys under which the two collections are persisted
const (
	HistoryKey  = "analysis-history"
	SettingsKey = "analysis-settings"
)

var (
	// ErrNotInitialized is returned by mutations on a store that was not built with New
	ErrNotInitialized = errors.New("analysis store not initialized")

	// ErrInvalidEntry is returned when a history entry has no id
	ErrInvalidEntry = errors.New("history entry id is required")
)

// persister serializes writes of one collection and drops snapshots older
// than one already handed to the adapter
type persister struct {
	mu        sync.Mutex
	attempted uint64
}

// AnalysisStore is the in-memory source of truth for analysis history and
// user settings. Every mutation updates memory first and then writes the
// whole affected collection to the adapter. A failed write is logged and
// never undoes the in-memory change.
type AnalysisStore struct {
	mu          sync.RWMutex
	adapter     kv.Adapter
	log         *logrus.Entry
	initialized bool

	history  []model.HistoryEntry // newest insertion first
	settings model.Settings

	historySeq  uint64
	settingsSeq uint64

	historyOut  persister
	settingsOut persister
}

// New creates a store backed by adapter and loads both collections from it
func New(adapter kv.Adapter, log *logrus.Entry) *AnalysisStore {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	s := &AnalysisStore{
		adapter: adapter,
		log:     log.WithField("component", "store"),
	}
	s.Initialize()
	return s
}

// Initialize (re)reads both collections from the adapter. Missing or
// malformed data falls back to an empty history and default settings.
func (s *AnalysisStore) Initialize() ([]model.HistoryEntry, model.Settings) {
	history := s.loadHistory()
	settings := s.loadSettings()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = history
	s.settings = settings
	s.initialized = true

	s.log.WithFields(logrus.Fields{
		"entries": len(history),
	}).Debug("analysis store initialized")

	return cloneHistory(s.history), s.settings
}

func (s *AnalysisStore) loadHistory() []model.HistoryEntry {
	history := make([]model.HistoryEntry, 0)

	raw, err := s.adapter.Get(HistoryKey)
	if errors.Is(err, kv.ErrNotFound) {
		return history
	}
	if err != nil {
		s.log.WithError(err).Warn("failed to read history, starting empty")
		return history
	}

	var stored []model.HistoryEntry
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		s.log.WithError(err).Warn("malformed history data, starting empty")
		return history
	}

	// keep the first occurrence so ids stay unique even if the stored data is not
	seen := make(map[string]bool, len(stored))
	for _, e := range stored {
		if e.ID == "" || seen[e.ID] {
			s.log.WithField("id", e.ID).Warn("dropping invalid or duplicate history entry")
			continue
		}
		seen[e.ID] = true
		history = append(history, e)
	}
	return history
}

func (s *AnalysisStore) loadSettings() model.Settings {
	settings := model.DefaultSettings()

	raw, err := s.adapter.Get(SettingsKey)
	if errors.Is(err, kv.ErrNotFound) {
		return settings
	}
	if err != nil {
		s.log.WithError(err).Warn("failed to read settings, using defaults")
		return settings
	}

	// decoding over the defaults keeps fields the stored record lacks
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		s.log.WithError(err).Warn("malformed settings data, using defaults")
		return model.DefaultSettings()
	}
	return settings.Normalize()
}

// Initialized reports whether the store has loaded its collections
func (s *AnalysisStore) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// History returns a copy of the history, most recently inserted first
func (s *AnalysisStore) History() []model.HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneHistory(s.history)
}

// Settings returns the current settings record
func (s *AnalysisStore) Settings() model.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return model.DefaultSettings()
	}
	return s.settings
}

// Get returns the entry with the given id
func (s *AnalysisStore) Get(id string) (model.HistoryEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(id); i >= 0 {
		return s.history[i].Clone(), true
	}
	return model.HistoryEntry{}, false
}

// AddOrUpdate replaces the entry with the same id in place, or inserts
// entry at the front when the id is new
func (s *AnalysisStore) AddOrUpdate(entry model.HistoryEntry) error {
	_, _, err := s.Upsert(entry)
	return err
}

// Upsert is AddOrUpdate that also reports the entry it replaced, if any
func (s *AnalysisStore) Upsert(entry model.HistoryEntry) (previous model.HistoryEntry, replaced bool, err error) {
	if entry.ID == "" {
		return model.HistoryEntry{}, false, ErrInvalidEntry
	}
	entry = entry.Clone()

	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return model.HistoryEntry{}, false, ErrNotInitialized
	}

	if i := s.indexOf(entry.ID); i >= 0 {
		previous, replaced = s.history[i], true
		s.history[i] = entry
	} else {
		s.history = append(s.history, model.HistoryEntry{})
		copy(s.history[1:], s.history)
		s.history[0] = entry
	}
	seq, data, mErr := s.snapshotHistoryLocked()
	s.mu.Unlock()

	s.persist(&s.historyOut, HistoryKey, seq, data, mErr)
	return previous, replaced, nil
}

// Remove deletes the entry with the given id. Removing an unknown id is a no-op.
func (s *AnalysisStore) Remove(id string) error {
	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return ErrNotInitialized
	}

	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	s.history = append(s.history[:i], s.history[i+1:]...)
	seq, data, mErr := s.snapshotHistoryLocked()
	s.mu.Unlock()

	s.persist(&s.historyOut, HistoryKey, seq, data, mErr)
	return nil
}

// Clear empties the history
func (s *AnalysisStore) Clear() error {
	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return ErrNotInitialized
	}

	s.history = make([]model.HistoryEntry, 0)
	seq, data, mErr := s.snapshotHistoryLocked()
	s.mu.Unlock()

	s.persist(&s.historyOut, HistoryKey, seq, data, mErr)
	return nil
}

// UpdateSettings merges patch onto the current settings and returns the result
// An invalid patch is rejected as a whole and nothing changes.
func (s *AnalysisStore) UpdateSettings(patch model.SettingsPatch) (model.Settings, error) {
	if err := patch.Validate(); err != nil {
		return model.Settings{}, err
	}

	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return model.Settings{}, ErrNotInitialized
	}

	s.settings = s.settings.Merge(patch)
	merged := s.settings
	s.settingsSeq++
	seq := s.settingsSeq
	data, mErr := json.Marshal(merged)
	s.mu.Unlock()

	s.persist(&s.settingsOut, SettingsKey, seq, data, mErr)
	return merged, nil
}

// snapshotHistoryLocked serializes the history under a new sequence number.
// Must be called with s.mu held for writing.
func (s *AnalysisStore) snapshotHistoryLocked() (uint64, []byte, error) {
	s.historySeq++
	data, err := json.Marshal(s.history)
	return s.historySeq, data, err
}

// persist hands a snapshot to the adapter unless a newer one already went out
func (s *AnalysisStore) persist(p *persister, key string, seq uint64, data []byte, marshalErr error) {
	if marshalErr != nil {
		s.log.WithError(marshalErr).WithField("key", key).Error("failed to serialize collection")
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if seq <= p.attempted {
		return
	}
	p.attempted = seq

	if err := s.adapter.Set(key, string(data)); err != nil {
		s.log.WithError(err).WithField("key", key).Error("failed to persist collection")
	}
}

func (s *AnalysisStore) indexOf(id string) int {
	for i := range s.history {
		if s.history[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneHistory(history []model.HistoryEntry) []model.HistoryEntry {
	out := make([]model.HistoryEntry, len(history))
	for i, e := range history {
		out[i] = e.Clone()
	}
	return out
}
