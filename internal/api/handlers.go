package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"secondhand-price/internal/analysis"
	"secondhand-price/internal/model"
	"secondhand-price/internal/predict"
	"secondhand-price/internal/stats"
	"secondhand-price/internal/store"

	"github.com/gin-gonic/gin"
)

const (
	defaultRecent = 5
	maxRecent     = 100
)

// StoreInterface defines the store interface needed by handlers
type StoreInterface interface {
	History() []model.HistoryEntry
	Settings() model.Settings
	Get(id string) (model.HistoryEntry, bool)
	Remove(id string) error
	Clear() error
	UpdateSettings(patch model.SettingsPatch) (model.Settings, error)
}

// Analyzer runs predictions and records entries with price-drop detection
type Analyzer interface {
	Analyze(ctx context.Context, input model.ProductInput) (model.HistoryEntry, error)
	Record(entry model.HistoryEntry) (model.HistoryEntry, error)
}

// SchedulerInterface defines the re-pricing scheduler interface for handlers
type SchedulerInterface interface {
	RepriceNow(ctx context.Context) (analysis.RepriceResult, error)
	Status() analysis.RepriceStatus
}

// Handlers contains all API handlers
type Handlers struct {
	store     StoreInterface
	analyzer  Analyzer
	scheduler SchedulerInterface
	backend   string
}

// NewHandlers creates a new handlers instance. scheduler may be nil.
// backend names the storage backend reported by the health check.
func NewHandlers(store StoreInterface, analyzer Analyzer, scheduler SchedulerInterface, backend string) *Handlers {
	return &Handlers{
		store:     store,
		analyzer:  analyzer,
		scheduler: scheduler,
		backend:   backend,
	}
}

// HealthCheck returns the health status
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"storage":   h.backend,
		"entries":   len(h.store.History()),
		"timestamp": time.Now().Unix(),
	})
}

// GetHistory returns the analysis history, newest insertion first
func (h *Handlers) GetHistory(c *gin.Context) {
	history := h.store.History()

	if category := c.Query("category"); category != "" {
		filtered := make([]model.HistoryEntry, 0, len(history))
		for _, e := range history {
			if e.Category == category {
				filtered = append(filtered, e)
			}
		}
		history = filtered
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l >= 0 && l < len(history) {
			history = history[:l]
		}
	}

	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.JSON(http.StatusOK, gin.H{
		"count":   len(history),
		"history": history,
	})
}

// GetEntry returns a single history entry by ID
func (h *Handlers) GetEntry(c *gin.Context) {
	id := c.Param("id")

	entry, ok := h.store.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "history entry not found"})
		return
	}

	c.JSON(http.StatusOK, entry)
}

// PutEntry adds or replaces the entry named by the path; a body id is ignored
func (h *Handlers) PutEntry(c *gin.Context) {
	var entry model.HistoryEntry
	if err := c.ShouldBindJSON(&entry); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entry.ID = c.Param("id")

	h.record(c, entry)
}

// CreateEntry adds or replaces the entry carrying its own id
func (h *Handlers) CreateEntry(c *gin.Context) {
	var entry model.HistoryEntry
	if err := c.ShouldBindJSON(&entry); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.record(c, entry)
}

func (h *Handlers) record(c *gin.Context, entry model.HistoryEntry) {
	stored, err := h.analyzer.Record(entry)
	if err != nil {
		c.JSON(storeErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stored)
}

// DeleteEntry removes a history entry. Unknown ids succeed.
func (h *Handlers) DeleteEntry(c *gin.Context) {
	if err := h.store.Remove(c.Param("id")); err != nil {
		c.JSON(storeErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "history entry deleted"})
}

// ClearHistory removes every history entry
func (h *Handlers) ClearHistory(c *gin.Context) {
	if err := h.store.Clear(); err != nil {
		c.JSON(storeErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "history cleared"})
}

// GetSettings returns the complete settings record
func (h *Handlers) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Settings())
}

// UpdateSettings merges a partial settings record and returns the result
func (h *Handlers) UpdateSettings(c *gin.Context) {
	var patch model.SettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settings, err := h.store.UpdateSettings(patch)
	if err != nil {
		c.JSON(storeErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, settings)
}

// GetStats returns aggregates derived from the history
func (h *Handlers) GetStats(c *gin.Context) {
	recent, err := strconv.Atoi(c.DefaultQuery("recent", strconv.Itoa(defaultRecent)))
	if err != nil || recent < 0 {
		recent = defaultRecent
	}
	if recent > maxRecent {
		recent = maxRecent
	}

	c.JSON(http.StatusOK, stats.Compute(h.store.History(), recent))
}

// Analyze prices a product and records the result
func (h *Handlers) Analyze(c *gin.Context) {
	var input model.ProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := h.analyzer.Analyze(c.Request.Context(), input)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, entry)
	case errors.Is(err, predict.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, predict.ErrInsufficientData):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(storeErrorStatus(err), gin.H{"error": err.Error()})
	}
}

// TriggerReprice starts a re-pricing pass in the background
func (h *Handlers) TriggerReprice(c *gin.Context) {
	if h.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler not available"})
		return
	}

	go func() {
		_, _ = h.scheduler.RepriceNow(context.Background())
	}()
	c.JSON(http.StatusAccepted, gin.H{"message": "re-pricing triggered"})
}

// GetRepriceStatus returns the re-pricing scheduler status
func (h *Handlers) GetRepriceStatus(c *gin.Context) {
	if h.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler not available"})
		return
	}

	c.JSON(http.StatusOK, h.scheduler.Status())
}

func storeErrorStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrInvalidEntry), errors.Is(err, model.ErrInvalidSettings):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotInitialized):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
