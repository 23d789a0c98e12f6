package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secondhand-price/internal/kv"
	"secondhand-price/internal/model"
	"secondhand-price/internal/notify"
	"secondhand-price/internal/predict"
	"secondhand-price/internal/store"
)

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type fakeNotifier struct {
	mu    sync.Mutex
	drops []notify.PriceDrop
	err   error
}

func (f *fakeNotifier) NotifyPriceDrop(d notify.PriceDrop) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drops = append(f.drops, d)
	return f.err
}

func (f *fakeNotifier) all() []notify.PriceDrop {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notify.PriceDrop(nil), f.drops...)
}

type fixedPredictor struct {
	result model.AnalysisResult
	err    error
}

func (p *fixedPredictor) Predict(ctx context.Context, input model.ProductInput, settings model.Settings) (model.AnalysisResult, error) {
	return p.result, p.err
}

func newFixture(t *testing.T) (*Service, *store.AnalysisStore, *fakeNotifier) {
	t.Helper()
	st := store.New(kv.NewMemory(), quietLog())
	n := &fakeNotifier{}
	svc := NewService(st, predict.NewComparablesPredictor(st), n, quietLog())
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 8, 30, 0, 0, time.FixedZone("CST", 8*3600)) }
	return svc, st, n
}

func record(t *testing.T, svc *Service, entry model.HistoryEntry) {
	t.Helper()
	_, err := svc.Record(entry)
	require.NoError(t, err)
}

func TestAnalyzeRecordsEntry(t *testing.T) {
	svc, st, _ := newFixture(t)

	entry, err := svc.Analyze(context.Background(), model.ProductInput{
		Name: "iPhone 13", Category: "手機", Condition: "like_new", ReferencePrice: 20000, ImageURL: "https://img/1.jpg",
	})
	require.NoError(t, err)

	assert.Equal(t, model.GenerateID("iPhone 13", "手機", "like_new"), entry.ID)
	assert.Equal(t, int64(18000), entry.SuggestedPrice)
	assert.Equal(t, int64(18000), entry.MarketPrice)
	assert.Equal(t, "2026-03-01T00:30:00Z", entry.AnalysisDate)
	assert.Equal(t, "https://img/1.jpg", entry.ImageURL)

	var result model.AnalysisResult
	require.NoError(t, json.Unmarshal(entry.AnalysisResults, &result))
	assert.Equal(t, 30, result.Confidence)

	stored, ok := st.Get(entry.ID)
	require.True(t, ok)
	assert.Equal(t, entry, stored)
}

func TestAnalyzeSameItemUpdatesInPlace(t *testing.T) {
	svc, st, _ := newFixture(t)
	ctx := context.Background()

	first, err := svc.Analyze(ctx, model.ProductInput{Name: "Switch", Category: "遊戲機", Condition: "good", ReferencePrice: 9000})
	require.NoError(t, err)
	_, err = svc.Analyze(ctx, model.ProductInput{Name: "PS5", Category: "遊戲機", Condition: "good", ReferencePrice: 15000})
	require.NoError(t, err)
	_, err = svc.Analyze(ctx, model.ProductInput{Name: "Switch", Category: "遊戲機", Condition: "good", ReferencePrice: 8000})
	require.NoError(t, err)

	history := st.History()
	require.Len(t, history, 2)
	assert.Equal(t, first.ID, history[1].ID, "re-analysis keeps its position")
}

func TestAnalyzeUsesCallerID(t *testing.T) {
	svc, _, _ := newFixture(t)

	entry, err := svc.Analyze(context.Background(), model.ProductInput{
		ID: "custom-1", Name: "Kindle", Category: "電子書", Condition: "good", ReferencePrice: 3000,
	})
	require.NoError(t, err)
	assert.Equal(t, "custom-1", entry.ID)
}

func TestAnalyzeFillsDefaultCategory(t *testing.T) {
	svc, st, _ := newFixture(t)
	cat := "相機"
	_, err := st.UpdateSettings(model.SettingsPatch{DefaultCategory: &cat})
	require.NoError(t, err)

	entry, err := svc.Analyze(context.Background(), model.ProductInput{Name: "GR III", Condition: "good", ReferencePrice: 30000})
	require.NoError(t, err)
	assert.Equal(t, "相機", entry.Category)
	assert.Equal(t, model.GenerateID("GR III", "相機", "good"), entry.ID)
}

func TestAnalyzePredictorError(t *testing.T) {
	st := store.New(kv.NewMemory(), quietLog())
	boom := errors.New("model offline")
	svc := NewService(st, &fixedPredictor{err: boom}, nil, quietLog())

	_, err := svc.Analyze(context.Background(), model.ProductInput{Name: "x", Condition: "good"})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, st.History())
}

func TestRecordNotifiesOnPriceDrop(t *testing.T) {
	svc, _, n := newFixture(t)

	entry := model.HistoryEntry{ID: "a", Name: "MacBook Air", Category: "筆電", SuggestedPrice: 25000}
	record(t, svc, entry)

	entry.SuggestedPrice = 26000
	record(t, svc, entry)

	entry.SuggestedPrice = 22000
	record(t, svc, entry)
	svc.Wait()

	drops := n.all()
	require.Len(t, drops, 1)
	assert.Equal(t, notify.PriceDrop{
		EntryID: "a", Name: "MacBook Air", Category: "筆電", OldPrice: 26000, NewPrice: 22000,
	}, drops[0])
}

func TestRecordRespectsNotifySetting(t *testing.T) {
	svc, st, n := newFixture(t)
	off := false
	_, err := st.UpdateSettings(model.SettingsPatch{NotifyPriceDrops: &off})
	require.NoError(t, err)

	record(t, svc, model.HistoryEntry{ID: "a", SuggestedPrice: 100})
	record(t, svc, model.HistoryEntry{ID: "a", SuggestedPrice: 50})
	svc.Wait()

	assert.Empty(t, n.all())
}

func TestRecordNotifierFailureDoesNotFail(t *testing.T) {
	svc, st, n := newFixture(t)
	n.err = errors.New("bark down")

	record(t, svc, model.HistoryEntry{ID: "a", SuggestedPrice: 100})
	record(t, svc, model.HistoryEntry{ID: "a", SuggestedPrice: 50})
	svc.Wait()

	assert.Len(t, n.all(), 1)
	got, ok := st.Get("a")
	require.True(t, ok)
	assert.Equal(t, int64(50), got.SuggestedPrice)
}

func TestRecordRejectsEmptyID(t *testing.T) {
	svc, _, _ := newFixture(t)
	_, err := svc.Record(model.HistoryEntry{})
	assert.ErrorIs(t, err, store.ErrInvalidEntry)
}

func TestRecordReturnsStoredEntry(t *testing.T) {
	svc, st, _ := newFixture(t)

	got, err := svc.Record(model.HistoryEntry{ID: "a", Name: "Switch", SuggestedPrice: 6000})
	require.NoError(t, err)

	stored, ok := st.Get("a")
	require.True(t, ok)
	assert.Equal(t, stored, got)
}
