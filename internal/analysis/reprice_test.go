package analysis

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secondhand-price/internal/kv"
	"secondhand-price/internal/model"
	"secondhand-price/internal/notify"
	"secondhand-price/internal/predict"
	"secondhand-price/internal/store"
)

// predictorByID answers per entry id and remembers the inputs it saw
type predictorByID struct {
	mu      sync.Mutex
	results map[string]model.AnalysisResult
	errs    map[string]error
	inputs  []model.ProductInput
}

func (p *predictorByID) Predict(ctx context.Context, input model.ProductInput, settings model.Settings) (model.AnalysisResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inputs = append(p.inputs, input)
	if err, ok := p.errs[input.ID]; ok {
		return model.AnalysisResult{}, err
	}
	return p.results[input.ID], nil
}

func TestRepriceAllUpdatesChangedEntries(t *testing.T) {
	svc, st, n := newFixture(t)
	p := &predictorByID{
		results: map[string]model.AnalysisResult{
			"up":   {SuggestedPrice: 500, MarketPrice: 500},
			"same": {SuggestedPrice: 700, MarketPrice: 700},
			"drop": {SuggestedPrice: 300, MarketPrice: 320},
		},
		errs: map[string]error{"lonely": predict.ErrInsufficientData},
	}
	svc.predictor = p

	const recorded = "2026-01-01T00:00:00Z"
	for _, e := range []model.HistoryEntry{
		{ID: "up", Name: "Switch", Condition: "good", SuggestedPrice: 400, MarketPrice: 400, ImageURL: "https://img/up.jpg"},
		{ID: "same", Name: "PS5", Condition: "good", SuggestedPrice: 700, MarketPrice: 700},
		{ID: "lonely", Name: "Walkman", Condition: "fair", SuggestedPrice: 900, MarketPrice: 900},
		{ID: "drop", Name: "iPad", Condition: "good", SuggestedPrice: 800, MarketPrice: 820},
	} {
		e.AnalysisDate = recorded
		record(t, svc, e)
	}

	res, err := svc.RepriceAll(context.Background())
	require.NoError(t, err)
	svc.Wait()
	assert.Equal(t, RepriceResult{Checked: 4, Updated: 2, Skipped: 1}, res)

	up, _ := st.Get("up")
	assert.Equal(t, int64(500), up.SuggestedPrice)
	assert.Equal(t, "2026-03-01T00:30:00Z", up.AnalysisDate)
	assert.Equal(t, "https://img/up.jpg", up.ImageURL)
	assert.NotEmpty(t, up.AnalysisResults)

	same, _ := st.Get("same")
	assert.Equal(t, recorded, same.AnalysisDate)
	lonely, _ := st.Get("lonely")
	assert.Equal(t, int64(900), lonely.SuggestedPrice)

	assert.Equal(t, []notify.PriceDrop{{EntryID: "drop", Name: "iPad", Condition: "good", OldPrice: 800, NewPrice: 300}}, n.all())

	// order is untouched by in-place updates
	ids := make([]string, 0, 4)
	for _, e := range st.History() {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"drop", "lonely", "same", "up"}, ids)

	for _, in := range p.inputs {
		assert.Zero(t, in.ReferencePrice)
	}
}

func TestRepriceAllStopsOnFailure(t *testing.T) {
	svc, _, _ := newFixture(t)
	svc.predictor = &predictorByID{errs: map[string]error{"b": assert.AnError}}

	record(t, svc, model.HistoryEntry{ID: "a", Name: "A", Condition: "good"})
	record(t, svc, model.HistoryEntry{ID: "b", Name: "B", Condition: "good"})

	res, err := svc.RepriceAll(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
	assert.ErrorContains(t, err, "reprice b")
	assert.Equal(t, 1, res.Checked)
}

func TestRepriceAllHonorsCancellation(t *testing.T) {
	svc, _, _ := newFixture(t)
	record(t, svc, model.HistoryEntry{ID: "a", Name: "A", Condition: "good"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := svc.RepriceAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, res.Checked)
}

func TestRepriceUsesCurrentComparables(t *testing.T) {
	st := store.New(kv.NewMemory(), quietLog())
	svc := NewService(st, predict.NewComparablesPredictor(st), nil, quietLog())

	for i, price := range []int64{10000, 12000, 14000} {
		require.NoError(t, st.AddOrUpdate(model.HistoryEntry{
			ID: string(rune('a' + i)), Name: "Pixel 8", Category: "手機", Condition: "good",
			SuggestedPrice: price, MarketPrice: price,
		}))
	}
	stale := model.HistoryEntry{ID: "x", Name: "Pixel 8", Category: "手機", Condition: "good", SuggestedPrice: 20000, MarketPrice: 20000}
	require.NoError(t, st.AddOrUpdate(stale))

	got, changed, err := svc.Reprice(context.Background(), stale)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, int64(12000), got.MarketPrice)
	assert.Equal(t, int64(12000), got.SuggestedPrice)

	stored, _ := st.Get("x")
	assert.Equal(t, got, stored)

	// a second pass has nothing to change
	_, changed, err = svc.Reprice(context.Background(), stored)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestRepriceWithoutComparablesIsInsufficient(t *testing.T) {
	svc, st, _ := newFixture(t)
	entry, err := svc.Analyze(context.Background(), model.ProductInput{
		Name: "Walkman", Category: "音響", Condition: "fair", ReferencePrice: 4000,
	})
	require.NoError(t, err)

	_, changed, err := svc.Reprice(context.Background(), entry)
	assert.ErrorIs(t, err, predict.ErrInsufficientData)
	assert.False(t, changed)

	stored, _ := st.Get(entry.ID)
	assert.Equal(t, entry.SuggestedPrice, stored.SuggestedPrice)
}
