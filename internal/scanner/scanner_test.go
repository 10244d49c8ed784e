package scanner

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/qogitools/fba-scanner/internal/database"
	"github.com/qogitools/fba-scanner/internal/engine"
	"github.com/qogitools/fba-scanner/internal/qogita"
)

type fakeSource struct {
	offers []qogita.RawOffer
	err    error
}

func (f *fakeSource) ListOffers(ctx context.Context, limit int) ([]qogita.RawOffer, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.offers) {
		return f.offers[:limit], nil
	}
	return f.offers, nil
}

// mapLookup resolves lookups from per-EAN fixtures, mimicking the
// marketplace without a network.
type mapLookup struct {
	mu     sync.Mutex
	asins  map[string]string
	prices map[string]string
	fees   map[string]string
}

func (m *mapLookup) ResolveASIN(ctx context.Context, ean string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	asin, ok := m.asins[ean]
	return asin, ok
}

func (m *mapLookup) LowestPrice(ctx context.Context, asin string) (decimal.Decimal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.prices[asin]
	if !ok {
		return decimal.Zero, false
	}
	return decimal.RequireFromString(raw), true
}

func (m *mapLookup) FeesEstimate(ctx context.Context, asin string, price decimal.Decimal, currency string) (decimal.Decimal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.fees[asin]
	if !ok {
		return decimal.Zero, false
	}
	return decimal.RequireFromString(raw), true
}

type recordingLister struct {
	mu    sync.Mutex
	asins []string
}

func (r *recordingLister) CreateListing(ctx context.Context, asin string, price decimal.Decimal, quantity int) (json.RawMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.asins = append(r.asins, asin)
	return json.RawMessage(`{"status":"ACCEPTED"}`), nil
}

type memoryStore struct {
	mu   sync.Mutex
	runs map[string]*database.ScanRun
	rows []*database.EvaluatedRow
}

func newMemoryStore() *memoryStore {
	return &memoryStore{runs: make(map[string]*database.ScanRun)}
}

func (m *memoryStore) CreateScanRun(run *database.ScanRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *run
	m.runs[run.ID] = &copied
	return nil
}

func (m *memoryStore) CompleteScanRun(run *database.ScanRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *run
	m.runs[run.ID] = &copied
	return nil
}

func (m *memoryStore) InsertEvaluatedProduct(row *database.EvaluatedRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, row)
	return nil
}

func offer(ean, name, price string) qogita.RawOffer {
	return qogita.RawOffer{"ean": ean, "name": name, "price": price}
}

func newTestService(source OfferSource, lookup engine.LookupPort, lister engine.ListerPort,
	store RunStore, minMargin string, workers int) *Service {
	evaluator := engine.NewEvaluator(lookup, decimal.RequireFromString(minMargin), nil)
	publisher := engine.NewPublisher(lister, nil)
	return NewService(source, evaluator, publisher, store, nil, workers, nil)
}

func TestRunProfitableProductIsListed(t *testing.T) {
	source := &fakeSource{offers: []qogita.RawOffer{offer("4000000000001", "Widget", "10.00")}}
	lookup := &mapLookup{
		asins:  map[string]string{"4000000000001": "B000A"},
		prices: map[string]string{"B000A": "25.00"},
		fees:   map[string]string{"B000A": "5.00"},
	}
	lister := &recordingLister{}
	store := newMemoryStore()

	result, err := newTestService(source, lookup, lister, store, "5.00", 1).Run(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, result.Products, 1)

	got := result.Products[0]
	require.Equal(t, "B000A", got.ASIN)
	require.True(t, got.Profit.Equal(decimal.RequireFromString("10.00")))
	require.True(t, got.Profitable)
	require.Equal(t, "Listed", got.Listing.Status)
	require.Equal(t, []string{"B000A"}, lister.asins)

	run := store.runs[result.Run.ID]
	require.Equal(t, "success", run.Status)
	require.Equal(t, 1, run.OffersFetched)
	require.Equal(t, 1, run.ProductsEvaluated)
	require.Equal(t, 1, run.ProfitableCount)
	require.Equal(t, 1, run.ListingsCreated)
	require.Len(t, store.rows, 1)
	require.Equal(t, "10.00", store.rows[0].QogitaPrice)
	require.Equal(t, "25.00", store.rows[0].AmazonPrice)
	require.Equal(t, "5.00", store.rows[0].Fee)
	require.Equal(t, "10.00", store.rows[0].Profit)
}

func TestRunFeeFailureStillEvaluates(t *testing.T) {
	source := &fakeSource{offers: []qogita.RawOffer{offer("4000000000002", "Widget", "10.00")}}
	lookup := &mapLookup{
		asins:  map[string]string{"4000000000002": "B000B"},
		prices: map[string]string{"B000B": "25.00"},
		fees:   map[string]string{},
	}
	store := newMemoryStore()

	result, err := newTestService(source, lookup, &recordingLister{}, store, "5.00", 1).Run(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, result.Products, 1)
	require.True(t, result.Products[0].Fee.IsZero())
	require.True(t, result.Products[0].Profit.Equal(decimal.RequireFromString("15.00")))
	require.True(t, result.Products[0].Profitable)
}

func TestRunOfferWithoutPriceIsDropped(t *testing.T) {
	source := &fakeSource{offers: []qogita.RawOffer{
		{"ean": "4000000000003", "name": "No price"},
		offer("4000000000004", "Widget", "10.00"),
	}}
	lookup := &mapLookup{
		asins:  map[string]string{"4000000000004": "B000D"},
		prices: map[string]string{"B000D": "12.00"},
		fees:   map[string]string{"B000D": "3.00"},
	}
	store := newMemoryStore()

	result, err := newTestService(source, lookup, &recordingLister{}, store, "0", 1).Run(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, result.Products, 1, "the offer without a price never reaches evaluation")
	require.Equal(t, "4000000000004", result.Products[0].EAN)

	run := store.runs[result.Run.ID]
	require.Equal(t, 2, run.OffersFetched)
	require.Equal(t, 1, run.ProductsEvaluated)
}

func TestRunUnresolvedASINDoesNotStopBatch(t *testing.T) {
	source := &fakeSource{offers: []qogita.RawOffer{
		offer("4000000000005", "Unknown", "8.00"),
		offer("4000000000006", "Known", "8.00"),
	}}
	lookup := &mapLookup{
		asins:  map[string]string{"4000000000006": "B000F"},
		prices: map[string]string{"B000F": "20.00"},
		fees:   map[string]string{"B000F": "4.00"},
	}
	store := newMemoryStore()

	result, err := newTestService(source, lookup, &recordingLister{}, store, "0", 1).Run(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, result.Products, 1)
	require.Equal(t, "B000F", result.Products[0].ASIN)
}

func TestRunUnprofitableGetsSentinelAndNoListing(t *testing.T) {
	source := &fakeSource{offers: []qogita.RawOffer{offer("4000000000007", "Thin margin", "10.00")}}
	lookup := &mapLookup{
		asins:  map[string]string{"4000000000007": "B000G"},
		prices: map[string]string{"B000G": "12.00"},
		fees:   map[string]string{"B000G": "1.00"},
	}
	lister := &recordingLister{}
	store := newMemoryStore()

	// profit 1.00 == margin 1.00: strictly-greater rule says not profitable
	result, err := newTestService(source, lookup, lister, store, "1.00", 1).Run(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, result.Products, 1)
	require.False(t, result.Products[0].Profitable)
	require.Equal(t, engine.NotListed, result.Products[0].Listing)
	require.Empty(t, lister.asins)

	run := store.runs[result.Run.ID]
	require.Zero(t, run.ProfitableCount)
	require.Zero(t, run.ListingsCreated)
}

func TestRunConcurrentWorkersKeepInputOrder(t *testing.T) {
	eans := []string{
		"4000000000010", "4000000000011", "4000000000012",
		"4000000000013", "4000000000014", "4000000000015",
	}
	offers := make([]qogita.RawOffer, 0, len(eans))
	asins := make(map[string]string, len(eans))
	prices := make(map[string]string, len(eans))
	fees := make(map[string]string, len(eans))
	for _, ean := range eans {
		offers = append(offers, offer(ean, "Widget", "5.00"))
		asin := "B00" + ean[len(ean)-2:]
		asins[ean] = asin
		prices[asin] = "20.00"
		fees[asin] = "2.00"
	}
	// one unresolvable product in the middle
	delete(asins, eans[2])

	source := &fakeSource{offers: offers}
	lookup := &mapLookup{asins: asins, prices: prices, fees: fees}
	store := newMemoryStore()

	result, err := newTestService(source, lookup, &recordingLister{}, store, "0", 4).Run(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, result.Products, len(eans)-1)

	var got []string
	for _, p := range result.Products {
		got = append(got, p.EAN)
	}
	want := append(append([]string{}, eans[:2]...), eans[3:]...)
	require.Equal(t, want, got, "results keep offer order regardless of worker scheduling")
}

func TestRunSourceErrorFailsRun(t *testing.T) {
	source := &fakeSource{err: context.DeadlineExceeded}
	store := newMemoryStore()

	_, err := newTestService(source, &mapLookup{}, &recordingLister{}, store, "0", 1).Run(context.Background(), 10)
	require.Error(t, err)

	require.Len(t, store.runs, 1)
	for _, run := range store.runs {
		require.Equal(t, "failed", run.Status)
		require.NotEmpty(t, run.ErrorMessage)
		require.NotNil(t, run.CompletedAt)
	}
}

func TestRunEmptyBatchSucceeds(t *testing.T) {
	source := &fakeSource{}
	store := newMemoryStore()

	result, err := newTestService(source, &mapLookup{}, &recordingLister{}, store, "0", 1).Run(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, result.Products)
	require.Equal(t, "success", store.runs[result.Run.ID].Status)
}
