package scanner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/qogitools/fba-scanner/internal/database"
	"github.com/qogitools/fba-scanner/internal/engine"
	"github.com/qogitools/fba-scanner/internal/observability"
	"github.com/qogitools/fba-scanner/internal/qogita"
)

// OfferSource lists current wholesale offers.
type OfferSource interface {
	ListOffers(ctx context.Context, limit int) ([]qogita.RawOffer, error)
}

// RunStore persists scan history and evaluation results.
type RunStore interface {
	CreateScanRun(run *database.ScanRun) error
	CompleteScanRun(run *database.ScanRun) error
	InsertEvaluatedProduct(row *database.EvaluatedRow) error
}

// Outcome pairs an evaluated product with its publish result.
type Outcome struct {
	engine.Evaluated
	Listing engine.ListingResult `json:"listing"`
}

// Result summarises one scan run.
type Result struct {
	Run      *database.ScanRun `json:"run"`
	Products []Outcome         `json:"products"`
}

// Service orchestrates scan runs: fetch offers, normalize, evaluate,
// persist, and publish profitable products.
type Service struct {
	source    OfferSource
	evaluator *engine.Evaluator
	publisher *engine.Publisher
	store     RunStore
	metrics   *observability.Metrics
	workers   int
	logger    *slog.Logger
}

// NewService creates a new scan service. workers bounds how many products
// are evaluated concurrently; values below 2 keep the pass sequential.
func NewService(source OfferSource, evaluator *engine.Evaluator, publisher *engine.Publisher,
	store RunStore, metrics *observability.Metrics, workers int, logger *slog.Logger) *Service {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NewMetrics()
	}
	return &Service{
		source:    source,
		evaluator: evaluator,
		publisher: publisher,
		store:     store,
		metrics:   metrics,
		workers:   workers,
		logger:    logger,
	}
}

// Run executes one scan-and-decide pass over at most limit offers.
// Every product flows through normalize -> evaluate -> (maybe) publish
// exactly once; a discarded product never stops the batch, and results
// keep input order.
func (s *Service) Run(ctx context.Context, limit int) (*Result, error) {
	run := &database.ScanRun{
		ID:        uuid.New().String(),
		Status:    "running",
		StartedAt: time.Now(),
	}
	if err := s.store.CreateScanRun(run); err != nil {
		return nil, err
	}

	s.logger.Info("scan started", slog.String("run", run.ID), slog.Int("limit", limit))

	offers, err := s.source.ListOffers(ctx, limit)
	if err != nil {
		// The source already collapses fetch failures to an empty
		// batch; anything surfacing here is a hard failure.
		s.failRun(run, err)
		return nil, err
	}
	run.OffersFetched = len(offers)
	s.count(s.metrics.OffersFetched, len(offers))

	products := make([]qogita.Product, 0, len(offers))
	for _, offer := range offers {
		product, ok := qogita.Normalize(offer)
		if !ok {
			s.count(s.metrics.ProductsDiscarded, 1)
			continue
		}
		products = append(products, *product)
	}
	s.count(s.metrics.ProductsNormalized, len(products))

	evaluated := s.evaluateAll(ctx, products)

	result := &Result{Run: run}
	for _, ev := range evaluated {
		run.ProductsEvaluated++
		s.count(s.metrics.ProductsEvaluated, 1)

		listing := engine.NotListed
		if ev.Profitable {
			run.ProfitableCount++
			s.count(s.metrics.ProfitableProducts, 1)

			published, err := s.publisher.Publish(ctx, ev)
			if err != nil {
				listing = engine.ListingResult{Status: "Listing failed", Reason: err.Error()}
			} else {
				listing = published
				run.ListingsCreated++
				s.count(s.metrics.ListingsCreated, 1)
			}
		}

		// Two-decimal strings, matching the CSV export and dashboard
		row := &database.EvaluatedRow{
			RunID:         run.ID,
			EAN:           ev.EAN,
			ASIN:          ev.ASIN,
			Name:          ev.Name,
			QogitaPrice:   ev.Price.StringFixed(2),
			AmazonPrice:   ev.AmazonPrice.StringFixed(2),
			Fee:           ev.Fee.StringFixed(2),
			Profit:        ev.Profit.StringFixed(2),
			Profitable:    ev.Profitable,
			ListingStatus: listing.Status,
		}
		if err := s.store.InsertEvaluatedProduct(row); err != nil {
			s.logger.Warn("failed to persist evaluation",
				slog.String("ean", ev.EAN), slog.Any("error", err))
		}

		result.Products = append(result.Products, Outcome{Evaluated: *ev, Listing: listing})
	}

	now := time.Now()
	run.Status = "success"
	run.CompletedAt = &now
	if err := s.store.CompleteScanRun(run); err != nil {
		s.logger.Warn("failed to record scan completion", slog.Any("error", err))
	}

	s.logger.Info("scan complete",
		slog.String("run", run.ID),
		slog.Int("offers", run.OffersFetched),
		slog.Int("evaluated", run.ProductsEvaluated),
		slog.Int("profitable", run.ProfitableCount),
		slog.Int("listed", run.ListingsCreated))

	return result, nil
}

// evaluateAll runs the evaluator over every product. With more than one
// worker, independent products are evaluated concurrently while the three
// lookups per product stay sequential; results are re-assembled in input
// order and discards leave no gap.
func (s *Service) evaluateAll(ctx context.Context, products []qogita.Product) []*engine.Evaluated {
	slots := make([]*engine.Evaluated, len(products))

	if s.workers <= 1 {
		for i, product := range products {
			ev, ok := s.evaluator.Evaluate(ctx, product)
			if !ok {
				s.count(s.metrics.ProductsDiscarded, 1)
				continue
			}
			slots[i] = ev
		}
	} else {
		sem := make(chan struct{}, s.workers)
		var wg sync.WaitGroup
		for i, product := range products {
			wg.Add(1)
			sem <- struct{}{}
			go func(i int, product qogita.Product) {
				defer wg.Done()
				defer func() { <-sem }()
				ev, ok := s.evaluator.Evaluate(ctx, product)
				if !ok {
					s.count(s.metrics.ProductsDiscarded, 1)
					return
				}
				slots[i] = ev
			}(i, product)
		}
		wg.Wait()
	}

	out := make([]*engine.Evaluated, 0, len(slots))
	for _, ev := range slots {
		if ev != nil {
			out = append(out, ev)
		}
	}
	return out
}

func (s *Service) failRun(run *database.ScanRun, err error) {
	now := time.Now()
	run.Status = "failed"
	run.ErrorMessage = err.Error()
	run.CompletedAt = &now
	if dbErr := s.store.CompleteScanRun(run); dbErr != nil {
		s.logger.Warn("failed to record scan failure", slog.Any("error", dbErr))
	}
}

func (s *Service) count(c prometheus.Counter, n int) {
	if n > 0 {
		c.Add(float64(n))
	}
}
