package engine

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/qogitools/fba-scanner/internal/qogita"
)

// LookupPort describes the marketplace lookups the evaluator needs.
type LookupPort interface {
	ResolveASIN(ctx context.Context, ean string) (string, bool)
	LowestPrice(ctx context.Context, asin string) (decimal.Decimal, bool)
	FeesEstimate(ctx context.Context, asin string, price decimal.Decimal, currency string) (decimal.Decimal, bool)
}

// Evaluated is a product with its marketplace resolution and profit
// verdict. Constructed once per product per scan pass, never mutated.
type Evaluated struct {
	qogita.Product
	ASIN        string          `json:"asin"`
	AmazonPrice decimal.Decimal `json:"amazon_price"`
	Fee         decimal.Decimal `json:"fee"`
	Profit      decimal.Decimal `json:"profit"`
	Profitable  bool            `json:"profitable"`
}

// Evaluator resolves marketplace data for a product and decides
// profitability against the configured minimum margin.
type Evaluator struct {
	lookup    LookupPort
	minMargin decimal.Decimal
	logger    *slog.Logger
}

// NewEvaluator constructs an evaluator.
func NewEvaluator(lookup LookupPort, minMargin decimal.Decimal, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{lookup: lookup, minMargin: minMargin, logger: logger}
}

// Evaluate runs the sequential lookup policy, short-circuiting at the
// first unresolved step:
//
//  1. ASIN from EAN; unresolved products are discarded.
//  2. lowest landed price; unresolved or zero discards.
//  3. fulfillment fee; unresolved fees fall open to zero instead of
//     discarding, so a fee outage never hides a candidate.
//
// Discards are silent: the caller sees (nil, false) with no error.
func (e *Evaluator) Evaluate(ctx context.Context, product qogita.Product) (*Evaluated, bool) {
	asin, ok := e.lookup.ResolveASIN(ctx, product.EAN)
	if !ok {
		e.logger.Debug("no asin for ean, skipping", slog.String("ean", product.EAN))
		return nil, false
	}

	amazonPrice, ok := e.lookup.LowestPrice(ctx, asin)
	if !ok || !amazonPrice.IsPositive() {
		e.logger.Debug("no amazon price, skipping",
			slog.String("ean", product.EAN), slog.String("asin", asin))
		return nil, false
	}

	fee, ok := e.lookup.FeesEstimate(ctx, asin, amazonPrice, product.Currency)
	if !ok {
		fee = decimal.Zero
	}

	profit := amazonPrice.Sub(fee).Sub(product.Price)

	return &Evaluated{
		Product:     product,
		ASIN:        asin,
		AmazonPrice: amazonPrice,
		Fee:         fee,
		Profit:      profit,
		// Strictly greater than: profit equal to the margin is not
		// good enough to list.
		Profitable: profit.GreaterThan(e.minMargin),
	}, true
}

// MinMargin returns the configured minimum margin.
func (e *Evaluator) MinMargin() decimal.Decimal {
	return e.minMargin
}
