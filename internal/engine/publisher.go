package engine

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/shopspring/decimal"
)

// ListingQuantity is the fixed quantity submitted with every new listing.
const ListingQuantity = 10

// ListerPort describes the marketplace listing call.
type ListerPort interface {
	CreateListing(ctx context.Context, asin string, price decimal.Decimal, quantity int) (json.RawMessage, error)
}

// ListingResult is the outcome of a publish attempt: either the raw
// marketplace response or the fixed not-listed sentinel.
type ListingResult struct {
	Status   string          `json:"status"`
	Reason   string          `json:"reason,omitempty"`
	Response json.RawMessage `json:"response,omitempty"`
}

// NotListed is the sentinel returned for unprofitable products.
var NotListed = ListingResult{Status: "Not listed", Reason: "Not profitable"}

// Publisher submits create-listing requests for profitable products.
type Publisher struct {
	lister ListerPort
	logger *slog.Logger
}

// NewPublisher constructs a publisher.
func NewPublisher(lister ListerPort, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{lister: lister, logger: logger}
}

// Publish creates a listing for a profitable product at its Amazon price
// with the fixed quantity. Unprofitable products get the sentinel result
// without any network call. The marketplace response is passed through
// uninterpreted; there is no confirmation polling and no rollback.
func (p *Publisher) Publish(ctx context.Context, ev *Evaluated) (ListingResult, error) {
	if !ev.Profitable {
		return NotListed, nil
	}

	resp, err := p.lister.CreateListing(ctx, ev.ASIN, ev.AmazonPrice, ListingQuantity)
	if err != nil {
		p.logger.Warn("create listing failed",
			slog.String("asin", ev.ASIN), slog.Any("error", err))
		return ListingResult{}, err
	}

	return ListingResult{Status: "Listed", Response: resp}, nil
}
