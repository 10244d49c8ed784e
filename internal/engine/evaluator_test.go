package engine

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/qogitools/fba-scanner/internal/qogita"
)

type fakeLookup struct {
	asin     string
	asinOK   bool
	price    decimal.Decimal
	priceOK  bool
	fee      decimal.Decimal
	feeOK    bool
	asinCalls  int
	priceCalls int
	feeCalls   int
}

func (f *fakeLookup) ResolveASIN(ctx context.Context, ean string) (string, bool) {
	f.asinCalls++
	return f.asin, f.asinOK
}

func (f *fakeLookup) LowestPrice(ctx context.Context, asin string) (decimal.Decimal, bool) {
	f.priceCalls++
	return f.price, f.priceOK
}

func (f *fakeLookup) FeesEstimate(ctx context.Context, asin string, price decimal.Decimal, currency string) (decimal.Decimal, bool) {
	f.feeCalls++
	return f.fee, f.feeOK
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func product(price string) qogita.Product {
	return qogita.Product{EAN: "123", Name: "Widget", Price: d(price), Currency: "EUR"}
}

func TestEvaluateDiscardsWhenASINUnresolved(t *testing.T) {
	lookup := &fakeLookup{asinOK: false, priceOK: true, price: d("25.00"), feeOK: true, fee: d("5.00")}
	ev := NewEvaluator(lookup, d("0"), nil)

	_, ok := ev.Evaluate(context.Background(), product("10.00"))
	require.False(t, ok)
	require.Equal(t, 1, lookup.asinCalls)
	require.Zero(t, lookup.priceCalls, "price must not be consulted after an identifier miss")
	require.Zero(t, lookup.feeCalls)
}

func TestEvaluateDiscardsWhenPriceUnresolved(t *testing.T) {
	lookup := &fakeLookup{asin: "B000X", asinOK: true, priceOK: false, feeOK: true, fee: d("5.00")}
	ev := NewEvaluator(lookup, d("0"), nil)

	_, ok := ev.Evaluate(context.Background(), product("10.00"))
	require.False(t, ok)
	require.Zero(t, lookup.feeCalls, "fee must not be consulted after a price miss")
}

func TestEvaluateDiscardsZeroPrice(t *testing.T) {
	lookup := &fakeLookup{asin: "B000X", asinOK: true, price: decimal.Zero, priceOK: true}
	ev := NewEvaluator(lookup, d("0"), nil)

	_, ok := ev.Evaluate(context.Background(), product("10.00"))
	require.False(t, ok)
}

func TestEvaluateFeeMissFailsOpenToZero(t *testing.T) {
	lookup := &fakeLookup{asin: "B000X", asinOK: true, price: d("25.00"), priceOK: true, feeOK: false}
	ev := NewEvaluator(lookup, d("5.00"), nil)

	result, ok := ev.Evaluate(context.Background(), product("10.00"))
	require.True(t, ok)
	require.True(t, result.Fee.IsZero())
	require.True(t, result.Profit.Equal(d("15.00")))
	require.True(t, result.Profitable)
}

func TestEvaluateComputesProfit(t *testing.T) {
	lookup := &fakeLookup{asin: "B000X", asinOK: true, price: d("25.00"), priceOK: true, fee: d("5.00"), feeOK: true}
	ev := NewEvaluator(lookup, d("5.00"), nil)

	result, ok := ev.Evaluate(context.Background(), product("10.00"))
	require.True(t, ok)
	require.Equal(t, "B000X", result.ASIN)
	require.True(t, result.AmazonPrice.Equal(d("25.00")))
	require.True(t, result.Fee.Equal(d("5.00")))
	require.True(t, result.Profit.Equal(d("10.00")))
	require.True(t, result.Profitable)
}

func TestEvaluateStrictMarginBoundary(t *testing.T) {
	// profit = 25 - 5 - 10 = 10.00
	lookup := &fakeLookup{asin: "B000X", asinOK: true, price: d("25.00"), priceOK: true, fee: d("5.00"), feeOK: true}

	// profit == minMargin is NOT profitable
	ev := NewEvaluator(lookup, d("10.00"), nil)
	result, ok := ev.Evaluate(context.Background(), product("10.00"))
	require.True(t, ok)
	require.False(t, result.Profitable)

	// one cent over the margin is
	ev = NewEvaluator(lookup, d("9.99"), nil)
	result, ok = ev.Evaluate(context.Background(), product("10.00"))
	require.True(t, ok)
	require.True(t, result.Profitable)
}

func TestEvaluateNegativeProfit(t *testing.T) {
	lookup := &fakeLookup{asin: "B000X", asinOK: true, price: d("10.00"), priceOK: true, fee: d("5.00"), feeOK: true}
	ev := NewEvaluator(lookup, d("0"), nil)

	result, ok := ev.Evaluate(context.Background(), product("20.00"))
	require.True(t, ok)
	require.True(t, result.Profit.Equal(d("-15.00")))
	require.False(t, result.Profitable)
}
