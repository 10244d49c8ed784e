package qogita

import (
	"encoding/json"
	"strconv"

	"github.com/shopspring/decimal"
)

// Product is the canonical record produced from a raw wholesale offer.
type Product struct {
	EAN      string          `json:"ean"`
	Name     string          `json:"name,omitempty"`
	Price    decimal.Decimal `json:"price"`
	SKU      string          `json:"sku,omitempty"`
	Brand    string          `json:"brand,omitempty"`
	Stock    *int            `json:"stock,omitempty"`
	Currency string          `json:"currency,omitempty"`
}

// Candidate price fields, tried in order. Scalar fields first, then
// container fields holding a nested price structure.
var priceFields = []string{"price", "unit_price", "purchase_price", "net_price", "prices", "pricing"}

// Keys tried in order inside a price container.
var priceAmountKeys = []string{"amount", "value", "price", "gross", "net", "total"}

// foundPrice is the result of a successful extraction strategy.
type foundPrice struct {
	amount   decimal.Decimal
	currency string
}

// Normalize converts a raw offer into a canonical Product. Offers without
// a resolvable EAN or price are dropped (ok=false), never defaulted.
func Normalize(raw RawOffer) (*Product, bool) {
	if raw == nil {
		return nil, false
	}

	ean, ok := lookupString(raw, "ean")
	if !ok || ean == "" {
		return nil, false
	}

	price, ok := extractPrice(raw)
	if !ok {
		return nil, false
	}

	p := &Product{
		EAN:      ean,
		Price:    price.amount,
		Currency: price.currency,
	}
	if name, ok := lookupString(raw, "name"); ok {
		p.Name = name
	}
	if sku, ok := lookupString(raw, "sku"); ok {
		p.SKU = sku
	}
	if brand, ok := lookupString(raw, "brand"); ok {
		p.Brand = brand
	}
	if stock, ok := intField(raw, "stock"); ok {
		p.Stock = &stock
	}
	return p, true
}

// extractPrice runs the ordered extraction strategies and returns the
// first hit. Each candidate field may carry a scalar amount, a nested
// mapping, or a sequence of nested mappings.
func extractPrice(raw RawOffer) (foundPrice, bool) {
	for _, field := range priceFields {
		value, present := raw[field]
		if !present || value == nil {
			continue
		}
		if price, ok := priceFromValue(value); ok {
			return price, true
		}
	}
	return foundPrice{}, false
}

func priceFromValue(value interface{}) (foundPrice, bool) {
	switch v := value.(type) {
	case map[string]interface{}:
		return priceFromContainer(v)
	case []interface{}:
		for _, entry := range v {
			container, ok := entry.(map[string]interface{})
			if !ok {
				continue
			}
			if price, ok := priceFromContainer(container); ok {
				return price, true
			}
		}
		return foundPrice{}, false
	default:
		amount, ok := parseAmount(value)
		if !ok {
			return foundPrice{}, false
		}
		return foundPrice{amount: amount}, true
	}
}

func priceFromContainer(container map[string]interface{}) (foundPrice, bool) {
	for _, key := range priceAmountKeys {
		value, present := container[key]
		if !present || value == nil {
			continue
		}
		amount, ok := parseAmount(value)
		if !ok {
			continue
		}
		price := foundPrice{amount: amount}
		if currency, ok := stringField(container, "currency"); ok {
			price.currency = currency
		}
		return price, true
	}
	return foundPrice{}, false
}

// parseAmount converts a scalar price value to a decimal. Nested
// structures are not scalars and never match here.
func parseAmount(value interface{}) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	case float64:
		return decimal.NewFromFloat(v), true
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	case int:
		return decimal.NewFromInt(int64(v)), true
	default:
		return decimal.Decimal{}, false
	}
}

// lookupString reads a field from the nested variant sub-structure first,
// falling back to the top level.
func lookupString(raw RawOffer, key string) (string, bool) {
	if variant, ok := raw["variant"].(map[string]interface{}); ok {
		if s, ok := stringField(variant, key); ok {
			return s, true
		}
	}
	return stringField(raw, key)
}

func stringField(m map[string]interface{}, key string) (string, bool) {
	value, present := m[key]
	if !present || value == nil {
		return "", false
	}
	s, ok := value.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func intField(m map[string]interface{}, key string) (int, bool) {
	value, present := m[key]
	if !present || value == nil {
		return 0, false
	}
	switch v := value.(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		return int(v), true
	case int:
		return v, true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
