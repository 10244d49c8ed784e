package amazon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
)

const (
	// Login-with-Amazon token endpoint used for SP-API refresh tokens
	LWATokenURL = "https://api.amazon.com/auth/o2/token"

	ProductionAPIBaseURL = "https://sellingpartnerapi-eu.amazon.com"
	SandboxAPIBaseURL    = "https://sandbox.sellingpartnerapi-eu.amazon.com"
)

// Config holds Amazon SP-API configuration
type Config struct {
	// AccessToken is a static bearer token. When empty, the LWA
	// client-credential triple below is used instead.
	AccessToken string

	ClientID     string
	ClientSecret string
	RefreshToken string

	MarketplaceID string
	SellerID      string
	Sandbox       bool

	// BaseURL overrides the endpoint, mainly for tests.
	BaseURL string
}

// Client is the Amazon SP-API client
type Client struct {
	cfg        Config
	httpClient *http.Client
	tokens     oauth2.TokenSource
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a new SP-API client. The bearer credential is resolved
// lazily from the token source and cached between calls.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	baseURL := ProductionAPIBaseURL
	if cfg.Sandbox {
		baseURL = SandboxAPIBaseURL
	}
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}

	var src oauth2.TokenSource
	if cfg.AccessToken != "" {
		src = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken})
	} else {
		oauthConfig := &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: LWATokenURL},
		}
		src = oauth2.ReuseTokenSource(nil,
			oauthConfig.TokenSource(context.Background(), &oauth2.Token{RefreshToken: cfg.RefreshToken}))
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tokens:     src,
		baseURL:    baseURL,
		logger:     logger,
	}
}

// IsConfigured returns true if API credentials are set
func (c *Client) IsConfigured() bool {
	return c.cfg.MarketplaceID != "" && c.cfg.SellerID != "" &&
		(c.cfg.AccessToken != "" || (c.cfg.ClientID != "" && c.cfg.ClientSecret != "" && c.cfg.RefreshToken != ""))
}

// MarketplaceID returns the configured marketplace identifier.
func (c *Client) MarketplaceID() string {
	return c.cfg.MarketplaceID
}

// doRequest makes an authenticated API request
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	token, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to get valid token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	return c.httpClient.Do(req)
}

// Catalog item response, trimmed to the identifier path we read.
type catalogItemsResponse struct {
	Payload *struct {
		Items []struct {
			Identifiers struct {
				MarketplaceASIN struct {
					ASIN string `json:"ASIN"`
				} `json:"MarketplaceASIN"`
			} `json:"Identifiers"`
		} `json:"Items"`
	} `json:"payload"`
}

// ResolveASIN looks up the ASIN for an EAN. Any non-OK status, transport
// failure or unexpected response shape collapses to "not found".
func (c *Client) ResolveASIN(ctx context.Context, ean string) (string, bool) {
	params := url.Values{}
	params.Set("MarketplaceId", c.cfg.MarketplaceID)
	params.Set("Query", ean)

	resp, err := c.doRequest(ctx, http.MethodGet, "/catalog/v0/items?"+params.Encode(), nil)
	if err != nil {
		c.logger.Debug("catalog lookup failed", slog.String("ean", ean), slog.Any("error", err))
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", false
	}

	var result catalogItemsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", false
	}
	if result.Payload == nil || len(result.Payload.Items) == 0 {
		return "", false
	}
	asin := result.Payload.Items[0].Identifiers.MarketplaceASIN.ASIN
	if asin == "" {
		return "", false
	}
	return asin, true
}

// Money holds a currency amount from a pricing response. Amounts arrive as
// JSON numbers, kept as json.Number so decimal conversion stays exact.
type Money struct {
	CurrencyCode string      `json:"CurrencyCode,omitempty"`
	Amount       json.Number `json:"Amount,omitempty"`
}

func (m *Money) decimal() (decimal.Decimal, bool) {
	if m == nil || m.Amount == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(m.Amount.String())
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

type pricingResponse struct {
	Payload []struct {
		Summary *struct {
			LowestPrices []struct {
				LandedPrice *Money `json:"LandedPrice"`
			} `json:"LowestPrices"`
		} `json:"Summary"`
	} `json:"payload"`
}

// LowestPrice returns the lowest landed price for an ASIN, or false under
// the same failure conditions as ResolveASIN.
func (c *Client) LowestPrice(ctx context.Context, asin string) (decimal.Decimal, bool) {
	path := fmt.Sprintf("/products/pricing/v0/items/%s?MarketplaceId=%s",
		url.PathEscape(asin), url.QueryEscape(c.cfg.MarketplaceID))

	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		c.logger.Debug("pricing lookup failed", slog.String("asin", asin), slog.Any("error", err))
		return decimal.Decimal{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, false
	}

	var result pricingResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return decimal.Decimal{}, false
	}
	if len(result.Payload) == 0 || result.Payload[0].Summary == nil || len(result.Payload[0].Summary.LowestPrices) == 0 {
		return decimal.Decimal{}, false
	}
	return result.Payload[0].Summary.LowestPrices[0].LandedPrice.decimal()
}

// Fees estimate request, carrying the candidate listing price with
// shipping fixed at zero.
type feesEstimateRequest struct {
	FeesEstimateRequest struct {
		MarketplaceID      string `json:"MarketplaceId"`
		IsAmazonFulfilled  bool   `json:"IsAmazonFulfilled"`
		Identifier         string `json:"Identifier"`
		PriceToEstimateFees struct {
			ListingPrice Money `json:"ListingPrice"`
			Shipping     Money `json:"Shipping"`
		} `json:"PriceToEstimateFees"`
	} `json:"FeesEstimateRequest"`
}

type feesEstimateResponse struct {
	Payload *struct {
		FeesEstimateResult *struct {
			FeesEstimate *struct {
				TotalFeesEstimate *Money `json:"TotalFeesEstimate"`
			} `json:"FeesEstimate"`
		} `json:"FeesEstimateResult"`
	} `json:"payload"`
}

// FeesEstimate returns the estimated fulfillment fee for listing an ASIN
// at the given price, or false on any failure.
func (c *Client) FeesEstimate(ctx context.Context, asin string, price decimal.Decimal, currency string) (decimal.Decimal, bool) {
	if currency == "" {
		currency = "EUR"
	}

	var payload feesEstimateRequest
	payload.FeesEstimateRequest.MarketplaceID = c.cfg.MarketplaceID
	payload.FeesEstimateRequest.IsAmazonFulfilled = true
	payload.FeesEstimateRequest.Identifier = asin
	payload.FeesEstimateRequest.PriceToEstimateFees.ListingPrice = Money{CurrencyCode: currency, Amount: json.Number(price.String())}
	payload.FeesEstimateRequest.PriceToEstimateFees.Shipping = Money{CurrencyCode: currency, Amount: "0"}

	body, err := json.Marshal(payload)
	if err != nil {
		return decimal.Decimal{}, false
	}

	path := fmt.Sprintf("/products/fees/v0/items/%s/feesEstimate", url.PathEscape(asin))
	resp, err := c.doRequest(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		c.logger.Debug("fees estimate failed", slog.String("asin", asin), slog.Any("error", err))
		return decimal.Decimal{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, false
	}

	var result feesEstimateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return decimal.Decimal{}, false
	}
	if result.Payload == nil || result.Payload.FeesEstimateResult == nil || result.Payload.FeesEstimateResult.FeesEstimate == nil {
		return decimal.Decimal{}, false
	}
	return result.Payload.FeesEstimateResult.FeesEstimate.TotalFeesEstimate.decimal()
}

// Listing attributes for the create/update listing call.
type listingAttributeValue struct {
	Value string `json:"value"`
}

type fulfillmentAvailability struct {
	FulfillmentChannelCode string `json:"fulfillmentChannelCode"`
	Quantity               int    `json:"quantity"`
}

type listingPrice struct {
	Currency string      `json:"currency"`
	Amount   json.Number `json:"amount"`
}

type createListingRequest struct {
	ProductType  string `json:"productType"`
	Requirements string `json:"requirements"`
	Attributes   struct {
		ASIN                    []listingAttributeValue   `json:"asin"`
		FulfillmentAvailability []fulfillmentAvailability `json:"fulfillmentAvailability"`
		Price                   []listingPrice            `json:"price"`
	} `json:"attributes"`
}

// CreateListing submits a create/update-listing request for the seller and
// returns the marketplace response as-is. The response is not interpreted:
// listing creation is fire-and-forget.
func (c *Client) CreateListing(ctx context.Context, asin string, price decimal.Decimal, quantity int) (json.RawMessage, error) {
	var payload createListingRequest
	payload.ProductType = "PRODUCT"
	payload.Requirements = "LISTING_OFFER_ONLY"
	payload.Attributes.ASIN = []listingAttributeValue{{Value: asin}}
	payload.Attributes.FulfillmentAvailability = []fulfillmentAvailability{
		{FulfillmentChannelCode: "AMAZON_EU", Quantity: quantity},
	}
	payload.Attributes.Price = []listingPrice{{Currency: "EUR", Amount: json.Number(price.String())}}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal listing: %w", err)
	}

	path := "/listings/2021-08-01/items/" + url.PathEscape(c.cfg.SellerID)
	resp, err := c.doRequest(ctx, http.MethodPut, path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read listing response: %w", err)
	}
	return json.RawMessage(raw), nil
}
