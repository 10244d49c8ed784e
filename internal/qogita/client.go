package qogita

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

const defaultBaseURL = "https://api.qogita.com"

// RawOffer is an untyped wholesale offer payload. The shape varies between
// sellers, so field extraction is left to Normalize.
type RawOffer map[string]interface{}

// Config holds Qogita API configuration.
type Config struct {
	APIKey  string
	BaseURL string
}

// Client talks to the Qogita buyer API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a new Qogita API client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		logger:     logger,
	}
}

// IsConfigured returns true if a Qogita API key is set.
func (c *Client) IsConfigured() bool {
	return c.cfg.APIKey != ""
}

type offerSearchResponse struct {
	Results []RawOffer `json:"results"`
}

// ListOffers fetches the current wholesale offers, capped at limit.
// A missing API key or any request failure yields an empty batch rather
// than an error: the scan proceeds with whatever could be fetched.
func (c *Client) ListOffers(ctx context.Context, limit int) ([]RawOffer, error) {
	if !c.IsConfigured() {
		c.logger.Warn("qogita api key missing, skipping offer fetch",
			slog.String("hint", "set QOGITA_API_KEY"))
		return nil, nil
	}

	reqURL := c.baseURL + "/api/v1/buyer/variants/offers/search/?page_size=" + strconv.Itoa(limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("qogita offer fetch failed", slog.Any("error", err))
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("qogita offer fetch returned non-OK status",
			slog.Int("status", resp.StatusCode))
		return nil, nil
	}

	var result offerSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.logger.Warn("qogita offer response malformed", slog.Any("error", err))
		return nil, nil
	}

	if len(result.Results) > limit {
		result.Results = result.Results[:limit]
	}
	return result.Results, nil
}

// String helps logging raw offers without dumping the full payload.
func (o RawOffer) String() string {
	return fmt.Sprintf("RawOffer(%d fields)", len(o))
}
