package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// Config holds runtime configuration for the scanner.
type Config struct {
	Addr      string `envconfig:"ADDR" default:":8080"`
	DBPath    string `envconfig:"DB_PATH" default:"scanner.db"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	// Qogita wholesale source. A missing key is not fatal at startup:
	// offer fetches fall back to an empty batch with a warning.
	QogitaAPIKey string `envconfig:"QOGITA_API_KEY"`

	// Amazon SP-API credentials. Either a static access token or the
	// LWA client-credential triple must be present.
	AmazonAccessToken  string `envconfig:"AMAZON_ACCESS_TOKEN"`
	AmazonClientID     string `envconfig:"AMAZON_CLIENT_ID"`
	AmazonClientSecret string `envconfig:"AMAZON_CLIENT_SECRET"`
	AmazonRefreshToken string `envconfig:"AMAZON_REFRESH_TOKEN"`
	MarketplaceID      string `envconfig:"MARKETPLACE_ID" required:"true"`
	SellerID           string `envconfig:"SELLER_ID" required:"true"`

	// Scan tuning.
	MinMargin string `envconfig:"MIN_MARGIN" default:"0"`
	ScanLimit int    `envconfig:"SCAN_LIMIT" default:"20"`
	Workers   int    `envconfig:"SCAN_WORKERS" default:"1"`

	// Dashboard session and secret storage keys.
	SessionKey    string `envconfig:"SESSION_KEY" default:"dev-session-key"`
	EncryptionKey string `envconfig:"SCANNER_ENCRYPTION_KEY"`
}

// Load reads configuration from a .env file (if present) and the
// environment. Missing required secrets surface as a fatal error naming
// the missing key.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if _, err := decimal.NewFromString(cfg.MinMargin); err != nil {
		return nil, fmt.Errorf("config: MIN_MARGIN must be a decimal value: %w", err)
	}

	return &cfg, nil
}

// ValidateAmazonCredentials checks that a bearer credential is available.
// Called after secret-store hydration so a refresh token persisted from a
// previous run also satisfies the requirement.
func (c *Config) ValidateAmazonCredentials() error {
	if c.AmazonAccessToken == "" && (c.AmazonClientID == "" || c.AmazonClientSecret == "" || c.AmazonRefreshToken == "") {
		return fmt.Errorf("config: AMAZON_ACCESS_TOKEN is required (or set AMAZON_CLIENT_ID, AMAZON_CLIENT_SECRET and AMAZON_REFRESH_TOKEN for LWA)")
	}
	return nil
}

// MinMarginDecimal returns the configured minimum margin as a decimal.
// Load already validated the value, so parse errors collapse to zero.
func (c *Config) MinMarginDecimal() decimal.Decimal {
	d, err := decimal.NewFromString(c.MinMargin)
	if err != nil {
		return decimal.Zero
	}
	return d
}
