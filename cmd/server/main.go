package main

import (
	"embed"
	"flag"
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	"github.com/qogitools/fba-scanner/internal/amazon"
	"github.com/qogitools/fba-scanner/internal/config"
	"github.com/qogitools/fba-scanner/internal/database"
	"github.com/qogitools/fba-scanner/internal/engine"
	"github.com/qogitools/fba-scanner/internal/handlers"
	"github.com/qogitools/fba-scanner/internal/observability"
	"github.com/qogitools/fba-scanner/internal/qogita"
	"github.com/qogitools/fba-scanner/internal/scanner"
)

//go:embed web/*
var webFS embed.FS

const refreshTokenSecret = "amazon_refresh_token"

func main() {
	// Command line flags
	addr := flag.String("addr", "", "Override listen address")
	dbPath := flag.String("db", "", "Override SQLite database path")
	sandbox := flag.Bool("sandbox", false, "Use SP-API sandbox environment")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := newLogger(cfg.LogFormat)
	slog.SetDefault(logger)

	if *addr != "" {
		cfg.Addr = *addr
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		logger.Error("open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Hydrate the LWA refresh token from the encrypted secret store, or
	// persist a freshly configured one for later runs.
	if cfg.EncryptionKey != "" {
		key, err := database.DecodeEncryptionKey(cfg.EncryptionKey)
		if err != nil {
			logger.Error("decode encryption key", slog.Any("error", err))
			os.Exit(1)
		}
		if cfg.AmazonRefreshToken != "" {
			if err := db.SaveSecret(refreshTokenSecret, cfg.AmazonRefreshToken, key); err != nil {
				logger.Warn("failed to persist refresh token", slog.Any("error", err))
			}
		} else if stored, err := db.LoadSecret(refreshTokenSecret, key); err == nil {
			cfg.AmazonRefreshToken = stored
		}
	}

	if err := cfg.ValidateAmazonCredentials(); err != nil {
		logger.Error("missing credentials", slog.Any("error", err))
		os.Exit(1)
	}

	amazonClient := amazon.NewClient(amazon.Config{
		AccessToken:   cfg.AmazonAccessToken,
		ClientID:      cfg.AmazonClientID,
		ClientSecret:  cfg.AmazonClientSecret,
		RefreshToken:  cfg.AmazonRefreshToken,
		MarketplaceID: cfg.MarketplaceID,
		SellerID:      cfg.SellerID,
		Sandbox:       *sandbox,
	}, logger)

	qogitaClient := qogita.NewClient(qogita.Config{APIKey: cfg.QogitaAPIKey}, logger)

	sessions := database.NewDBSessionStore(db, []byte(cfg.SessionKey))
	metrics := observability.NewMetrics()

	lookup := scanner.NewCachingLookup(amazonClient, db, logger)
	evaluator := engine.NewEvaluator(lookup, cfg.MinMarginDecimal(), logger)
	publisher := engine.NewPublisher(amazonClient, logger)
	scanService := scanner.NewService(qogitaClient, evaluator, publisher, db, metrics, cfg.Workers, logger)

	h := handlers.NewHandler(db, scanService, sessions, cfg.ScanLimit, logger)

	// Set up routes
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", h.HealthCheck)
	mux.HandleFunc("/api/scan", h.TriggerScan)
	mux.HandleFunc("/api/runs", h.GetRuns)
	mux.HandleFunc("/api/results", h.GetResults)
	mux.HandleFunc("/api/export.csv", h.ExportCSV)
	mux.Handle("/metrics", metrics.Handler())

	// Serve embedded static files
	webContent, err := fs.Sub(webFS, "web")
	if err != nil {
		logger.Error("embedded assets", slog.Any("error", err))
		os.Exit(1)
	}
	mux.Handle("/", http.FileServer(http.FS(webContent)))

	logger.Info("starting profit scanner",
		slog.String("addr", cfg.Addr),
		slog.Bool("sandbox", *sandbox),
		slog.String("minMargin", cfg.MinMargin))

	if !qogitaClient.IsConfigured() {
		logger.Warn("QOGITA_API_KEY not set - offer fetches will return empty batches")
	}

	if err := http.ListenAndServe(cfg.Addr, mux); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func newLogger(format string) *slog.Logger {
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}
