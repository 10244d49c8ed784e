package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/qogitools/fba-scanner/internal/amazon"
	"github.com/qogitools/fba-scanner/internal/config"
	"github.com/qogitools/fba-scanner/internal/database"
	"github.com/qogitools/fba-scanner/internal/engine"
	"github.com/qogitools/fba-scanner/internal/qogita"
	"github.com/qogitools/fba-scanner/internal/scanner"
)

// One-shot scan run without the dashboard:
//
//	go run ./cmd/scan -limit 50
func main() {
	limit := flag.Int("limit", 0, "Number of offers to check (defaults to SCAN_LIMIT)")
	dbPath := flag.String("db", "", "Override SQLite database path")
	sandbox := flag.Bool("sandbox", false, "Use SP-API sandbox environment")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *limit < 1 {
		*limit = cfg.ScanLimit
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		logger.Error("open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// A refresh token persisted by the server also satisfies the CLI
	if cfg.EncryptionKey != "" && cfg.AmazonRefreshToken == "" {
		if key, err := database.DecodeEncryptionKey(cfg.EncryptionKey); err == nil {
			if stored, err := db.LoadSecret("amazon_refresh_token", key); err == nil {
				cfg.AmazonRefreshToken = stored
			}
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

	lookup := scanner.NewCachingLookup(amazonClient, db, logger)
	evaluator := engine.NewEvaluator(lookup, cfg.MinMarginDecimal(), logger)
	publisher := engine.NewPublisher(amazonClient, logger)
	scanService := scanner.NewService(qogitaClient, evaluator, publisher, db, nil, cfg.Workers, logger)

	result, err := scanService.Run(context.Background(), *limit)
	if err != nil {
		logger.Error("scan failed", slog.Any("error", err))
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EAN\tASIN\tNAME\tBUY\tSELL\tFEE\tPROFIT\tVERDICT")
	for _, p := range result.Products {
		verdict := "skip"
		if p.Profitable {
			verdict = p.Listing.Status
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			p.EAN, p.ASIN, p.Name, p.Price, p.AmazonPrice, p.Fee, p.Profit, verdict)
	}
	w.Flush()

	run := result.Run
	fmt.Printf("\nrun %s: %d offers, %d evaluated, %d profitable, %d listed\n",
		run.ID, run.OffersFetched, run.ProductsEvaluated, run.ProfitableCount, run.ListingsCreated)
}
