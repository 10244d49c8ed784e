package database

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// DB wraps the SQLite database
type DB struct {
	*sql.DB
}

// ScanRun records one scan-and-decide pass over a wholesale batch
type ScanRun struct {
	ID                string     `json:"id"`
	Status            string     `json:"status"` // "running", "success", "failed"
	OffersFetched     int        `json:"offersFetched"`
	ProductsEvaluated int        `json:"productsEvaluated"`
	ProfitableCount   int        `json:"profitableCount"`
	ListingsCreated   int        `json:"listingsCreated"`
	ErrorMessage      string     `json:"errorMessage,omitempty"`
	StartedAt         time.Time  `json:"startedAt"`
	CompletedAt       *time.Time `json:"completedAt,omitempty"`
}

// EvaluatedRow is a persisted evaluation result. Prices are decimal
// strings exactly as computed.
type EvaluatedRow struct {
	ID            int64     `json:"id"`
	RunID         string    `json:"runId"`
	EAN           string    `json:"ean"`
	ASIN          string    `json:"asin"`
	Name          string    `json:"name,omitempty"`
	QogitaPrice   string    `json:"qogitaPrice"`
	AmazonPrice   string    `json:"amazonPrice"`
	Fee           string    `json:"fee"`
	Profit        string    `json:"profit"`
	Profitable    bool      `json:"profitable"`
	ListingStatus string    `json:"listingStatus,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Open opens or creates the database
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Initialize schema
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &DB{db}, nil
}

// CreateScanRun inserts a new running scan record
func (db *DB) CreateScanRun(run *ScanRun) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	_, err := db.Exec(`
		INSERT INTO scan_runs (id, status, started_at)
		VALUES (?, ?, ?)
	`, run.ID, run.Status, run.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to create scan run: %w", err)
	}
	return nil
}

// CompleteScanRun updates a scan record with its final counts and status
func (db *DB) CompleteScanRun(run *ScanRun) error {
	_, err := db.Exec(`
		UPDATE scan_runs
		SET status = ?, offers_fetched = ?, products_evaluated = ?,
		    profitable_count = ?, listings_created = ?, error_message = ?,
		    completed_at = ?
		WHERE id = ?
	`, run.Status, run.OffersFetched, run.ProductsEvaluated,
		run.ProfitableCount, run.ListingsCreated, nullString(run.ErrorMessage),
		run.CompletedAt, run.ID)
	if err != nil {
		return fmt.Errorf("failed to complete scan run: %w", err)
	}
	return nil
}

// GetScanRun fetches a single scan run by id
func (db *DB) GetScanRun(id string) (*ScanRun, error) {
	var run ScanRun
	var errMsg sql.NullString
	err := db.QueryRow(`
		SELECT id, status, offers_fetched, products_evaluated,
		       profitable_count, listings_created, error_message,
		       started_at, completed_at
		FROM scan_runs
		WHERE id = ?
	`, id).Scan(&run.ID, &run.Status, &run.OffersFetched, &run.ProductsEvaluated,
		&run.ProfitableCount, &run.ListingsCreated, &errMsg,
		&run.StartedAt, &run.CompletedAt)
	if err != nil {
		return nil, err
	}
	run.ErrorMessage = errMsg.String
	return &run, nil
}

// ListScanRuns returns the most recent scan runs, newest first
func (db *DB) ListScanRuns(limit int) ([]ScanRun, error) {
	rows, err := db.Query(`
		SELECT id, status, offers_fetched, products_evaluated,
		       profitable_count, listings_created, error_message,
		       started_at, completed_at
		FROM scan_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []ScanRun
	for rows.Next() {
		var run ScanRun
		var errMsg sql.NullString
		if err := rows.Scan(&run.ID, &run.Status, &run.OffersFetched, &run.ProductsEvaluated,
			&run.ProfitableCount, &run.ListingsCreated, &errMsg,
			&run.StartedAt, &run.CompletedAt); err != nil {
			return nil, err
		}
		run.ErrorMessage = errMsg.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// InsertEvaluatedProduct persists one evaluation result for a run
func (db *DB) InsertEvaluatedProduct(row *EvaluatedRow) error {
	result, err := db.Exec(`
		INSERT INTO evaluated_products
			(run_id, ean, asin, name, qogita_price, amazon_price, fee, profit, profitable, listing_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, row.RunID, row.EAN, row.ASIN, nullString(row.Name),
		row.QogitaPrice, row.AmazonPrice, row.Fee, row.Profit,
		row.Profitable, nullString(row.ListingStatus))
	if err != nil {
		return fmt.Errorf("failed to insert evaluated product: %w", err)
	}
	row.ID, err = result.LastInsertId()
	return err
}

// GetEvaluatedProducts returns all evaluation results for a run in
// insertion order
func (db *DB) GetEvaluatedProducts(runID string) ([]EvaluatedRow, error) {
	rows, err := db.Query(`
		SELECT id, run_id, ean, asin, COALESCE(name, ''), qogita_price,
		       amazon_price, fee, profit, profitable, COALESCE(listing_status, ''),
		       created_at
		FROM evaluated_products
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EvaluatedRow
	for rows.Next() {
		var row EvaluatedRow
		if err := rows.Scan(&row.ID, &row.RunID, &row.EAN, &row.ASIN, &row.Name,
			&row.QogitaPrice, &row.AmazonPrice, &row.Fee, &row.Profit,
			&row.Profitable, &row.ListingStatus, &row.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// GetCachedASIN returns a previously resolved ASIN for an EAN
func (db *DB) GetCachedASIN(ean string) (string, bool) {
	var asin string
	err := db.QueryRow(`SELECT asin FROM asin_cache WHERE ean = ?`, ean).Scan(&asin)
	if err != nil {
		return "", false
	}
	return asin, true
}

// PutCachedASIN memoizes a successful EAN -> ASIN resolution
func (db *DB) PutCachedASIN(ean, asin string) error {
	_, err := db.Exec(`
		INSERT INTO asin_cache (ean, asin) VALUES (?, ?)
		ON CONFLICT(ean) DO UPDATE SET asin = excluded.asin, resolved_at = CURRENT_TIMESTAMP
	`, ean, asin)
	return err
}

// SaveSecret stores an encrypted credential blob under a name
func (db *DB) SaveSecret(name string, plaintext string, key []byte) error {
	encrypted, err := EncryptSecret(plaintext, key)
	if err != nil {
		return err
	}
	_, err = db.Exec(`
		INSERT INTO secrets (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, name, encrypted)
	return err
}

// LoadSecret retrieves and decrypts a stored credential
func (db *DB) LoadSecret(name string, key []byte) (string, error) {
	var encrypted []byte
	err := db.QueryRow(`SELECT value FROM secrets WHERE name = ?`, name).Scan(&encrypted)
	if err != nil {
		return "", err
	}
	return DecryptSecret(encrypted, key)
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
