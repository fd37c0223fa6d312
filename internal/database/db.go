package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jgoulah/waterdelta/pkg/models"
	_ "modernc.org/sqlite"
)

const (
	dateLayout = "2006-01-02"
	// Fixed width so created_at sorts correctly as text
	timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// DB wraps the database connection
type DB struct {
	conn *sql.DB
}

// New creates a new database connection and initializes the schema
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables
func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS bills (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		bill_date TEXT NOT NULL UNIQUE,
		total_usage REAL NOT NULL,
		bill_amount REAL,
		fetched_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS estimates (
		id TEXT PRIMARY KEY,
		bill_date TEXT NOT NULL,
		current_usage REAL NOT NULL,
		current_amount REAL NOT NULL,
		average_baseline REAL NOT NULL,
		difference REAL NOT NULL,
		price_per_unit REAL NOT NULL,
		additional_cost REAL NOT NULL,
		baselines INTEGER NOT NULL,
		strategy TEXT NOT NULL,
		created_at TEXT NOT NULL,
		published INTEGER DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_estimates_created_at ON estimates(created_at);
	CREATE INDEX IF NOT EXISTS idx_estimates_published ON estimates(published);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// UpsertBills stores bills keyed by bill date. The portal revises amounts
// after the fact, so an existing row for the same date is replaced.
func (db *DB) UpsertBills(records []models.UsageRecord) (int, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
	INSERT INTO bills (bill_date, total_usage, bill_amount, fetched_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(bill_date) DO UPDATE SET
		total_usage = excluded.total_usage,
		bill_amount = excluded.bill_amount,
		fetched_at = excluded.fetched_at
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	fetchedAt := time.Now().UTC().Format(time.RFC3339)
	for _, r := range records {
		var amount sql.NullFloat64
		if r.BillAmount != nil {
			amount = sql.NullFloat64{Float64: *r.BillAmount, Valid: true}
		}
		if _, err := stmt.Exec(r.BillDate.Format(dateLayout), r.TotalUsage, amount, fetchedAt); err != nil {
			return 0, fmt.Errorf("inserting bill %s: %w", r.BillDate.Format(dateLayout), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing bills: %w", err)
	}
	return len(records), nil
}

// ListBills retrieves all bills, newest first
func (db *DB) ListBills() ([]models.UsageRecord, error) {
	rows, err := db.conn.Query(`
	SELECT bill_date, total_usage, bill_amount
	FROM bills
	ORDER BY bill_date DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying bills: %w", err)
	}
	defer rows.Close()

	var results []models.UsageRecord
	for rows.Next() {
		var r models.UsageRecord
		var dateStr string
		var amount sql.NullFloat64

		if err := rows.Scan(&dateStr, &r.TotalUsage, &amount); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		r.BillDate, err = time.Parse(dateLayout, dateStr)
		if err != nil {
			return nil, fmt.Errorf("parsing bill_date: %w", err)
		}
		if amount.Valid {
			v := amount.Float64
			r.BillAmount = &v
		}

		results = append(results, r)
	}

	return results, rows.Err()
}

// InsertEstimate stores a computed estimate
func (db *DB) InsertEstimate(e *models.Estimate) error {
	query := `
	INSERT INTO estimates (id, bill_date, current_usage, current_amount, average_baseline,
		difference, price_per_unit, additional_cost, baselines, strategy, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.conn.Exec(query,
		e.ID,
		e.BillDate.Format(dateLayout),
		e.CurrentUsage,
		e.CurrentAmount,
		e.AverageBaseline,
		e.Difference,
		e.PricePerUnit,
		e.AdditionalCost,
		e.Baselines,
		e.Strategy,
		e.CreatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting estimate: %w", err)
	}

	return nil
}

// LatestEstimate returns the most recently created estimate, or nil if there are none
func (db *DB) LatestEstimate() (*models.Estimate, error) {
	estimates, err := db.queryEstimates(`ORDER BY created_at DESC LIMIT 1`)
	if err != nil {
		return nil, err
	}
	if len(estimates) == 0 {
		return nil, nil
	}
	return &estimates[0], nil
}

// ListEstimates retrieves all estimates, newest first
func (db *DB) ListEstimates() ([]models.Estimate, error) {
	return db.queryEstimates(`ORDER BY created_at DESC`)
}

// ListUnpublishedEstimates retrieves estimates not yet sent to Home Assistant, oldest first
func (db *DB) ListUnpublishedEstimates() ([]models.Estimate, error) {
	return db.queryEstimates(`WHERE published = 0 ORDER BY created_at ASC`)
}

// MarkPublished marks an estimate as published
func (db *DB) MarkPublished(id string) error {
	query := `UPDATE estimates SET published = 1 WHERE id = ?`
	_, err := db.conn.Exec(query, id)
	if err != nil {
		return fmt.Errorf("marking estimate as published: %w", err)
	}
	return nil
}

func (db *DB) queryEstimates(clause string) ([]models.Estimate, error) {
	rows, err := db.conn.Query(`
	SELECT id, bill_date, current_usage, current_amount, average_baseline,
		difference, price_per_unit, additional_cost, baselines, strategy, created_at
	FROM estimates ` + clause)
	if err != nil {
		return nil, fmt.Errorf("querying estimates: %w", err)
	}
	defer rows.Close()

	var results []models.Estimate
	for rows.Next() {
		var e models.Estimate
		var billDate, createdAt string

		if err := rows.Scan(&e.ID, &billDate, &e.CurrentUsage, &e.CurrentAmount, &e.AverageBaseline,
			&e.Difference, &e.PricePerUnit, &e.AdditionalCost, &e.Baselines, &e.Strategy, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		e.BillDate, err = time.Parse(dateLayout, billDate)
		if err != nil {
			return nil, fmt.Errorf("parsing bill_date: %w", err)
		}
		e.CreatedAt, err = time.Parse(timestampLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}

		results = append(results, e)
	}

	return results, rows.Err()
}
