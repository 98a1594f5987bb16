/**
 * PostgreSQL Client for the labelcompose worker
 *
 * Persists processing runs and the shipments resolved by each run.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// ErrRunNotFound is returned by GetRun for unknown run ids
var ErrRunNotFound = errors.New("run not found")

// PostgresClient handles database operations
type PostgresClient struct {
	db *sql.DB
}

// RunUpdate represents a processing run status update
type RunUpdate struct {
	RunID            string
	Status           string
	Filename         string
	InputPath        string
	OutputPath       string
	IsFiscal         bool
	TrackingCodes    []string
	ShipmentCount    int
	PageCount        int
	OutputPages      int
	ProcessingTimeMs int64
	ErrorCode        string
	ErrorMessage     string
	Result           []byte
}

// Run is a stored processing run
type Run struct {
	ID               string          `json:"id"`
	Status           string          `json:"status"`
	Filename         string          `json:"filename"`
	InputPath        string          `json:"input_path"`
	OutputPath       string          `json:"output_path,omitempty"`
	IsFiscal         bool            `json:"is_fiscal"`
	TrackingCodes    []string        `json:"tracking_codes"`
	ShipmentCount    int             `json:"shipment_count"`
	PageCount        int             `json:"page_count"`
	OutputPages      int             `json:"output_pages"`
	ProcessingTimeMs int64           `json:"processing_time_ms,omitempty"`
	ErrorCode        string          `json:"error_code,omitempty"`
	ErrorMessage     string          `json:"error_message,omitempty"`
	Result           json.RawMessage `json:"result,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// ShipmentRow is one stored shipment of a run. Items holds the JSON item list.
type ShipmentRow struct {
	Ordinal   int             `json:"ordinal"`
	Tracking  string          `json:"tracking_code"`
	FiscalKey string          `json:"fiscal_key,omitempty"`
	Recipient string          `json:"recipient,omitempty"`
	Items     json.RawMessage `json:"items"`
}

const schemaDDL = `
	CREATE SCHEMA IF NOT EXISTS labelcompose;

	CREATE TABLE IF NOT EXISTS labelcompose.processing_runs (
		id                 UUID PRIMARY KEY,
		status             TEXT NOT NULL,
		filename           TEXT NOT NULL DEFAULT '',
		input_path         TEXT NOT NULL DEFAULT '',
		output_path        TEXT,
		is_fiscal          BOOLEAN NOT NULL DEFAULT FALSE,
		tracking_codes     TEXT[] NOT NULL DEFAULT '{}',
		shipment_count     INTEGER NOT NULL DEFAULT 0,
		page_count         INTEGER NOT NULL DEFAULT 0,
		output_pages       INTEGER NOT NULL DEFAULT 0,
		processing_time_ms BIGINT,
		error_code         TEXT,
		error_message      TEXT,
		result             JSONB,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS labelcompose.shipments (
		run_id        UUID NOT NULL REFERENCES labelcompose.processing_runs(id) ON DELETE CASCADE,
		ordinal       INTEGER NOT NULL,
		tracking_code TEXT NOT NULL,
		fiscal_key    TEXT,
		recipient     TEXT,
		items         JSONB NOT NULL DEFAULT '[]',
		PRIMARY KEY (run_id, tracking_code)
	);

	CREATE INDEX IF NOT EXISTS shipments_tracking_code_idx ON labelcompose.shipments (tracking_code);
`

// NewPostgresClient creates a new PostgreSQL client
func NewPostgresClient(databaseURL string) (*PostgresClient, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{db: db}, nil
}

// EnsureSchema creates the labelcompose schema and tables when missing
func (p *PostgresClient) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// UpdateRunStatus creates or updates a processing run
func (p *PostgresClient) UpdateRunStatus(ctx context.Context, update *RunUpdate) error {
	if update.RunID == "" {
		return fmt.Errorf("run ID is required")
	}

	if update.Status == "" {
		return fmt.Errorf("status is required")
	}

	// Zero values never overwrite what an earlier update stored
	query := `
		INSERT INTO labelcompose.processing_runs (
			id, status, filename, input_path, output_path,
			is_fiscal, tracking_codes, shipment_count, page_count, output_pages,
			processing_time_ms, error_code, error_message, result,
			created_at, updated_at
		) VALUES (
			$1::uuid, $2, $3, $4, NULLIF($5, ''),
			$6, COALESCE($7, '{}'::text[]), $8, $9, $10,
			NULLIF($11, 0), NULLIF($12, ''), NULLIF($13, ''), $14::jsonb,
			NOW(), NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			filename = COALESCE(NULLIF(EXCLUDED.filename, ''), labelcompose.processing_runs.filename),
			input_path = COALESCE(NULLIF(EXCLUDED.input_path, ''), labelcompose.processing_runs.input_path),
			output_path = COALESCE(EXCLUDED.output_path, labelcompose.processing_runs.output_path),
			is_fiscal = EXCLUDED.is_fiscal OR labelcompose.processing_runs.is_fiscal,
			tracking_codes = CASE
				WHEN cardinality(EXCLUDED.tracking_codes) > 0 THEN EXCLUDED.tracking_codes
				ELSE labelcompose.processing_runs.tracking_codes
			END,
			shipment_count = GREATEST(EXCLUDED.shipment_count, labelcompose.processing_runs.shipment_count),
			page_count = GREATEST(EXCLUDED.page_count, labelcompose.processing_runs.page_count),
			output_pages = GREATEST(EXCLUDED.output_pages, labelcompose.processing_runs.output_pages),
			processing_time_ms = COALESCE(EXCLUDED.processing_time_ms, labelcompose.processing_runs.processing_time_ms),
			error_code = EXCLUDED.error_code,
			error_message = EXCLUDED.error_message,
			result = COALESCE(EXCLUDED.result, labelcompose.processing_runs.result),
			updated_at = NOW()
		RETURNING id
	`

	var result interface{}
	if len(update.Result) > 0 {
		result = string(update.Result)
	}

	var returnedID string
	err := p.db.QueryRowContext(
		ctx,
		query,
		update.RunID,                   // $1 - id
		update.Status,                  // $2 - status
		update.Filename,                // $3 - filename
		update.InputPath,               // $4 - input_path
		update.OutputPath,              // $5 - output_path
		update.IsFiscal,                // $6 - is_fiscal
		pq.Array(update.TrackingCodes), // $7 - tracking_codes
		update.ShipmentCount,           // $8 - shipment_count
		update.PageCount,               // $9 - page_count
		update.OutputPages,             // $10 - output_pages
		update.ProcessingTimeMs,        // $11 - processing_time_ms
		update.ErrorCode,               // $12 - error_code
		update.ErrorMessage,            // $13 - error_message
		result,                         // $14 - result
	).Scan(&returnedID)

	if err != nil {
		return fmt.Errorf("failed to update run status (run=%s, status=%s): %w", update.RunID, update.Status, err)
	}

	return nil
}

// StoreShipments replaces the shipments of a run in one transaction
func (p *PostgresClient) StoreShipments(ctx context.Context, runID string, rows []ShipmentRow) error {
	if runID == "" {
		return fmt.Errorf("run ID is required")
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM labelcompose.shipments WHERE run_id = $1::uuid`, runID); err != nil {
		return fmt.Errorf("failed to clear shipments of run %s: %w", runID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO labelcompose.shipments (run_id, ordinal, tracking_code, fiscal_key, recipient, items)
		VALUES ($1::uuid, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6::jsonb)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare shipment insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, runID, row.Ordinal, row.Tracking, row.FiscalKey, row.Recipient, string(row.Items)); err != nil {
			return fmt.Errorf("failed to store shipment %s: %w", row.Tracking, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit shipments of run %s: %w", runID, err)
	}
	return nil
}

// GetRun retrieves a run by ID
func (p *PostgresClient) GetRun(ctx context.Context, runID string) (*Run, error) {
	if runID == "" {
		return nil, fmt.Errorf("run ID is required")
	}

	query := `
		SELECT
			id, status, filename, input_path, output_path,
			is_fiscal, tracking_codes, shipment_count, page_count, output_pages,
			processing_time_ms, error_code, error_message, result,
			created_at, updated_at
		FROM labelcompose.processing_runs
		WHERE id = $1::uuid
	`

	var (
		run                                  Run
		outputPath, errorCode, errorMessage  sql.NullString
		processingTimeMs                     sql.NullInt64
		trackingCodes                        pq.StringArray
		resultJSON                           []byte
	)

	err := p.db.QueryRowContext(ctx, query, runID).Scan(
		&run.ID, &run.Status, &run.Filename, &run.InputPath, &outputPath,
		&run.IsFiscal, &trackingCodes, &run.ShipmentCount, &run.PageCount, &run.OutputPages,
		&processingTimeMs, &errorCode, &errorMessage, &resultJSON,
		&run.CreatedAt, &run.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	run.OutputPath = outputPath.String
	run.ErrorCode = errorCode.String
	run.ErrorMessage = errorMessage.String
	run.ProcessingTimeMs = processingTimeMs.Int64
	run.TrackingCodes = []string(trackingCodes)
	if len(resultJSON) > 0 {
		run.Result = json.RawMessage(resultJSON)
	}

	return &run, nil
}

// ListShipments returns the shipments of a run in ordinal order
func (p *PostgresClient) ListShipments(ctx context.Context, runID string) ([]ShipmentRow, error) {
	if runID == "" {
		return nil, fmt.Errorf("run ID is required")
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT ordinal, tracking_code, COALESCE(fiscal_key, ''), COALESCE(recipient, ''), items
		FROM labelcompose.shipments
		WHERE run_id = $1::uuid
		ORDER BY ordinal
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shipments: %w", err)
	}
	defer rows.Close()

	out := []ShipmentRow{}
	for rows.Next() {
		var (
			row   ShipmentRow
			items []byte
		)
		if err := rows.Scan(&row.Ordinal, &row.Tracking, &row.FiscalKey, &row.Recipient, &items); err != nil {
			return nil, fmt.Errorf("failed to scan shipment: %w", err)
		}
		row.Items = json.RawMessage(items)
		out = append(out, row)
	}
	return out, rows.Err()
}

// Ping checks database connectivity
func (p *PostgresClient) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection
func (p *PostgresClient) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// GetStats returns connection pool statistics
func (p *PostgresClient) GetStats() sql.DBStats {
	return p.db.Stats()
}
