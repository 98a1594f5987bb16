/**
 * Storage Manager for the labelcompose worker
 *
 * Turns job lifecycle events and processing results into run rows and
 * shipment rows.
 */

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	processingerrors "github.com/adverant/nexus/labelcompose-worker/internal/errors"
	"github.com/adverant/nexus/labelcompose-worker/internal/processor"
	"github.com/adverant/nexus/labelcompose-worker/internal/shipment"
)

// Run states
const (
	RunProcessing = "processing"
	RunCompleted  = "completed"
	RunFailed     = "failed"
)

// runStore is the subset of PostgresClient the manager writes through
type runStore interface {
	UpdateRunStatus(ctx context.Context, update *RunUpdate) error
	StoreShipments(ctx context.Context, runID string, rows []ShipmentRow) error
}

// StorageManager records processing runs
type StorageManager struct {
	store runStore
}

// NewStorageManager creates a new storage manager
func NewStorageManager(postgres *PostgresClient) (*StorageManager, error) {
	if postgres == nil {
		return nil, fmt.Errorf("PostgreSQL client is required")
	}
	return &StorageManager{store: postgres}, nil
}

// RecordStart marks a run as processing
func (sm *StorageManager) RecordStart(ctx context.Context, jobID, filename, inputPath, outputPath string) error {
	return sm.store.UpdateRunStatus(ctx, &RunUpdate{
		RunID:      jobID,
		Status:     RunProcessing,
		Filename:   filename,
		InputPath:  inputPath,
		OutputPath: outputPath,
	})
}

// RecordSuccess stores the result summary and the shipments of a run
func (sm *StorageManager) RecordSuccess(ctx context.Context, jobID string, result *processor.ProcessResult) error {
	update, err := successUpdate(jobID, result)
	if err != nil {
		return err
	}
	rows, err := shipmentRows(result.Shipments)
	if err != nil {
		return err
	}

	if err := sm.store.UpdateRunStatus(ctx, update); err != nil {
		return processingerrors.NewStorageFailedError(jobID, err)
	}
	if err := sm.store.StoreShipments(ctx, jobID, rows); err != nil {
		return processingerrors.NewStorageFailedError(jobID, err)
	}
	return nil
}

// RecordFailure marks a run as failed with the code of cause
func (sm *StorageManager) RecordFailure(ctx context.Context, jobID string, cause error) error {
	if err := sm.store.UpdateRunStatus(ctx, failureUpdate(jobID, cause)); err != nil {
		return processingerrors.NewStorageFailedError(jobID, err)
	}
	return nil
}

func successUpdate(jobID string, result *processor.ProcessResult) (*RunUpdate, error) {
	if result == nil {
		return nil, fmt.Errorf("result is required")
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	codes := make([]string, len(result.TrackingCodes))
	for i, c := range result.TrackingCodes {
		codes[i] = string(c)
	}

	return &RunUpdate{
		RunID:            jobID,
		Status:           RunCompleted,
		Filename:         result.Arquivo,
		OutputPath:       result.SaidaPDF,
		IsFiscal:         result.IsDanfe,
		TrackingCodes:    codes,
		ShipmentCount:    len(result.Shipments),
		PageCount:        result.PageCount,
		OutputPages:      result.OutputPages,
		ProcessingTimeMs: result.ProcessingTimeMs,
		Result:           sanitizeJSONForPostgres(resultJSON),
	}, nil
}

func failureUpdate(jobID string, cause error) *RunUpdate {
	update := &RunUpdate{
		RunID:        jobID,
		Status:       RunFailed,
		ErrorCode:    "PROCESSING_ERROR",
		ErrorMessage: cause.Error(),
	}
	var pe *processingerrors.ProcessingError
	if errors.As(cause, &pe) {
		update.ErrorCode = string(pe.Code)
		if details, err := json.Marshal(pe.ToMap()); err == nil {
			update.Result = sanitizeJSONForPostgres(details)
		}
	}
	return update
}

func shipmentRows(shipments []shipment.Shipment) ([]ShipmentRow, error) {
	rows := make([]ShipmentRow, 0, len(shipments))
	for _, s := range shipments {
		items, err := json.Marshal(s.Items)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal items of %s: %w", s.Tracking, err)
		}
		rows = append(rows, ShipmentRow{
			Ordinal:   s.Ordinal,
			Tracking:  string(s.Tracking),
			FiscalKey: string(s.FiscalKey),
			Recipient: s.Recipient,
			Items:     sanitizeJSONForPostgres(items),
		})
	}
	return rows, nil
}

var (
	nullEscape    = regexp.MustCompile(`\\u0000`)
	controlEscape = regexp.MustCompile(`\\u00[01][0-9a-fA-F]`)
)

// sanitizeJSONForPostgres removes escape sequences PostgreSQL JSONB rejects.
// OCR text occasionally carries NUL and other control characters.
func sanitizeJSONForPostgres(jsonBytes []byte) []byte {
	result := nullEscape.ReplaceAll(jsonBytes, []byte{})
	return controlEscape.ReplaceAll(result, []byte(" "))
}
