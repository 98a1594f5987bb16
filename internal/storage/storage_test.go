package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	processingerrors "github.com/adverant/nexus/labelcompose-worker/internal/errors"
	"github.com/adverant/nexus/labelcompose-worker/internal/processor"
	"github.com/adverant/nexus/labelcompose-worker/internal/shipment"
)

type fakeStore struct {
	updates   []*RunUpdate
	shipments map[string][]ShipmentRow
	err       error
}

func (f *fakeStore) UpdateRunStatus(ctx context.Context, update *RunUpdate) error {
	if f.err != nil {
		return f.err
	}
	f.updates = append(f.updates, update)
	return nil
}

func (f *fakeStore) StoreShipments(ctx context.Context, runID string, rows []ShipmentRow) error {
	if f.shipments == nil {
		f.shipments = make(map[string][]ShipmentRow)
	}
	f.shipments[runID] = rows
	return nil
}

func TestRecordSuccess(t *testing.T) {
	store := &fakeStore{}
	sm := &StorageManager{store: store}
	items := []shipment.LineItem{{SKU: "ZX2225_2", Title: "Sandália", Quantity: 1, Size: "39 BR"}}
	result := &processor.ProcessResult{
		Arquivo:       "nota.pdf",
		TrackingCodes: []shipment.TrackingCode{"AM996944264BR", "AM997753439BR"},
		IsDanfe:       true,
		SaidaPDF:      "/out/nota.pdf",
		Shipments: []shipment.Shipment{
			{Ordinal: 1, Tracking: "AM997753439BR", FiscalKey: "35240612345678000190550010000012341000012345", Items: items},
		},
		PageCount:   2,
		OutputPages: 1,
	}

	if err := sm.RecordSuccess(context.Background(), "run-1", result); err != nil {
		t.Fatal(err)
	}

	u := store.updates[0]
	if u.Status != RunCompleted || !u.IsFiscal || u.ShipmentCount != 1 || u.OutputPath != "/out/nota.pdf" {
		t.Errorf("update = %+v", u)
	}
	if strings.Join(u.TrackingCodes, ",") != "AM996944264BR,AM997753439BR" {
		t.Errorf("tracking codes = %v", u.TrackingCodes)
	}
	var summary map[string]interface{}
	if err := json.Unmarshal(u.Result, &summary); err != nil || summary["arquivo"] != "nota.pdf" {
		t.Errorf("result json = %s (%v)", u.Result, err)
	}

	rows := store.shipments["run-1"]
	if len(rows) != 1 || rows[0].Ordinal != 1 || rows[0].FiscalKey == "" {
		t.Fatalf("rows = %+v", rows)
	}
	var stored []shipment.LineItem
	if err := json.Unmarshal(rows[0].Items, &stored); err != nil || len(stored) != 1 || stored[0].Size != "39 BR" {
		t.Errorf("items = %s (%v)", rows[0].Items, err)
	}
}

func TestRecordFailure(t *testing.T) {
	store := &fakeStore{}
	sm := &StorageManager{store: store}

	cause := processingerrors.NewOCRFailedError("run-2", 0, errors.New("tesseract missing"))
	if err := sm.RecordFailure(context.Background(), "run-2", cause); err != nil {
		t.Fatal(err)
	}
	u := store.updates[0]
	if u.Status != RunFailed || u.ErrorCode != string(processingerrors.ErrorOCRFailed) || len(u.Result) == 0 {
		t.Errorf("update = %+v", u)
	}

	if err := sm.RecordFailure(context.Background(), "run-3", errors.New("plain")); err != nil {
		t.Fatal(err)
	}
	if u := store.updates[1]; u.ErrorCode != "PROCESSING_ERROR" || u.ErrorMessage != "plain" {
		t.Errorf("update = %+v", u)
	}
}

func TestRecordFailure_StoreError(t *testing.T) {
	sm := &StorageManager{store: &fakeStore{err: errors.New("connection refused")}}
	if err := sm.RecordFailure(context.Background(), "run-4", errors.New("x")); err == nil {
		t.Fatal("expected error")
	} else if code, _ := processingerrors.CodeOf(err); code != processingerrors.ErrorStorageFailed {
		t.Errorf("code = %s", code)
	}
}

func TestSanitizeJSONForPostgres(t *testing.T) {
	in := []byte(`{"text":"a\u0000b\u0007c<d"}`)
	got := string(sanitizeJSONForPostgres(in))
	want := `{"text":"ab c<d"}`
	if got != want {
		t.Errorf("sanitizeJSONForPostgres() = %s, want %s", got, want)
	}
}

func TestNewStorageManager_RequiresClient(t *testing.T) {
	if _, err := NewStorageManager(nil); err == nil {
		t.Fatal("expected error")
	}
}
