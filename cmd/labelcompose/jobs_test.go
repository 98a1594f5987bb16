package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/adverant/nexus/labelcompose-worker/internal/queue"
	"github.com/adverant/nexus/labelcompose-worker/internal/storage"
)

const testJobID = "3f1c2a9e-7b4d-4c1e-9a55-0d6f8e2b7c11"

type fakeStatus struct {
	status *queue.JobStatus
	err    error
}

func (f fakeStatus) GetStatus(ctx context.Context, jobID string) (*queue.JobStatus, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.status, nil
}

type fakeRuns struct {
	run        *storage.Run
	shipments  []storage.ShipmentRow
	err        error
	listCalled bool
}

func (f *fakeRuns) GetRun(ctx context.Context, runID string) (*storage.Run, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.run == nil {
		return nil, fmt.Errorf("%w: %s", storage.ErrRunNotFound, runID)
	}
	return f.run, nil
}

func (f *fakeRuns) ListShipments(ctx context.Context, runID string) ([]storage.ShipmentRow, error) {
	f.listCalled = true
	return f.shipments, nil
}

func TestBuildJobReport_WithStoredRun(t *testing.T) {
	tracker := fakeStatus{status: &queue.JobStatus{JobID: testJobID, Status: queue.StatusCompleted}}
	runs := &fakeRuns{
		run:       &storage.Run{ID: testJobID, Status: storage.RunCompleted, ShipmentCount: 1},
		shipments: []storage.ShipmentRow{{Ordinal: 0, Tracking: "AM997753439BR", Items: json.RawMessage(`[]`)}},
	}

	report, err := buildJobReport(context.Background(), tracker, runs, testJobID)
	if err != nil {
		t.Fatalf("buildJobReport() error = %v", err)
	}
	if report.Run == nil || len(report.Shipments) != 1 {
		t.Fatalf("report = %+v", report)
	}

	data, err := json.Marshal(report)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"jobId":"` + testJobID + `"`, `"status":"completed"`, `"tracking_code":"AM997753439BR"`, `"items":[]`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("report JSON %s lacks %s", data, want)
		}
	}
}

func TestBuildJobReport_StoredRunOnly(t *testing.T) {
	tracker := fakeStatus{status: &queue.JobStatus{JobID: testJobID}}
	runs := &fakeRuns{run: &storage.Run{ID: testJobID, Status: storage.RunFailed}}

	report, err := buildJobReport(context.Background(), tracker, runs, testJobID)
	if err != nil || report.Run.Status != storage.RunFailed {
		t.Fatalf("buildJobReport() = %+v, %v", report, err)
	}
}

func TestBuildJobReport_Untracked(t *testing.T) {
	tracker := fakeStatus{status: &queue.JobStatus{JobID: testJobID}}

	if _, err := buildJobReport(context.Background(), tracker, nil, testJobID); err == nil {
		t.Fatal("untracked job without database reported")
	}

	runs := &fakeRuns{}
	if _, err := buildJobReport(context.Background(), tracker, runs, testJobID); err == nil {
		t.Fatal("untracked job without stored run reported")
	}
	if runs.listCalled {
		t.Error("shipments listed for a missing run")
	}
}

func TestBuildJobReport_Errors(t *testing.T) {
	boom := errors.New("connection refused")
	if _, err := buildJobReport(context.Background(), fakeStatus{err: boom}, nil, testJobID); !errors.Is(err, boom) {
		t.Fatalf("tracker error = %v", err)
	}

	tracker := fakeStatus{status: &queue.JobStatus{JobID: testJobID, Status: queue.StatusProcessing}}
	if _, err := buildJobReport(context.Background(), tracker, &fakeRuns{err: boom}, testJobID); !errors.Is(err, boom) {
		t.Fatalf("storage error = %v", err)
	}
}
