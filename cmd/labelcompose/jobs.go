package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/adverant/nexus/labelcompose-worker/internal/queue"
	"github.com/adverant/nexus/labelcompose-worker/internal/storage"
)

func runEnqueue(ctx context.Context, env *cliEnv, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("enqueue needs <input> <output>")
	}
	input, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	output, err := filepath.Abs(args[1])
	if err != nil {
		return err
	}

	enq, err := queue.NewEnqueuer(&queue.EnqueuerConfig{
		RedisURL:          env.cfg.RedisURL,
		QueueName:         env.cfg.QueueName,
		MaxRetries:        env.cfg.MaxRetries,
		ProcessingTimeout: env.cfg.ProcessingTimeout,
	})
	if err != nil {
		return err
	}
	defer enq.Close()

	job := queue.NewJob(input, output)
	info, err := enq.Enqueue(ctx, job)
	if err != nil {
		return err
	}
	env.logger.Info("Job enqueued", "job_id", job.JobID, "queue", info.Queue)
	return printJSON(job)
}

func runStatus(ctx context.Context, env *cliEnv, args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("status takes at most one job id")
	}

	client, err := env.redisClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()
	tracker := queue.NewRedisStatusTracker(client, env.cfg.QueueName)

	if len(args) == 0 {
		stats, err := tracker.GetStats(ctx)
		if err != nil {
			return err
		}
		return printJSON(stats)
	}

	if _, err := uuid.Parse(args[0]); err != nil {
		return fmt.Errorf("job id must be a UUID: %w", err)
	}

	// the stored run is optional; without DATABASE_URL only Redis is read
	var runs runReader
	if env.cfg.DatabaseURL != "" {
		postgres, err := storage.NewPostgresClient(env.cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer postgres.Close()
		runs = postgres
	}

	report, err := buildJobReport(ctx, tracker, runs, args[0])
	if err != nil {
		return err
	}
	return printJSON(report)
}

type statusReader interface {
	GetStatus(ctx context.Context, jobID string) (*queue.JobStatus, error)
}

type runReader interface {
	GetRun(ctx context.Context, runID string) (*storage.Run, error)
	ListShipments(ctx context.Context, runID string) ([]storage.ShipmentRow, error)
}

// jobReport is the tracked state of a job plus its stored run, when any
type jobReport struct {
	*queue.JobStatus
	Run       *storage.Run          `json:"run,omitempty"`
	Shipments []storage.ShipmentRow `json:"shipments,omitempty"`
}

func buildJobReport(ctx context.Context, tracker statusReader, runs runReader, jobID string) (*jobReport, error) {
	st, err := tracker.GetStatus(ctx, jobID)
	if err != nil {
		return nil, err
	}
	report := &jobReport{JobStatus: st}

	if runs != nil {
		run, err := runs.GetRun(ctx, jobID)
		switch {
		case errors.Is(err, storage.ErrRunNotFound):
		case err != nil:
			return nil, err
		default:
			report.Run = run
			if report.Shipments, err = runs.ListShipments(ctx, jobID); err != nil {
				return nil, err
			}
		}
	}

	if st.Status == "" && report.Run == nil {
		return nil, fmt.Errorf("job %s is not tracked", jobID)
	}
	return report, nil
}
