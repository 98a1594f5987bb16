package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Enqueuer submits document jobs
type Enqueuer struct {
	client     *asynq.Client
	queueName  string
	maxRetries int
	timeout    time.Duration
}

// EnqueuerConfig holds enqueuer configuration
type EnqueuerConfig struct {
	RedisURL          string
	QueueName         string
	MaxRetries        int
	ProcessingTimeout time.Duration
}

// NewEnqueuer creates a new enqueuer
func NewEnqueuer(cfg *EnqueuerConfig) (*Enqueuer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}
	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	return &Enqueuer{
		client:     asynq.NewClient(redisOpt),
		queueName:  cfg.QueueName,
		maxRetries: cfg.MaxRetries,
		timeout:    cfg.ProcessingTimeout,
	}, nil
}

// Enqueue submits job and returns the queued task info
func (e *Enqueuer) Enqueue(ctx context.Context, job *JobData) (*asynq.TaskInfo, error) {
	opts := []asynq.Option{
		asynq.Queue(e.queueName),
		asynq.MaxRetry(e.maxRetries),
		asynq.TaskID(job.JobID),
	}
	if e.timeout > 0 {
		// the handler deadline fires before asynq's
		opts = append(opts, asynq.Timeout(e.timeout+30*time.Second))
	}

	task, err := NewProcessTask(job, opts...)
	if err != nil {
		return nil, err
	}
	info, err := e.client.EnqueueContext(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue job %s: %w", job.JobID, err)
	}
	return info, nil
}

// Close closes the underlying client
func (e *Enqueuer) Close() error {
	return e.client.Close()
}
