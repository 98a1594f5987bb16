/**
 * Queue Consumer for the labelcompose worker
 *
 * Consumes document jobs from Redis through asynq. Every job gets its own
 * catalog snapshot and timeout; terminal processing errors skip the asynq
 * retry policy.
 */

package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/adverant/nexus/labelcompose-worker/internal/catalog"
	processingerrors "github.com/adverant/nexus/labelcompose-worker/internal/errors"
	"github.com/adverant/nexus/labelcompose-worker/internal/logging"
	"github.com/adverant/nexus/labelcompose-worker/internal/processor"
	"github.com/hibiken/asynq"
)

// DefaultProcessingTimeout bounds one job when no timeout is configured
const DefaultProcessingTimeout = 2 * time.Minute

// StatusTracker follows job states for front ends
type StatusTracker interface {
	MarkProcessing(ctx context.Context, jobID string) error
	MarkCompleted(ctx context.Context, jobID string, result interface{}) error
	MarkFailed(ctx context.Context, jobID string, details map[string]interface{}) error
}

// RunRecorder persists processing runs
type RunRecorder interface {
	RecordStart(ctx context.Context, jobID, filename, inputPath, outputPath string) error
	RecordSuccess(ctx context.Context, jobID string, result *processor.ProcessResult) error
	RecordFailure(ctx context.Context, jobID string, cause error) error
}

// HandlerConfig holds job handler configuration
type HandlerConfig struct {
	Processor         processor.DocumentProcessorInterface
	Catalog           catalog.Source
	Tracker           StatusTracker
	Recorder          RunRecorder
	ProcessingTimeout time.Duration
	Logger            *logging.Logger
}

// Handler processes document tasks
type Handler struct {
	processor processor.DocumentProcessorInterface
	catalog   catalog.Source
	tracker   StatusTracker
	recorder  RunRecorder
	timeout   time.Duration
	logger    *logging.Logger
}

// NewHandler creates a new job handler. Tracker and Recorder are optional.
func NewHandler(cfg *HandlerConfig) (*Handler, error) {
	if cfg.Processor == nil {
		return nil, fmt.Errorf("Processor is required")
	}
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("Catalog is required")
	}

	timeout := cfg.ProcessingTimeout
	if timeout <= 0 {
		timeout = DefaultProcessingTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Handler{
		processor: cfg.Processor,
		catalog:   cfg.Catalog,
		tracker:   cfg.Tracker,
		recorder:  cfg.Recorder,
		timeout:   timeout,
		logger:    logger,
	}, nil
}

// ProcessTask handles one labelcompose:process task
func (h *Handler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	startTime := time.Now()

	job, err := ParseJobData(task.Payload())
	if err != nil {
		h.logger.Error("Rejecting task with invalid payload", "type", task.Type(), "error", err)
		return fmt.Errorf("%w: %w", processingerrors.NewInvalidPayloadError(task.Type(), err), asynq.SkipRetry)
	}

	log := h.logger.With("job_id", job.JobID)
	log.Info("Processing job", "file", job.Filename, "input", job.InputPath)

	if h.tracker != nil {
		if err := h.tracker.MarkProcessing(ctx, job.JobID); err != nil {
			log.Warn("Failed to track job status", "status", StatusProcessing, "error", err)
		}
	}
	if h.recorder != nil {
		if err := h.recorder.RecordStart(ctx, job.JobID, job.Filename, job.InputPath, job.OutputPath); err != nil {
			log.Warn("Failed to record run start", "error", err)
		}
	}

	snapshot, err := h.catalog.Snapshot(ctx)
	if err != nil {
		return h.fail(ctx, job, processingerrors.NewCatalogFailedError(job.JobID, fmt.Sprintf("%T", h.catalog), err))
	}

	processCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	result, err := h.processor.ProcessDocument(processCtx, &processor.ProcessRequest{
		JobID:      job.JobID,
		Filename:   job.Filename,
		InputPath:  job.InputPath,
		OutputPath: job.OutputPath,
		Catalog:    snapshot,
	})

	duration := time.Since(startTime)

	if err != nil {
		if errors.Is(processCtx.Err(), context.DeadlineExceeded) {
			log.Warn("Processing timed out", "duration", duration, "timeout", h.timeout)
			err = processingerrors.NewProcessingTimeoutError(job.JobID, h.timeout, err)
		}
		return h.fail(ctx, job, err)
	}

	log.Info("Job completed",
		"duration_ms", duration.Milliseconds(),
		"shipments", len(result.Shipments),
		"output", result.SaidaPDF)

	if h.recorder != nil {
		if err := h.recorder.RecordSuccess(ctx, job.JobID, result); err != nil {
			log.Warn("Failed to record run result", "error", err)
		}
	}
	if h.tracker != nil {
		if err := h.tracker.MarkCompleted(ctx, job.JobID, result); err != nil {
			log.Warn("Failed to track job status", "status", StatusCompleted, "error", err)
		}
	}
	return nil
}

// fail records a failed attempt. Terminal errors and last attempts mark the
// job failed; terminal errors also stop the retries.
func (h *Handler) fail(ctx context.Context, job *JobData, err error) error {
	terminal := processingerrors.IsTerminal(err)
	log := h.logger.With("job_id", job.JobID)
	log.Error("Job failed", "error", err, "terminal", terminal)

	if terminal || lastAttempt(ctx) {
		details := map[string]interface{}{"error": err.Error()}
		var pe *processingerrors.ProcessingError
		if errors.As(err, &pe) {
			details = pe.ToMap()
		}
		if h.recorder != nil {
			if recErr := h.recorder.RecordFailure(ctx, job.JobID, err); recErr != nil {
				log.Warn("Failed to record run failure", "error", recErr)
			}
		}
		if h.tracker != nil {
			if trackErr := h.tracker.MarkFailed(ctx, job.JobID, details); trackErr != nil {
				log.Warn("Failed to track job status", "status", StatusFailed, "error", trackErr)
			}
		}
	}

	if terminal {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return fmt.Errorf("document processing failed: %w", err)
}

// lastAttempt reports whether the running task will not be retried.
// Outside an asynq server every attempt is the last one.
func lastAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return true
	}
	return retried >= maxRetry
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	RedisURL    string
	QueueName   string
	Concurrency int
	Handler     *Handler
	Logger      *logging.Logger
}

// Consumer runs the asynq server
type Consumer struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	config *ConsumerConfig
	logger *logging.Logger
}

// NewConsumer creates a new queue consumer
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}
	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}
	if cfg.Handler == nil {
		return nil, fmt.Errorf("Handler is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10,
				"default":     1,
			},
			RetryDelayFunc: retryDelay,
			IsFailure: func(err error) bool {
				return !errors.Is(err, context.Canceled)
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				logger.Warn("Task processing error", "type", task.Type(), "retried", retried, "error", err)
			}),
			Logger: asynqLogger{logger.With("component", "asynq")},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeProcess, cfg.Handler.ProcessTask)

	return &Consumer{server: server, mux: mux, config: cfg, logger: logger}, nil
}

// Start starts the queue consumer
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("Starting queue consumer", "concurrency", c.config.Concurrency, "queue", c.config.QueueName)
	if err := c.server.Start(c.mux); err != nil {
		return fmt.Errorf("failed to start queue consumer: %w", err)
	}
	return nil
}

// Stop stops the queue consumer gracefully
func (c *Consumer) Stop(ctx context.Context) error {
	c.logger.Info("Stopping queue consumer")
	c.server.Shutdown()
	c.logger.Info("Queue consumer stopped")
	return nil
}

// GetStatistics returns consumer statistics
func (c *Consumer) GetStatistics() map[string]interface{} {
	return map[string]interface{}{
		"concurrency": c.config.Concurrency,
		"queue":       c.config.QueueName,
	}
}

// asynqLogger routes asynq's internal logs through the worker logger
type asynqLogger struct {
	l *logging.Logger
}

func (a asynqLogger) Debug(args ...interface{}) { a.l.Debug(fmt.Sprint(args...)) }
func (a asynqLogger) Info(args ...interface{})  { a.l.Info(fmt.Sprint(args...)) }
func (a asynqLogger) Warn(args ...interface{})  { a.l.Warn(fmt.Sprint(args...)) }
func (a asynqLogger) Error(args ...interface{}) { a.l.Error(fmt.Sprint(args...)) }
func (a asynqLogger) Fatal(args ...interface{}) {
	a.l.Error(fmt.Sprint(args...))
	os.Exit(1)
}
