package queue

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// TaskTypeProcess is the asynq task type of a document job
const TaskTypeProcess = "labelcompose:process"

// JobData represents the payload of a document job
type JobData struct {
	JobID      string `json:"jobId"`
	InputPath  string `json:"inputPath"`
	OutputPath string `json:"outputPath"`
	Filename   string `json:"filename,omitempty"`
}

// Validate checks the fields every job needs
func (j *JobData) Validate() error {
	if j.JobID == "" {
		return fmt.Errorf("jobId is required")
	}
	if _, err := uuid.Parse(j.JobID); err != nil {
		return fmt.Errorf("jobId must be a UUID: %w", err)
	}
	if j.InputPath == "" {
		return fmt.Errorf("inputPath is required")
	}
	if j.OutputPath == "" {
		return fmt.Errorf("outputPath is required")
	}
	return nil
}

// NewJob creates a job with a fresh id. The filename defaults to the input base name.
func NewJob(inputPath, outputPath string) *JobData {
	return &JobData{
		JobID:      uuid.NewString(),
		InputPath:  inputPath,
		OutputPath: outputPath,
		Filename:   filepath.Base(inputPath),
	}
}

// NewProcessTask creates the asynq task of a job
func NewProcessTask(job *JobData, opts ...asynq.Option) (*asynq.Task, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job data: %w", err)
	}
	return asynq.NewTask(TaskTypeProcess, payload, opts...), nil
}

// ParseJobData decodes and validates a task payload
func ParseJobData(payload []byte) (*JobData, error) {
	var job JobData
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job data: %w", err)
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	if job.Filename == "" {
		job.Filename = filepath.Base(job.InputPath)
	}
	return &job, nil
}

// retryDelay backs off exponentially: 5s, 10s, 20s, capped at 60s
func retryDelay(n int, err error, task *asynq.Task) time.Duration {
	delay := time.Duration(5*(1<<uint(n))) * time.Second
	if delay > 60*time.Second {
		delay = 60 * time.Second
	}
	return delay
}
