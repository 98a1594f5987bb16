/**
 * Redis Job Status Tracker for the labelcompose worker
 *
 * Keeps the processing / completed / failed job sets, the result and error
 * hashes, and publishes a job event on every transition so front ends can
 * follow progress.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Job states
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// RedisStatusTracker records job states in Redis
type RedisStatusTracker struct {
	client *redis.Client
	prefix string
}

// NewRedisStatusTracker creates a new tracker whose keys start with prefix
func NewRedisStatusTracker(client *redis.Client, prefix string) *RedisStatusTracker {
	if prefix == "" {
		prefix = "labelcompose"
	}
	return &RedisStatusTracker{client: client, prefix: prefix}
}

func (t *RedisStatusTracker) key(name string) string {
	return fmt.Sprintf("%s:%s", t.prefix, name)
}

// MarkProcessing adds jobID to the processing set
func (t *RedisStatusTracker) MarkProcessing(ctx context.Context, jobID string) error {
	_, err := t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, t.key(StatusProcessing), jobID)
		pipe.Publish(ctx, t.key("events"), jobEvent(jobID, StatusProcessing))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to mark job %s processing: %w", jobID, err)
	}
	return nil
}

// MarkCompleted moves jobID to the completed set and stores its result
func (t *RedisStatusTracker) MarkCompleted(ctx context.Context, jobID string, result interface{}) error {
	return t.finish(ctx, jobID, StatusCompleted, "results", result)
}

// MarkFailed moves jobID to the failed set and stores its error details
func (t *RedisStatusTracker) MarkFailed(ctx context.Context, jobID string, details map[string]interface{}) error {
	return t.finish(ctx, jobID, StatusFailed, "errors", details)
}

func (t *RedisStatusTracker) finish(ctx context.Context, jobID, status, hash string, data interface{}) error {
	var encoded []byte
	if data != nil {
		var err error
		if encoded, err = json.Marshal(data); err != nil {
			return fmt.Errorf("failed to marshal %s of job %s: %w", hash, jobID, err)
		}
	}

	_, err := t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, t.key(StatusProcessing), jobID)
		pipe.SAdd(ctx, t.key(status), jobID)
		if encoded != nil {
			pipe.HSet(ctx, t.key(hash), jobID, encoded)
		}
		pipe.Publish(ctx, t.key("events"), jobEvent(jobID, status))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to mark job %s %s: %w", jobID, status, err)
	}
	return nil
}

// JobStatus is the tracked state of one job
type JobStatus struct {
	JobID  string          `json:"jobId"`
	Status string          `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  json.RawMessage `json:"error,omitempty"`
}

// GetStatus returns the tracked state of jobID; Status is empty for unknown jobs
func (t *RedisStatusTracker) GetStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	st := &JobStatus{JobID: jobID}
	for _, status := range []string{StatusCompleted, StatusFailed, StatusProcessing} {
		member, err := t.client.SIsMember(ctx, t.key(status), jobID).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read status of job %s: %w", jobID, err)
		}
		if member {
			st.Status = status
			break
		}
	}

	var hash string
	switch st.Status {
	case StatusCompleted:
		hash = "results"
	case StatusFailed:
		hash = "errors"
	default:
		return st, nil
	}

	raw, err := t.client.HGet(ctx, t.key(hash), jobID).Bytes()
	if err == redis.Nil {
		return st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s of job %s: %w", hash, jobID, err)
	}
	if st.Status == StatusCompleted {
		st.Result = raw
	} else {
		st.Error = raw
	}
	return st, nil
}

// GetStats returns the size of every job set
func (t *RedisStatusTracker) GetStats(ctx context.Context) (map[string]int64, error) {
	stats := make(map[string]int64, 3)
	for _, status := range []string{StatusProcessing, StatusCompleted, StatusFailed} {
		n, err := t.client.SCard(ctx, t.key(status)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to count %s jobs: %w", status, err)
		}
		stats[status] = n
	}
	return stats, nil
}

func jobEvent(jobID, status string) []byte {
	event := map[string]interface{}{
		"event":     fmt.Sprintf("job:%s", status),
		"jobId":     jobID,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	data, _ := json.Marshal(event)
	return data
}
