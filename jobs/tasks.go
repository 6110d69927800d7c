// Package jobs hosts the background worker. Jobs only read ledger state;
// the posting engine is the sole writer.
package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrity scans for references whose debits and credits drifted apart.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskReconciliationReminder reports pending reconciliations awaiting manual handling.
	TaskReconciliationReminder = "ledger:recon_reminder"
)

// IntegrityPayload parameterises the integrity scan. Empty means all tenants.
type IntegrityPayload struct {
	TenantID int64 `json:"tenant_id,omitempty"`
}

// NewLedgerIntegrityTask constructs an Asynq task.
func NewLedgerIntegrityTask(payload IntegrityPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, data), nil
}

// NewReconciliationReminderTask constructs an Asynq task.
func NewReconciliationReminderTask() *asynq.Task {
	return asynq.NewTask(TaskReconciliationReminder, nil)
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueIntegrityScan enqueues an on-demand integrity scan.
func (c *Client) EnqueueIntegrityScan(ctx context.Context, payload IntegrityPayload) (*asynq.TaskInfo, error) {
	task, err := NewLedgerIntegrityTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
