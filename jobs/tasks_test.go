package jobs

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

func TestNewLedgerIntegrityTaskPayload(t *testing.T) {
	task, err := NewLedgerIntegrityTask(IntegrityPayload{TenantID: 7})
	require.NoError(t, err)
	require.Equal(t, TaskLedgerIntegrity, task.Type())

	var payload IntegrityPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, int64(7), payload.TenantID)
}

func TestClientEnqueueIntegrityScan(t *testing.T) {
	srv := miniredis.RunT(t)
	client := NewClient(asynq.RedisClientOpt{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	info, err := client.EnqueueIntegrityScan(context.Background(), IntegrityPayload{TenantID: 1})
	require.NoError(t, err)
	require.Equal(t, TaskLedgerIntegrity, info.Type)
	require.Equal(t, QueueDefault, info.Queue)
}
