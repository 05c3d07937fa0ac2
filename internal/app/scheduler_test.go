package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/amanas96/slot-swapper/internal/model"
	"github.com/amanas96/slot-swapper/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingNotifier struct {
	mu     sync.Mutex
	topics []string
	fail   error
}

func (n *recordingNotifier) Notify(ctx context.Context, msg *model.OutboxMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		return n.fail
	}
	n.topics = append(n.topics, msg.Topic)
	return nil
}

func (n *recordingNotifier) delivered() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.topics...)
}

func enqueue(t *testing.T, store *memory.Store, topics ...string) {
	t.Helper()
	payload, err := json.Marshal(model.SwapEvent{ProposerID: "alice", RecipientID: "bob"})
	require.NoError(t, err)
	for _, topic := range topics {
		require.NoError(t, store.Repositories().Outbox.Insert(context.Background(),
			&model.OutboxMessage{Topic: topic, Payload: payload}))
	}
}

func TestScheduler_DispatchOutbox(t *testing.T) {
	store := memory.NewStore()
	notifier := &recordingNotifier{}
	s := NewScheduler(store, notifier, RelayConfig{BatchSize: 2, MaxAttempts: 3}, zap.NewNop())

	enqueue(t, store, model.TopicSwapProposed, model.TopicSwapAccepted, model.TopicSwapRejected)

	n, err := s.DispatchOutbox(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.DispatchOutbox(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, []string{model.TopicSwapProposed, model.TopicSwapAccepted, model.TopicSwapRejected}, notifier.delivered())
	for _, m := range store.Snapshot().Outbox {
		assert.Equal(t, model.OutboxStatusProcessed, m.Status)
		assert.Equal(t, 1, m.Attempts)
	}

	n, err = s.DispatchOutbox(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestScheduler_FailedDeliveryBecomesDead(t *testing.T) {
	store := memory.NewStore()
	notifier := &recordingNotifier{fail: errors.New("telegram unavailable")}
	s := NewScheduler(store, notifier, RelayConfig{BatchSize: 10, MaxAttempts: 2}, zap.NewNop())

	enqueue(t, store, model.TopicSwapProposed)

	_, err := s.DispatchOutbox(context.Background())
	require.NoError(t, err)
	msg := store.Snapshot().Outbox[0]
	assert.Equal(t, model.OutboxStatusPending, msg.Status)
	assert.Equal(t, 1, msg.Attempts)

	_, err = s.DispatchOutbox(context.Background())
	require.NoError(t, err)
	msg = store.Snapshot().Outbox[0]
	assert.Equal(t, model.OutboxStatusDead, msg.Status)
	assert.Equal(t, 2, msg.Attempts)

	n, err := s.DispatchOutbox(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestScheduler_StartStop(t *testing.T) {
	store := memory.NewStore()
	notifier := &recordingNotifier{}
	s := NewScheduler(store, notifier, RelayConfig{PollInterval: 5 * time.Millisecond}, zap.NewNop())

	enqueue(t, store, model.TopicSwapProposed)
	s.Start(context.Background())

	require.Eventually(t, func() bool {
		return len(notifier.delivered()) == 1
	}, time.Second, 5*time.Millisecond)

	s.Stop()
	s.Stop()
}
