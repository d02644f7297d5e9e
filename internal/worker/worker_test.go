package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cfraser/adventure-engine/internal/services"
	"github.com/cfraser/adventure-engine/internal/services/events"
	svcqueue "github.com/cfraser/adventure-engine/internal/services/queue"
	"github.com/cfraser/adventure-engine/pkg/queue"
	"github.com/cfraser/adventure-engine/pkg/storage"
)

// newTestWorker wires a worker against miniredis with mock storage and
// a mock LLM.
func newTestWorker(t *testing.T, store *storage.MockStorage, llm *services.MockLLMService) (*Worker, *svcqueue.ActionQueue, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	logger := testLogger()

	client, err := svcqueue.NewClient(mr.Addr(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	q := svcqueue.NewActionQueue(client)
	p := newTestProcessor(store, llm)
	w := New(q, p, client.GetRedisClient(), logger, "worker-test")
	t.Cleanup(w.Stop)

	return w, q, client.GetRedisClient()
}

// subscribeEvents returns a channel of decoded events published for the
// session.
func subscribeEvents(t *testing.T, rdb *redis.Client, sessionID uuid.UUID) <-chan events.Event {
	t.Helper()

	sub := rdb.Subscribe(context.Background(), events.Channel(sessionID))
	_, err := sub.Receive(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { sub.Close() })

	out := make(chan events.Event, 16)
	go func() {
		for msg := range sub.Channel() {
			var e events.Event
			if json.Unmarshal([]byte(msg.Payload), &e) == nil {
				out <- e
			}
		}
	}()
	return out
}

func nextEvent(t *testing.T, ch <-chan events.Event) events.Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return events.Event{}
	}
}

func TestWorkerProcessesQueuedRequest(t *testing.T) {
	store := storage.NewMockStorage()
	s := seedSession(t, store)

	llm := services.NewMockLLMService()
	llm.SetChatResponse("You cross to the market.")
	w, q, rdb := newTestWorker(t, store, llm)

	ch := subscribeEvents(t, rdb, s.ID)

	req := queue.NewActionRequest(s.ID, moveToMarket(), "")
	require.NoError(t, q.Enqueue(context.Background(), req))

	require.NoError(t, w.processNext())

	processing := nextEvent(t, ch)
	assert.Equal(t, events.EventTypeRequestProcessing, processing.Type)
	assert.Equal(t, req.RequestID, processing.RequestID)

	completed := nextEvent(t, ch)
	assert.Equal(t, events.EventTypeRequestCompleted, completed.Type)
	result, ok := completed.Data["result"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, result["success"])
	assert.Equal(t, "You cross to the market.", result["narration"])

	turn := nextEvent(t, ch)
	assert.Equal(t, events.EventTypeTurnCompleted, turn.Type)
	assert.Equal(t, float64(1), turn.Data["turn"])
	assert.Equal(t, "market", turn.Data["location"])

	stored, err := store.LoadSession(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Turn)

	depth, err := q.Depth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, depth)

	exists, err := rdb.Exists(context.Background(), sessionLockKey(s.ID)).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), exists, "session lock should be released")
}

func TestWorkerRequeuesWhenSessionLocked(t *testing.T) {
	store := storage.NewMockStorage()
	s := seedSession(t, store)

	llm := services.NewMockLLMService()
	w, q, rdb := newTestWorker(t, store, llm)

	require.NoError(t, rdb.Set(context.Background(), sessionLockKey(s.ID), "other-worker", time.Minute).Err())

	req := queue.NewActionRequest(s.ID, moveToMarket(), "")
	require.NoError(t, q.Enqueue(context.Background(), req))

	require.NoError(t, w.processNext())

	depth, err := q.Depth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, depth, "request should be back on the queue")

	stored, err := store.LoadSession(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Turn)
	assert.Empty(t, llm.GetChatCalls())

	holder, err := rdb.Get(context.Background(), sessionLockKey(s.ID)).Result()
	require.NoError(t, err)
	assert.Equal(t, "other-worker", holder, "foreign lock must survive")
}

func TestWorkerUnknownRequestType(t *testing.T) {
	store := storage.NewMockStorage()
	s := seedSession(t, store)
	w, q, rdb := newTestWorker(t, store, services.NewMockLLMService())

	ch := subscribeEvents(t, rdb, s.ID)

	req := queue.NewActionRequest(s.ID, moveToMarket(), "")
	req.Type = "teleport"
	require.NoError(t, q.Enqueue(context.Background(), req))

	err := w.processNext()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown request type")

	processing := nextEvent(t, ch)
	assert.Equal(t, events.EventTypeRequestProcessing, processing.Type)

	failed := nextEvent(t, ch)
	assert.Equal(t, events.EventTypeRequestFailed, failed.Type)
	errMsg, _ := failed.Data["error"].(string)
	assert.Contains(t, errMsg, "teleport")
}

func TestWorkerProcessorFailurePublishesFailed(t *testing.T) {
	store := storage.NewMockStorage()
	w, q, rdb := newTestWorker(t, store, services.NewMockLLMService())

	sid := uuid.New()
	ch := subscribeEvents(t, rdb, sid)

	req := queue.NewActionRequest(sid, moveToMarket(), "")
	require.NoError(t, q.Enqueue(context.Background(), req))

	err := w.processNext()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session not found")

	processing := nextEvent(t, ch)
	assert.Equal(t, events.EventTypeRequestProcessing, processing.Type)

	failed := nextEvent(t, ch)
	assert.Equal(t, events.EventTypeRequestFailed, failed.Type)

	exists, err := rdb.Exists(context.Background(), sessionLockKey(sid)).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), exists, "lock should be released after a failure")
}

func TestWorkerSessionLock(t *testing.T) {
	w, _, rdb := newTestWorker(t, storage.NewMockStorage(), services.NewMockLLMService())
	sid := uuid.New()

	locked, err := w.acquireSessionLock(sid)
	require.NoError(t, err)
	assert.True(t, locked)

	ttl, err := rdb.TTL(context.Background(), sessionLockKey(sid)).Result()
	require.NoError(t, err)
	assert.Equal(t, sessionLockTTL, ttl)

	again, err := w.acquireSessionLock(sid)
	require.NoError(t, err)
	assert.False(t, again, "lock must not be reentrant")

	w.releaseSessionLock(sid)
	exists, err := rdb.Exists(context.Background(), sessionLockKey(sid)).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), exists)
}

func TestWorkerReleaseRespectsOwner(t *testing.T) {
	w, _, rdb := newTestWorker(t, storage.NewMockStorage(), services.NewMockLLMService())
	sid := uuid.New()

	require.NoError(t, rdb.Set(context.Background(), sessionLockKey(sid), "other-worker", time.Minute).Err())

	w.releaseSessionLock(sid)

	holder, err := rdb.Get(context.Background(), sessionLockKey(sid)).Result()
	require.NoError(t, err)
	assert.Equal(t, "other-worker", holder, "a lock held by another worker must not be released")
}

func TestWorkerStartStop(t *testing.T) {
	store := storage.NewMockStorage()
	s := seedSession(t, store)

	llm := services.NewMockLLMService()
	llm.SetChatResponse("You cross to the market.")
	w, q, _ := newTestWorker(t, store, llm)

	done := make(chan error, 1)
	go func() { done <- w.Start() }()

	req := queue.NewActionRequest(s.ID, moveToMarket(), "")
	require.NoError(t, q.Enqueue(context.Background(), req))

	require.Eventually(t, func() bool {
		stored, err := store.LoadSession(context.Background(), s.ID)
		return err == nil && stored != nil && stored.Turn == 1
	}, 3*time.Second, 20*time.Millisecond)

	w.Stop()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("worker did not stop")
	}
}
