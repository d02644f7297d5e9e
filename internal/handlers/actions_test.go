package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cfraser/adventure-engine/internal/narrative"
	"github.com/cfraser/adventure-engine/internal/services"
	"github.com/cfraser/adventure-engine/internal/services/events"
	svcqueue "github.com/cfraser/adventure-engine/internal/services/queue"
	"github.com/cfraser/adventure-engine/internal/worker"
	"github.com/cfraser/adventure-engine/pkg/chat"
	"github.com/cfraser/adventure-engine/pkg/engine"
	"github.com/cfraser/adventure-engine/pkg/session"
	"github.com/cfraser/adventure-engine/pkg/storage"
)

// seedSession stores a fresh harbor session and returns it.
func seedSession(t *testing.T, store *storage.MockStorage) *session.Session {
	t.Helper()
	s := session.New("rook", harborWorld())
	require.NoError(t, store.SaveSession(context.Background(), s.ID, s))
	return s
}

func hasAction(actions []engine.Action, actionType engine.ActionType, targetID string) bool {
	for _, a := range actions {
		if a.Type == actionType && a.TargetID == targetID {
			return true
		}
	}
	return false
}

func TestListActions(t *testing.T) {
	h, store, llm := newSessionsEnv()
	s := seedSession(t, store)

	rr := getPath(h, "/v1/sessions/"+s.ID.String()+"/actions")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp ActionsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, s.ID, resp.SessionID)
	assert.True(t, hasAction(resp.Actions, engine.ActionMove, "market"))
	assert.True(t, hasAction(resp.Actions, engine.ActionTakeItem, "lantern"))
	assert.True(t, hasAction(resp.Actions, engine.ActionExplore, ""))
	assert.True(t, hasAction(resp.Actions, engine.ActionWait, ""))

	// Listing alone never consults the model.
	assert.Empty(t, llm.GetChatCalls())
}

func TestListActionsWithMax(t *testing.T) {
	h, store, llm := newSessionsEnv()
	s := seedSession(t, store)

	rr := getPath(h, "/v1/sessions/"+s.ID.String()+"/actions")
	require.Equal(t, http.StatusOK, rr.Code)
	var full ActionsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &full))
	require.Greater(t, len(full.Actions), 2)

	// The model prefers 2 then 1; the response keeps engine order.
	llm.SetChatResponse("[2, 1]")
	rr = getPath(h, "/v1/sessions/"+s.ID.String()+"/actions?max=2")
	require.Equal(t, http.StatusOK, rr.Code)

	var narrowed ActionsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &narrowed))
	require.Len(t, narrowed.Actions, 2)
	assert.Equal(t, full.Actions[0], narrowed.Actions[0])
	assert.Equal(t, full.Actions[1], narrowed.Actions[1])
}

func TestListActionsMaxAboveCount(t *testing.T) {
	h, store, llm := newSessionsEnv()
	s := seedSession(t, store)

	rr := getPath(h, "/v1/sessions/"+s.ID.String()+"/actions?max=50")
	require.Equal(t, http.StatusOK, rr.Code)

	// The full list already fits, so no model call is made.
	assert.Empty(t, llm.GetChatCalls())
}

func TestListActionsInvalidMax(t *testing.T) {
	h, store, _ := newSessionsEnv()
	s := seedSession(t, store)

	for _, max := range []string{"abc", "0", "-3"} {
		rr := getPath(h, "/v1/sessions/"+s.ID.String()+"/actions?max="+max)
		assert.Equal(t, http.StatusBadRequest, rr.Code, "max=%s", max)
	}
}

func TestListActionsSessionNotFound(t *testing.T) {
	h, _, _ := newSessionsEnv()
	rr := getPath(h, "/v1/sessions/7c9e6679-7425-40de-944b-e07fc1f90ae7/actions")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestExecuteActionSync(t *testing.T) {
	h, store, llm := newSessionsEnv()
	s := seedSession(t, store)
	llm.SetChatResponse("Rook weaves through the lantern-lit stalls.")

	rr := postJSON(t, h, "/v1/sessions/"+s.ID.String()+"/actions", ActionRequest{
		Action: engine.Action{Type: engine.ActionMove, TargetID: "market"},
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var outcome worker.Outcome
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &outcome))
	assert.True(t, outcome.Success)
	assert.Equal(t, 1, outcome.Turn)
	assert.Equal(t, "Rook weaves through the lantern-lit stalls.", outcome.Narration)
	require.NotNil(t, outcome.Player)
	assert.Equal(t, "market", outcome.Player.CurrentLocation)

	stored, err := store.LoadSession(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Turn)
}

func TestExecuteActionRejected(t *testing.T) {
	h, store, _ := newSessionsEnv()
	s := seedSession(t, store)

	rr := postJSON(t, h, "/v1/sessions/"+s.ID.String()+"/actions", ActionRequest{
		Action: engine.Action{Type: engine.ActionMove, TargetID: "lighthouse"},
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var outcome worker.Outcome
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &outcome))
	assert.False(t, outcome.Success)
	assert.NotEmpty(t, outcome.Error)
	assert.Equal(t, 0, outcome.Turn)
}

func TestExecuteActionSessionNotFound(t *testing.T) {
	h, _, _ := newSessionsEnv()
	rr := postJSON(t, h, "/v1/sessions/7c9e6679-7425-40de-944b-e07fc1f90ae7/actions", ActionRequest{
		Action: engine.Action{Type: engine.ActionWait},
	})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestExecuteActionEndedSession(t *testing.T) {
	h, store, _ := newSessionsEnv()
	s := seedSession(t, store)
	s.IsEnded = true
	require.NoError(t, store.SaveSession(context.Background(), s.ID, s))

	rr := postJSON(t, h, "/v1/sessions/"+s.ID.String()+"/actions", ActionRequest{
		Action: engine.Action{Type: engine.ActionWait},
	})
	require.Equal(t, http.StatusConflict, rr.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "Session has ended", resp.Error)
}

func TestExecuteActionMissingType(t *testing.T) {
	h, store, _ := newSessionsEnv()
	s := seedSession(t, store)

	rr := postJSON(t, h, "/v1/sessions/"+s.ID.String()+"/actions", ActionRequest{})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "Action type is required", resp.Error)
}

func TestExecuteActionInstructionTooLong(t *testing.T) {
	h, store, _ := newSessionsEnv()
	s := seedSession(t, store)

	rr := postJSON(t, h, "/v1/sessions/"+s.ID.String()+"/actions", ActionRequest{
		Action:      engine.Action{Type: engine.ActionWait},
		Instruction: strings.Repeat("x", chat.MaxInstructionLength+1),
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "exceeds maximum length")
}

func TestExecuteCommand(t *testing.T) {
	h, store, _ := newSessionsEnv()
	s := seedSession(t, store)

	rr := postJSON(t, h, "/v1/sessions/"+s.ID.String()+"/actions", ActionRequest{Command: "look"})
	require.Equal(t, http.StatusOK, rr.Code)

	var resp CommandResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Contains(t, resp.Message, "The Docks")
}

func TestExecuteUnknownCommand(t *testing.T) {
	h, store, _ := newSessionsEnv()
	s := seedSession(t, store)

	rr := postJSON(t, h, "/v1/sessions/"+s.ID.String()+"/actions", ActionRequest{Command: "dance"})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "Unknown command: dance", resp.Error)
}

func TestExecuteAsyncDisabled(t *testing.T) {
	h, store, _ := newSessionsEnv()
	s := seedSession(t, store)

	rr := postJSON(t, h, "/v1/sessions/"+s.ID.String()+"/actions", ActionRequest{
		Action: engine.Action{Type: engine.ActionWait},
		Async:  true,
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "Async processing is not enabled", resp.Error)
}

func TestActionsMethodNotAllowed(t *testing.T) {
	h, store, _ := newSessionsEnv()
	s := seedSession(t, store)

	req := httptest.NewRequest(http.MethodDelete, "/v1/sessions/"+s.ID.String()+"/actions", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

// newAsyncEnv wires the sessions handler against miniredis so async
// submission and the event stream work.
func newAsyncEnv(t *testing.T) (*SessionsHandler, *storage.MockStorage, *svcqueue.ActionQueue, *redis.Client) {
	t.Helper()
	logger := testLogger()
	mr := miniredis.RunT(t)

	client, err := svcqueue.NewClient(mr.Addr(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	store := storage.NewMockStorage()
	llm := services.NewMockLLMService()
	q := svcqueue.NewActionQueue(client)
	broadcaster := events.NewBroadcaster(client.GetRedisClient(), logger)

	builder := narrative.NewWorldBuilder(llm, logger)
	processor := worker.NewActionProcessor(store,
		narrative.NewNarrator(llm, logger),
		narrative.NewDiscoveryService(llm, logger),
		nil,
		logger)

	actions := NewActionsHandler(store, processor, nil, q, broadcaster, logger)
	eventsHandler := NewEventsHandler(client.GetRedisClient(), logger)
	h := NewSessionsHandler(store, builder, actions, eventsHandler, "", logger)
	return h, store, q, client.GetRedisClient()
}

func TestExecuteActionAsync(t *testing.T) {
	h, store, q, rdb := newAsyncEnv(t)
	s := seedSession(t, store)

	// Subscribe before submitting so the queued event is observed.
	sub := rdb.Subscribe(context.Background(), events.Channel(s.ID))
	t.Cleanup(func() { sub.Close() })
	_, err := sub.Receive(context.Background())
	require.NoError(t, err)

	rr := postJSON(t, h, "/v1/sessions/"+s.ID.String()+"/actions", ActionRequest{
		Action: engine.Action{Type: engine.ActionMove, TargetID: "market"},
		Async:  true,
	})
	require.Equal(t, http.StatusAccepted, rr.Code)

	var resp QueuedResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, s.ID, resp.SessionID)
	assert.Equal(t, "queued", resp.Status)

	depth, err := q.Depth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, depth)

	select {
	case msg := <-sub.Channel():
		var event events.Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
		assert.Equal(t, events.EventTypeRequestQueued, event.Type)
		assert.Equal(t, resp.RequestID, event.RequestID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the queued event")
	}
}

func TestExecuteActionAsyncSessionNotFound(t *testing.T) {
	h, _, _, _ := newAsyncEnv(t)

	rr := postJSON(t, h, "/v1/sessions/7c9e6679-7425-40de-944b-e07fc1f90ae7/actions", ActionRequest{
		Action: engine.Action{Type: engine.ActionWait},
		Async:  true,
	})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
