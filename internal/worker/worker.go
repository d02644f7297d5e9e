// Package worker drains the action queue: it dequeues requests,
// serializes work per session with Redis locks and publishes lifecycle
// events while the processor runs each action.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/cfraser/adventure-engine/internal/services/events"
	svcqueue "github.com/cfraser/adventure-engine/internal/services/queue"
	"github.com/cfraser/adventure-engine/pkg/queue"
)

const (
	// dequeueTimeout bounds each blocking poll of the action queue so
	// the loop can notice shutdown.
	dequeueTimeout = 5 * time.Second

	// sessionLockTTL bounds how long one worker may hold a session if
	// it dies mid-request.
	sessionLockTTL = 30 * time.Second
)

// releaseScript deletes the session lock only when the caller still
// holds it. The compare and delete runs as one Lua script so a lock
// that expired and was reacquired by another worker is never deleted.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// Worker polls the action queue and processes requests one at a time.
type Worker struct {
	id          string
	queue       *svcqueue.ActionQueue
	processor   *ActionProcessor
	broadcaster *events.Broadcaster
	redisClient *redis.Client
	logger      *slog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
}

// New creates a worker. An empty workerID gets a generated one.
func New(actionQueue *svcqueue.ActionQueue, processor *ActionProcessor, redisClient *redis.Client, logger *slog.Logger, workerID string) *Worker {
	if workerID == "" {
		workerID = "worker-" + uuid.New().String()[:8]
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		id:          workerID,
		queue:       actionQueue,
		processor:   processor,
		broadcaster: events.NewBroadcaster(redisClient, logger),
		redisClient: redisClient,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start runs the polling loop until Stop is called.
func (w *Worker) Start() error {
	w.logger.Info("Starting worker", "worker_id", w.id)

	for {
		select {
		case <-w.ctx.Done():
			w.logger.Info("Worker stopping", "worker_id", w.id)
			return nil
		default:
			if err := w.processNext(); err != nil {
				w.logger.Error("Failed to process request",
					"worker_id", w.id,
					"error", err.Error())
				time.Sleep(time.Second)
			}
		}
	}
}

// Stop signals the polling loop to exit.
func (w *Worker) Stop() {
	w.cancel()
}

// processNext takes one request off the queue and processes it under
// the session lock. An empty queue is not an error. A request whose
// session is locked by another worker goes back on the queue.
func (w *Worker) processNext() error {
	req, err := w.queue.BlockingDequeue(w.ctx, dequeueTimeout)
	if err != nil {
		if w.ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to dequeue request: %w", err)
	}
	if req == nil {
		return nil
	}

	locked, err := w.acquireSessionLock(req.SessionID)
	if err != nil {
		return fmt.Errorf("failed to acquire session lock: %w", err)
	}
	if !locked {
		w.logger.Debug("Session locked by another worker, requeueing",
			"worker_id", w.id,
			"session_id", req.SessionID,
			"request_id", req.RequestID)
		if err := w.queue.Enqueue(w.ctx, req); err != nil {
			return fmt.Errorf("failed to requeue request: %w", err)
		}
		return nil
	}
	defer w.releaseSessionLock(req.SessionID)

	return w.processRequest(req)
}

// processRequest publishes lifecycle events around the processor call.
func (w *Worker) processRequest(req *queue.Request) error {
	start := time.Now()

	w.logger.Info("Processing request",
		"worker_id", w.id,
		"request_id", req.RequestID,
		"session_id", req.SessionID,
		"type", req.Type)

	if err := w.broadcaster.PublishRequestProcessing(w.ctx, req.SessionID, req.RequestID, string(req.Action.Type)); err != nil {
		w.logger.Error("Failed to publish processing event",
			"request_id", req.RequestID,
			"error", err.Error())
	}

	switch req.Type {
	case queue.RequestTypeAction:
		return w.processActionRequest(req, start)
	default:
		errMsg := fmt.Sprintf("unknown request type: %s", req.Type)
		if err := w.broadcaster.PublishRequestFailed(w.ctx, req.SessionID, req.RequestID, errMsg); err != nil {
			w.logger.Error("Failed to publish failure event",
				"request_id", req.RequestID,
				"error", err.Error())
		}
		return fmt.Errorf("unknown request type: %s", req.Type)
	}
}

func (w *Worker) processActionRequest(req *queue.Request, start time.Time) error {
	outcome, err := w.processor.ProcessAction(w.ctx, req.SessionID, req.Action, req.Instruction)
	if err != nil {
		if pubErr := w.broadcaster.PublishRequestFailed(w.ctx, req.SessionID, req.RequestID, err.Error()); pubErr != nil {
			w.logger.Error("Failed to publish failure event",
				"request_id", req.RequestID,
				"error", pubErr.Error())
		}
		return fmt.Errorf("failed to process action request: %w", err)
	}

	result := map[string]interface{}{
		"success":     outcome.Success,
		"turn":        outcome.Turn,
		"narration":   outcome.Narration,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if outcome.Error != "" {
		result["error"] = outcome.Error
	}
	if err := w.broadcaster.PublishRequestCompleted(w.ctx, req.SessionID, req.RequestID, result); err != nil {
		w.logger.Error("Failed to publish completion event",
			"request_id", req.RequestID,
			"error", err.Error())
	}

	if outcome.Success {
		location := ""
		if outcome.Player != nil {
			location = outcome.Player.CurrentLocation
		}
		if err := w.broadcaster.PublishTurnCompleted(w.ctx, req.SessionID, outcome.Turn, location, outcome.Narration); err != nil {
			w.logger.Error("Failed to publish turn event",
				"request_id", req.RequestID,
				"error", err.Error())
		}
	}

	w.logger.Info("Request processed",
		"worker_id", w.id,
		"request_id", req.RequestID,
		"session_id", req.SessionID,
		"success", outcome.Success,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// sessionLockKey is the Redis key serializing work on one session.
func sessionLockKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("session-lock:%s", sessionID.String())
}

// acquireSessionLock takes the per-session lock so two workers never
// process actions for the same session concurrently.
func (w *Worker) acquireSessionLock(sessionID uuid.UUID) (bool, error) {
	return w.redisClient.SetNX(w.ctx, sessionLockKey(sessionID), w.id, sessionLockTTL).Result()
}

// releaseSessionLock releases the lock if this worker still holds it.
// It runs on a fresh context so locks are released during shutdown.
func (w *Worker) releaseSessionLock(sessionID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, w.redisClient, []string{sessionLockKey(sessionID)}, w.id).Err(); err != nil {
		w.logger.Error("Failed to release session lock",
			"worker_id", w.id,
			"session_id", sessionID,
			"error", err.Error())
	}
}
