package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/cfraser/adventure-engine/internal/services/queue"
	"github.com/cfraser/adventure-engine/pkg/engine"
	pkgqueue "github.com/cfraser/adventure-engine/pkg/queue"
)

// Dev utility: pushes a couple of action requests onto the queue so a
// running worker has something to chew on.
func main() {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	client, err := queue.NewClient(redisURL, logger)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer client.Close()

	ctx := context.Background()
	fmt.Println("Connected to Redis successfully!")

	// A real session id makes the worker actually process the requests;
	// the placeholder id exercises the not-found path instead.
	sessionID := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	if len(os.Args) > 1 {
		sessionID, err = uuid.Parse(os.Args[1])
		if err != nil {
			log.Fatal("Invalid session id:", err)
		}
	}

	actionQueue := queue.NewActionQueue(client)

	restReq := pkgqueue.NewActionRequest(sessionID, engine.Action{
		Type:        engine.ActionRest,
		Description: "Rest and recover energy",
	}, "")

	if err := actionQueue.Enqueue(ctx, restReq); err != nil {
		log.Fatal("Failed to enqueue request:", err)
	}

	fmt.Printf("✅ Enqueued rest request: %s\n", restReq.RequestID)

	exploreReq := pkgqueue.NewActionRequest(sessionID, engine.Action{
		Type:        engine.ActionExplore,
		EnergyCost:  engine.CostExplore,
		Description: "Explore your surroundings",
	}, "Check the shadows near the door.")

	if err := actionQueue.Enqueue(ctx, exploreReq); err != nil {
		log.Fatal("Failed to enqueue request:", err)
	}

	fmt.Printf("✅ Enqueued explore request: %s\n", exploreReq.RequestID)

	depth, err := actionQueue.Depth(ctx)
	if err != nil {
		log.Fatal("Failed to get queue depth:", err)
	}

	fmt.Printf("\n📊 Queue depth: %d requests\n", depth)
	fmt.Println("\n💡 Now start the worker to see it process these requests!")
	fmt.Println("   Run: go run cmd/worker/main.go")
}
