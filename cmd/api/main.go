package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cfraser/adventure-engine/internal/config"
	"github.com/cfraser/adventure-engine/internal/handlers"
	"github.com/cfraser/adventure-engine/internal/logger"
	"github.com/cfraser/adventure-engine/internal/metrics"
	"github.com/cfraser/adventure-engine/internal/middleware"
	"github.com/cfraser/adventure-engine/internal/narrative"
	"github.com/cfraser/adventure-engine/internal/services"
	"github.com/cfraser/adventure-engine/internal/services/events"
	svcqueue "github.com/cfraser/adventure-engine/internal/services/queue"
	"github.com/cfraser/adventure-engine/internal/storage"
	"github.com/cfraser/adventure-engine/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Adventure Engine API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"llm_provider", cfg.LLMProvider,
		"model_name", cfg.ModelName)

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	var llmService services.LLMService
	provider := strings.ToLower(cfg.LLMProvider)
	switch provider {
	case "ollama":
		llmService = services.NewOllamaService(cfg.OllamaURL, cfg.ModelName, log)
		log.Info("Using Ollama LLM provider", "url", cfg.OllamaURL)
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			log.Error("Anthropic API key is required when using anthropic provider")
			os.Exit(1)
		}
		llmService = services.NewAnthropicService(cfg.AnthropicAPIKey, cfg.ModelName, log)
		log.Info("Using Anthropic LLM provider")
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			log.Error("OpenAI API key is required when using openai provider")
			os.Exit(1)
		}
		llmService = services.NewOpenAIService(cfg.OpenAIAPIKey, cfg.ModelName, log)
		log.Info("Using OpenAI LLM provider")
	default:
		log.Error("Invalid LLM provider specified", "provider", cfg.LLMProvider, "supported", []string{"ollama", "anthropic", "openai"})
		os.Exit(1)
	}
	llmService = services.NewInstrumentedLLMService(llmService, provider, m)

	store := storage.NewRedisStorage(cfg.RedisURL, cfg.DataDir, log)
	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()

	if err := store.WaitForConnection(storageCtx); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage connection established successfully")

	// Initialize the model on startup
	initCtx, initCancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer initCancel()
	if err := llmService.InitModel(initCtx, cfg.ModelName); err != nil {
		log.Error("Failed to initialize LLM model", "error", err, "model", cfg.ModelName)
		os.Exit(1)
	}

	queueClient, err := svcqueue.NewClient(cfg.RedisURL, log)
	if err != nil {
		log.Error("Failed to connect to queue", "error", err)
		os.Exit(1)
	}
	actionQueue := svcqueue.NewActionQueue(queueClient)
	broadcaster := events.NewBroadcaster(queueClient.GetRedisClient(), log)

	narrator := narrative.NewNarrator(llmService, log)
	discovery := narrative.NewDiscoveryService(llmService, log)
	selector := narrative.NewActionSelector(llmService, log)
	builder := narrative.NewWorldBuilder(llmService, log)
	processor := worker.NewActionProcessor(store, narrator, discovery, m, log)

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(store, llmService, cfg.ModelName, log)
	mux.Handle("/health", healthHandler)

	actionsHandler := handlers.NewActionsHandler(store, processor, selector, actionQueue, broadcaster, log)
	eventsHandler := handlers.NewEventsHandler(queueClient.GetRedisClient(), log)
	sessionsHandler := handlers.NewSessionsHandler(store, builder, actionsHandler, eventsHandler, cfg.ContentRating, log)
	mux.Handle("/v1/sessions", sessionsHandler)
	mux.Handle("/v1/sessions/", sessionsHandler)

	worldsHandler := handlers.NewWorldsHandler(log, store)
	mux.Handle("/v1/worlds", worldsHandler)
	mux.Handle("/v1/worlds/", worldsHandler)

	if m != nil {
		mux.Handle("/metrics", m.Handler())
	}

	handler := middleware.Logger(log, mux)
	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// WriteTimeout stays unset so the event stream can run long.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	// Graceful shutdown with timeout. Connections close afterwards so
	// in-flight requests still reach Redis.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}
	if err := queueClient.Close(); err != nil {
		log.Error("Error closing queue connection", "error", err)
	}

	log.Info("Server exited")
}
