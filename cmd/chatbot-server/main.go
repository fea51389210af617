// cmd/chatbot-server/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"chatbot-backend/internal/chat/clarify"
	"chatbot-backend/internal/chat/executor"
	"chatbot-backend/internal/chat/extract"
	"chatbot-backend/internal/chat/notify"
	"chatbot-backend/internal/chat/orchestrator"
	"chatbot-backend/internal/chat/pipeline"
	"chatbot-backend/internal/chat/registry"
	"chatbot-backend/internal/chat/resolver"
	"chatbot-backend/internal/chat/retriever"
	"chatbot-backend/internal/chat/router"
	"chatbot-backend/internal/chat/state"
	"chatbot-backend/internal/chat/synthesize"
	"chatbot-backend/internal/common/config"
	"chatbot-backend/internal/common/database"
	stderrors "chatbot-backend/internal/common/errors"
	"chatbot-backend/internal/common/llm"
	"chatbot-backend/internal/common/logger"
	"chatbot-backend/internal/common/observability"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		// Classified non-retryable failures never resolve by waiting.
		if stderrors.CodeOf(err) != "" && !stderrors.IsRetryable(err) {
			return fmt.Errorf("%s failed: %w", operationName, err)
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// loadToolRegistries reads every <contextID>.json under dir into a registry.
// A context with no document is simply document-only.
func loadToolRegistries(dir string, log *zap.Logger) (map[string]*registry.Registry, error) {
	registries := make(map[string]*registry.Registry)
	if dir == "" {
		return registries, nil
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}

	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading tool config %s: %w", path, err)
		}
		reg, err := registry.Load(raw)
		if err != nil {
			return nil, fmt.Errorf("tool config %s: %w", path, err)
		}
		contextID := strings.TrimSuffix(filepath.Base(path), ".json")
		registries[contextID] = reg
		log.Info("tool config loaded",
			zap.String("contextId", contextID),
			zap.Int("tools", len(reg.Tools())),
		)
	}
	return registries, nil
}

type chatRequest struct {
	SessionID string `json:"sessionId"`
	ContextID string `json:"contextId"`
	Question  string `json:"question"`
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting chatbot server...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New(cfg.App.Name, cfg.App.JaegerEndpoint)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return stderrors.NewDatabaseConnectionFailedError(err)
		}
		if err := pg.Ping(ctx); err != nil {
			return stderrors.NewDatabaseConnectionFailedError(err)
		}
		return nil
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return stderrors.NewDatabaseConnectionFailedError(err)
		}
		if err := redis.Ping(ctx); err != nil {
			return stderrors.NewDatabaseConnectionFailedError(err)
		}
		return nil
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return stderrors.NewDatabaseConnectionFailedError(err)
		}
		if err := esClient.Ping(); err != nil {
			return stderrors.NewDatabaseConnectionFailedError(err)
		}
		return nil
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init GenAI Client ---
	llmClient := llm.NewClient(cfg.APIs.GenAI, log)

	// --- Load Tool Configurations ---
	registries, err := loadToolRegistries(cfg.Chat.ToolConfigPath, zapLog)
	if err != nil {
		zapLog.Fatal("tool configuration load failed", zap.Error(err))
	}

	// --- Init Escalation Notifier ---
	var notifier orchestrator.Notifier = notify.NoopNotifier{}
	if cfg.Escalation.Enabled {
		escalation, err := notify.NewEscalationNotifier(ctx, cfg.Escalation, log)
		if err != nil {
			zapLog.Fatal("escalation notifier initialization failed", zap.Error(err))
		}
		notifier = escalation
		zapLog.Info("Escalation notifier initialized")
	}

	// --- Assemble Conversation Engine ---
	extractAdapter := extract.NewAdapter(llmClient, log)

	engine := orchestrator.New(
		orchestrator.Config{
			FallbackAnswer: cfg.Chat.FallbackAnswer,
			FarewellAnswer: cfg.Chat.FarewellAnswer,
		},
		state.NewStore(redis.GetClient(), cfg.Chat.GetStateTTL(), log),
		router.New(llmClient, log),
		extractAdapter,
		pipeline.New(extractAdapter, resolver.NewCatalogResolver(pg.GetDB(), log), log),
		clarify.NewComposer(llmClient, log),
		executor.New(pg.GetDB(), log),
		synthesize.New(llmClient, log),
		retriever.NewElasticsearchRetriever(esClient.GetClient(), cfg.Chat.DocumentIndex, cfg.Chat.MaxPassages, log),
		llmClient,
		notifier,
		log,
	)
	zapLog.Info("Conversation engine assembled")

	// --- HTTP Server ---
	mux := http.NewServeMux()

	mux.HandleFunc("/chat", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.SessionID == "" || strings.TrimSpace(req.Question) == "" {
			http.Error(w, "sessionId and question are required", http.StatusBadRequest)
			return
		}

		turn := &orchestrator.TurnRequest{
			SessionID:    req.SessionID,
			ContextID:    req.ContextID,
			Question:     req.Question,
			HasDocuments: cfg.Chat.DocumentIndex != "",
		}
		if reg, ok := registries[req.ContextID]; ok {
			turn.Tools = reg.Tools()
		}

		ctx, endSpan := obs.StartSpan(r.Context(), "chat-turn")
		start := time.Now()

		result := engine.HandleTurn(ctx, turn)

		endSpan()
		obs.RecordTurnProcessed(ctx, string(result.Intent))
		obs.RecordTurnDuration(ctx, time.Since(start), string(result.Intent))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(result)
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]string{"status": "ready"}
		if err := pg.Ping(r.Context()); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]string{"status": "degraded", "postgres": err.Error()}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	})

	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: mux,
	}

	go func() {
		zapLog.Info("Chat server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining connections...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Millisecond)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("server shutdown error", zap.Error(err))
	}

	zapLog.Info("Chatbot server stopped gracefully")
}
