package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/emberworks/npchat/internal/brain"
	"github.com/emberworks/npchat/internal/chat"
	"github.com/emberworks/npchat/internal/config"
	"github.com/emberworks/npchat/internal/httpapi"
	"github.com/emberworks/npchat/internal/observability"
	"github.com/emberworks/npchat/internal/session"
	"github.com/emberworks/npchat/internal/storage"
	"github.com/emberworks/npchat/internal/summarizer"
)

func main() {
	// Local runs keep their key in a .env file; a missing file is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	provider, err := brain.NewProvider(brain.Config{
		Mode:            cfg.BrainProvider,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		Model:           cfg.BrainModel,
	})
	if err != nil {
		log.Fatalf("brain provider init failed: %v", err)
	}
	log.Printf("brain provider: %s", provider.Name())

	rawStore := storage.NewFileStore(cfg.RawMemoryDir(), ".txt")
	summaryStore := storage.NewFileStore(cfg.SummaryDir(), ".json")
	sessions := session.NewManager(cfg.MaxFacts, cfg.MaxHistoryTurns)
	sum := summarizer.New(provider, cfg.SummaryMaxTokens)
	orchestrator := chat.New(cfg, sessions, provider, sum, rawStore, summaryStore, metrics)

	api := httpapi.New(cfg, orchestrator, provider.Name())
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
