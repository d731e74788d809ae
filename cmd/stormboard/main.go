package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/stormboard/stormboard/internal/board"
	"github.com/stormboard/stormboard/internal/canvas"
	"github.com/stormboard/stormboard/internal/config"
	"github.com/stormboard/stormboard/internal/httpapi"
	"github.com/stormboard/stormboard/internal/hub"
	"github.com/stormboard/stormboard/internal/observability"
	"github.com/stormboard/stormboard/internal/presence"
	"github.com/stormboard/stormboard/internal/signaling"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	store, err := board.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("board store init failed: %v", err)
	}
	defer store.Close()
	if cfg.DatabaseURL == "" {
		log.Printf("board store: in-memory (set DATABASE_URL for postgres)")
	} else {
		log.Printf("board store: postgres")
	}

	live, err := presence.NewStore(ctx, cfg.RedisURL, presence.TTLs{
		Participant:     cfg.ParticipantTTL,
		PhaseTimer:      cfg.PhaseTimerTTL,
		StickerPosition: cfg.StickerPositionTTL,
	})
	if err != nil {
		log.Fatalf("presence store init failed: %v", err)
	}
	defer live.Close()
	if cfg.RedisURL == "" {
		log.Printf("presence store: in-memory (set REDIS_URL for redis)")
	} else {
		log.Printf("presence store: redis")
	}

	rooms := hub.New(cfg.OutboxSize, metrics)
	router := canvas.NewRouter(store, live, rooms, metrics)
	relay := signaling.NewRelay(rooms, metrics)

	api := httpapi.New(cfg, store, live, rooms, router, relay, metrics)
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
