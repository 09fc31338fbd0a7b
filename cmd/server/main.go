package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/joho/godotenv"

	"chat-relay/internal/config"
	"chat-relay/internal/handlers"
	"chat-relay/internal/logging"
	"chat-relay/internal/relay"
	"chat-relay/internal/retry"
	"chat-relay/internal/storage"
	ws "chat-relay/internal/websocket"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("error", true)
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}

	log := logging.New(cfg.LogLevel, cfg.LogConsole)

	store, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StorageDriver).Msg("failed to open store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing store")
		}
	}()

	registry := relay.NewRegistry(log)
	history := relay.NewHistoryLoader(store, cfg.HistoryLimit, log)
	coordinator := relay.NewCoordinator(store, registry, history, log)

	// Schema creation is retried with a bounded budget; past that the
	// relay starts degraded instead of refusing to come up. Per-message
	// writes recover on their own once the store is back.
	initPolicy := retry.Policy{Attempts: cfg.InitAttempts, Delay: cfg.InitDelay}
	if err := initPolicy.Do(context.Background(), store.Init); err != nil {
		coordinator.SetDegraded(true)
		log.Warn().Err(err).
			Int("attempts", cfg.InitAttempts).
			Msg("store unavailable after init retries, starting degraded")
	}

	relayHandler := handlers.NewRelayHandler(history, coordinator)

	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWs(coordinator, log, w, r)
	})
	http.HandleFunc("/messages", relayHandler.HandleMessages)
	http.HandleFunc("/healthz", relayHandler.HandleHealth)
	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("chat-relay is running. Connect via /ws.\n"))
	})

	log.Info().Str("addr", cfg.Addr).Str("driver", cfg.StorageDriver).Msg("server starting")
	if err := http.ListenAndServe(cfg.Addr, nil); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

// openStore selects the durable store backend from configuration.
func openStore(cfg config.Config) (storage.Store, error) {
	switch cfg.StorageDriver {
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required when STORAGE_DRIVER=postgres")
		}
		return storage.NewPostgres(cfg.DatabaseURL)
	case "memory":
		return storage.NewMemory(), nil
	default:
		return storage.NewSQLite(cfg.SQLitePath)
	}
}
