package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/firecdc/internal/api"
	"stealthcompany.com/firecdc/internal/cdc"
	"stealthcompany.com/firecdc/internal/metrics"
	"stealthcompany.com/firecdc/internal/store"
	"stealthcompany.com/firecdc/pkg/zerolog_config"
)

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// newStore selects the backing store. The in-memory backend exists for
// local development without a Couchbase cluster.
func newStore() (store.Store, error) {
	if getEnv("STORE_BACKEND", "couchbase") == "memory" {
		log.Warn().Msg("Using in-memory store, data will not survive a restart")
		return store.NewMemory(), nil
	}
	return store.NewCouchbase()
}

func main() {
	zerolog_config.Startup("firecdc-api")

	log.Info().Msg("Starting firecdc-api service")

	st, err := newStore()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer st.Close()

	metrics.StartSystemMetrics(15 * time.Second)

	router := api.SetupRoutes(cdc.New(st))

	port := getEnv("API_PORT", "8080")
	server := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().
			Str("port", port).
			Msg("API server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start API server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	log.Info().Msg("Server stopped")
}
