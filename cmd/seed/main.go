package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/firecdc/internal/cdc"
	"stealthcompany.com/firecdc/internal/seed"
	"stealthcompany.com/firecdc/internal/store"
	"stealthcompany.com/firecdc/pkg/zerolog_config"
)

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	zerolog_config.Startup("firecdc-seed")

	log.Info().Msg("Starting firecdc-seed service")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	st, err := store.NewCouchbase()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Couchbase")
	}
	defer st.Close()

	// Hold the seed lock for the duration of the load so two seeders
	// cannot interleave.
	locker := st.NewSeedLock()
	if err := locker.Lock(ctx, "firecdc-seed"); err != nil {
		log.Fatal().Err(err).Msg("Failed to acquire seed lock")
	}
	defer func() {
		if err := locker.Unlock(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to release seed lock")
		}
	}()

	load, err := seed.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to decode demo load set")
	}

	svc := cdc.New(st)
	prefix := getEnv("SEED_CDC_PREFIX", "demo")
	result, err := svc.Create(ctx, prefix, load)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create demo collection")
	}
	if len(result.BadIndices) > 0 {
		log.Warn().
			Ints("bad_indices", result.BadIndices).
			Msg("Some demo records were rejected")
	}

	log.Info().
		Str("cdc_id", result.CdcID).
		Int("inserted", result.Inserted).
		Msg("Demo collection seeded")
}
