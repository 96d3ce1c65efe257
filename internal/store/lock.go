package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchbase/gocb/v2"
	"github.com/rs/zerolog/log"
)

const seedLockKey = "seed_lock"

// SeedLock guards bulk seeding against concurrent seeders with a lock
// document in the bucket. The insert is atomic, so two seeders cannot both
// acquire it, and the expiry keeps a crashed seeder from wedging the
// bucket forever.
type SeedLock struct {
	bucket *gocb.Bucket
	held   bool
}

// NewSeedLock creates a seed lock over the store's bucket.
func (s *Couchbase) NewSeedLock() *SeedLock {
	return &SeedLock{bucket: s.bucket}
}

// Lock acquires the seed lock.
func (l *SeedLock) Lock(ctx context.Context, owner string) error {
	if l.held {
		return fmt.Errorf("seed lock is already held")
	}

	lockDoc := map[string]interface{}{
		"lockedAt": time.Now().UTC(),
		"lockedBy": owner,
	}

	col := l.bucket.DefaultCollection()
	_, err := col.Insert(seedLockKey, lockDoc, &gocb.InsertOptions{
		Context: ctx,
		Expiry:  time.Hour,
	})
	if errors.Is(err, gocb.ErrDocumentExists) {
		return fmt.Errorf("seed lock is held by another seeder")
	}
	if err != nil {
		return fmt.Errorf("failed to create lock document: %w", err)
	}

	l.held = true
	log.Info().Str("owner", owner).Msg("Seed lock acquired")
	return nil
}

// Unlock releases the seed lock.
func (l *SeedLock) Unlock(ctx context.Context) error {
	if !l.held {
		return fmt.Errorf("seed lock is not held")
	}

	col := l.bucket.DefaultCollection()
	_, err := col.Remove(seedLockKey, &gocb.RemoveOptions{Context: ctx})
	if err != nil {
		return fmt.Errorf("failed to remove lock document: %w", err)
	}

	l.held = false
	log.Info().Msg("Seed lock released")
	return nil
}
