package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"hoodrate/internal/adapters/observability"
	redisad "hoodrate/internal/adapters/redis"
	"hoodrate/internal/app"
	"hoodrate/internal/domain"
	"hoodrate/internal/shared"
	"hoodrate/internal/storage"
)

// ratings recomputes and persists the rating summary of every neighborhood
// and building, then evicts the cached copies.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)
	if err := cfg.Validate(false); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	log.Info().Str("store", cfg.StoreDriver).Int("workers", cfg.RatingWorkers).Msg("rating recompute starting")

	backend, closeStore, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("store open failed")
	}
	defer closeStore()

	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		defer rc.Close()
		cache = rc
	}
	svc := app.NewRatingService(backend, cache, cfg.CacheTTL)

	done, failed, err := recomputeAll(ctx, svc, cfg.RatingWorkers)
	log.Info().Int64("ok", done).Int64("failed", failed).Msg("rating recompute completed")
	if err != nil || failed > 0 {
		log.Error().Err(err).Msg("rating recompute incomplete")
		os.Exit(1)
	}
}

// recomputeAll refreshes every entity of every review type with at most
// workers recomputes in flight. It stops launching work once ctx is done and
// waits for what is already running.
func recomputeAll(ctx context.Context, svc *app.RatingService, workers int) (done, failed int64, err error) {
	sem := semaphore.NewWeighted(int64(workers))
	var (
		wg      sync.WaitGroup
		nFailed atomic.Int64
		nDone   atomic.Int64
		listErr error
	)

entities:
	for _, t := range domain.ReviewTypes {
		ids, err := svc.EntityIDs(ctx, t)
		if err != nil {
			listErr = fmt.Errorf("list %s entities: %w", t, err)
			break
		}
		for _, id := range ids {
			// acquire before launching the goroutine; release inside it
			if err := sem.Acquire(ctx, 1); err != nil {
				log.Warn().Err(err).Msg("recompute interrupted")
				break entities
			}
			wg.Add(1)
			go func(t domain.ReviewType, id string) {
				defer wg.Done()
				defer sem.Release(1)

				sum, err := svc.Recompute(ctx, t, id)
				if err != nil {
					nFailed.Add(1)
					log.Warn().Err(err).Str("review_type", string(t)).Str("id", id).Msg("recompute failed")
					return
				}
				nDone.Add(1)
				log.Debug().
					Str("review_type", string(t)).
					Str("id", id).
					Float64("average", sum.AverageRating).
					Int("reviews", sum.ReviewCount).
					Int("low", sum.LowRatingCount).
					Msg("recompute ok")
			}(t, id)
		}
	}

	wg.Wait()
	if listErr == nil {
		listErr = ctx.Err()
	}
	return nDone.Load(), nFailed.Load(), listErr
}
