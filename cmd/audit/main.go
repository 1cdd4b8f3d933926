package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"hoodrate/internal/adapters/observability"
	"hoodrate/internal/app"
	"hoodrate/internal/domain"
	"hoodrate/internal/shared"
	"hoodrate/internal/storage"
)

// audit compares every review's helpful counters with its vote ledger tally.
// Exit status 1 means at least one review has diverged.
func main() {
	only := flag.String("type", "", "review type to audit (neighborhood|building); empty audits both")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)
	if err := cfg.Validate(false); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	var types []domain.ReviewType
	if *only != "" {
		t, err := domain.ParseReviewType(*only)
		if err != nil {
			log.Fatal().Err(err).Msg("bad -type")
		}
		types = append(types, t)
	}

	backend, closeStore, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("store open failed")
	}

	drift, err := app.NewAuditService(backend).Audit(ctx, types...)
	_ = closeStore()
	if err != nil {
		log.Fatal().Err(err).Msg("audit failed")
	}
	if len(drift) > 0 {
		log.Error().Int("reviews", len(drift)).Msg("counter audit found divergence")
		os.Exit(1)
	}
	log.Info().Msg("counter audit clean")
}
