package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	server "hoodrate/internal/adapters/http_server"
	"hoodrate/internal/adapters/identity"
	"hoodrate/internal/adapters/observability"
	redisad "hoodrate/internal/adapters/redis"
	"hoodrate/internal/app"
	"hoodrate/internal/domain"
	"hoodrate/internal/shared"
	"hoodrate/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	if err := cfg.Validate(true); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	// store
	backend, closeStore, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("store open failed")
	}
	defer closeStore()

	// rating cache is optional; an unreachable redis degrades to direct reads
	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err := rc.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable, rating cache disabled")
			_ = rc.Close()
		} else {
			defer rc.Close()
			cache = rc
		}
	}

	resolver, err := newResolver(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("mode", cfg.AuthMode).Msg("identity resolver init failed")
	}

	votes := app.NewVoteService(backend)
	ratings := app.NewRatingService(backend, cache, cfg.CacheTTL)

	if cfg.AuditInterval > 0 {
		go auditLoop(ctx, app.NewAuditService(backend), cfg.AuditInterval)
	}

	// http
	srv := server.New(cfg.RequestTimeout)
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Votes: votes, Ratings: ratings, Identity: resolver})

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Str("store", cfg.StoreDriver).Str("auth", cfg.AuthMode).Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("API stopped")
}

func newResolver(cfg shared.Config) (domain.IdentityResolver, error) {
	if cfg.AuthMode == shared.AuthRemote {
		return identity.NewRemoteResolver(cfg.AuthBaseURL, cfg.AuthAPIKey, cfg.AuthRPS)
	}
	return identity.NewJWTVerifier(cfg.AuthJWTSecret, cfg.AuthAudience)
}

func auditLoop(ctx context.Context, a *app.AuditService, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		for _, rt := range domain.ReviewTypes {
			drift, err := a.Audit(ctx, rt)
			if err != nil {
				log.Warn().Err(err).Str("review_type", string(rt)).Msg("counter audit failed")
				continue
			}
			observability.ObserveDrift(string(rt), len(drift))
		}
	}
}
