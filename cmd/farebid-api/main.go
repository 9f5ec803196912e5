// README: Entry point; loads config and the model, wires services, serves HTTP until signalled.
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

	"farebid/internal/config"
	httptransport "farebid/internal/http"
	"farebid/internal/infra"
	"farebid/internal/metrics"
	"farebid/internal/modules/bidding"
	"farebid/internal/modules/model"
	"farebid/internal/modules/predictor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	infra.NewLogger(cfg.Log.Level, cfg.Log.Pretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m, err := model.Load(cfg.Model.Path, model.LoadOptions{
		RemoteURL:       cfg.Estimator.RemoteURL,
		RemoteTimeout:   cfg.Estimator.Timeout,
		RemoteChunkSize: cfg.Estimator.ChunkSize,
	})
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Model.Path).Msg("load model")
	}
	log.Info().
		Str("version", m.Version()).
		Float64("threshold", m.Threshold()).
		Int("features", len(m.Features())).
		Msg("model loaded")

	reg := metrics.New()
	pred := predictor.New(m)

	var cache bidding.Cache
	if cfg.Redis.Addr != "" {
		rdb, err := infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable; optimisation cache disabled")
		} else {
			defer rdb.Close()
			cache = bidding.NewRedisCache(rdb, cfg.Redis.TTL)
		}
	}

	var store bidding.DecisionStore
	if cfg.DB.DSN != "" {
		db, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			log.Warn().Err(err).Msg("postgres unavailable; decision store disabled")
		} else {
			defer db.Close()
			s := bidding.NewStore(db)
			if err := s.EnsureSchema(ctx); err != nil {
				log.Warn().Err(err).Msg("ensure bid_decisions schema")
			}
			store = s
		}
	}

	optimizer := bidding.NewOptimizer(pred, cfg.Optimizer.Params())
	biddingSvc := bidding.NewService(optimizer, m.Version(), cache, store, reg)

	handler := httptransport.NewServer(httptransport.ServerDeps{
		Predictor:   pred,
		Bidding:     biddingSvc,
		Metrics:     reg,
		CORSOrigins: cfg.HTTP.CORSOrigins,
		APIKeys:     cfg.HTTP.APIKeys,
		RateLimit:   cfg.HTTP.RateLimit,
		RateBurst:   cfg.HTTP.RateBurst,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown")
		}
	}()

	log.Info().Str("addr", cfg.HTTP.Addr).Msg("farebid api listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server")
	}
	log.Info().Msg("farebid api stopped")
}
