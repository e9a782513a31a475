package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"farmapos/internal/config"
	"farmapos/internal/infra"
	"farmapos/internal/repository"
	"farmapos/internal/router"
	"farmapos/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger: dev pretty, prod JSON
	zerolog.TimeFieldFormat = time.RFC3339
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL, cfg.DBMigrations)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	// Redis backs the lookup cache and the job queues. Leaving REDIS_URL empty
	// runs without both.
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = infra.NewRedis(cfg.RedisURL, cfg.WorkerPoolSize)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
	}

	events := infra.NewEventPublisher(cfg.Brokers(), cfg.KafkaTopic)
	dispatcher := worker.NewDispatcher(rdb)

	// Worker handlers are wired here so the pool has access to all infrastructure.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var pool *worker.Pool
	if rdb != nil {
		mailer := infra.NewMailer(cfg)
		pool = worker.NewPool(rdb, map[string]worker.Handler{
			worker.JobReceipt: worker.NewReceiptWorker(repository.NewSaleRepository(db), dispatcher, cfg.ReceiptStoragePath, cfg.PharmacyName),
			worker.JobEmail:   worker.NewEmailWorker(mailer),
		})
		pool.Start(ctx, cfg.WorkerPoolSize)
	}

	r := router.New(router.Deps{
		Config:     cfg,
		DB:         db,
		Redis:      rdb,
		Events:     events,
		Dispatcher: dispatcher,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("farmapos backend listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}

	cancel()
	if pool != nil {
		pool.Wait()
	}
	if err := events.Close(); err != nil {
		log.Warn().Err(err).Msg("event publisher close failed")
	}
	log.Info().Msg("server exited")
}
