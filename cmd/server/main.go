package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tourbook/tours-api/internal/config"
	"github.com/tourbook/tours-api/internal/database"
	"github.com/tourbook/tours-api/internal/handler"
	"github.com/tourbook/tours-api/internal/logger"
	"github.com/tourbook/tours-api/internal/mailer"
	"github.com/tourbook/tours-api/internal/metrics"
	"github.com/tourbook/tours-api/internal/queue"
	"github.com/tourbook/tours-api/internal/repository"
	"github.com/tourbook/tours-api/internal/router"
	"github.com/tourbook/tours-api/internal/service"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer log.Sync() //nolint:errcheck

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}
	log.Info("database connected", zap.String("host", cfg.DBHost), zap.String("name", cfg.DBName))

	tours := repository.NewTourRepo(db, log)
	reviews := repository.NewReviewRepo(db, log)
	users := repository.NewUserRepo(db, log, cfg.BcryptCost)
	mail := mailer.NewSMTP(cfg.Mail, log)

	// Signup events are optional; without a broker no welcome mail is sent.
	var events service.EventPublisher
	if cfg.RabbitURL != "" {
		events = queue.NewPublisher(cfg.RabbitURL, log)
		consumer := queue.NewWelcomeConsumer(cfg.RabbitURL, mail, log)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("welcome consumer stopped", zap.Error(err))
			}
		}()
	}

	auth := service.NewAuthService(users, mail, events, cfg.JWTSecret, cfg.JWTExpiresIn, log)

	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}

	e := router.New(router.Deps{
		Development: cfg.IsDevelopment(),
		Log:         log,
		Auth:        auth,
		Tours:       handler.NewTourHandler(tours, reviews, cfg.QueryMaxLimit),
		Reviews:     handler.NewReviewHandler(reviews, cfg.QueryMaxLimit),
		Users:       handler.NewUserHandler(auth, users, cfg.JWTCookieExpires, cfg.IsProduction(), cfg.QueryMaxLimit),
		Metrics:     metrics.New(),
		Redis:       rdb,
		RateLimit:   cfg.RateLimit,
		Cache:       cfg.Cache,
	})

	addr := ":" + cfg.Port
	errc := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
