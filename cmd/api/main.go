package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"review_board/internal/adapters/github"
	server "review_board/internal/adapters/http_server"
	"review_board/internal/adapters/observability"
	redisad "review_board/internal/adapters/redis"
	"review_board/internal/app"
	"review_board/internal/domain"
	"review_board/internal/shared"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("configuration invalid")
	}

	observability.Serve()

	store, err := github.New(github.Config{
		Owner:  cfg.Owner,
		Repo:   cfg.Repo,
		Branch: cfg.Branch,
		Path:   cfg.ReviewsPath,
		Token:  cfg.Token,
		RPS:    cfg.StoreRPS,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize document store client")
	}

	var throttle domain.Throttle
	if cfg.RedisAddr != "" {
		throttle = redisad.NewLimiter(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, cfg.SubmitPerMinute)
		log.Info().Str("addr", cfg.RedisAddr).Int("per_minute", cfg.SubmitPerMinute).Msg("submit throttle enabled")
	}

	reviews := app.NewService(store)

	srv := server.New(cfg.AllowedOrigins)
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Reviews: reviews, Throttle: throttle, AdminPIN: cfg.AdminPIN})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Str("repo", cfg.Owner+"/"+cfg.Repo).Str("path", cfg.ReviewsPath).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
	log.Info().Msg("shutdown complete")
}
