package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/educhain/assistant/backend/internal/app"
	"github.com/educhain/assistant/backend/internal/config"
	"github.com/educhain/assistant/backend/pkg/log"
)

const serviceName = "educhain-assistant"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	boot := log.L()
	if err := godotenv.Load(); err != nil {
		boot.Debug().Err(err).Msg("no .env file loaded, using process environment")
	}

	cfg, err := config.Load(os.Getenv("CONFIG_DIR"))
	if err != nil {
		boot.Fatal().Err(err).Msg("failed to load configuration")
	}

	log.Init(log.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: serviceName,
	})
	l := log.L()

	a, err := app.New(ctx, cfg)
	if err != nil {
		l.Fatal().Err(err).Msg("failed to initialize services")
	}
	defer func() {
		if err := a.Close(); err != nil {
			l.Warn().Err(err).Msg("failed to release resources")
		}
	}()

	if err := runServer(ctx, cfg.Server, a.Router()); err != nil {
		l.Error().Err(err).Msg("server error")
		os.Exit(1)
	}
}

func runServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) error {
	l := log.L()
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		l.Info().Str("addr", serverCfg.Addr).Msg("EduChain assistant listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		l.Info().Msg("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
