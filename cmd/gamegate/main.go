// gamegate is the proxy daemon in front of the rate-limited game-data
// API: it serves cached payloads where it can, admits upstream calls
// through the shared dual-window limiter, and rotates credentials when
// the upstream throttles.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kalrey/gamegate/pkg/cache"
	"github.com/kalrey/gamegate/pkg/dedup"
	"github.com/kalrey/gamegate/pkg/gateway"
	"github.com/kalrey/gamegate/pkg/keypool"
	"github.com/kalrey/gamegate/pkg/logging"
	"github.com/kalrey/gamegate/pkg/ratelimit"
	"github.com/kalrey/gamegate/pkg/upstream"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "gamegate: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Daemon failed")
	}
}

func run(cfg config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	redisClient := redis.NewClient(opts)
	defer redisClient.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}
	logger.Info().Str("addr", opts.Addr).Msg("Connected to Redis")

	creds, err := parseCredentials(cfg.APIKeys)
	if err != nil {
		return fmt.Errorf("parse credentials: %w", err)
	}

	limiter, err := ratelimit.New(ratelimit.Config{
		Short: ratelimit.WindowConfig{Capacity: cfg.ShortCapacity, Length: cfg.ShortLength},
		Long:  ratelimit.WindowConfig{Capacity: cfg.LongCapacity, Length: cfg.LongLength},
	}, logging.NewLogger("ratelimit"))
	if err != nil {
		return fmt.Errorf("create limiter: %w", err)
	}

	pool, err := keypool.New(keypool.Config{Credentials: creds}, logging.NewLogger("keypool"))
	if err != nil {
		return fmt.Errorf("create key pool: %w", err)
	}

	invoker, err := upstream.New(upstream.DefaultConfig(cfg.UpstreamURL, cfg.UserAgent))
	if err != nil {
		return fmt.Errorf("create invoker: %w", err)
	}

	core, err := gateway.New(gateway.DefaultConfig(), limiter, pool,
		invoker, cache.NewStore(redisClient), dedup.NewTracker(redisClient))
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}

	clients := newClientLimiter(cfg.InboundRPS, cfg.InboundBurst)
	clients.startJanitor(ctx, 2*time.Minute)

	srv := newServer(core, invoker, redisClient, clients)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: srv.routes(),
		// Writes stay open past the gateway's 30s fetch deadline so slow
		// upstream waits surface as 504 payloads, not dropped connections.
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Int("port", cfg.Port).
			Str("upstream", cfg.UpstreamURL).
			Int("credentials", len(creds)).
			Msg("Starting gamegate daemon")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
