package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payos-gateway/internal/config"
	"payos-gateway/internal/infra/logging"
	red "payos-gateway/internal/infra/redis"
	"payos-gateway/internal/infra/web"
	"payos-gateway/payos"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "development mode")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	logger.Info().
		Str("client_id", logging.Redact(cfg.PayOS.ClientID, cfg.Runtime.Dev)).
		Msg("starting webhook listener")

	// ---- Gateway client ----
	opts := []payos.Option{payos.WithLogger(logger)}
	if cfg.PayOS.BaseURL != "" {
		opts = append(opts, payos.WithBaseURL(cfg.PayOS.BaseURL))
	}
	if cfg.PayOS.PartnerCode != "" {
		opts = append(opts, payos.WithPartnerCode(cfg.PayOS.PartnerCode))
	}
	client, err := payos.NewClient(cfg.PayOS.ClientID, cfg.PayOS.APIKey, cfg.PayOS.ChecksumKey, opts...)
	if err != nil {
		logger.Fatal().Err(err).Msg("payos client")
	}

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	guard := red.NewReplayGuard(redisClient, cfg.Redis.TTL)

	// The listener only acknowledges deliveries; plug order fulfillment in
	// here when embedding this service.
	onPayment := func(ctx context.Context, data *payos.WebhookData) error {
		logging.With(ctx, logger).Info().
			Str("reference", data.Reference).
			Int64("amount", data.Amount).
			Str("currency", data.Currency).
			Msg("payment received")
		return nil
	}

	srv := web.NewServer(cfg.Listener, client, guard, onPayment, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("listener stopped")
		}
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutCancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown")
		}
	}
}
