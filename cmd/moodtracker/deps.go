package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dukerupert/moodtracker/internal/config"
	"github.com/dukerupert/moodtracker/internal/logging"
	"github.com/dukerupert/moodtracker/internal/otp"
	"github.com/dukerupert/moodtracker/internal/sms"
)

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)
	return cfg, logger, nil
}

// openOTPStore returns the Redis-backed store when REDIS_ADDR is set and the
// in-process store otherwise. The returned func releases the connection.
func openOTPStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (otp.Store, func(), error) {
	if !cfg.Redis.Enabled {
		logger.Info("otp store: in-memory")
		return otp.NewMemoryStore(), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Address, err)
	}

	logger.Info("otp store: redis", "addr", cfg.Redis.Address)
	return otp.NewRedisStore(rdb), func() { rdb.Close() }, nil
}

// newSender returns a Twilio client, or a sender that only logs when
// credentials are missing.
func newSender(cfg *config.Config, logger *slog.Logger) (sms.Sender, *sms.Client) {
	smsLogger := logger.With("component", "sms")
	if !cfg.Twilio.Configured() {
		logger.Warn("twilio not configured, outbound sms will be logged only")
		return sms.LogSender{Logger: smsLogger}, nil
	}
	client := sms.NewClient(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.PhoneNumber, sms.WithLogger(smsLogger))
	return client, client
}
