package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/moodtracker/internal/config"
	"github.com/dukerupert/moodtracker/internal/database"
	"github.com/dukerupert/moodtracker/internal/handler"
	"github.com/dukerupert/moodtracker/internal/prompt"
	"github.com/dukerupert/moodtracker/internal/server"
	"github.com/dukerupert/moodtracker/internal/sms"
	"github.com/dukerupert/moodtracker/internal/store"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web server and the daily prompt scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateServe(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func serve(parent context.Context, cfg *config.Config, logger *slog.Logger) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	otpStore, closeOTP, err := openOTPStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeOTP()

	sender, twilio := newSender(cfg, logger)
	var validator handler.SignatureValidator
	if cfg.Twilio.ValidateWebhook {
		if twilio == nil {
			twilio = sms.NewClient(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.PhoneNumber)
		}
		validator = twilio
	} else {
		logger.Warn("inbound webhook signature checks disabled")
	}

	srv := server.New(db, server.Config{
		Region:    cfg.Region,
		BaseURL:   cfg.Server.BaseURL,
		SecretKey: cfg.Server.SecretKey,
		Location:  cfg.Location,
	}, otpStore, sender, validator, logger)

	scheduler := prompt.NewScheduler(
		store.NewSubscriberStore(db),
		store.NewIdentityStore(db),
		sender,
		cfg.Prompt.Hour, cfg.Prompt.Minute, cfg.Location,
		logger.With("component", "prompt"),
	)
	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	defer scheduler.Stop()

	go srv.RateLimiter().RunCleanup(ctx, 5*time.Minute)
	go cleanupSessions(ctx, srv.SessionStore(), logger.With("component", "cleanup"))

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("moodtracker running", "addr", httpServer.Addr, "base_url", cfg.Server.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func cleanupSessions(ctx context.Context, sessions *store.SessionStore, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.DeleteExpired(ctx)
			if err != nil {
				logger.Error("delete expired sessions", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("expired sessions removed", "count", n)
			}
		}
	}
}
