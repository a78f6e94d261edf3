package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ignite/mailblast/internal/ai"
	"github.com/ignite/mailblast/internal/api"
	"github.com/ignite/mailblast/internal/campaign"
	"github.com/ignite/mailblast/internal/config"
	"github.com/ignite/mailblast/internal/mailing"
	"github.com/ignite/mailblast/internal/pkg/logger"
	"github.com/ignite/mailblast/internal/smtp"
)

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		logger.Error("loading config", "error", err)
		os.Exit(1)
	}

	logger.SetLevel(parseLevel(cfg.Logging.Level))
	if cfg.Logging.RedactPII != nil {
		logger.SetRedactPII(*cfg.Logging.RedactPII)
	}

	mailer, err := buildMailer(cfg)
	if err != nil {
		logger.Error("initializing mailer", "provider", cfg.Delivery.Provider, "error", err)
		os.Exit(1)
	}

	registry := campaign.NewRegistry()
	service := campaign.NewService(registry, mailer, cfg.Progress.PollInterval())

	templates, err := mailing.NewTemplateStore(cfg.Storage.TemplateDir)
	if err != nil {
		logger.Error("initializing template store", "error", err)
		os.Exit(1)
	}

	improver := ai.NewClient(cfg.Azure)
	if !improver.Enabled() {
		logger.Info("AI improvement disabled, no Azure OpenAI credentials")
	}

	server, err := api.NewServer(cfg, service, templates, improver)
	if err != nil {
		logger.Error("initializing server", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Progress.RetentionMinutes > 0 {
		maxAge := time.Duration(cfg.Progress.RetentionMinutes) * time.Minute
		go service.RunRetention(ctx, time.Minute, maxAge)
	}

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: server.Router(),
	}

	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr(), "provider", cfg.Delivery.Provider)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	if err := service.Shutdown(shutdownCtx); err != nil {
		logger.Warn("campaign shutdown", "error", err)
	}
	logger.Info("shutdown complete")
}

// buildMailer selects the outbound transport from config.
func buildMailer(cfg *config.Config) (smtp.Mailer, error) {
	switch strings.ToLower(cfg.Delivery.Provider) {
	case "ses":
		return smtp.NewSESMailer(context.Background(), cfg.SES)
	default:
		return smtp.NewDialer(cfg.SMTP), nil
	}
}

func parseLevel(level string) logger.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG
	case "warn", "warning":
		return logger.WARN
	case "error":
		return logger.ERROR
	default:
		return logger.INFO
	}
}
