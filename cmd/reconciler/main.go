package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/carebridge-health/carebridge-platform/internal/appointment"
	"github.com/carebridge-health/carebridge-platform/internal/config"
	"github.com/carebridge-health/carebridge-platform/internal/db"
	"github.com/carebridge-health/carebridge-platform/internal/hospital"
	"github.com/carebridge-health/carebridge-platform/internal/notification"
	"github.com/carebridge-health/carebridge-platform/internal/notify"
	"github.com/carebridge-health/carebridge-platform/internal/observability/metrics"
	"github.com/carebridge-health/carebridge-platform/internal/ops"
	"github.com/carebridge-health/carebridge-platform/internal/push"
	"github.com/carebridge-health/carebridge-platform/internal/reminder"
	"github.com/carebridge-health/carebridge-platform/internal/sms"
	"github.com/carebridge-health/carebridge-platform/internal/worker/reconcile"
	"github.com/carebridge-health/carebridge-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.DatabaseURL == "" {
		logger.Error("reconciler requires DATABASE_URL")
		os.Exit(1)
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL, db.ConnectOptions{
		MaxAttempts: cfg.DBConnectMaxAttempts,
		BaseDelay:   cfg.DBConnectBaseDelay,
		MaxDelay:    cfg.DBConnectMaxDelay,
	}, logger)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	appointments := appointment.NewStore(pool)
	notifications := notification.NewStore(pool)
	reminders := reminder.NewStore(pool)
	resources := hospital.NewResourceStore(pool)

	providerClient := hospital.NewClient(cfg.HospitalAPITimeout, logger)
	pushClient := push.NewClient(cfg.PushBaseURL, cfg.PushAppID, cfg.PushAPIKey, logger)
	smsClient := sms.NewClient(cfg.SMSBaseURL, cfg.SMSAPIKey, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	reconcilerMetrics := metrics.NewReconcilerMetrics(registry)

	var dedup reconcile.Dedup
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient := redis.NewClient(opts)
		defer func() { _ = redisClient.Close() }()
		dedup = reconcile.NewRedisDedup(redisClient)
	} else {
		logger.Warn("REDIS_ADDR not set, using in-process reminder dedup")
		dedup = reconcile.NewLocalDedup()
	}

	alerts := notify.NewAlertService(buildEmailSender(ctx, cfg, logger), cfg.OpsAlertEmail, logger)

	scheduler := reconcile.New(logger, reconcilerMetrics)
	scheduler.RegisterRunner(
		reconcile.NewSlotReleaseJob(appointments, resources, providerClient, logger, reconcilerMetrics).
			WithOlderThan(cfg.SlotReleaseAfter),
		cfg.SlotReleaseInterval)
	scheduler.RegisterRunner(
		reconcile.NewCloseJob(appointments, reminders, logger, reconcilerMetrics).
			WithAfter(cfg.CloseAfter),
		cfg.CloseInterval)
	scheduler.RegisterRunner(
		reconcile.NewVideoReminderJob(appointments, smsClient, dedup, logger, reconcilerMetrics).
			WithWindow(cfg.ReminderWindow).
			WithDedupTTL(cfg.ReminderDedupTTL),
		cfg.ReminderInterval)
	scheduler.RegisterRunner(
		reconcile.NewExternalSyncJob(resources, providerClient, appointments, logger, reconcilerMetrics),
		cfg.ExternalSyncInterval)
	scheduler.RegisterRunner(
		reconcile.NewDeliveryJob(notifications, pushClient, smsClient, alerts, logger, reconcilerMetrics).
			WithMaxAttempts(cfg.NotificationMaxAttempts),
		cfg.NotificationInterval)

	scheduler.Start(ctx)
	logger.Info("reconciler started", "port", cfg.Port)

	opsServer := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: ops.New(&ops.Config{
			Logger:         logger,
			Notifications:  notifications,
			MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("ops server failed", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("reconciler shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = opsServer.Shutdown(shutdownCtx)
	scheduler.Stop()
	cancel()
}

func buildEmailSender(ctx context.Context, cfg *config.Config, logger *logging.Logger) notify.EmailSender {
	switch cfg.EmailProvider {
	case "ses":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			logger.Error("failed to load AWS config, ops alerts disabled", "error", err)
			return notify.NewStubEmailSender(logger)
		}
		return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
	case "sendgrid":
		if cfg.SendGridAPIKey != "" && cfg.SendGridFromEmail != "" {
			return notify.NewSendGridSender(notify.SendGridConfig{
				APIKey:    cfg.SendGridAPIKey,
				FromEmail: cfg.SendGridFromEmail,
				FromName:  cfg.SendGridFromName,
			}, logger)
		}
		logger.Warn("sendgrid selected but not configured, ops alerts disabled")
		return notify.NewStubEmailSender(logger)
	default:
		if cfg.SendGridAPIKey != "" && cfg.SendGridFromEmail != "" {
			return notify.NewSendGridSender(notify.SendGridConfig{
				APIKey:    cfg.SendGridAPIKey,
				FromEmail: cfg.SendGridFromEmail,
				FromName:  cfg.SendGridFromName,
			}, logger)
		}
		return notify.NewStubEmailSender(logger)
	}
}
