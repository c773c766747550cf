// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/unclebandit/smart-mailer/internal/config"
	"github.com/unclebandit/smart-mailer/internal/controller"
	"github.com/unclebandit/smart-mailer/internal/db"
	"github.com/unclebandit/smart-mailer/internal/handler"
	"github.com/unclebandit/smart-mailer/internal/logger"
	"github.com/unclebandit/smart-mailer/internal/mailer"
	"github.com/unclebandit/smart-mailer/internal/queue"
	"github.com/unclebandit/smart-mailer/internal/repository"
	"github.com/unclebandit/smart-mailer/internal/service"
)

func main() {
	cfg := config.MustLoad()
	log := logger.NewWithSentry(logger.SentryConfig{DSN: cfg.SentryDSN, Environment: cfg.SentryEnvironment})
	defer sentry.Flush(2 * time.Second)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", slog.Any("error", err))
		sentry.Flush(2 * time.Second)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.DatabaseURL, db.DefaultOptions, log)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := db.Migrate(ctx, conn, cfg.MigrationsTable, log); err != nil {
		return err
	}

	var campaignRepo repository.CampaignRepositoryInterface = &repository.CampaignRepository{DB: conn}
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return err
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		campaignRepo = repository.NewCampaignCache(campaignRepo, rdb, cfg.CampaignCacheTTL, log)
		log.Info("📦 mailer id cache enabled", slog.Duration("ttl", cfg.CampaignCacheTTL))
	}
	emailLogRepo := &repository.EmailLogRepository{DB: conn}
	clickRepo := &repository.ClickRepository{DB: conn}

	var deliveryLog service.DeliveryLog = emailLogRepo
	if cfg.DeliveryLogMode == config.DeliveryLogAMQP {
		publisher, err := queue.DialOutcomePublisher(cfg.AMQPURL, cfg.AMQPQueue)
		if err != nil {
			return err
		}
		defer publisher.Close()
		deliveryLog = publisher
		log.Info("📨 delivery outcomes published to broker", slog.String("queue", cfg.AMQPQueue))
	}

	transport := mailer.NewTransport(newSender(cfg, log),
		mailer.WithMaxAttempts(cfg.MaxAttempts),
		mailer.WithInitialBackoff(cfg.InitialBackoff),
		mailer.WithLogger(log),
	)

	campaignService := &service.CampaignService{
		CampaignRepo: campaignRepo,
		EmailLogRepo: emailLogRepo,
		ClickRepo:    clickRepo,
		Log:          log,
	}

	q := queue.NewInMemoryQueue(cfg.QueueSize, queue.WithMaxRetries(0), queue.WithLogger(log))
	dispatcher := &service.Dispatcher{
		Campaigns:        campaignService,
		Transport:        transport,
		DeliveryLog:      deliveryLog,
		Renderer:         service.TemplateRenderer{TrackingBaseURL: cfg.TrackingBaseURL},
		Queue:            q,
		SendDelay:        cfg.SendDelay,
		SinkFailureLimit: cfg.SinkFailureLimit,
		JobRetention:     24 * time.Hour,
		Log:              log,
	}
	if err := dispatcher.Start(); err != nil {
		return err
	}

	partitions := &service.PartitionTask{ClickRepo: clickRepo, Log: log}
	if err := partitions.Run(ctx); err != nil {
		return err
	}
	scheduler := cron.New()
	if _, err := partitions.Schedule(ctx, scheduler, cfg.ClickPartitionSchedule); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	workersDone := make(chan error, 1)
	go func() { workersDone <- q.Run(workerCtx, cfg.Workers) }()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := conn.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok")) //nolint:errcheck
	})

	mailerController := &controller.MailerController{
		Dispatcher:      dispatcher,
		CampaignService: campaignService,
		SingleService:   &service.SingleService{Transport: transport},
		MaxUploadBytes:  cfg.MaxUploadBytes,
		Log:             log,
	}
	mailerController.Routes(r)
	trackingHandler := &handler.TrackingHandler{Clicks: campaignService, Log: log}
	trackingHandler.Routes(r)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("🚀 Server running", slog.String("addr", cfg.HTTPAddr), slog.String("provider", cfg.MailProvider))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown incomplete", slog.Any("error", err))
	}

	// Running jobs stop before their next recipient, queued ones are skipped.
	q.Close()
	dispatcher.CancelAll()
	select {
	case err := <-workersDone:
		return err
	case <-shutdownCtx.Done():
		cancelWorkers()
		log.Warn("workers did not drain before the shutdown timeout")
		return <-workersDone
	}
}

func newSender(cfg *config.Config, log *slog.Logger) mailer.Sender {
	switch cfg.MailProvider {
	case config.ProviderResend:
		return mailer.NewResendSender()
	case config.ProviderLog:
		return mailer.NewLogSender(log)
	default:
		return mailer.NewSMTPSender(mailer.SMTPConfig{
			Host:    cfg.SMTPHost,
			Port:    cfg.SMTPPort,
			TLSMode: cfg.SMTPTLSMode,
			Timeout: cfg.SMTPTimeout,
		})
	}
}
