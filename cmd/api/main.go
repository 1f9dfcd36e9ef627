package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/jparrish/portfolio-platform/cmd/mainconfig"
	"github.com/jparrish/portfolio-platform/internal/api/router"
	"github.com/jparrish/portfolio-platform/internal/appointments"
	"github.com/jparrish/portfolio-platform/internal/chat"
	appconfig "github.com/jparrish/portfolio-platform/internal/config"
	"github.com/jparrish/portfolio-platform/internal/documents"
	"github.com/jparrish/portfolio-platform/internal/events"
	"github.com/jparrish/portfolio-platform/internal/gallery"
	"github.com/jparrish/portfolio-platform/internal/notify"
	"github.com/jparrish/portfolio-platform/internal/observability/metrics"
	"github.com/jparrish/portfolio-platform/internal/payments"
	"github.com/jparrish/portfolio-platform/internal/scheduling"
	"github.com/jparrish/portfolio-platform/pkg/logging"
)

const processedEventRetention = 30 * 24 * time.Hour

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting portfolio-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// database/sql handle for the admin read endpoints.
	sqlDB, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open admin db handle", "error", err)
		os.Exit(1)
	}
	defer func() { _ = sqlDB.Close() }()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	apptRepo := appointments.NewRepository(pool)
	apptHandler := appointments.NewHandler(apptRepo, logger)
	processedStore := events.NewProcessedStore(pool)
	jobStore := documents.NewJobStore(pool)

	registry := metrics.NewRegistry()

	// Email notifications
	var sender notify.EmailSender
	switch cfg.EmailProvider {
	case "sendgrid":
		if s := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.FromEmail,
			FromName:  cfg.FromName,
		}, logger); s != nil {
			sender = s
		}
	case "ses":
		if s := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.FromEmail,
			FromName:  cfg.FromName,
		}, logger); s != nil {
			sender = s
		}
	}
	notifySvc := notify.NewService(sender, cfg.OwnerEmail, logger)

	// Payments
	stripeClient := payments.NewStripeClient(cfg.StripeSecretKey, logger)
	coordinator := payments.NewCoordinator(stripeClient, apptRepo, cfg.PaymentCurrency, logger)
	paymentsHandler := payments.NewHandler(coordinator, registry.Payments, logger)
	webhookHandler := payments.NewWebhookHandler(
		cfg.StripeWebhookSecret, apptRepo, processedStore, notifySvc, registry.Payments, logger)

	// Booking flow
	catalog := scheduling.DefaultTopics()
	sessionStore := scheduling.NewSessionStore(catalog, cfg.SessionTTL)
	defer sessionStore.Close()
	availability := scheduling.NewAvailability(apptRepo, 9, 17)
	bookingHandler := scheduling.NewHandler(
		sessionStore, catalog, availability, apptRepo, coordinator, registry.Bookings, logger).
		WithNotifier(notifySvc)

	// AI assistant, shared by the chat widget and the resume analysis worker
	var llm chat.LLMClient
	var modelID string
	switch cfg.LLMProvider {
	case "bedrock":
		llm = chat.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg))
		modelID = cfg.BedrockModelID
	default:
		if cfg.GeminiAPIKey != "" {
			gemini, err := chat.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
			if err != nil {
				logger.Error("failed to init gemini client", "error", err)
				os.Exit(1)
			}
			defer gemini.Close()
			llm = gemini
			modelID = cfg.GeminiModelID
		}
	}

	var transcripts *chat.TranscriptStore
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		transcripts = chat.NewTranscriptStore(redis.NewClient(opts))
	}

	var chatHandler *chat.Handler
	if llm != nil {
		assistant := chat.NewAssistant(llm, transcripts, modelID, logger)
		chatHandler = chat.NewHandler(assistant, logger)
	} else {
		logger.Warn("no LLM configured, chat assistant disabled")
	}

	// Document analysis pipeline
	var docsHandler *documents.Handler
	if llm != nil {
		var queue documents.Queue
		switch {
		case cfg.UseMemoryQueue:
			queue = documents.NewMemoryQueue(64)
		case cfg.DocumentsQueueURL != "":
			queue = documents.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.DocumentsQueueURL)
		}

		if queue != nil {
			var storage documents.ObjectStorage
			if cfg.DocumentsBucket != "" {
				storage = documents.NewS3Storage(s3.NewFromConfig(awsCfg), cfg.DocumentsBucket)
			} else {
				storage = documents.NewMemoryStorage()
			}

			docsHandler = documents.NewHandler(storage, queue, jobStore, logger)
			worker := documents.NewWorker(queue, storage, jobStore, llm, modelID, logger)
			for i := 0; i < cfg.WorkerCount; i++ {
				go worker.Run(ctx)
			}
		} else {
			logger.Warn("no document queue configured, resume analysis disabled")
		}
	}

	// CMS gallery
	galleryClient := gallery.NewClient(cfg.CMSEndpoint, cfg.CMSToken, cfg.CMSCacheTTL, logger)
	galleryHandler := gallery.NewHandler(galleryClient, logger)

	// Webhook event retention
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				purged, err := processedStore.PurgeOlderThan(ctx, processedEventRetention)
				if err != nil {
					logger.Error("webhook event purge failed", "error", err)
					continue
				}
				logger.Info("purged processed webhook events", "count", purged)
			}
		}
	}()

	routerCfg := &router.Config{
		Logger:              logger,
		AppointmentsHandler: apptHandler,
		BookingHandler:      bookingHandler,
		PaymentsHandler:     paymentsHandler,
		PaymentWebhook:      webhookHandler,
		ChatHandler:         chatHandler,
		DocumentsHandler:    docsHandler,
		GalleryHandler:      galleryHandler,
		MetricsHandler:      registry.Handler(),
		AdminAuthSecret:     cfg.AdminJWTSecret,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		BookingRateLimit:    5,
		BookingRateBurst:    10,
		DB:                  sqlDB,
	}
	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
