package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/campusdesk/api/internal/handlers"
	"github.com/campusdesk/api/internal/platform/auth"
	"github.com/campusdesk/api/internal/platform/config"
	pfirestore "github.com/campusdesk/api/internal/platform/firestore"
	"github.com/campusdesk/api/internal/platform/jobs"
	"github.com/campusdesk/api/internal/platform/observability"
	"github.com/campusdesk/api/internal/platform/secrets"
	firestoreRepo "github.com/campusdesk/api/internal/repositories/firestore"
	"github.com/campusdesk/api/internal/services"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	fetcher := secrets.NewFetcher(secretsProjectID(), secrets.WithLogger(logger.Named("secrets")))
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx, config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)))
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	registry, err := firestoreRepo.NewRegistry(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}

	feed := services.NewNotificationFeed(services.NotificationFeedDeps{
		Retention:     cfg.Notifications.Retention,
		SweepInterval: cfg.Notifications.SweepInterval,
		MaxEvents:     cfg.Notifications.MaxEvents,
	})
	defer feed.Stop()

	var eventPublisher services.OrderEventPublisher
	if topicID := strings.TrimSpace(cfg.Events.TopicID); topicID != "" {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.Firestore.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		topic := pubsubClient.Topic(topicID)
		defer func() {
			topic.Stop()
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
		eventPublisher, err = jobs.NewPubSubOrderEventPublisher(topic)
		if err != nil {
			logger.Fatal("failed to initialise order event publisher", zap.Error(err))
		}
	}

	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:        registry.Orders(),
		Audits:        registry.AuditRecords(),
		Notifications: feed,
		Events:        eventPublisher,
		Metrics:       observability.NewTransitionMetrics(),
		Logger:        serviceLogger(logger.Named("orders")),
	})
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	principalResolver, err := services.NewPrincipalResolver(registry.Accounts())
	if err != nil {
		logger.Fatal("failed to initialise principal resolver", zap.Error(err))
	}

	accountService, err := services.NewAccountService(registry.Accounts())
	if err != nil {
		logger.Fatal("failed to initialise account service", zap.Error(err))
	}

	verifier, err := newTokenVerifier(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialise token verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(verifier)

	orderHandlers := handlers.NewOrderHandlers(authenticator, principalResolver, orderService)
	notificationHandlers := handlers.NewNotificationHandlers(authenticator, principalResolver, feed)
	accountHandlers := handlers.NewAccountHandlers(authenticator, principalResolver, accountService)
	healthHandlers := handlers.NewHealthHandlers(handlers.WithReadinessCheck(registry.Health().Ping))

	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger),
			observability.TraceMiddleware(),
			observability.RequestLoggerMiddleware(),
			observability.RecoveryMiddleware(logger),
		),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithNotificationRoutes(notificationHandlers.Routes),
		handlers.WithAccountRoutes(accountHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", server.Addr), zap.String("auth_mode", cfg.Auth.Mode))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	case sig := <-stop:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// newTokenVerifier selects the verification path for bearer tokens. Role and
// restaurant assignment are never read from claims either way.
func newTokenVerifier(ctx context.Context, cfg config.Config) (auth.TokenVerifier, error) {
	switch cfg.Auth.Mode {
	case config.AuthModeLocal:
		verifier, err := auth.NewLocalVerifier(cfg.Auth.SessionSecret)
		if err != nil {
			return nil, err
		}
		return verifier, nil
	case config.AuthModeFirebase:
		verifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID)
		if err != nil {
			return nil, err
		}
		return verifier, nil
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.Auth.Mode)
	}
}

func serviceLogger(logger *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	return func(ctx context.Context, event string, fields map[string]any) {
		zapFields := make([]zap.Field, 0, len(fields))
		for key, value := range fields {
			zapFields = append(zapFields, zap.Any(key, value))
		}
		if ctxLogger := observability.FromContext(ctx); ctxLogger != nil {
			ctxLogger.Info(event, zapFields...)
			return
		}
		logger.Info(event, zapFields...)
	}
}

func secretsProjectID() string {
	for _, key := range []string{"SECRETS_PROJECT_ID", "GOOGLE_CLOUD_PROJECT", "FIREBASE_PROJECT_ID"} {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return ""
}
