package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/civic-issue-service/internal/api/dto"
	httptransport "github.com/spec-kit/civic-issue-service/internal/api/http"
	"github.com/spec-kit/civic-issue-service/internal/api/http/handlers"
	"github.com/spec-kit/civic-issue-service/internal/auth"
	"github.com/spec-kit/civic-issue-service/internal/config"
	"github.com/spec-kit/civic-issue-service/internal/events"
	"github.com/spec-kit/civic-issue-service/internal/observability"
	"github.com/spec-kit/civic-issue-service/internal/persistence"
	"github.com/spec-kit/civic-issue-service/internal/repository"
	"github.com/spec-kit/civic-issue-service/internal/service"
	"github.com/spec-kit/civic-issue-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()
	pool := pg.PoolHandle()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)

	userRepo := repository.NewUserRepository(pool)
	departmentRepo := repository.NewDepartmentRepository(pool)
	officerRepo := repository.NewOfficerRepository(pool)
	issueRepo := repository.NewIssueRepository(pool)
	historyRepo := repository.NewIssueHistoryRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)
	analyticsRepo := repository.NewAnalyticsRepository(pool)
	cacheRepo := repository.NewRedisCacheRepository(redis.Client)

	notificationService := service.NewNotificationService(service.NotificationDependencies{
		NotificationRepo: notificationRepo,
		Dispatcher:       dispatcher,
		Logger:           logger.Named("notifications"),
		Config:           cfg.Notification,
	})
	notificationService.RegisterHandlers()

	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		DepartmentRepo: departmentRepo,
		OfficerRepo:    officerRepo,
	})
	issueService := service.NewIssueService(service.IssueDependencies{
		IssueRepo:       issueRepo,
		HistoryRepo:     historyRepo,
		OfficerRepo:     officerRepo,
		Resolver:        assignmentService,
		Notifier:        notificationService,
		Dispatcher:      dispatcher,
		Logger:          logger.Named("issues"),
		DefaultSLAHours: cfg.SLA.DefaultHours,
	})
	slaService := service.NewSLAService(service.SLADependencies{
		IssueRepo:   issueRepo,
		OfficerRepo: officerRepo,
		Notifier:    notificationService,
		Dispatcher:  dispatcher,
		Logger:      logger.Named("sla"),
		Concurrency: cfg.SLA.SweepConcurrency,
	})
	analyticsService := service.NewAnalyticsService(service.AnalyticsDependencies{
		AnalyticsRepo: analyticsRepo,
		IssueRepo:     issueRepo,
		OfficerRepo:   officerRepo,
		Cache:         cacheRepo,
		CacheTTL:      cfg.Analytics.CacheTTL(),
		Logger:        logger.Named("analytics"),
	})
	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{UserRepo: userRepo})

	slaWorker := worker.NewSLAWorker(worker.SLAWorkerConfig{
		Sweeper:  slaService,
		Locker:   redis,
		Metrics:  metrics,
		Logger:   logger.Named("sla-worker"),
		Interval: cfg.SLA.SweepInterval(),
		LockTTL:  cfg.SLA.LockTTL(),
	})
	if cfg.SLA.SweepEnabled {
		go slaWorker.Start(ctx)
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  cfg.App.RequestTimeout(),
		WriteTimeout: cfg.App.RequestTimeout(),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	validator := dto.NewValidator()
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}, metrics),
		Users:          handlers.NewUsersHandler(authService, validator),
		Issues:         handlers.NewIssuesHandler(issueService, validator),
		Analytics:      handlers.NewAnalyticsHandler(analyticsService),
		Notifications:  handlers.NewNotificationsHandler(notificationService),
		Admin:          handlers.NewAdminHandler(slaWorker),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager()),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)
	cancel()

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
