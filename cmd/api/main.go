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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/straye-as/project-access-api/docs"
	"github.com/straye-as/project-access-api/internal/access"
	"github.com/straye-as/project-access-api/internal/auth"
	"github.com/straye-as/project-access-api/internal/config"
	"github.com/straye-as/project-access-api/internal/database"
	"github.com/straye-as/project-access-api/internal/http/handler"
	"github.com/straye-as/project-access-api/internal/http/middleware"
	"github.com/straye-as/project-access-api/internal/http/router"
	"github.com/straye-as/project-access-api/internal/jobs"
	"github.com/straye-as/project-access-api/internal/logger"
	"github.com/straye-as/project-access-api/internal/metrics"
	"github.com/straye-as/project-access-api/internal/repository"
	"github.com/straye-as/project-access-api/internal/service"
	"github.com/straye-as/project-access-api/internal/storage"
	"go.uber.org/zap"
)

// @title Straye Project Access API
// @version 1.0
// @description Authorization, portal access and audit layer for construction projects

// @contact.name API Support
// @contact.email support@straye.io

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description API key for trusted backend jobs

// @securityDefinitions.apikey PortalToken
// @in header
// @name X-Portal-Token
// @description Portal link secret or short code

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load basic configuration first (for logging setup)
	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", basicCfg.App.Name),
		zap.String("env", basicCfg.App.Environment),
		zap.Int("port", basicCfg.App.Port),
	)

	docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", basicCfg.App.Port)

	// In staging/production secrets may come from Azure Key Vault
	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	// An unknown policy version is a startup error, never a silent fallback
	policy, err := access.LookupPolicy(cfg.Authz.PolicyVersion)
	if err != nil {
		return fmt.Errorf("invalid authz config: %w", err)
	}
	log.Info("Access policy loaded", zap.String("policy_version", policy.Version))

	db, err := database.NewDatabase(&cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	fileStorage, err := storage.NewStorage(&cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	log.Info("Storage initialized", zap.String("mode", cfg.Storage.Mode))

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(registry)

	// Repositories
	userRepo := repository.NewUserRepository(db)
	userRoleRepo := repository.NewUserRoleRepository(db, log)
	memberRepo := repository.NewMemberRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	tokenRepo := repository.NewPortalTokenRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	historyRepo := repository.NewProcurementHistoryRepository(db)
	auditRepo := repository.NewAuditRecordRepository(db)
	exportRepo := repository.NewAuditExportRepository(db)

	authorizer := access.NewAuthorizer(policy, repository.NewAccessFactsRepository(db), appMetrics, log)

	// Services
	auditService := service.NewAuditService(auditRepo, exportRepo, authorizer, fileStorage, cfg.AuditExport, appMetrics, log)
	writer := service.NewWriter(db, auditService, appMetrics, log)
	notificationService := service.NewNotificationService(notificationRepo, memberRepo, authorizer, log)
	userService := service.NewUserService(writer, userRepo, userRoleRepo, authorizer, log)
	projectService := service.NewProjectService(writer, authorizer, log)
	memberService := service.NewMemberService(writer, authorizer, memberRepo, userRepo, notificationService, log)
	tokenService := service.NewPortalTokenService(writer, authorizer, tokenRepo, cfg.Portal, appMetrics, log)
	tenantService := service.NewTenantService(writer, authorizer, projectRepo, notificationService, log)
	cableService := service.NewCableService(writer, authorizer, log)
	finalAccountService := service.NewFinalAccountService(writer, authorizer, log)
	procurementService := service.NewProcurementService(writer, authorizer, historyRepo, notificationService, log)
	roadmapService := service.NewRoadmapService(writer, authorizer, log)
	documentService := service.NewDocumentService(writer, authorizer, log)
	contactService := service.NewContactService(writer, authorizer, log)

	// Middleware
	roleResolver := auth.NewRoleResolver(userRoleRepo, log)
	authMiddleware := auth.NewMiddleware(&cfg.Auth, roleResolver, tokenService, log)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)

	rt := router.NewRouter(cfg, log, db, authMiddleware, rateLimiter, appMetrics, router.Handlers{
		Auth:         handler.NewAuthHandler(userService, log),
		Portal:       handler.NewPortalHandler(tokenService, log),
		Project:      handler.NewProjectHandler(projectService, memberService, log),
		Tenant:       handler.NewTenantHandler(tenantService, log),
		Cable:        handler.NewCableHandler(cableService, log),
		FinalAccount: handler.NewFinalAccountHandler(finalAccountService, log),
		Procurement:  handler.NewProcurementHandler(procurementService, log),
		Roadmap:      handler.NewRoadmapHandler(roadmapService, log),
		Document:     handler.NewDocumentHandler(documentService, log),
		Audit:        handler.NewAuditHandler(auditService, log),
		Contact:      handler.NewContactHandler(contactService, log),
		Notification: handler.NewNotificationHandler(notificationService, log),
	})

	// Background jobs
	scheduler := jobs.NewScheduler(log)
	if err := jobs.RegisterPortalRenewalJob(
		scheduler,
		tokenService,
		log,
		cfg.Portal.RenewalCron,
		cfg.Portal.RenewalTimeoutDuration(),
	); err != nil {
		return fmt.Errorf("failed to register portal renewal job: %w", err)
	}
	if cfg.AuditExport.Enabled {
		if err := jobs.RegisterAuditExportJob(
			scheduler,
			auditService,
			log,
			cfg.AuditExport.Cron,
			cfg.AuditExport.TimeoutDuration(),
		); err != nil {
			return fmt.Errorf("failed to register audit export job: %w", err)
		}
	} else {
		log.Info("Audit export disabled")
	}
	scheduler.Start()
	log.Info("Scheduler started", zap.Strings("jobs", scheduler.GetJobNames()))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      rt.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Let running jobs finish before the database goes away
		stopCtx := scheduler.Stop()
		<-stopCtx.Done()
		log.Info("Scheduler stopped")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}

		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}

		log.Info("Server stopped gracefully")
	}

	return nil
}
