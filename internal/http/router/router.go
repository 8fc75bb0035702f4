package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/straye-as/project-access-api/internal/auth"
	"github.com/straye-as/project-access-api/internal/config"
	"github.com/straye-as/project-access-api/internal/database"
	"github.com/straye-as/project-access-api/internal/http/handler"
	"github.com/straye-as/project-access-api/internal/http/middleware"
	"github.com/straye-as/project-access-api/internal/metrics"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "github.com/straye-as/project-access-api/docs" // Import generated swagger docs
)

// Handlers groups the HTTP handlers mounted by the router
type Handlers struct {
	Auth         *handler.AuthHandler
	Portal       *handler.PortalHandler
	Project      *handler.ProjectHandler
	Tenant       *handler.TenantHandler
	Cable        *handler.CableHandler
	FinalAccount *handler.FinalAccountHandler
	Procurement  *handler.ProcurementHandler
	Roadmap      *handler.RoadmapHandler
	Document     *handler.DocumentHandler
	Audit        *handler.AuditHandler
	Contact      *handler.ContactHandler
	Notification *handler.NotificationHandler
}

type Router struct {
	cfg            *config.Config
	logger         *zap.Logger
	db             *gorm.DB
	authMiddleware *auth.Middleware
	rateLimiter    *middleware.RateLimiter
	metrics        *metrics.Metrics
	h              Handlers
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	authMiddleware *auth.Middleware,
	rateLimiter *middleware.RateLimiter,
	m *metrics.Metrics,
	handlers Handlers,
) *Router {
	return &Router{
		cfg:            cfg,
		logger:         logger,
		db:             db,
		authMiddleware: authMiddleware,
		rateLimiter:    rateLimiter,
		metrics:        m,
		h:              handlers,
	}
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(rt.metrics.Middleware)
	r.Use(middleware.RequestMeta)
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.SecurityHeaders(&rt.cfg.Security))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	r.Use(rt.rateLimiter.LimitByIP)

	// Liveness check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Get("/health/db", rt.databaseHealth)
	r.Get("/health/ready", rt.readiness)

	if rt.cfg.Metrics.Enabled {
		r.Handle(rt.cfg.Metrics.Path, rt.metrics.Handler())
	}

	if rt.cfg.Server.EnableSwagger {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.rateLimiter.LimitPortal)

		// Public: exchanging a portal link for its scope needs no session
		r.Post("/portal/validate", rt.h.Portal.Validate)

		r.Group(func(r chi.Router) {
			r.Use(rt.authMiddleware.Authenticate)
			r.Use(middleware.TagPrincipal)

			r.Get("/auth/me", rt.h.Auth.Me)
			r.Post("/signup", rt.h.Auth.Signup)
			r.Put("/users/{id}/role", rt.h.Auth.SetRole)

			r.Route("/projects", func(r chi.Router) {
				r.Get("/", rt.h.Project.List)
				r.Post("/", rt.h.Project.Create)
				r.Get("/{id}", rt.h.Project.GetByID)
				r.Put("/{id}", rt.h.Project.Update)
				r.Delete("/{id}", rt.h.Project.Delete)

				r.Get("/{id}/members", rt.h.Project.ListMembers)
				r.Post("/{id}/members", rt.h.Project.AddMember)
				r.Put("/{id}/members/{memberId}/position", rt.h.Project.AssignPosition)
				r.Delete("/{id}/members/{memberId}", rt.h.Project.RemoveMember)

				r.Get("/{id}/portal-tokens", rt.h.Portal.List)
				r.Post("/{id}/portal-tokens", rt.h.Portal.Create)

				r.Get("/{id}/tenants", rt.h.Tenant.List)
				r.Post("/{id}/tenants", rt.h.Tenant.Create)

				r.Get("/{id}/cable-schedules", rt.h.Cable.ListSchedules)
				r.Post("/{id}/cable-schedules", rt.h.Cable.CreateSchedule)

				r.Get("/{id}/final-accounts", rt.h.FinalAccount.ListAccounts)
				r.Post("/{id}/final-accounts", rt.h.FinalAccount.CreateAccount)

				r.Get("/{id}/procurement", rt.h.Procurement.ListItems)
				r.Post("/{id}/procurement", rt.h.Procurement.CreateItem)

				r.Get("/{id}/roadmap", rt.h.Roadmap.List)
				r.Post("/{id}/roadmap", rt.h.Roadmap.Create)

				r.Get("/{id}/documents", rt.h.Document.List)
				r.Post("/{id}/documents", rt.h.Document.Create)

				r.Get("/{id}/audit", rt.h.Audit.ListForProject)
				r.Get("/{id}/audit/summary", rt.h.Audit.Summary)
			})

			r.Route("/portal-tokens/{id}", func(r chi.Router) {
				r.Post("/revoke", rt.h.Portal.Revoke)
				r.Get("/access-log", rt.h.Portal.AccessLog)
			})

			r.Put("/tenants/{id}", rt.h.Tenant.Update)
			r.Delete("/tenants/{id}", rt.h.Tenant.Delete)

			r.Get("/cable-schedules/{id}/entries", rt.h.Cable.ListEntries)
			r.Post("/cable-schedules/{id}/entries", rt.h.Cable.CreateEntry)
			r.Put("/cable-entries/{id}", rt.h.Cable.UpdateEntry)
			r.Delete("/cable-entries/{id}", rt.h.Cable.DeleteEntry)

			r.Get("/final-accounts/{id}/bills", rt.h.FinalAccount.ListBills)
			r.Post("/final-accounts/{id}/bills", rt.h.FinalAccount.CreateBill)
			r.Post("/final-accounts/{id}/import", rt.h.FinalAccount.Import)
			r.Get("/final-account-bills/{id}/sections", rt.h.FinalAccount.ListSections)
			r.Post("/final-account-bills/{id}/sections", rt.h.FinalAccount.CreateSection)
			r.Get("/final-account-sections/{id}/items", rt.h.FinalAccount.ListItems)
			r.Post("/final-account-sections/{id}/items", rt.h.FinalAccount.CreateItem)
			r.Route("/final-account-items/{id}", func(r chi.Router) {
				r.Get("/", rt.h.FinalAccount.GetItem)
				r.Put("/", rt.h.FinalAccount.UpdateItem)
				r.Delete("/", rt.h.FinalAccount.DeleteItem)
			})

			r.Route("/procurement/{id}", func(r chi.Router) {
				r.Get("/", rt.h.Procurement.GetItem)
				r.Put("/", rt.h.Procurement.UpdateItem)
				r.Delete("/", rt.h.Procurement.DeleteItem)
				r.Get("/history", rt.h.Procurement.History)
				r.Get("/deliveries", rt.h.Procurement.ListDeliveries)
				r.Post("/deliveries", rt.h.Procurement.CreateDelivery)
			})

			r.Put("/roadmap/{id}", rt.h.Roadmap.Update)
			r.Delete("/roadmap/{id}", rt.h.Roadmap.Delete)

			r.Get("/documents/{id}", rt.h.Document.GetByID)
			r.Delete("/documents/{id}", rt.h.Document.Delete)

			r.Get("/audit/{entityType}/{entityId}", rt.h.Audit.ListByEntity)

			r.Route("/contacts", func(r chi.Router) {
				r.Get("/", rt.h.Contact.List)
				r.Post("/", rt.h.Contact.Create)
				r.Get("/{id}", rt.h.Contact.GetByID)
				r.Put("/{id}", rt.h.Contact.Update)
				r.Delete("/{id}", rt.h.Contact.Delete)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", rt.h.Notification.List)
				r.Get("/count", rt.h.Notification.UnreadCount)
				r.Put("/{id}/read", rt.h.Notification.MarkAsRead)
			})
		})
	})

	return r
}

// databaseHealth reports readiness with connection pool stats
func (rt *Router) databaseHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := database.HealthCheck(ctx, rt.db); err != nil {
		rt.logger.Error("Database health check failed", zap.Error(err))
		writeHealth(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":  "unhealthy",
			"error":   err.Error(),
			"service": "database",
		})
		return
	}

	sqlDB, err := rt.db.DB()
	if err != nil {
		writeHealth(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":  "unhealthy",
			"error":   err.Error(),
			"service": "database",
		})
		return
	}
	stats := sqlDB.Stats()

	writeHealth(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "database",
		"stats": map[string]interface{}{
			"max_open_connections": stats.MaxOpenConnections,
			"open_connections":     stats.OpenConnections,
			"in_use":               stats.InUse,
			"idle":                 stats.Idle,
			"wait_count":           stats.WaitCount,
			"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
		},
	})
}

// readiness checks every dependency the API cannot serve without
func (rt *Router) readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]interface{})
	status := http.StatusOK

	if err := database.HealthCheck(ctx, rt.db); err != nil {
		rt.logger.Error("Database health check failed", zap.Error(err))
		checks["database"] = map[string]interface{}{"status": "unhealthy", "error": err.Error()}
		status = http.StatusServiceUnavailable
	} else {
		checks["database"] = map[string]interface{}{"status": "healthy"}
	}

	overall := "healthy"
	if status != http.StatusOK {
		overall = "unhealthy"
	}
	writeHealth(w, status, map[string]interface{}{
		"status":         overall,
		"checks":         checks,
		"policy_version": rt.cfg.Authz.PolicyVersion,
	})
}

func writeHealth(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
