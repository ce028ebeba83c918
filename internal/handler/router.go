// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/olegiv/eventboard/internal/apperr"
	"github.com/olegiv/eventboard/internal/metrics"
	"github.com/olegiv/eventboard/internal/middleware"
	"github.com/olegiv/eventboard/internal/model"
	"github.com/olegiv/eventboard/internal/notify"
	"github.com/olegiv/eventboard/internal/scheduler"
	"github.com/olegiv/eventboard/internal/security"
	"github.com/olegiv/eventboard/internal/service"
	"github.com/olegiv/eventboard/internal/session"
)

// Services bundles the components the HTTP layer calls into.
type Services struct {
	Sessions  *session.Store
	CSRF      *security.CSRFGuard
	Limiter   *security.RateLimiter
	Accounts  *service.AccountService
	Events    *service.EventService
	Inbox     *notify.Inbox
	Audit     *service.AuditService
	Metrics   *metrics.Metrics
	Validator *validator.Validate
	Health    *HealthHandler
	// Scheduler is optional. When set, admins can list and run its jobs.
	Scheduler *scheduler.Scheduler
}

// RouterConfig holds HTTP-layer settings.
type RouterConfig struct {
	IsDev bool
	// TrustProxy enables chi's RealIP so X-Forwarded-For decides the client IP.
	TrustProxy bool
	CSRF       middleware.CSRFConfig
	// Throttle is optional per-IP flood control for the auth routes.
	Throttle   *middleware.IPThrottle
	UploadsDir string
	MaxUpload  int64
}

// NewRouter builds the application's HTTP handler.
//
// Every protected route runs its gates in a fixed order: the session is
// loaded and its idle timeout checked, then the caller's role, then the
// anti-forgery token, and only then the handler, which applies rate limits
// before calling the workflow.
func NewRouter(cfg RouterConfig, s Services) http.Handler {
	if s.Validator == nil {
		s.Validator = validator.New(validator.WithRequiredStructEnabled())
	}

	authH := NewAuthHandler(s.Accounts, s.Sessions, s.CSRF, s.Limiter, s.Audit, s.Metrics, s.Validator)
	eventsH := NewEventsHandler(s.Events, s.Validator, cfg.MaxUpload)
	adminH := NewAdminHandler(s.Accounts, s.Audit)
	notesH := NewNotificationsHandler(s.Inbox)

	requireCSRF := middleware.RequireCSRF(s.CSRF, s.Audit)
	throttle := func(next http.Handler) http.Handler { return next }
	if cfg.Throttle != nil {
		throttle = cfg.Throttle.Middleware()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if cfg.TrustProxy {
		r.Use(chimw.RealIP)
	}
	if cfg.IsDev {
		r.Use(chimw.Logger)
	}
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics(s.Metrics))
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.IsDev)))
	r.Use(middleware.RequestPath)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, r, apperr.New(apperr.NotFound, "route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteAPIError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
	})

	r.Get("/health/live", s.Health.Liveness)
	r.Get("/health/ready", s.Health.Readiness)
	r.Method(http.MethodGet, "/metrics", s.Metrics.Handler())
	if cfg.UploadsDir != "" {
		r.Method(http.MethodGet, UploadsPrefix+"*", uploadsHandler(cfg.UploadsDir))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.CSRF(cfg.CSRF))
		r.Use(s.Sessions.LoadAndSave)
		r.Use(middleware.LoadIdentity(s.Sessions))

		r.Get("/health", s.Health.Health)

		r.Route("/auth", func(r chi.Router) {
			r.Get("/csrf", authH.CSRFToken)

			r.Group(func(r chi.Router) {
				r.Use(requireCSRF)
				r.Use(throttle)
				r.Post("/register", authH.Register)
				r.Post("/login", authH.Login)
				r.Post("/password/forgot", authH.ForgotPassword)
				r.Post("/password/reset", authH.ResetPassword)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth)
				r.Use(requireCSRF)
				r.Get("/me", authH.Me)
				r.Post("/logout", authH.Logout)
			})
		})

		r.Route("/events", func(r chi.Router) {
			r.Use(middleware.RequireAuth)

			r.Get("/", eventsH.List)
			r.Get("/{id}", eventsH.Get)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(s.Audit, model.RoleTeacher, model.RoleAdmin))
				r.Use(requireCSRF)
				r.Put("/{id}", eventsH.Update)
				r.Post("/{id}", eventsH.Update)
				r.Delete("/{id}", eventsH.Delete)
			})
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(s.Audit, model.RoleTeacher, model.RoleAdmin))
				r.Use(requireCSRF)
				r.Post("/", eventsH.Create)
			})
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin(s.Audit))
				r.Use(requireCSRF)
				r.Post("/{id}/moderate", eventsH.Moderate)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin(s.Audit))
			r.Use(requireCSRF)

			r.Get("/teachers/pending", adminH.PendingTeachers)
			r.Get("/teachers/approved", adminH.ApprovedTeachers)
			r.Post("/teachers/{id}/approve", adminH.ApproveTeacher)
			r.Post("/teachers/{id}/reject", adminH.RejectTeacher)
			r.Get("/audit", adminH.AuditLog)

			if s.Scheduler != nil {
				jobsH := NewSchedulerHandler(s.Scheduler, s.Audit)
				r.Get("/jobs", jobsH.List)
				r.Post("/jobs/{name}/run", jobsH.Trigger)
			}
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Use(requireCSRF)

			r.Get("/", notesH.List)
			r.Get("/unread-count", notesH.UnreadCount)
			r.Post("/read-all", notesH.MarkAllRead)
			r.Delete("/read", notesH.DeleteRead)
			r.Post("/{id}/read", notesH.MarkRead)
			r.Delete("/{id}", notesH.Delete)
		})
	})

	return r
}
