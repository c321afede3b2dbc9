package app

import (
	"time"

	"obcare-backend/internal/audit"
	"obcare-backend/internal/auth"
	"obcare-backend/internal/codes"
	"obcare-backend/internal/config"
	"obcare-backend/internal/constants"
	"obcare-backend/internal/database"
	"obcare-backend/internal/hospitals"
	"obcare-backend/internal/invites"
	"obcare-backend/internal/middleware"
	"obcare-backend/internal/models"
	"obcare-backend/internal/monitoring"
	"obcare-backend/internal/ratelimit"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// CreateApp builds the Fiber app with all global middleware and route registration.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	// CORS (before session)
	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))

	// Session (Redis); the same client backs the rate limiter
	sessionCfg := middleware.SessionConfig{
		Secret:            cfg.SessionSecret,
		RedisURL:          cfg.RedisURL,
		AllowCrossSiteDev: cfg.AllowCrossSiteDev,
		IsProduction:      cfg.Env == "production",
	}
	sessionHandler, rdb, err := middleware.Session(sessionCfg)
	if err != nil {
		return nil, nil, nil, err
	}
	app.Use(sessionHandler)

	// Response formatter (inject helpers)
	app.Use(middleware.ResponseFormatter())

	// Tracing + route logger
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())

	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		db, err = database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := database.AutoMigrate(db); err != nil {
			return nil, nil, nil, err
		}
	}

	limiter := ratelimit.New(rdb, RateRules(cfg.Security))

	// Auth (no auth middleware): login, me, logout, public signup
	var userFinder auth.UserFinder
	if db != nil {
		userFinder = &auth.GormUserFinder{DB: db}
	}
	authHandlers := &auth.Handlers{
		UserFinder: userFinder,
		Rdb:        rdb,
		Config:     sessionCfg,
	}
	authGroup := app.Group("/api/v1/auth")
	authGroup.Post("/login", authHandlers.Login)
	authGroup.Get("/me", authHandlers.Me)
	authGroup.Delete("/logout", authHandlers.Logout)

	// --- Modules requiring DB ---
	if db != nil && rdb != nil {
		auditor := &audit.Auditor{
			DB:         db,
			Suspicious: limiter,
			Rules: audit.RuleConfig{
				FailedCodesMin: cfg.Security.FailedCodesAlertMin,
				RapidSignupMin: cfg.Security.RapidSignupAlertMin,
				EnumerationMin: cfg.Security.EnumerationAlertMin,
				Window:         cfg.Security.AlertWindow,
				Cooldown:       cfg.Security.AlertCooldown,
			},
		}
		generator := &codes.Generator{DB: db}

		// Invites module: public validation + doctor-facing management
		invService := &invites.Service{DB: db, Generator: generator, Limiter: limiter, Auditor: auditor}
		invHandlers := &invites.Handlers{Service: invService}
		app.Post("/api/v1/invites/public/validate", invHandlers.Validate)
		invGroup := app.Group("/api/v1/invites", middleware.RequireAuth())
		invGroup.Post("/create-invite", middleware.AuthorizePermission(constants.CreateInvite), invHandlers.CreateInvite)
		invGroup.Patch("/deactivate-invite", middleware.AuthorizePermission(constants.DeactivateInvite), invHandlers.DeactivateInvite)
		invGroup.Get("/view-invites", middleware.AuthorizePermission(constants.ViewInvites), invHandlers.ListInvites)

		// Customer signup consumes an invite code (public)
		authHandlers.Signup = &auth.SignupService{DB: db, Invites: invService, Limiter: limiter, Auditor: auditor}
		authGroup.Post("/signup", authHandlers.SignupCustomer)

		// Hospitals module (admin)
		hospService := &hospitals.Service{DB: db, Generator: generator, Limiter: limiter, Auditor: auditor}
		hospHandlers := &hospitals.Handlers{Service: hospService}
		hospGroup := app.Group("/api/v1/hospitals", middleware.RequireAuth())
		hospGroup.Post("/onboard", middleware.AuthorizePermission(constants.OnboardHospital), hospHandlers.Onboard)
		hospGroup.Patch("/deactivate", middleware.AuthorizePermission(constants.DeactivateHospital), hospHandlers.Deactivate)
		hospGroup.Get("/view-hospital/:code", hospHandlers.ViewHospital)
		hospGroup.Get("/view-hospitals", hospHandlers.ViewHospitals)

		// Security monitoring module (admin)
		monService := &monitoring.Service{DB: db, Limiter: limiter, Auditor: auditor}
		monHandlers := &monitoring.Handlers{Service: monService}
		secGroup := app.Group("/api/v1/security", middleware.RequireAuth())
		secGroup.Get("/overview", middleware.AuthorizePermission(constants.ViewSecurity), monHandlers.Overview)
		secGroup.Get("/audit-logs", middleware.AuthorizePermission(constants.ViewSecurity), monHandlers.AuditLogs)
		secGroup.Get("/alerts", middleware.AuthorizePermission(constants.ViewSecurity), monHandlers.Alerts)
		secGroup.Patch("/resolve-alert", middleware.AuthorizePermission(constants.ResolveAlert), monHandlers.ResolveAlert)
	}

	return app, db, rdb, nil
}

// RateRules maps security config onto per-action limiter rules. Validation
// fails open, generation fails closed; signup follows validation.
func RateRules(sec config.SecurityConfig) map[string]ratelimit.Rule {
	return map[string]ratelimit.Rule{
		models.ActionCodeValidation: {
			Limit:           sec.ValidationPerMinute,
			Window:          time.Minute,
			Cooldown:        sec.BlockCooldown,
			SuspiciousAfter: sec.SuspiciousAfter,
			FailClosed:      false,
		},
		models.ActionCodeGeneration: {
			Limit:           sec.GenerationPerHour,
			Window:          time.Hour,
			Cooldown:        sec.BlockCooldown,
			SuspiciousAfter: sec.SuspiciousAfter,
			FailClosed:      true,
		},
		models.ActionSignup: {
			Limit:           sec.SignupPerMinute,
			Window:          time.Minute,
			Cooldown:        sec.BlockCooldown,
			SuspiciousAfter: sec.SuspiciousAfter,
			FailClosed:      false,
		},
	}
}
