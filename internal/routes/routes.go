package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/peerpool/peerpool/internal/auth"
	"github.com/peerpool/peerpool/internal/config"
	"github.com/peerpool/peerpool/internal/identity"
	"github.com/peerpool/peerpool/internal/ledger"
	"github.com/peerpool/peerpool/internal/lending"
	"github.com/peerpool/peerpool/internal/middleware"
	"github.com/peerpool/peerpool/internal/notification"
	"github.com/peerpool/peerpool/internal/settlement"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
	// Gateway moves value in and out of the pool; nil approves everything.
	Gateway settlement.Gateway
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though config also checks.
	if !d.Cfg.IsDevelopment() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
		}
	}
	rate, err := ledger.RateFromPercent(d.Cfg.InterestRatePercent.String())
	if err != nil {
		return fmt.Errorf("interest rate: %w", err)
	}
	owner := ledger.Address(d.Cfg.PoolOwner)

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	// Health
	RegisterHealthRoutes(app, d)

	// Services and handlers
	var (
		ledgerBackend ledger.Ledger
		identityRepo  identity.Repository
	)
	if d.DB != nil {
		pg, err := ledger.NewPostgresLedger(context.Background(), d.DB, owner, rate)
		if err != nil {
			return fmt.Errorf("postgres ledger: %w", err)
		}
		ledgerBackend = pg
		identityRepo = identity.NewPostgresRepository(d.DB)
	} else {
		ledgerBackend = ledger.NewInMemory(owner, rate)
		identityRepo = identity.NewMemoryRepository()
	}

	notifier := notification.NewLoggerNotifier(d.Logger)
	lendingSvc := lending.NewService(ledgerBackend, d.Gateway, notifier, d.Logger)
	identitySvc := identity.NewService(identityRepo)
	authSvc := auth.NewService(d.Cfg, identityRepo)

	lendingHandler := lending.NewHandler(lendingSvc)
	identityHandler := identity.NewHandler(identitySvc, d.Logger)
	authHandler := auth.NewHandler(identitySvc, authSvc)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	RegisterIdentityRoutes(api, identityHandler)
	rateLimiter := middleware.LoginRateLimit(d.Cache, d.Cfg.LoginRateLimit)
	RegisterAuthRoutes(api, authHandler, rateLimiter)
	RegisterPoolQueryRoutes(api, lendingHandler)

	// Protected routes
	protected := api.Group("", middleware.JWTAuth(authSvc))
	if d.Cache != nil {
		protected.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	RegisterMeRoute(protected, lendingSvc, identityRepo)
	RegisterPoolRoutes(protected, lendingHandler)

	return nil
}
