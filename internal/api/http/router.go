package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/nightpass/internal/api/http/handlers"
	"github.com/spec-kit/nightpass/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Accounts       *handlers.AccountsHandler
	Subscription   *handlers.SubscriptionHandler
	Tokens         *handlers.TokensHandler
	AuthMiddleware *auth.AuthMiddleware
	// Gatherer backs GET /metrics. Nil disables the route.
	Gatherer      prometheus.Gatherer
	AllowDevReset bool
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Accounts.Register)
	authGroup.Post("/login", cfg.Accounts.Login)

	requireAccount := []fiber.Handler{cfg.AuthMiddleware.Handle, auth.RequireAccount()}
	app.Get("/me", append(requireAccount, cfg.Accounts.Me)...)

	subscription := app.Group("/subscription", requireAccount...)
	subscription.Get("", cfg.Subscription.Get)
	subscription.Post("/upgrade", cfg.Subscription.Upgrade)
	subscription.Post("/cancel", cfg.Subscription.Cancel)

	tokenGroup := app.Group("/tokens", requireAccount...)
	tokenGroup.Get("", cfg.Tokens.List)
	tokenGroup.Get("/counts", cfg.Tokens.Counts)
	tokenGroup.Get("/ledger", cfg.Tokens.Ledger)
	tokenGroup.Post("/redeem", cfg.Tokens.Redeem)
	tokenGroup.Post("/reset", auth.RequireFlag(cfg.AllowDevReset), cfg.Tokens.Reset)
}
