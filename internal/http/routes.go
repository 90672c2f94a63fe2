package http

import (
	"time"

	"glxy/internal/http/handlers"
	"glxy/internal/http/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Limits are fixed-window request budgets; zero disables a limit
type Limits struct {
	API         int
	APIWindow   time.Duration
	Auth        int
	AuthWindow  time.Duration
	Spend       int
	SpendWindow time.Duration
}

type Deps struct {
	Handler *handlers.Handler
	Health  *handlers.HealthHandler
	Limiter *middleware.RateLimiter
	IsAdmin func(userID string) bool
	Limits  Limits

	// MediaDir is served under /media when set
	MediaDir string
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.Use(middleware.RequestID(nil), middleware.Metrics())

	// Health checks (no rate limiting)
	r.GET("/health", d.Health.Health)
	r.GET("/healthz", d.Health.Liveness)
	r.GET("/readyz", d.Health.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if d.MediaDir != "" {
		r.Static("/media", d.MediaDir)
	}

	for _, prefix := range []string{"/api/v1", "/api"} {
		// Stripe retries from a small set of IPs; keep it outside the per-IP budget
		r.POST(prefix+"/stripe/webhook", d.Handler.StripeWebhook)

		api := r.Group(prefix)
		api.Use(d.Limiter.PerIP("api", d.Limits.API, d.Limits.APIWindow))
		registerAPIRoutes(api, d)
	}
}

func registerAPIRoutes(api *gin.RouterGroup, d Deps) {
	h := d.Handler
	auth := middleware.JWT(h.Sessions)
	spend := d.Limiter.PerUser("spend", d.Limits.Spend, d.Limits.SpendWindow)

	api.GET("/health", d.Health.Health)

	// Sessions
	api.POST("/auth/session", d.Limiter.PerIP("auth", d.Limits.Auth, d.Limits.AuthWindow), h.Session)
	api.POST("/auth/signout", auth, h.SignOut)

	// Profile
	api.GET("/me", auth, h.Me)
	api.PATCH("/me", auth, h.UpdateMe)
	api.GET("/ws/profile", h.ProfileWS())

	// Ledger
	api.GET("/stardust/balance", auth, h.Balance)
	api.GET("/stardust/history", auth, h.History)

	// Planets
	api.GET("/planets/prices", h.Prices)
	planets := api.Group("/planets/:planet")
	planets.Use(auth)
	{
		planets.GET("/interactions", h.ListInteractions)
		planets.POST("/interactions", spend, h.RecordInteraction)
		planets.GET("/preferences", h.GetPreferences)
		planets.PATCH("/preferences", h.UpdatePreferences)
	}

	// Wardrobe
	wardrobe := api.Group("/wardrobe")
	wardrobe.Use(auth)
	{
		wardrobe.POST("/analyze", spend, h.AnalyzeClothing)
		wardrobe.POST("/suggest", spend, h.ProposeOutfit)
		wardrobe.GET("/items", h.ListItems)
		wardrobe.POST("/items", spend, h.UploadItem)
		wardrobe.GET("/suggestions", h.ListSuggestions)
		wardrobe.POST("/suggestions", spend, h.CreateSuggestion)
	}

	// Payments
	api.POST("/stripe/create-checkout", auth, h.CreateCheckout)

	// Admin
	admin := api.Group("/admin")
	admin.Use(auth, middleware.Admin(d.IsAdmin))
	{
		admin.GET("/stats", h.AdminStats)
		admin.GET("/users", h.AdminUsers)
		admin.POST("/stardust", h.AdminGrant)
		admin.GET("/audit", h.AdminAudit)
		admin.GET("/payments/:session", h.AdminPayment)
		admin.POST("/reconcile", h.AdminReconcile)
	}
}
