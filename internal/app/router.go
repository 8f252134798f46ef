package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/storebridge/storebridge/internal/auth"
	"github.com/storebridge/storebridge/internal/batch"
	"github.com/storebridge/storebridge/internal/google"
	"github.com/storebridge/storebridge/internal/inventory"
	"github.com/storebridge/storebridge/internal/notify"
	"github.com/storebridge/storebridge/internal/oauth"
	"github.com/storebridge/storebridge/internal/observability"
	"github.com/storebridge/storebridge/internal/orders"
	"github.com/storebridge/storebridge/internal/paypal"
	"github.com/storebridge/storebridge/internal/platform/httpx"
	"github.com/storebridge/storebridge/internal/shared"
	"github.com/storebridge/storebridge/internal/webhooks"
	"github.com/storebridge/storebridge/jobs"
)

// RouterParams groups dependencies for building the HTTP router. Optional
// handlers are left nil when their integration is not configured.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	AuthService    *auth.Service
	AuthHandler    *auth.Handler

	OrdersHandler    *orders.Handler
	InventoryHandler *inventory.Handler
	NotifyHandler    *notify.Handler
	GoogleHandler    *google.Handler
	PayPalHandler    *paypal.Handler
	OAuthHandler     *oauth.Handler
	WebhookHandler   *webhooks.Handler
	BatchHandler     *batch.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with storebridge defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	r.Route("/auth", params.AuthHandler.MountRoutes)

	requireAdmin := RequireAdmin(params.AuthService, params.CSRFManager, params.Logger)
	r.Route("/api", func(r chi.Router) {
		r.Use(requireAdmin)
		if params.OrdersHandler != nil {
			r.Route("/orders", params.OrdersHandler.MountRoutes)
		}
		if params.InventoryHandler != nil {
			r.Route("/inventory", params.InventoryHandler.MountRoutes)
		}
		if params.NotifyHandler != nil {
			r.Route("/notifications", params.NotifyHandler.MountRoutes)
		}
		if params.GoogleHandler != nil {
			r.Route("/google", params.GoogleHandler.MountRoutes)
		}
		if params.PayPalHandler != nil {
			r.Route("/paypal", params.PayPalHandler.MountRoutes)
		}
	})
	if params.OAuthHandler != nil {
		r.Route("/oauth/google", func(r chi.Router) {
			r.Use(requireAdmin)
			params.OAuthHandler.MountRoutes(r)
		})
	}

	// Webhooks authenticate with their own shared secrets and signatures.
	if params.WebhookHandler != nil {
		r.Route("/webhooks", params.WebhookHandler.MountRoutes)
	}

	if params.BatchHandler != nil {
		var allowed []string
		if params.Config != nil {
			allowed = params.Config.BatchAllowList()
		}
		r.Route("/batch", func(r chi.Router) {
			r.Use(batch.AllowIPs(allowed, params.Logger))
			params.BatchHandler.MountRoutes(r)
		})
	}

	return r
}
