package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/Shivanand-hulikatti/event-presale/internal/auth"
	"github.com/Shivanand-hulikatti/event-presale/internal/config"
	"github.com/Shivanand-hulikatti/event-presale/internal/metrics"
)

// RouterConfig collects what NewRouter needs beyond the handlers.
type RouterConfig struct {
	CORSOrigins []string
	RateLimit   config.RateLimit
	Redis       *redis.Client
	Issuer      *auth.Issuer
	Metrics     *metrics.Metrics
	// Gatherer backs /metrics; nil omits the endpoint.
	Gatherer prometheus.Gatherer
}

// NewRouter builds the chi router for the whole API.
func NewRouter(cfg RouterConfig, presale *PresaleHandler, admin *AdminHandler, forms *FormFieldHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(AccessLog)
	r.Use(Instrument(cfg.Metrics))
	r.Use(CORS(cfg.CORSOrigins))

	r.NotFound(NotFound)
	r.Get("/health", HealthCheck)
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/time", presale.Time)
		r.Get("/public/events", presale.ListEvents)
		r.Get("/public/events/{id}", presale.GetEvent)
		r.Get("/registrations/check/{eventId}", presale.RegistrationStatus)

		r.Group(func(r chi.Router) {
			r.Use(RateLimit(cfg.RateLimit, cfg.Redis))
			r.Post("/events/check-duplicate", presale.CheckDuplicate)
			r.Post("/register", presale.Register)
			r.Post("/validate-code", presale.ValidateCode)
			r.Post("/purchase", presale.Purchase)
		})

		r.Route("/form-fields", func(r chi.Router) {
			r.Get("/", forms.List)
			r.Get("/{id}", forms.Get)

			r.Group(func(r chi.Router) {
				r.Use(AdminAuth(cfg.Issuer))
				r.Post("/", forms.Create)
				r.Post("/validate", forms.CheckName)
				r.Put("/order", forms.Reorder)
				r.Put("/{id}", forms.Update)
				r.Delete("/{id}", forms.Delete)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(AdminAuth(cfg.Issuer))

			r.Get("/events", admin.ListEvents)
			r.Post("/events", admin.CreateEvent)
			r.Get("/events/{id}", admin.GetEvent)
			r.Put("/events/{id}", admin.UpdateEvent)

			r.Get("/registrations", admin.ListRegistrations)
			r.Get("/registrations/duplicates", admin.Duplicates)
			r.Get("/registrations/export", admin.Export)
			r.Get("/registrations/stats", admin.Stats)
			r.Delete("/registrations/{code}", admin.DeleteRegistration)

			r.Get("/orders", admin.ListOrders)
		})
	})

	return r
}
