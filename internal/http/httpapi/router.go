// Package httpapi assembles the chi router for the cleaning service.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"clearmark/internal/http/handlers"
	"clearmark/internal/middleware"
)

// RouterOptions wires the middleware chain around the handlers.
type RouterOptions struct {
	App            *handlers.App
	Logger         zerolog.Logger
	AllowedOrigins []string
	DefaultLocale  string
	CountryLookup  middleware.CountryLookup
	// APIToken guards the mutating endpoints when set. Empty disables auth.
	APIToken string
	// UploadsPerMinute rate-limits run creation per client IP.
	UploadsPerMinute int
}

func NewRouter(opts RouterOptions) http.Handler {
	app := opts.App
	uploadsPerMinute := opts.UploadsPerMinute
	if uploadsPerMinute <= 0 {
		uploadsPerMinute = 30
	}

	r := chi.NewRouter()
	r.Use(
		chimw.RealIP,
		middleware.RequestID,
		middleware.Logger(opts.Logger),
		chimw.Recoverer,
		middleware.CORS(opts.AllowedOrigins),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
	)

	r.Get("/healthz", app.Health)
	r.Get("/docs", app.OpenAPIDocs)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/openapi.json", app.OpenAPIJSON)

		r.With(
			middleware.RateLimit(uploadsPerMinute, time.Minute),
			middleware.AuthToken(opts.APIToken),
		).Post("/clean", app.CleanCreate)

		r.With(middleware.AuthToken(opts.APIToken)).Get("/runs", app.RunList)
		r.Route("/runs/{id}", func(r chi.Router) {
			r.Get("/", app.RunStatus)
			r.Get("/events", app.RunEvents)
			r.Get("/result", app.RunResult)
			r.Get("/bundle", app.RunBundle)
		})

		r.Get("/capability", app.CapabilityStatus)
		r.With(middleware.AuthToken(opts.APIToken)).Post("/capability/request", app.CapabilityRequest)
	})

	return r
}
