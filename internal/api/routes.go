package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/formbridge/internal/pkg/httputil"
	"github.com/ignite/formbridge/internal/webhook"
)

// APIKeyHeader authenticates admin requests.
const APIKeyHeader = "X-API-Key"

// SetupRoutes configures the full route tree: public intake, provider
// webhooks, and the key-protected admin surface.
func SetupRoutes(h *Handlers, receiver *webhook.Receiver, apiKey string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", APIKeyHeader},
		MaxAge:         300,
	}))

	r.Get("/health", h.HealthCheck)

	// Public intake, no auth: forms are embedded on third-party sites.
	r.Post("/api/public/forms/{formID}/submissions", h.SubmitForm)

	// Provider webhooks authenticate by payload signature, not API key.
	if receiver != nil {
		r.Post("/webhooks/mailchimp", receiver.HandleMailchimp)
	}

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(requireAPIKey(apiKey))

		r.Route("/forms", func(r chi.Router) {
			r.Get("/", h.ListForms)
			r.Post("/", h.CreateForm)
			r.Route("/{formID}", func(r chi.Router) {
				r.Get("/", h.GetForm)
				r.Put("/", h.UpdateForm)
				r.Delete("/", h.DeleteForm)
				r.Post("/duplicate", h.DuplicateForm)
				r.Put("/reorder", h.ReorderFields)

				r.Post("/fields", h.SaveField)
				r.Delete("/fields/{fieldID}", h.DeleteField)

				r.Get("/submissions", h.ListSubmissions)

				r.Route("/mappings/{provider}", func(r chi.Router) {
					r.Get("/", h.GetMapping)
					r.Put("/", h.SaveMapping)
				})
				r.Get("/mappings/suggest", h.SuggestMapping)
			})
		})

		r.Route("/submissions", func(r chi.Router) {
			r.Post("/bulk-delete", h.BulkDeleteSubmissions)
			r.Route("/{submissionID}", func(r chi.Router) {
				r.Get("/", h.GetSubmission)
				r.Put("/status", h.SetSubmissionStatus)
				r.Delete("/", h.DeleteSubmission)
			})
		})

		r.Route("/integrations", func(r chi.Router) {
			r.Get("/mailchimp/audiences", h.ListAudiences)
			r.Get("/mailchimp/audiences/{audienceID}/merge-fields", h.ListMergeFields)
			r.Get("/hubspot/properties/{objectType}", h.ListProperties)
			r.Route("/{provider}", func(r chi.Router) {
				r.Get("/settings", h.GetIntegrationSettings)
				r.Put("/settings", h.SaveIntegrationSettings)
				r.Post("/test", h.TestIntegration)
			})
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/overview", h.AnalyticsOverview)
			r.Get("/export", h.ExportAnalytics)
		})
	})

	return r
}

// requireAPIKey rejects admin requests without the configured key. The
// denial is generic: probes learn nothing about which routes exist.
func requireAPIKey(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(APIKeyHeader)
			if apiKey == "" || subtle.ConstantTimeCompare([]byte(got), []byte(apiKey)) != 1 {
				httputil.Denied(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
