package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"wiener-keygen-service/config"
	"wiener-keygen-service/internal/middleware"
)

// NewRouter はルーターを生成する。トレーシング有効時は otelhttp で包む。
func NewRouter(h *KeyPairHandler, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/v1/keypairs", func(r chi.Router) {
		r.Post("/", h.CreateKeyPair)
		r.Post("/batch", h.CreateBatch)
		r.Get("/", h.ListKeyPairs)
		r.Get("/{id}", h.GetKeyPair)
		r.Get("/{id}/challenge", h.GetChallenge)
		r.Delete("/{id}", h.DeleteKeyPair)
	})

	if cfg != nil && cfg.OtelEnabled {
		return otelhttp.NewHandler(r, cfg.OtelServiceName,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	}
	return r
}
