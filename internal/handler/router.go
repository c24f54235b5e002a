package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"rsa-key-service/config"
	"rsa-key-service/internal/middleware"
)

// RouterOptions はルーターの付加機能。nilのフィールドは無効になる。
type RouterOptions struct {
	Metrics  *middleware.HTTPMetrics
	Gatherer prometheus.Gatherer
}

// NewRouter はルーターを生成する。
func NewRouter(h *KeyHandler, cfg *config.Config, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	// ミドルウェア
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Handler)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if opts.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	// ルート定義
	r.Route("/v1/tenants/{tenant_id}/keys", func(r chi.Router) {
		r.Post("/", h.CreateKey)
		r.Get("/", h.ListKeys)
		r.Get("/current", h.GetCurrentKey)
		r.Post("/rotate", h.RotateKey)
		r.Get("/{generation}", h.GetKeyByGeneration)
		r.Get("/{generation}/public", h.GetPublicKey)
		r.Delete("/{generation}", h.DisableKey)
	})

	if !cfg.OtelEnabled {
		return r
	}
	return otelhttp.NewHandler(r, cfg.OtelServiceName,
		otelhttp.WithSpanNameFormatter(func(_ string, req *http.Request) string {
			return req.Method + " " + req.URL.Path
		}),
	)
}
