package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/edvin/billing/internal/api/handler"
	mw "github.com/edvin/billing/internal/api/middleware"
	"github.com/edvin/billing/internal/config"
	"github.com/edvin/billing/internal/core"
	"github.com/edvin/billing/internal/metrics"
)

// Pinger reports database reachability for /readyz. *pgxpool.Pool
// satisfies this interface.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the HTTP server routes to.
type Deps struct {
	DB       Pinger
	Services *core.Services
	// Stripe is nil when Connect is not configured.
	Stripe    handler.StripeWebhookParser
	Authority *mw.TokenAuthority
	Registry  *prometheus.Registry
	Recorder  metrics.BillingRecorder
}

type Server struct {
	router chi.Router
	logger zerolog.Logger
	cfg    *config.Config
	deps   Deps
}

func NewServer(logger zerolog.Logger, cfg *config.Config, deps Deps) *Server {
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}
	if deps.Recorder == nil {
		deps.Recorder = metrics.NopRecorder{}
	}

	s := &Server{
		router: chi.NewRouter(),
		logger: logger,
		cfg:    cfg,
		deps:   deps,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics(s.deps.Registry))
	s.router.Use(mw.CORS(s.cfg.CORSOrigins))
}

func (s *Server) setupRoutes() {
	svc := s.deps.Services

	s.router.Handle("/metrics", metrics.Handler(s.deps.Registry))

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	// Provider callbacks are authenticated by the provider, not by a user token.
	webhook := handler.NewWebhook(svc.Processor, s.deps.Stripe, s.deps.Recorder)
	s.router.Post("/webhooks/infinitypay", webhook.InfinityPay)
	s.router.Post("/webhooks/stripe", webhook.Stripe)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.Auth(s.deps.Authority))

		// Billing stays reachable after access lapses so the organization can renew.
		billing := handler.NewBilling(svc.Processor, svc.Checkout, svc.Entitlement, svc.Ledger)
		r.Post("/billing/verify", billing.Verify)
		r.Post("/billing/checkout", billing.Checkout)
		r.Get("/billing/status", billing.Status)
		r.Get("/billing/events", billing.Events)

		usage := handler.NewUsage(svc.Usage)
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireActiveAccess(svc.Entitlement))
			r.Get("/usage", usage.Get)
			r.Post("/usage/seats", usage.ReserveSeat)
			r.Delete("/usage/seats", usage.ReleaseSeat)
			r.Post("/usage/storage", usage.AddStorage)
			r.Post("/usage/ai-credits", usage.ConsumeAICredits)
		})
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if err := s.deps.DB.Ping(ctx); err != nil {
		checks["billing_db"] = err.Error()
		healthy = false
	} else {
		checks["billing_db"] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(checks)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
