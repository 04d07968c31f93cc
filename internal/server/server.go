package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xela07ax/zkspend-gateway/internal/domain"
	"github.com/xela07ax/zkspend-gateway/internal/engine"
	"github.com/xela07ax/zkspend-gateway/internal/infra/auth"
	"github.com/xela07ax/zkspend-gateway/internal/server/handler"
)

type GatewayServer struct {
	router *chi.Mux
	logger *zap.Logger

	// nil: API открыт (локальная разработка)
	authValidator auth.TokenValidator

	// Обработчики
	proofHandler   *handler.ProofHandler   // /v1/proofs
	paymentHandler *handler.PaymentHandler // /v1/payments
	policyHandler  *handler.PolicyHandler  // /v1/policies
}

// NewGatewayServer собирает роутер шлюза со всеми зависимостями
func NewGatewayServer(
	gw handler.Gateway,
	invalidator handler.PolicyInvalidator,
	validator auth.TokenValidator,
	logger *zap.Logger,
) *GatewayServer {
	logger = logger.Named("gateway-api")
	s := &GatewayServer{
		router:         chi.NewRouter(),
		logger:         logger,
		authValidator:  validator,
		proofHandler:   handler.NewProofHandler(gw, logger),
		paymentHandler: handler.NewPaymentHandler(gw, logger),
		policyHandler:  handler.NewPolicyHandler(gw, invalidator, logger),
	}

	s.routes()
	return s
}

func (s *GatewayServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(engine.TracingMiddleware)

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ ---
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// --- 3. API (RS256 токен, если ключ настроен) ---
	r.Group(func(r chi.Router) {
		if s.authValidator != nil {
			r.Use(auth.NewMiddleware(s.authValidator, s.logger))
		}

		r.Route("/v1/proofs", func(r chi.Router) {
			r.With(auth.RequireScope(domain.ScopeProofsWrite)).Post("/", s.proofHandler.Prove)
			r.With(auth.RequireScope(domain.ScopeProofsVerify)).Post("/verify", s.proofHandler.Verify)
		})

		r.With(auth.RequireScope(domain.ScopePaymentsExecute)).Post("/v1/payments", s.paymentHandler.Execute)

		r.Route("/v1/policies/{name}", func(r chi.Router) {
			r.With(auth.RequireScope(domain.ScopePoliciesRead)).Get("/", s.policyHandler.Get)
			r.With(auth.RequireScope(domain.ScopePoliciesAdmin)).Delete("/cache", s.policyHandler.Invalidate)
		})
	})
}

// ServeHTTP позволяет использовать GatewayServer как стандартный http.Handler
func (s *GatewayServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
