// Package router arma el mux del servicio con sus cadenas de middlewares
// por grupo de rutas.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/mcpd/internal/domain/repository"
	httpx "github.com/dropDatabas3/mcpd/internal/http"
	adminctrl "github.com/dropDatabas3/mcpd/internal/http/controllers/admin"
	healthctrl "github.com/dropDatabas3/mcpd/internal/http/controllers/health"
	oauthctrl "github.com/dropDatabas3/mcpd/internal/http/controllers/oauth"
	regctrl "github.com/dropDatabas3/mcpd/internal/http/controllers/registration"
	wkctrl "github.com/dropDatabas3/mcpd/internal/http/controllers/wellknown"
	mw "github.com/dropDatabas3/mcpd/internal/http/middlewares"
	"github.com/dropDatabas3/mcpd/internal/rate"
	"github.com/dropDatabas3/mcpd/internal/security/secret"
)

// Deps contiene todo lo necesario para registrar las rutas.
type Deps struct {
	Registration *regctrl.Controller
	Token        *oauthctrl.TokenController
	WellKnown    *wkctrl.Controller
	Admin        *adminctrl.Controller
	Health       *healthctrl.Controller

	Clients repository.ClientRegistrationRepository
	Hasher  *secret.Hasher

	AdminAuth mw.AdminAuthConfig

	// Limiters opcionales por endpoint. Nil => sin límite.
	RegisterLimiter rate.Limiter
	TokenLimiter    rate.Limiter

	// MetricsHandler sirve GET /metrics. Nil => la ruta no se registra.
	MetricsHandler http.Handler
}

// New construye el router completo.
func New(deps Deps) *chi.Mux {
	r := chi.NewRouter()

	base := []mw.Middleware{
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithSecurityHeaders(),
		httpMetrics,
		mw.WithLogging(),
	}
	sensitive := append(append([]mw.Middleware{}, base...), mw.WithNoStore())

	// Metadata pública
	r.Method(http.MethodGet, "/.well-known/jwks.json",
		mw.ChainFunc(deps.WellKnown.JWKS, base...))
	r.Method(http.MethodGet, "/.well-known/oauth-authorization-server",
		mw.ChainFunc(deps.WellKnown.Discovery, base...))
	r.Method(http.MethodGet, "/.well-known/openid-configuration",
		mw.ChainFunc(deps.WellKnown.Discovery, base...))

	// Registro dinámico
	registerChain := append(append([]mw.Middleware{}, sensitive...),
		mw.WithRateLimit(deps.RegisterLimiter, mw.IPPathRateKey))
	r.Method(http.MethodPost, "/oauth/register",
		mw.ChainFunc(deps.Registration.Register, registerChain...))

	ratChain := append(append([]mw.Middleware{}, sensitive...),
		mw.RequireRegistrationToken(deps.Clients, deps.Hasher))
	r.Method(http.MethodGet, "/oauth/register/{client_id}",
		mw.ChainFunc(deps.Registration.Get, ratChain...))
	r.Method(http.MethodPut, "/oauth/register/{client_id}",
		mw.ChainFunc(deps.Registration.Update, ratChain...))
	r.Method(http.MethodDelete, "/oauth/register/{client_id}",
		mw.ChainFunc(deps.Registration.Delete, ratChain...))

	// Token endpoint
	tokenChain := append(append([]mw.Middleware{}, sensitive...),
		mw.WithRateLimit(deps.TokenLimiter, mw.IPPathRateKey))
	r.Method(http.MethodPost, "/oauth/token",
		mw.ChainFunc(deps.Token.Token, tokenChain...))

	// API administrativa
	adminChain := append(append([]mw.Middleware{}, sensitive...),
		mw.RequireAdmin(deps.AdminAuth))
	r.Method(http.MethodGet, "/admin/servers",
		mw.ChainFunc(deps.Admin.ListServers, adminChain...))
	r.Method(http.MethodGet, "/admin/servers/{server_id}/clients",
		mw.ChainFunc(deps.Admin.ListServerClients, adminChain...))
	r.Method(http.MethodPost, "/admin/servers/{server_id}/clients/{client_id}",
		mw.ChainFunc(deps.Admin.GrantAccess, adminChain...))
	r.Method(http.MethodDelete, "/admin/servers/{server_id}/clients/{client_id}",
		mw.ChainFunc(deps.Admin.RevokeAccess, adminChain...))
	r.Method(http.MethodPost, "/admin/clients/{client_id}/rotate-secret",
		mw.ChainFunc(deps.Admin.RotateSecret, adminChain...))

	// Salud y métricas, sin middlewares pesados
	r.Get("/healthz", deps.Health.Live)
	r.Get("/readyz", deps.Health.Ready)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	return r
}

// httpMetrics adapta httpx.WithMetrics a la firma de Middleware.
func httpMetrics(next http.Handler) http.Handler {
	return httpx.WithMetrics(next)
}
