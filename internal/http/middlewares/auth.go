package middlewares

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/mcpd/internal/domain/repository"
	httperrors "github.com/dropDatabas3/mcpd/internal/http/errors"
	"github.com/dropDatabas3/mcpd/internal/idp"
	"github.com/dropDatabas3/mcpd/internal/observability/logger"
	"github.com/dropDatabas3/mcpd/internal/security/secret"
)

func bearerToken(r *http.Request) string {
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	if ah == "" || !strings.HasPrefix(strings.ToLower(ah), "bearer ") {
		return ""
	}
	return strings.TrimSpace(ah[len("Bearer "):])
}

// RequireRegistrationToken protege los endpoints de gestión de un
// registration. Espera Authorization: Bearer <registration_access_token> y
// el client_id como URL param de chi. Si pasa, el registration queda en el
// contexto para el handler.
func RequireRegistrationToken(clients repository.ClientRegistrationRepository, hasher *secret.Hasher) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="registration"`)
				httperrors.WriteError(w, httperrors.ErrInvalidClient.WithDescription("Missing registration access token."))
				return
			}

			clientID := chi.URLParam(r, "client_id")
			reg, err := clients.GetByClientID(r.Context(), clientID)
			if err != nil {
				if repository.IsNotFound(err) {
					// decoy para no delatar existencia por timing
					_ = hasher.Verify(r.Context(), raw, secret.DummyHash)
					w.Header().Set("WWW-Authenticate", `Bearer realm="registration", error="invalid_token"`)
					httperrors.WriteError(w, httperrors.ErrInvalidClient.WithDescription("Invalid registration access token."))
					return
				}
				logger.From(r.Context()).Error("registration lookup failed", logger.Err(err))
				httperrors.WriteError(w, httperrors.ErrServiceUnavailable)
				return
			}

			if reg.Status != repository.ClientStatusActive {
				// mismo decoy: un client revocado no debe distinguirse por timing
				_ = hasher.Verify(r.Context(), raw, secret.DummyHash)
				w.Header().Set("WWW-Authenticate", `Bearer realm="registration", error="invalid_token"`)
				httperrors.WriteError(w, httperrors.ErrInvalidClient.WithDescription("Invalid registration access token."))
				return
			}

			if !hasher.Verify(r.Context(), raw, reg.RegistrationAccessTokenHash) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="registration", error="invalid_token"`)
				httperrors.WriteError(w, httperrors.ErrInvalidClient.WithDescription("Invalid registration access token."))
				return
			}

			next.ServeHTTP(w, r.WithContext(withClient(r.Context(), reg)))
		})
	}
}

// AdminAuthConfig configura la autenticación de la API administrativa.
type AdminAuthConfig struct {
	// APIKey estática (header X-Admin-API-Key). Vacía => deshabilitada.
	APIKey string
	// Validator + Authorizer habilitan bearer tokens del IdP con rol admin.
	// Nil => deshabilitado.
	Validator  idp.TokenValidator
	Authorizer *idp.Authorizer
}

// RequireAdmin exige API key estática o bearer token del IdP con el rol
// administrativo. Sin ninguna de las dos, 401.
func RequireAdmin(cfg AdminAuthConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.APIKey != "" {
				if key := r.Header.Get("X-Admin-API-Key"); key != "" {
					if subtle.ConstantTimeCompare([]byte(key), []byte(cfg.APIKey)) == 1 {
						next.ServeHTTP(w, r.WithContext(withAdminSubject(r.Context(), "api-key")))
						return
					}
					httperrors.WriteError(w, httperrors.ErrAccessDenied.WithDescription("Invalid admin API key."))
					return
				}
			}

			if cfg.Validator != nil && cfg.Authorizer != nil {
				if raw := bearerToken(r); raw != "" {
					res, err := cfg.Validator.Validate(r.Context(), raw)
					if err != nil {
						httperrors.WriteError(w, httperrors.ErrServiceUnavailable)
						return
					}
					if res.IsValid && cfg.Authorizer.IsAdmin(res.Roles) {
						next.ServeHTTP(w, r.WithContext(withAdminSubject(r.Context(), res.Subject)))
						return
					}
					httperrors.WriteError(w, httperrors.ErrAccessDenied.WithDescription("Admin role required."))
					return
				}
			}

			w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
			httperrors.WriteError(w, httperrors.ErrInvalidClient.WithDescription("Admin credentials required."))
		})
	}
}
