// Package wellknown expone la metadata pública: JWKS y los documentos de
// discovery OAuth/OIDC.
package wellknown

import (
	"net/http"
	"strings"

	httpx "github.com/dropDatabas3/mcpd/internal/http"
	"github.com/dropDatabas3/mcpd/internal/domain/repository"
	jwtx "github.com/dropDatabas3/mcpd/internal/jwt"
)

// Controller sirve los endpoints /.well-known/*.
type Controller struct {
	issuer string
	keys   *jwtx.KeySet
}

func NewController(issuer string, keys *jwtx.KeySet) *Controller {
	return &Controller{issuer: strings.TrimRight(issuer, "/"), keys: keys}
}

// JWKS maneja GET /.well-known/jwks.json.
func (c *Controller) JWKS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(c.keys.JWKSJSON())
}

type discoveryResponse struct {
	Issuer                            string   `json:"issuer"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	RegistrationEndpoint              string   `json:"registration_endpoint"`
	JWKSUri                           string   `json:"jwks_uri"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	ScopesSupported                   []string `json:"scopes_supported"`
}

// Discovery maneja GET /.well-known/oauth-authorization-server y
// GET /.well-known/openid-configuration (mismo documento).
func (c *Controller) Discovery(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, discoveryResponse{
		Issuer:               c.issuer,
		TokenEndpoint:        c.issuer + "/oauth/token",
		RegistrationEndpoint: c.issuer + "/oauth/register",
		JWKSUri:              c.issuer + "/.well-known/jwks.json",
		GrantTypesSupported: []string{
			repository.GrantTypeClientCredentials,
			repository.GrantTypeJWTBearer,
		},
		TokenEndpointAuthMethodsSupported: []string{
			repository.AuthMethodSecretPost,
			repository.AuthMethodSecretBasic,
		},
		ScopesSupported: []string{"mcp:tools", "mcp:resources", "mcp:prompts"},
	})
}
