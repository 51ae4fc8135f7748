// Package oauth expone el token endpoint (POST /oauth/token).
package oauth

import (
	"net/http"
	"strings"

	httpx "github.com/dropDatabas3/mcpd/internal/http"
	dto "github.com/dropDatabas3/mcpd/internal/http/dto/token"
	httperrors "github.com/dropDatabas3/mcpd/internal/http/errors"
	svc "github.com/dropDatabas3/mcpd/internal/http/services/token"
	"github.com/dropDatabas3/mcpd/internal/observability/logger"

	"github.com/dropDatabas3/mcpd/internal/domain/repository"
)

// TokenController maneja la emisión de tokens.
type TokenController struct {
	service svc.Service
	// resourceMetadataURL viaja en el challenge WWW-Authenticate de los
	// rechazos, para que los clientes MCP descubran la metadata.
	resourceMetadataURL string
}

func NewTokenController(service svc.Service, resourceMetadataURL string) *TokenController {
	return &TokenController{service: service, resourceMetadataURL: resourceMetadataURL}
}

// Token maneja POST /oauth/token (application/x-www-form-urlencoded).
func (c *TokenController) Token(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("oauth.Token"))

	if err := r.ParseForm(); err != nil {
		httperrors.WriteError(w, httperrors.ErrInvalidRequest.WithDescription("Malformed form body."))
		return
	}

	req := dto.Request{
		GrantType: r.PostFormValue("grant_type"),
		ServerID:  firstNonEmpty(r.PostFormValue("resource"), r.PostFormValue("server_id")),
		Scope:     r.PostFormValue("scope"),
		Assertion: r.PostFormValue("assertion"),
	}

	// Credenciales: Basic pisa al body. El método INFERIDO se compara luego
	// contra el registrado.
	if user, pass, ok := r.BasicAuth(); ok {
		req.ClientID = user
		req.ClientSecret = pass
		req.AuthMethod = repository.AuthMethodSecretBasic
	} else {
		req.ClientID = r.PostFormValue("client_id")
		req.ClientSecret = r.PostFormValue("client_secret")
		req.AuthMethod = repository.AuthMethodSecretPost
	}

	resp, err := c.service.Issue(ctx, req)
	if err != nil {
		c.handleError(w, r, err, req.GrantType)
		return
	}

	httpx.RecordTokenIssue(req.GrantType, "issued")
	httpx.WriteJSON(w, http.StatusOK, resp)
	log.Debug("token response sent", logger.GrantType(req.GrantType))
}

func (c *TokenController) handleError(w http.ResponseWriter, r *http.Request, err error, grantType string) {
	log := logger.From(r.Context())

	serr, ok := err.(*svc.Error)
	if !ok {
		log.Error("token issuance failed", logger.Err(err))
		httpx.RecordTokenIssue(grantType, "error")
		httperrors.WriteError(w, httperrors.ErrServiceUnavailable)
		return
	}

	httpx.RecordTokenIssue(grantType, "denied")

	status := http.StatusBadRequest
	switch serr.Code {
	case "invalid_client", "unauthorized_client", "invalid_grant":
		status = http.StatusUnauthorized
		challenge := `Bearer error="` + serr.Code + `"`
		if c.resourceMetadataURL != "" {
			challenge += `, resource_metadata="` + c.resourceMetadataURL + `"`
		}
		w.Header().Set("WWW-Authenticate", challenge)
	}

	oe := &httperrors.OAuthError{
		Code:        serr.Code,
		Description: serr.Description,
		Status:      status,
	}
	httperrors.WriteError(w, oe)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
