// Package admin expone la API administrativa: catálogo de servers, grants
// por server y rotación de secrets. Protegida por API key o bearer admin.
package admin

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dropDatabas3/mcpd/internal/domain/repository"
	httpx "github.com/dropDatabas3/mcpd/internal/http"
	httperrors "github.com/dropDatabas3/mcpd/internal/http/errors"
	svc "github.com/dropDatabas3/mcpd/internal/http/services/registration"
	"github.com/dropDatabas3/mcpd/internal/observability/logger"
)

// Controller maneja los endpoints /admin/*.
type Controller struct {
	store   repository.Store
	service svc.Service
}

func NewController(store repository.Store, service svc.Service) *Controller {
	return &Controller{store: store, service: service}
}

type serverView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	BaseURI     string `json:"base_uri,omitempty"`
	IsActive    bool   `json:"is_active"`
}

// ListServers maneja GET /admin/servers.
func (c *Controller) ListServers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("admin.ListServers"))

	servers, err := c.store.Servers().ListActive(ctx)
	if err != nil {
		log.Error("list servers failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrServiceUnavailable)
		return
	}

	out := make([]serverView, 0, len(servers))
	for _, s := range servers {
		out = append(out, serverView{
			ID:          s.ID,
			Name:        s.Name,
			Description: s.Description,
			BaseURI:     s.BaseURI,
			IsActive:    s.IsActive,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"servers": out})
}

type grantView struct {
	GrantID  string   `json:"grant_id"`
	ClientID string   `json:"client_id"`
	Scopes   []string `json:"scopes"`
	IsActive bool     `json:"is_active"`
}

// ListServerClients maneja GET /admin/servers/{server_id}/clients.
func (c *Controller) ListServerClients(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("admin.ListServerClients"))

	serverID := chi.URLParam(r, "server_id")
	if _, err := c.store.Servers().GetByID(ctx, serverID); err != nil {
		if repository.IsNotFound(err) {
			httperrors.WriteError(w, httperrors.ErrInvalidRequest.WithDescription("MCP server not found."))
			return
		}
		log.Error("server lookup failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrServiceUnavailable)
		return
	}

	grants, err := c.store.Grants().ListForServer(ctx, serverID)
	if err != nil {
		log.Error("list grants failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrServiceUnavailable)
		return
	}

	out := make([]grantView, 0, len(grants))
	for _, g := range grants {
		clientID := g.ClientRegistrationID
		if reg, err := c.store.Clients().GetByID(ctx, g.ClientRegistrationID); err == nil {
			clientID = reg.ClientID
		}
		out = append(out, grantView{
			GrantID:  g.ID,
			ClientID: clientID,
			Scopes:   g.Scopes,
			IsActive: g.IsActive,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"clients": out})
}

type grantRequest struct {
	Scopes []string `json:"scopes"`
}

// GrantAccess maneja POST /admin/servers/{server_id}/clients/{client_id}.
func (c *Controller) GrantAccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("admin.GrantAccess"))

	var req grantRequest
	if r.ContentLength > 0 {
		if !httpx.ReadJSON(w, r, &req) {
			return
		}
	}

	serverID := chi.URLParam(r, "server_id")
	clientID := chi.URLParam(r, "client_id")
	if err := c.service.GrantServerAccess(ctx, clientID, serverID, req.Scopes); err != nil {
		c.handleError(w, err, log)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RevokeAccess maneja DELETE /admin/servers/{server_id}/clients/{client_id}.
func (c *Controller) RevokeAccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("admin.RevokeAccess"))

	serverID := chi.URLParam(r, "server_id")
	clientID := chi.URLParam(r, "client_id")
	if err := c.service.RevokeServerAccess(ctx, clientID, serverID); err != nil {
		c.handleError(w, err, log)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RotateSecret maneja POST /admin/clients/{client_id}/rotate-secret.
func (c *Controller) RotateSecret(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("admin.RotateSecret"))

	clientID := chi.URLParam(r, "client_id")
	resp, err := c.service.RotateSecret(ctx, clientID)
	if err != nil {
		c.handleError(w, err, log)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (c *Controller) handleError(w http.ResponseWriter, err error, log *zap.Logger) {
	if serr, ok := err.(*svc.Error); ok {
		status := http.StatusBadRequest
		switch serr {
		case svc.ErrClientNotFound, svc.ErrServerNotFound, svc.ErrGrantNotFound:
			status = http.StatusNotFound
		case svc.ErrGrantExists:
			status = http.StatusConflict
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":             serr.Code,
			"error_description": serr.Description,
		})
		return
	}
	log.Error("admin operation failed", logger.Err(err))
	httperrors.WriteError(w, httperrors.ErrServiceUnavailable)
}
