// Package registration expone los endpoints de registro dinámico
// (RFC 7591): POST /oauth/register y la gestión por client_id bajo RAT.
package registration

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	httpx "github.com/dropDatabas3/mcpd/internal/http"
	dto "github.com/dropDatabas3/mcpd/internal/http/dto/registration"
	httperrors "github.com/dropDatabas3/mcpd/internal/http/errors"
	"github.com/dropDatabas3/mcpd/internal/http/middlewares"
	svc "github.com/dropDatabas3/mcpd/internal/http/services/registration"
	"github.com/dropDatabas3/mcpd/internal/observability/logger"
)

// Controller maneja el ciclo de vida de registrations.
type Controller struct {
	service svc.Service
}

func NewController(service svc.Service) *Controller {
	return &Controller{service: service}
}

// Register maneja POST /oauth/register.
func (c *Controller) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("registration.Register"))

	var req dto.RegisterRequest
	if !httpx.ReadJSON(w, r, &req) {
		httpx.RecordRegistration("rejected")
		return
	}

	resp, err := c.service.Register(ctx, req)
	if err != nil {
		c.handleError(w, err, log)
		if _, ok := err.(*svc.Error); ok {
			httpx.RecordRegistration("rejected")
		} else {
			httpx.RecordRegistration("error")
		}
		return
	}

	httpx.RecordRegistration("created")
	httpx.WriteJSON(w, http.StatusCreated, resp)
}

// Get maneja GET /oauth/register/{client_id}. El middleware de RAT ya dejó
// el registration autenticado en el contexto.
func (c *Controller) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("registration.Get"))

	reg := middlewares.GetClient(ctx)
	if reg == nil {
		httperrors.WriteError(w, httperrors.ErrServerError)
		return
	}

	view, err := c.service.Get(ctx, reg)
	if err != nil {
		c.handleError(w, err, log)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, view)
}

// Update maneja PUT /oauth/register/{client_id}.
func (c *Controller) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("registration.Update"))

	reg := middlewares.GetClient(ctx)
	if reg == nil {
		httperrors.WriteError(w, httperrors.ErrServerError)
		return
	}

	var req dto.UpdateRequest
	if !httpx.ReadJSON(w, r, &req) {
		return
	}

	view, err := c.service.Update(ctx, reg, req)
	if err != nil {
		c.handleError(w, err, log)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, view)
}

// Delete maneja DELETE /oauth/register/{client_id}: revoca el cliente.
func (c *Controller) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("registration.Delete"))

	reg := middlewares.GetClient(ctx)
	if reg == nil {
		httperrors.WriteError(w, httperrors.ErrServerError)
		return
	}

	if err := c.service.Revoke(ctx, reg.ClientID); err != nil {
		c.handleError(w, err, log)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleError traduce errores del servicio al taxónomo OAuth.
func (c *Controller) handleError(w http.ResponseWriter, err error, log *zap.Logger) {
	if serr, ok := err.(*svc.Error); ok {
		status := http.StatusBadRequest
		if serr.Code == "invalid_client" {
			status = http.StatusUnauthorized
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":             serr.Code,
			"error_description": serr.Description,
		})
		return
	}
	log.Error("registration operation failed", logger.Err(err))
	httperrors.WriteError(w, httperrors.ErrServiceUnavailable)
}
