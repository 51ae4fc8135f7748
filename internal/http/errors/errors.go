// Package errors define el vocabulario de error OAuth del servicio y su
// serialización HTTP. El body sigue RFC 6749: {"error", "error_description"}.
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Códigos OAuth que emite el servicio.
const (
	CodeInvalidRequest       = "invalid_request"
	CodeInvalidClient        = "invalid_client"
	CodeUnauthorizedClient   = "unauthorized_client"
	CodeInvalidGrant         = "invalid_grant"
	CodeInvalidScope         = "invalid_scope"
	CodeInvalidRedirectURI   = "invalid_redirect_uri"
	CodeInvalidTarget        = "invalid_target"
	CodeUnsupportedGrantType = "unsupported_grant_type"
	CodeAccessDenied         = "access_denied"
	CodeServerError          = "server_error"
)

// OAuthError es un error de protocolo con su código OAuth y status HTTP.
type OAuthError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	Status      int    `json:"-"`
	Err         error  `json:"-"`
}

func (e *OAuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Description, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Description)
}

func (e *OAuthError) Unwrap() error {
	return e.Err
}

// WithDescription devuelve una COPIA con la descripción dada, para no mutar
// las variables base.
func (e *OAuthError) WithDescription(desc string) *OAuthError {
	out := *e
	out.Description = desc
	return &out
}

// WithCause devuelve una COPIA con la causa adjunta (sólo para logs).
func (e *OAuthError) WithCause(err error) *OAuthError {
	out := *e
	out.Err = err
	return &out
}

// Errores base. Los handlers los especializan con WithDescription.
var (
	ErrInvalidRequest = &OAuthError{
		Code:   CodeInvalidRequest,
		Status: http.StatusBadRequest,
	}
	ErrInvalidClient = &OAuthError{
		Code:   CodeInvalidClient,
		Status: http.StatusUnauthorized,
	}
	ErrUnauthorizedClient = &OAuthError{
		Code:   CodeUnauthorizedClient,
		Status: http.StatusBadRequest,
	}
	ErrInvalidGrant = &OAuthError{
		Code:   CodeInvalidGrant,
		Status: http.StatusBadRequest,
	}
	ErrInvalidScope = &OAuthError{
		Code:   CodeInvalidScope,
		Status: http.StatusBadRequest,
	}
	ErrInvalidRedirectURI = &OAuthError{
		Code:   CodeInvalidRedirectURI,
		Status: http.StatusBadRequest,
	}
	ErrInvalidTarget = &OAuthError{
		Code:   CodeInvalidTarget,
		Status: http.StatusBadRequest,
	}
	ErrUnsupportedGrantType = &OAuthError{
		Code:   CodeUnsupportedGrantType,
		Status: http.StatusBadRequest,
	}
	ErrAccessDenied = &OAuthError{
		Code:   CodeAccessDenied,
		Status: http.StatusForbidden,
	}
	ErrServerError = &OAuthError{
		Code:        CodeServerError,
		Description: "An unexpected error occurred.",
		Status:      http.StatusInternalServerError,
	}
	ErrServiceUnavailable = &OAuthError{
		Code:        CodeServerError,
		Description: "A required backend is unavailable.",
		Status:      http.StatusServiceUnavailable,
	}
	ErrRateLimited = &OAuthError{
		Code:        CodeInvalidRequest,
		Description: "Too many requests.",
		Status:      http.StatusTooManyRequests,
	}
)

// FromError normaliza cualquier error a OAuthError. Lo desconocido se
// colapsa a server_error sin filtrar detalle interno al cliente.
func FromError(err error) *OAuthError {
	if oe, ok := err.(*OAuthError); ok {
		return oe
	}
	return ErrServerError.WithCause(err)
}

// WriteError serializa el error como JSON con su status HTTP.
func WriteError(w http.ResponseWriter, err error) {
	oe := FromError(err)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(oe.Status)
	_ = json.NewEncoder(w).Encode(oe)
}
