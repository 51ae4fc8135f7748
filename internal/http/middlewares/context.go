package middlewares

import (
	"context"

	"github.com/dropDatabas3/mcpd/internal/domain/repository"
)

type ctxKey string

const (
	ctxRequestIDKey ctxKey = "request_id"
	ctxClientKey    ctxKey = "client"
	ctxAdminSubKey  ctxKey = "admin_sub"
)

// setRequestID inyecta el request ID en el contexto (interno)
func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// GetRequestID obtiene el request ID del contexto.
// Retorna cadena vacía si no hay request ID.
func GetRequestID(ctx context.Context) string {
	if s, ok := ctx.Value(ctxRequestIDKey).(string); ok {
		return s
	}
	return ""
}

// withClient inyecta el registration autenticado por RAT (interno).
func withClient(ctx context.Context, c *repository.ClientRegistration) context.Context {
	return context.WithValue(ctx, ctxClientKey, c)
}

// GetClient obtiene el registration autenticado del contexto.
// Retorna nil si el middleware de RAT no se aplicó.
func GetClient(ctx context.Context) *repository.ClientRegistration {
	if c, ok := ctx.Value(ctxClientKey).(*repository.ClientRegistration); ok {
		return c
	}
	return nil
}

// withAdminSubject marca el contexto como autenticado para la API admin.
func withAdminSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, ctxAdminSubKey, sub)
}

// GetAdminSubject obtiene el actor admin del contexto ("api-key" cuando la
// autenticación fue por API key estática).
func GetAdminSubject(ctx context.Context) string {
	if s, ok := ctx.Value(ctxAdminSubKey).(string); ok {
		return s
	}
	return ""
}
