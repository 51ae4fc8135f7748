package repository

import (
	"context"
	"time"
)

// ClientServerGrant es la arista de autorización entre un registration y un
// MCP server. Invariante: a lo sumo un grant ACTIVO por par (client, server);
// el storage lo garantiza con un índice único parcial.
type ClientServerGrant struct {
	ID                   string // UUID
	ClientRegistrationID string
	McpServerID          string
	Scopes               []string
	IsActive             bool
	GrantedAt            time.Time
	RevokedAt            *time.Time
}

// HasScope verifica membresía de un scope en el grant.
func (g *ClientServerGrant) HasScope(scope string) bool {
	for _, s := range g.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// ClientServerGrantRepository define operaciones sobre grants.
type ClientServerGrantRepository interface {
	// Create persiste un grant activo nuevo.
	// Retorna ErrConflict si ya existe un grant activo para el par.
	Create(ctx context.Context, clientRegistrationID, mcpServerID string, scopes []string) (*ClientServerGrant, error)

	// GetActive obtiene el grant activo para el par (client, server).
	// Retorna ErrNotFound si no hay grant activo.
	GetActive(ctx context.Context, clientRegistrationID, mcpServerID string) (*ClientServerGrant, error)

	// ListForClient lista todos los grants (activos e inactivos) de un client.
	ListForClient(ctx context.Context, clientRegistrationID string) ([]ClientServerGrant, error)

	// ListForServer lista todos los grants de un server.
	ListForServer(ctx context.Context, mcpServerID string) ([]ClientServerGrant, error)

	// Revoke desactiva un grant y estampa revoked_at.
	Revoke(ctx context.Context, grantID string) error
}
