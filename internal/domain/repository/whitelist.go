package repository

import (
	"context"
	"time"
)

// CallbackWhitelistEntry es un patrón de redirect URI permitido para un
// server. Inmutable una vez creado.
type CallbackWhitelistEntry struct {
	ID          string // UUID
	McpServerID string
	Pattern     string
	IsActive    bool
	CreatedAt   time.Time
}

// CallbackWhitelistRepository define operaciones sobre la whitelist.
type CallbackWhitelistRepository interface {
	// Add agrega un patrón a la whitelist de un server.
	Add(ctx context.Context, mcpServerID, pattern string) (*CallbackWhitelistEntry, error)

	// ListActiveForServer lista los patrones activos de un server.
	ListActiveForServer(ctx context.Context, mcpServerID string) ([]CallbackWhitelistEntry, error)
}
