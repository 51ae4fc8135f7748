package repository

import (
	"context"
	"time"
)

// McpServer representa un resource server MCP al que los clientes pueden
// pedir tokens. Se crea en bootstrap/admin; se desactiva, nunca se borra.
type McpServer struct {
	ID            string // UUID
	Name          string // único
	Description   string
	BaseURI       string
	IsActive      bool
	CreatedAt     time.Time
	DeactivatedAt *time.Time
}

// McpServerInput contiene los datos para crear un server.
type McpServerInput struct {
	Name        string
	Description string
	BaseURI     string
}

// McpServerRepository define operaciones sobre MCP servers.
type McpServerRepository interface {
	// Create persiste un server nuevo (IsActive=true).
	// Retorna ErrConflict si el nombre ya existe.
	Create(ctx context.Context, input McpServerInput) (*McpServer, error)

	// GetByID retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, id string) (*McpServer, error)

	// GetByName retorna ErrNotFound si no existe.
	GetByName(ctx context.Context, name string) (*McpServer, error)

	// ListActive lista todos los servers activos.
	ListActive(ctx context.Context) ([]McpServer, error)

	// Deactivate marca el server como inactivo y estampa deactivated_at.
	Deactivate(ctx context.Context, id string) error
}
