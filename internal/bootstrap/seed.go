// Package bootstrap siembra el catálogo de servidores MCP y sus whitelists
// de callback al arrancar el servicio.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dropDatabas3/mcpd/internal/config"
	"github.com/dropDatabas3/mcpd/internal/domain/repository"
	"github.com/dropDatabas3/mcpd/internal/observability/logger"
)

// SeedServers registra los servidores declarados en config que aún no existen
// y agrega los patrones de callback faltantes. Es idempotente: correr dos
// veces con la misma config no duplica nada.
func SeedServers(ctx context.Context, store repository.Store, seeds []config.SeedServer) error {
	log := logger.From(ctx).With(logger.Component("bootstrap"))

	for _, seed := range seeds {
		srv, err := store.Servers().GetByName(ctx, seed.Name)
		switch {
		case repository.IsNotFound(err):
			srv, err = store.Servers().Create(ctx, repository.McpServerInput{
				Name:        seed.Name,
				BaseURI:     seed.BaseURI,
				Description: seed.Description,
			})
			if repository.IsConflict(err) {
				// otra réplica lo creó entre el lookup y el insert
				srv, err = store.Servers().GetByName(ctx, seed.Name)
			}
			if err != nil {
				return fmt.Errorf("bootstrap: create server %q: %w", seed.Name, err)
			}
			log.Info("mcp server seeded",
				logger.ServerID(srv.ID),
				logger.ServerName(srv.Name),
			)
		case err != nil:
			return fmt.Errorf("bootstrap: lookup server %q: %w", seed.Name, err)
		}

		if err := seedWhitelist(ctx, store, srv.ID, seed.CallbackPatterns); err != nil {
			return fmt.Errorf("bootstrap: whitelist for %q: %w", seed.Name, err)
		}
	}
	return nil
}

func seedWhitelist(ctx context.Context, store repository.Store, serverID string, patterns []string) error {
	existing, err := store.Whitelist().ListActiveForServer(ctx, serverID)
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(existing))
	for _, e := range existing {
		have[e.Pattern] = true
	}

	log := logger.From(ctx).With(logger.Component("bootstrap"), logger.ServerID(serverID))
	for _, p := range patterns {
		if have[p] {
			continue
		}
		if _, err := store.Whitelist().Add(ctx, serverID, p); err != nil {
			// otra réplica pudo habérnoslo ganado
			if repository.IsConflict(err) {
				continue
			}
			return err
		}
		log.Info("callback pattern seeded", logger.String("pattern", p))
	}
	return nil
}
