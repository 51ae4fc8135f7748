// Package pg implementa repository.Store sobre PostgreSQL con pgxpool.
package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/mcpd/internal/domain/repository"
)

// Store agrupa los repos sobre un pool compartido.
type Store struct {
	pool *pgxpool.Pool

	clients   *clientRepo
	servers   *serverRepo
	grants    *grantRepo
	whitelist *whitelistRepo
	audit     *auditRepo
}

// Options ajusta el pool.
type Options struct {
	MaxConns        int
	ConnMaxLifetime time.Duration
}

// New abre el pool y verifica conectividad.
func New(ctx context.Context, dsn string, opts Options) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = int32(opts.MaxConns)
	}
	if opts.ConnMaxLifetime > 0 {
		cfg.MaxConnLifetime = opts.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &Store{
		pool:      pool,
		clients:   &clientRepo{pool: pool},
		servers:   &serverRepo{pool: pool},
		grants:    &grantRepo{pool: pool},
		whitelist: &whitelistRepo{pool: pool},
		audit:     &auditRepo{pool: pool},
	}, nil
}

func (s *Store) Clients() repository.ClientRegistrationRepository { return s.clients }
func (s *Store) Servers() repository.McpServerRepository          { return s.servers }
func (s *Store) Grants() repository.ClientServerGrantRepository   { return s.grants }
func (s *Store) Whitelist() repository.CallbackWhitelistRepository {
	return s.whitelist
}
func (s *Store) Audit() repository.AuditLogRepository { return s.audit }

// Pool expone el pool para métricas y health checks.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Ping verifica la conexión (readiness probe).
func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close cierra el pool.
func (s *Store) Close() { s.pool.Close() }
