package pg

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/mcpd/internal/domain/repository"
)

// mapErr traduce errores de pgx a los sentinels del dominio.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return repository.ErrConflict
	}
	return err
}

// ─── ClientRegistrationRepository ───

type clientRepo struct{ pool *pgxpool.Pool }

const clientColumns = `
	id, client_id, client_secret_hash, client_name, status,
	token_endpoint_auth_method, grant_types, redirect_uris,
	registration_access_token_hash, created_at, secret_expires_at, secret_rotated_at
`

func scanClient(row pgx.Row) (*repository.ClientRegistration, error) {
	var c repository.ClientRegistration
	err := row.Scan(
		&c.ID, &c.ClientID, &c.ClientSecretHash, &c.ClientName, &c.Status,
		&c.TokenEndpointAuthMethod, &c.GrantTypes, &c.RedirectURIs,
		&c.RegistrationAccessTokenHash, &c.CreatedAt, &c.SecretExpiresAt, &c.SecretRotatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (r *clientRepo) Create(ctx context.Context, input repository.ClientRegistrationInput) (*repository.ClientRegistration, error) {
	const query = `
		INSERT INTO client_registration (
			id, client_id, client_secret_hash, client_name, status,
			token_endpoint_auth_method, grant_types, redirect_uris,
			registration_access_token_hash, created_at, secret_expires_at
		)
		VALUES ($1, $2, $3, $4, 'active', $5, $6, $7, $8, NOW(), $9)
		RETURNING ` + clientColumns

	var expires *time.Time
	if !input.SecretExpiresAt.IsZero() {
		expires = &input.SecretExpiresAt
	}
	return scanClient(r.pool.QueryRow(ctx, query,
		uuid.NewString(), input.ClientID, input.ClientSecretHash, input.ClientName,
		input.TokenEndpointAuthMethod, input.GrantTypes, input.RedirectURIs,
		input.RegistrationAccessTokenHash, expires,
	))
}

func (r *clientRepo) GetByClientID(ctx context.Context, clientID string) (*repository.ClientRegistration, error) {
	const query = `SELECT ` + clientColumns + ` FROM client_registration WHERE client_id = $1`
	return scanClient(r.pool.QueryRow(ctx, query, clientID))
}

func (r *clientRepo) GetByID(ctx context.Context, id string) (*repository.ClientRegistration, error) {
	const query = `SELECT ` + clientColumns + ` FROM client_registration WHERE id = $1`
	return scanClient(r.pool.QueryRow(ctx, query, id))
}

func (r *clientRepo) UpdateMetadata(ctx context.Context, id string, update repository.ClientMetadataUpdate) error {
	const query = `
		UPDATE client_registration
		SET client_name = $2, token_endpoint_auth_method = $3,
		    grant_types = $4, redirect_uris = $5
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id,
		update.ClientName, update.TokenEndpointAuthMethod, update.GrantTypes, update.RedirectURIs)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *clientRepo) RotateSecret(ctx context.Context, id, newSecretHash string, expiresAt time.Time) error {
	const query = `
		UPDATE client_registration
		SET client_secret_hash = $2, secret_expires_at = $3, secret_rotated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, newSecretHash, expiresAt)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *clientRepo) SetStatus(ctx context.Context, id, status string) error {
	const query = `UPDATE client_registration SET status = $2 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, status)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ─── McpServerRepository ───

type serverRepo struct{ pool *pgxpool.Pool }

const serverColumns = `id, name, description, base_uri, is_active, created_at, deactivated_at`

func scanServer(row pgx.Row) (*repository.McpServer, error) {
	var s repository.McpServer
	err := row.Scan(&s.ID, &s.Name, &s.Description, &s.BaseURI, &s.IsActive, &s.CreatedAt, &s.DeactivatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &s, nil
}

func (r *serverRepo) Create(ctx context.Context, input repository.McpServerInput) (*repository.McpServer, error) {
	const query = `
		INSERT INTO mcp_server (id, name, description, base_uri, is_active, created_at)
		VALUES ($1, $2, $3, $4, TRUE, NOW())
		RETURNING ` + serverColumns
	return scanServer(r.pool.QueryRow(ctx, query, uuid.NewString(), input.Name, input.Description, input.BaseURI))
}

func (r *serverRepo) GetByID(ctx context.Context, id string) (*repository.McpServer, error) {
	const query = `SELECT ` + serverColumns + ` FROM mcp_server WHERE id = $1`
	return scanServer(r.pool.QueryRow(ctx, query, id))
}

func (r *serverRepo) GetByName(ctx context.Context, name string) (*repository.McpServer, error) {
	const query = `SELECT ` + serverColumns + ` FROM mcp_server WHERE name = $1`
	return scanServer(r.pool.QueryRow(ctx, query, name))
}

func (r *serverRepo) ListActive(ctx context.Context) ([]repository.McpServer, error) {
	const query = `SELECT ` + serverColumns + ` FROM mcp_server WHERE is_active ORDER BY name`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []repository.McpServer
	for rows.Next() {
		var s repository.McpServer
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.BaseURI, &s.IsActive, &s.CreatedAt, &s.DeactivatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *serverRepo) Deactivate(ctx context.Context, id string) error {
	const query = `
		UPDATE mcp_server SET is_active = FALSE, deactivated_at = NOW()
		WHERE id = $1 AND is_active
	`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ─── ClientServerGrantRepository ───

type grantRepo struct{ pool *pgxpool.Pool }

const grantColumns = `id, client_registration_id, mcp_server_id, scopes, is_active, granted_at, revoked_at`

func scanGrant(row pgx.Row) (*repository.ClientServerGrant, error) {
	var g repository.ClientServerGrant
	err := row.Scan(&g.ID, &g.ClientRegistrationID, &g.McpServerID, &g.Scopes, &g.IsActive, &g.GrantedAt, &g.RevokedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &g, nil
}

func (r *grantRepo) Create(ctx context.Context, clientRegistrationID, mcpServerID string, scopes []string) (*repository.ClientServerGrant, error) {
	// El índice único parcial sobre (client, server) WHERE is_active es la
	// garantía real contra grants duplicados bajo concurrencia.
	const query = `
		INSERT INTO client_server_grant (id, client_registration_id, mcp_server_id, scopes, is_active, granted_at)
		VALUES ($1, $2, $3, $4, TRUE, NOW())
		RETURNING ` + grantColumns
	return scanGrant(r.pool.QueryRow(ctx, query, uuid.NewString(), clientRegistrationID, mcpServerID, scopes))
}

func (r *grantRepo) GetActive(ctx context.Context, clientRegistrationID, mcpServerID string) (*repository.ClientServerGrant, error) {
	const query = `
		SELECT ` + grantColumns + ` FROM client_server_grant
		WHERE client_registration_id = $1 AND mcp_server_id = $2 AND is_active
	`
	return scanGrant(r.pool.QueryRow(ctx, query, clientRegistrationID, mcpServerID))
}

func (r *grantRepo) ListForClient(ctx context.Context, clientRegistrationID string) ([]repository.ClientServerGrant, error) {
	const query = `
		SELECT ` + grantColumns + ` FROM client_server_grant
		WHERE client_registration_id = $1 ORDER BY granted_at
	`
	return r.list(ctx, query, clientRegistrationID)
}

func (r *grantRepo) ListForServer(ctx context.Context, mcpServerID string) ([]repository.ClientServerGrant, error) {
	const query = `
		SELECT ` + grantColumns + ` FROM client_server_grant
		WHERE mcp_server_id = $1 ORDER BY granted_at
	`
	return r.list(ctx, query, mcpServerID)
}

func (r *grantRepo) list(ctx context.Context, query, arg string) ([]repository.ClientServerGrant, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []repository.ClientServerGrant
	for rows.Next() {
		var g repository.ClientServerGrant
		if err := rows.Scan(&g.ID, &g.ClientRegistrationID, &g.McpServerID, &g.Scopes, &g.IsActive, &g.GrantedAt, &g.RevokedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *grantRepo) Revoke(ctx context.Context, grantID string) error {
	const query = `
		UPDATE client_server_grant SET is_active = FALSE, revoked_at = NOW()
		WHERE id = $1 AND is_active
	`
	tag, err := r.pool.Exec(ctx, query, grantID)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ─── CallbackWhitelistRepository ───

type whitelistRepo struct{ pool *pgxpool.Pool }

func (r *whitelistRepo) Add(ctx context.Context, mcpServerID, pattern string) (*repository.CallbackWhitelistEntry, error) {
	const query = `
		INSERT INTO callback_whitelist (id, mcp_server_id, pattern, is_active, created_at)
		VALUES ($1, $2, $3, TRUE, NOW())
		RETURNING id, mcp_server_id, pattern, is_active, created_at
	`
	var e repository.CallbackWhitelistEntry
	err := r.pool.QueryRow(ctx, query, uuid.NewString(), mcpServerID, pattern).Scan(
		&e.ID, &e.McpServerID, &e.Pattern, &e.IsActive, &e.CreatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return &e, nil
}

func (r *whitelistRepo) ListActiveForServer(ctx context.Context, mcpServerID string) ([]repository.CallbackWhitelistEntry, error) {
	const query = `
		SELECT id, mcp_server_id, pattern, is_active, created_at
		FROM callback_whitelist WHERE mcp_server_id = $1 AND is_active
		ORDER BY created_at
	`
	rows, err := r.pool.Query(ctx, query, mcpServerID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []repository.CallbackWhitelistEntry
	for rows.Next() {
		var e repository.CallbackWhitelistEntry
		if err := rows.Scan(&e.ID, &e.McpServerID, &e.Pattern, &e.IsActive, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ─── AuditLogRepository ───

type auditRepo struct{ pool *pgxpool.Pool }

func (r *auditRepo) Append(ctx context.Context, entry repository.AuditLogEntry) error {
	const query = `
		INSERT INTO audit_log (id, action, actor_id, client_registration_id, mcp_server_id, detail, ts)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, NOW())
	`
	id := entry.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, query, id, entry.Action, entry.ActorID,
		entry.ClientRegistrationID, entry.McpServerID, entry.Detail)
	return mapErr(err)
}
