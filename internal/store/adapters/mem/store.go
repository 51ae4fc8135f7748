// Package mem implementa repository.Store en memoria. Se usa en desarrollo
// y tests; replica las garantías de unicidad del adapter de Postgres.
package mem

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/mcpd/internal/domain/repository"
)

// Store es un Store en memoria, seguro para uso concurrente.
type Store struct {
	mu sync.RWMutex

	clients   map[string]*repository.ClientRegistration // por UUID interno
	byClient  map[string]string                         // client_id -> UUID
	servers   map[string]*repository.McpServer
	byName    map[string]string // name -> UUID
	grants    map[string]*repository.ClientServerGrant
	whitelist map[string][]repository.CallbackWhitelistEntry // por server
	audit     []repository.AuditLogEntry
}

func New() *Store {
	return &Store{
		clients:   make(map[string]*repository.ClientRegistration),
		byClient:  make(map[string]string),
		servers:   make(map[string]*repository.McpServer),
		byName:    make(map[string]string),
		grants:    make(map[string]*repository.ClientServerGrant),
		whitelist: make(map[string][]repository.CallbackWhitelistEntry),
	}
}

func (s *Store) Clients() repository.ClientRegistrationRepository  { return (*clientRepo)(s) }
func (s *Store) Servers() repository.McpServerRepository           { return (*serverRepo)(s) }
func (s *Store) Grants() repository.ClientServerGrantRepository    { return (*grantRepo)(s) }
func (s *Store) Whitelist() repository.CallbackWhitelistRepository { return (*whitelistRepo)(s) }
func (s *Store) Audit() repository.AuditLogRepository              { return (*auditRepo)(s) }

// AuditEntries devuelve una copia del log, para asserts en tests.
func (s *Store) AuditEntries() []repository.AuditLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]repository.AuditLogEntry, len(s.audit))
	copy(out, s.audit)
	return out
}

// ─── ClientRegistrationRepository ───

type clientRepo Store

func (r *clientRepo) Create(_ context.Context, input repository.ClientRegistrationInput) (*repository.ClientRegistration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byClient[input.ClientID]; exists {
		return nil, repository.ErrConflict
	}

	reg := &repository.ClientRegistration{
		ID:                          uuid.NewString(),
		ClientID:                    input.ClientID,
		ClientSecretHash:            input.ClientSecretHash,
		ClientName:                  input.ClientName,
		Status:                      repository.ClientStatusActive,
		TokenEndpointAuthMethod:     input.TokenEndpointAuthMethod,
		GrantTypes:                  append([]string(nil), input.GrantTypes...),
		RedirectURIs:                append([]string(nil), input.RedirectURIs...),
		RegistrationAccessTokenHash: input.RegistrationAccessTokenHash,
		CreatedAt:                   time.Now().UTC(),
	}
	if !input.SecretExpiresAt.IsZero() {
		exp := input.SecretExpiresAt
		reg.SecretExpiresAt = &exp
	}

	r.clients[reg.ID] = reg
	r.byClient[reg.ClientID] = reg.ID
	return cloneClient(reg), nil
}

func (r *clientRepo) GetByClientID(_ context.Context, clientID string) (*repository.ClientRegistration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byClient[clientID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneClient(r.clients[id]), nil
}

func (r *clientRepo) GetByID(_ context.Context, id string) (*repository.ClientRegistration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.clients[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneClient(reg), nil
}

func (r *clientRepo) UpdateMetadata(_ context.Context, id string, update repository.ClientMetadataUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.clients[id]
	if !ok {
		return repository.ErrNotFound
	}
	reg.ClientName = update.ClientName
	reg.TokenEndpointAuthMethod = update.TokenEndpointAuthMethod
	reg.GrantTypes = append([]string(nil), update.GrantTypes...)
	reg.RedirectURIs = append([]string(nil), update.RedirectURIs...)
	return nil
}

func (r *clientRepo) RotateSecret(_ context.Context, id, newSecretHash string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.clients[id]
	if !ok {
		return repository.ErrNotFound
	}
	now := time.Now().UTC()
	reg.ClientSecretHash = newSecretHash
	reg.SecretExpiresAt = &expiresAt
	reg.SecretRotatedAt = &now
	return nil
}

func (r *clientRepo) SetStatus(_ context.Context, id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.clients[id]
	if !ok {
		return repository.ErrNotFound
	}
	reg.Status = status
	return nil
}

func cloneClient(reg *repository.ClientRegistration) *repository.ClientRegistration {
	out := *reg
	out.GrantTypes = append([]string(nil), reg.GrantTypes...)
	out.RedirectURIs = append([]string(nil), reg.RedirectURIs...)
	return &out
}

// ─── McpServerRepository ───

type serverRepo Store

func (r *serverRepo) Create(_ context.Context, input repository.McpServerInput) (*repository.McpServer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[input.Name]; exists {
		return nil, repository.ErrConflict
	}
	srv := &repository.McpServer{
		ID:          uuid.NewString(),
		Name:        input.Name,
		Description: input.Description,
		BaseURI:     input.BaseURI,
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
	}
	r.servers[srv.ID] = srv
	r.byName[srv.Name] = srv.ID
	out := *srv
	return &out, nil
}

func (r *serverRepo) GetByID(_ context.Context, id string) (*repository.McpServer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	srv, ok := r.servers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *srv
	return &out, nil
}

func (r *serverRepo) GetByName(_ context.Context, name string) (*repository.McpServer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *r.servers[id]
	return &out, nil
}

func (r *serverRepo) ListActive(_ context.Context) ([]repository.McpServer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []repository.McpServer
	for _, srv := range r.servers {
		if srv.IsActive {
			out = append(out, *srv)
		}
	}
	return out, nil
}

func (r *serverRepo) Deactivate(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	srv, ok := r.servers[id]
	if !ok || !srv.IsActive {
		return repository.ErrNotFound
	}
	now := time.Now().UTC()
	srv.IsActive = false
	srv.DeactivatedAt = &now
	return nil
}

// ─── ClientServerGrantRepository ───

type grantRepo Store

func (r *grantRepo) Create(_ context.Context, clientRegistrationID, mcpServerID string, scopes []string) (*repository.ClientServerGrant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// misma garantía que el índice único parcial de Postgres
	for _, g := range r.grants {
		if g.IsActive && g.ClientRegistrationID == clientRegistrationID && g.McpServerID == mcpServerID {
			return nil, repository.ErrConflict
		}
	}

	grant := &repository.ClientServerGrant{
		ID:                   uuid.NewString(),
		ClientRegistrationID: clientRegistrationID,
		McpServerID:          mcpServerID,
		Scopes:               append([]string(nil), scopes...),
		IsActive:             true,
		GrantedAt:            time.Now().UTC(),
	}
	r.grants[grant.ID] = grant
	return cloneGrant(grant), nil
}

func (r *grantRepo) GetActive(_ context.Context, clientRegistrationID, mcpServerID string) (*repository.ClientServerGrant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, g := range r.grants {
		if g.IsActive && g.ClientRegistrationID == clientRegistrationID && g.McpServerID == mcpServerID {
			return cloneGrant(g), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *grantRepo) ListForClient(_ context.Context, clientRegistrationID string) ([]repository.ClientServerGrant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []repository.ClientServerGrant
	for _, g := range r.grants {
		if g.ClientRegistrationID == clientRegistrationID {
			out = append(out, *cloneGrant(g))
		}
	}
	return out, nil
}

func (r *grantRepo) ListForServer(_ context.Context, mcpServerID string) ([]repository.ClientServerGrant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []repository.ClientServerGrant
	for _, g := range r.grants {
		if g.McpServerID == mcpServerID {
			out = append(out, *cloneGrant(g))
		}
	}
	return out, nil
}

func (r *grantRepo) Revoke(_ context.Context, grantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.grants[grantID]
	if !ok || !g.IsActive {
		return repository.ErrNotFound
	}
	now := time.Now().UTC()
	g.IsActive = false
	g.RevokedAt = &now
	return nil
}

func cloneGrant(g *repository.ClientServerGrant) *repository.ClientServerGrant {
	out := *g
	out.Scopes = append([]string(nil), g.Scopes...)
	return &out
}

// ─── CallbackWhitelistRepository ───

type whitelistRepo Store

func (r *whitelistRepo) Add(_ context.Context, mcpServerID, pattern string) (*repository.CallbackWhitelistEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.whitelist[mcpServerID] {
		if e.IsActive && e.Pattern == pattern {
			return nil, repository.ErrConflict
		}
	}
	entry := repository.CallbackWhitelistEntry{
		ID:          uuid.NewString(),
		McpServerID: mcpServerID,
		Pattern:     pattern,
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
	}
	r.whitelist[mcpServerID] = append(r.whitelist[mcpServerID], entry)
	return &entry, nil
}

func (r *whitelistRepo) ListActiveForServer(_ context.Context, mcpServerID string) ([]repository.CallbackWhitelistEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []repository.CallbackWhitelistEntry
	for _, e := range r.whitelist[mcpServerID] {
		if e.IsActive {
			out = append(out, e)
		}
	}
	return out, nil
}

// ─── AuditLogRepository ───

type auditRepo Store

func (r *auditRepo) Append(_ context.Context, entry repository.AuditLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.Timestamp = time.Now().UTC()
	r.audit = append(r.audit, entry)
	return nil
}
