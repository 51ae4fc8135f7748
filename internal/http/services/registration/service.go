// Package registration implementa el ciclo de vida de clientes OAuth
// registrados dinámicamente: alta, consulta, actualización de metadata,
// rotación de secret, revocación y gestión de grants por server.
package registration

import (
	"context"
	"strings"
	"time"

	"github.com/dropDatabas3/mcpd/internal/audit"
	"github.com/dropDatabas3/mcpd/internal/callback"
	"github.com/dropDatabas3/mcpd/internal/domain/repository"
	dto "github.com/dropDatabas3/mcpd/internal/http/dto/registration"
	"github.com/dropDatabas3/mcpd/internal/observability/logger"
	"github.com/dropDatabas3/mcpd/internal/security/secret"
	tokens "github.com/dropDatabas3/mcpd/internal/security/token"
)

// Service define las operaciones de registro.
type Service interface {
	Register(ctx context.Context, in dto.RegisterRequest) (*dto.RegisterResponse, error)
	Get(ctx context.Context, reg *repository.ClientRegistration) (*dto.ClientView, error)
	Update(ctx context.Context, reg *repository.ClientRegistration, in dto.UpdateRequest) (*dto.ClientView, error)
	RotateSecret(ctx context.Context, clientID string) (*dto.RotateSecretResponse, error)
	Revoke(ctx context.Context, clientID string) error
	GrantServerAccess(ctx context.Context, clientID, serverID string, scopes []string) error
	RevokeServerAccess(ctx context.Context, clientID, serverID string) error
}

// Deps contiene las dependencias del servicio.
type Deps struct {
	Store     repository.Store
	Hasher    *secret.Hasher
	Callbacks *callback.Validator
	Audit     *audit.Recorder
	// SecretTTL es la vigencia de los secrets emitidos. 0 => 90 días.
	SecretTTL time.Duration
}

type service struct {
	deps Deps
}

const defaultSecretTTL = 90 * 24 * time.Hour

// NewService crea el servicio de registro.
func NewService(deps Deps) Service {
	if deps.SecretTTL <= 0 {
		deps.SecretTTL = defaultSecretTTL
	}
	return &service{deps: deps}
}

func (s *service) Register(ctx context.Context, in dto.RegisterRequest) (*dto.RegisterResponse, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("registration"),
		logger.Op("Register"),
	)

	if problems := ValidateRegisterRequest(in); len(problems) > 0 {
		return nil, newError("invalid_request", "%s", strings.Join(problems, " "))
	}

	// Paso 1: resolver los servers pedidos. Todos deben existir y estar activos.
	servers, err := s.resolveServers(ctx, in.RequestedServerIDs)
	if err != nil {
		return nil, err
	}

	// Paso 2: cada redirect URI debe matchear la whitelist de CADA server.
	if err := s.checkCallbacks(ctx, servers, in.RedirectURIs); err != nil {
		return nil, err
	}

	// Paso 3: credenciales. Tres valores aleatorios independientes.
	clientID, err := tokens.GenerateClientID()
	if err != nil {
		return nil, err
	}
	clientSecret, err := tokens.GenerateClientSecret()
	if err != nil {
		return nil, err
	}
	rat, err := tokens.GenerateRegistrationAccessToken()
	if err != nil {
		return nil, err
	}

	secretHash, err := s.deps.Hasher.Hash(ctx, clientSecret)
	if err != nil {
		return nil, err
	}
	ratHash, err := s.deps.Hasher.Hash(ctx, rat)
	if err != nil {
		return nil, err
	}

	authMethod := in.TokenEndpointAuthMethod
	if authMethod == "" {
		authMethod = repository.AuthMethodSecretPost
	}
	grantTypes := in.GrantTypes
	if len(grantTypes) == 0 {
		grantTypes = []string{repository.GrantTypeClientCredentials}
	}

	expiresAt := time.Now().UTC().Add(s.deps.SecretTTL)
	reg, err := s.deps.Store.Clients().Create(ctx, repository.ClientRegistrationInput{
		ClientID:                    clientID,
		ClientSecretHash:            secretHash,
		ClientName:                  in.ClientName,
		TokenEndpointAuthMethod:     authMethod,
		GrantTypes:                  grantTypes,
		RedirectURIs:                in.RedirectURIs,
		RegistrationAccessTokenHash: ratHash,
		SecretExpiresAt:             expiresAt,
	})
	if err != nil {
		return nil, err
	}

	// Paso 4: un grant por server pedido. La secuencia es resumible: si una
	// escritura falla a mitad, reintentar el registro genera credenciales
	// nuevas y el registration huérfano queda inerte (sin secret en claro).
	granted := make([]dto.GrantedServer, 0, len(servers))
	for _, srv := range servers {
		scopes := in.RequestedScopes[srv.ID]
		if scopes == nil {
			scopes = []string{}
		}
		if _, err := s.deps.Store.Grants().Create(ctx, reg.ID, srv.ID, scopes); err != nil {
			return nil, err
		}
		granted = append(granted, dto.GrantedServer{
			ServerID:   srv.ID,
			ServerName: srv.Name,
			Scopes:     scopes,
		})
	}

	s.deps.Audit.Record(ctx, audit.Event{
		Action:               repository.AuditClientRegistered,
		ActorID:              clientID,
		ClientRegistrationID: reg.ID,
		Detail:               in.ClientName,
	})
	log.Info("client registered",
		logger.ClientID(clientID),
		logger.Count(len(granted)),
	)

	return &dto.RegisterResponse{
		ClientID:                clientID,
		ClientSecret:            clientSecret,
		ClientName:              reg.ClientName,
		RedirectURIs:            reg.RedirectURIs,
		GrantTypes:              reg.GrantTypes,
		TokenEndpointAuthMethod: reg.TokenEndpointAuthMethod,
		RegistrationAccessToken: rat,
		ClientSecretExpiresAt:   expiresAt.Unix(),
		GrantedServers:          granted,
	}, nil
}

func (s *service) Get(ctx context.Context, reg *repository.ClientRegistration) (*dto.ClientView, error) {
	granted, err := s.grantedServers(ctx, reg.ID)
	if err != nil {
		return nil, err
	}
	return clientView(reg, granted), nil
}

func (s *service) Update(ctx context.Context, reg *repository.ClientRegistration, in dto.UpdateRequest) (*dto.ClientView, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("registration"),
		logger.Op("Update"),
		logger.ClientID(reg.ClientID),
	)

	if reg.Status == repository.ClientStatusRevoked {
		return nil, ErrClientRevoked
	}
	if problems := ValidateUpdateRequest(in); len(problems) > 0 {
		return nil, newError("invalid_request", "%s", strings.Join(problems, " "))
	}

	// Union de servers ya otorgados + nuevos: los redirect URIs se revalidan
	// contra todos.
	existing, err := s.deps.Store.Grants().ListForClient(ctx, reg.ID)
	if err != nil {
		return nil, err
	}
	already := make(map[string]bool)
	var serverIDs []string
	for _, g := range existing {
		if g.IsActive {
			already[g.McpServerID] = true
			serverIDs = append(serverIDs, g.McpServerID)
		}
	}
	var newServerIDs []string
	for _, id := range in.AdditionalServerIDs {
		if !already[id] {
			newServerIDs = append(newServerIDs, id)
			serverIDs = append(serverIDs, id)
		}
	}

	servers, err := s.resolveServers(ctx, serverIDs)
	if err != nil {
		return nil, err
	}
	if err := s.checkCallbacks(ctx, servers, in.RedirectURIs); err != nil {
		return nil, err
	}

	authMethod := in.TokenEndpointAuthMethod
	if authMethod == "" {
		authMethod = reg.TokenEndpointAuthMethod
	}
	grantTypes := in.GrantTypes
	if len(grantTypes) == 0 {
		grantTypes = reg.GrantTypes
	}

	if err := s.deps.Store.Clients().UpdateMetadata(ctx, reg.ID, repository.ClientMetadataUpdate{
		ClientName:              in.ClientName,
		TokenEndpointAuthMethod: authMethod,
		GrantTypes:              grantTypes,
		RedirectURIs:            in.RedirectURIs,
	}); err != nil {
		return nil, err
	}

	// Grants nuevos solamente; repetir un server ya otorgado es no-op.
	for _, id := range newServerIDs {
		scopes := in.AdditionalScopes[id]
		if scopes == nil {
			scopes = []string{}
		}
		if _, err := s.deps.Store.Grants().Create(ctx, reg.ID, id, scopes); err != nil {
			if repository.IsConflict(err) {
				continue
			}
			return nil, err
		}
	}

	s.deps.Audit.Record(ctx, audit.Event{
		Action:               repository.AuditClientUpdated,
		ActorID:              reg.ClientID,
		ClientRegistrationID: reg.ID,
		Detail:               in.ClientName,
	})
	log.Info("client updated")

	updated, err := s.deps.Store.Clients().GetByID(ctx, reg.ID)
	if err != nil {
		return nil, err
	}
	granted, err := s.grantedServers(ctx, reg.ID)
	if err != nil {
		return nil, err
	}
	return clientView(updated, granted), nil
}

func (s *service) RotateSecret(ctx context.Context, clientID string) (*dto.RotateSecretResponse, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("registration"),
		logger.Op("RotateSecret"),
		logger.ClientID(clientID),
	)

	reg, err := s.deps.Store.Clients().GetByClientID(ctx, clientID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	if reg.Status == repository.ClientStatusRevoked {
		return nil, ErrClientRevoked
	}

	newSecret, err := tokens.GenerateClientSecret()
	if err != nil {
		return nil, err
	}
	newHash, err := s.deps.Hasher.Hash(ctx, newSecret)
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().UTC().Add(s.deps.SecretTTL)
	if err := s.deps.Store.Clients().RotateSecret(ctx, reg.ID, newHash, expiresAt); err != nil {
		return nil, err
	}

	s.deps.Audit.Record(ctx, audit.Event{
		Action:               repository.AuditSecretRotated,
		ActorID:              clientID,
		ClientRegistrationID: reg.ID,
	})
	log.Info("client secret rotated")

	return &dto.RotateSecretResponse{
		ClientID:              clientID,
		ClientSecret:          newSecret,
		ClientSecretExpiresAt: expiresAt.Unix(),
	}, nil
}

func (s *service) Revoke(ctx context.Context, clientID string) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("registration"),
		logger.Op("Revoke"),
		logger.ClientID(clientID),
	)

	reg, err := s.deps.Store.Clients().GetByClientID(ctx, clientID)
	if err != nil {
		if repository.IsNotFound(err) {
			return ErrClientNotFound
		}
		return err
	}
	if reg.Status == repository.ClientStatusRevoked {
		// revocar dos veces es no-op
		return nil
	}

	if err := s.deps.Store.Clients().SetStatus(ctx, reg.ID, repository.ClientStatusRevoked); err != nil {
		return err
	}

	// Cascada: todos los grants activos caen con el cliente.
	grants, err := s.deps.Store.Grants().ListForClient(ctx, reg.ID)
	if err != nil {
		return err
	}
	for _, g := range grants {
		if !g.IsActive {
			continue
		}
		if err := s.deps.Store.Grants().Revoke(ctx, g.ID); err != nil && !repository.IsNotFound(err) {
			return err
		}
	}

	s.deps.Audit.Record(ctx, audit.Event{
		Action:               repository.AuditClientRevoked,
		ActorID:              clientID,
		ClientRegistrationID: reg.ID,
	})
	log.Info("client revoked", logger.Count(len(grants)))
	return nil
}

func (s *service) GrantServerAccess(ctx context.Context, clientID, serverID string, scopes []string) error {
	reg, err := s.deps.Store.Clients().GetByClientID(ctx, clientID)
	if err != nil {
		if repository.IsNotFound(err) {
			return ErrClientNotFound
		}
		return err
	}
	if reg.Status == repository.ClientStatusRevoked {
		return ErrClientRevoked
	}

	srv, err := s.deps.Store.Servers().GetByID(ctx, serverID)
	if err != nil {
		if repository.IsNotFound(err) {
			return ErrServerNotFound
		}
		return err
	}
	if !srv.IsActive {
		return ErrServerNotFound
	}

	if scopes == nil {
		scopes = []string{}
	}
	if _, err := s.deps.Store.Grants().Create(ctx, reg.ID, serverID, scopes); err != nil {
		if repository.IsConflict(err) {
			return ErrGrantExists
		}
		return err
	}

	s.deps.Audit.Record(ctx, audit.Event{
		Action:               repository.AuditServerAccessGranted,
		ActorID:              clientID,
		ClientRegistrationID: reg.ID,
		McpServerID:          serverID,
		Detail:               strings.Join(scopes, " "),
	})
	return nil
}

func (s *service) RevokeServerAccess(ctx context.Context, clientID, serverID string) error {
	reg, err := s.deps.Store.Clients().GetByClientID(ctx, clientID)
	if err != nil {
		if repository.IsNotFound(err) {
			return ErrClientNotFound
		}
		return err
	}

	grant, err := s.deps.Store.Grants().GetActive(ctx, reg.ID, serverID)
	if err != nil {
		if repository.IsNotFound(err) {
			return ErrGrantNotFound
		}
		return err
	}
	if err := s.deps.Store.Grants().Revoke(ctx, grant.ID); err != nil {
		return err
	}

	s.deps.Audit.Record(ctx, audit.Event{
		Action:               repository.AuditServerAccessRevoked,
		ActorID:              clientID,
		ClientRegistrationID: reg.ID,
		McpServerID:          serverID,
	})
	return nil
}

// resolveServers carga los servers por id y exige que todos existan activos.
func (s *service) resolveServers(ctx context.Context, ids []string) ([]*repository.McpServer, error) {
	out := make([]*repository.McpServer, 0, len(ids))
	for _, id := range ids {
		srv, err := s.deps.Store.Servers().GetByID(ctx, id)
		if err != nil {
			if repository.IsNotFound(err) {
				return nil, newError("invalid_request", "MCP server '%s' does not exist.", id)
			}
			return nil, err
		}
		if !srv.IsActive {
			return nil, newError("invalid_request", "MCP server '%s' is not active.", id)
		}
		out = append(out, srv)
	}
	return out, nil
}

// checkCallbacks corre el validador de whitelist por server y junta todos
// los errores en un solo invalid_redirect_uri.
func (s *service) checkCallbacks(ctx context.Context, servers []*repository.McpServer, uris []string) error {
	var all []string
	for _, srv := range servers {
		res, err := s.deps.Callbacks.Validate(ctx, srv.ID, uris)
		if err != nil {
			return err
		}
		if !res.IsValid {
			all = append(all, res.Errors...)
		}
	}
	if len(all) > 0 {
		return newError("invalid_redirect_uri", "%s", strings.Join(all, " "))
	}
	return nil
}

func (s *service) grantedServers(ctx context.Context, regID string) ([]dto.GrantedServer, error) {
	grants, err := s.deps.Store.Grants().ListForClient(ctx, regID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.GrantedServer, 0, len(grants))
	for _, g := range grants {
		if !g.IsActive {
			continue
		}
		name := ""
		if srv, err := s.deps.Store.Servers().GetByID(ctx, g.McpServerID); err == nil {
			name = srv.Name
		}
		out = append(out, dto.GrantedServer{
			ServerID:   g.McpServerID,
			ServerName: name,
			Scopes:     g.Scopes,
		})
	}
	return out, nil
}

func clientView(reg *repository.ClientRegistration, granted []dto.GrantedServer) *dto.ClientView {
	var expires int64
	if reg.SecretExpiresAt != nil {
		expires = reg.SecretExpiresAt.Unix()
	}
	return &dto.ClientView{
		ClientID:                reg.ClientID,
		ClientName:              reg.ClientName,
		Status:                  reg.Status,
		RedirectURIs:            reg.RedirectURIs,
		GrantTypes:              reg.GrantTypes,
		TokenEndpointAuthMethod: reg.TokenEndpointAuthMethod,
		ClientSecretExpiresAt:   expires,
		GrantedServers:          granted,
	}
}
