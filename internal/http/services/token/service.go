// Package token implementa la emisión de access tokens: client_credentials
// para M2M y jwt-bearer para intercambio de tokens de usuario del IdP.
package token

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/mcpd/internal/audit"
	"github.com/dropDatabas3/mcpd/internal/domain/repository"
	dto "github.com/dropDatabas3/mcpd/internal/http/dto/token"
	"github.com/dropDatabas3/mcpd/internal/idp"
	jwtx "github.com/dropDatabas3/mcpd/internal/jwt"
	"github.com/dropDatabas3/mcpd/internal/observability/logger"
	"github.com/dropDatabas3/mcpd/internal/security/secret"
)

// Service emite tokens o rechaza con un *Error del taxónomo OAuth.
type Service interface {
	Issue(ctx context.Context, in dto.Request) (*dto.Response, error)
}

// Deps contiene las dependencias del servicio.
type Deps struct {
	Store  repository.Store
	Hasher *secret.Hasher
	Issuer *jwtx.Issuer
	// Validator y Authorizer habilitan el grant jwt-bearer. Nil => el grant
	// rechaza con unsupported_grant_type.
	Validator  idp.TokenValidator
	Authorizer *idp.Authorizer
	Audit      *audit.Recorder
	// AccessTTL es la vigencia de los tokens emitidos. 0 => 60 minutos.
	AccessTTL time.Duration
}

type service struct {
	deps Deps
}

const defaultAccessTTL = 60 * time.Minute

// NewService crea el servicio de emisión.
func NewService(deps Deps) Service {
	if deps.AccessTTL <= 0 {
		deps.AccessTTL = defaultAccessTTL
	}
	return &service{deps: deps}
}

// Issue despacha por grant_type. Los parámetros obligatorios se verifican
// antes de entrar a cualquiera de los dos protocolos.
func (s *service) Issue(ctx context.Context, in dto.Request) (*dto.Response, error) {
	if strings.TrimSpace(in.GrantType) == "" {
		return nil, ErrMissingGrantType
	}

	switch in.GrantType {
	case repository.GrantTypeClientCredentials:
		return s.clientCredentials(ctx, in)
	case repository.GrantTypeJWTBearer:
		if strings.TrimSpace(in.Assertion) == "" {
			return nil, ErrMissingAssertion
		}
		return s.jwtBearer(ctx, in)
	default:
		return nil, ErrUnsupportedGrantType
	}
}

// clientCredentials corre los chequeos en orden fijo, cortando en el primero
// que falla. Cada rechazo mapea a un código distinto.
func (s *service) clientCredentials(ctx context.Context, in dto.Request) (*dto.Response, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("token"),
		logger.Op("clientCredentials"),
		logger.ClientID(in.ClientID),
	)

	if strings.TrimSpace(in.ServerID) == "" {
		return nil, ErrMissingServer
	}

	// 1. Registration activo. Si no existe o no está activo, quemamos un
	// Verify contra el dummy hash igual: el timing no debe delatar si el
	// client_id existe.
	reg, err := s.deps.Store.Clients().GetByClientID(ctx, in.ClientID)
	if err != nil {
		if repository.IsNotFound(err) {
			_ = s.deps.Hasher.Verify(ctx, in.ClientSecret, secret.DummyHash)
			return nil, s.deny(ctx, log, in, "", ErrInvalidClient)
		}
		return nil, err
	}
	if reg.Status != repository.ClientStatusActive {
		_ = s.deps.Hasher.Verify(ctx, in.ClientSecret, secret.DummyHash)
		return nil, s.deny(ctx, log, in, reg.ID, ErrInvalidClient)
	}

	// 2. El método por el que llegaron las credenciales debe coincidir con
	// el registrado.
	if in.AuthMethod != reg.TokenEndpointAuthMethod {
		return nil, s.deny(ctx, log, in, reg.ID, ErrInvalidClient)
	}

	// 3. Secret.
	if !s.deps.Hasher.Verify(ctx, in.ClientSecret, reg.ClientSecretHash) {
		return nil, s.deny(ctx, log, in, reg.ID, ErrInvalidClient)
	}
	if reg.SecretExpiresAt != nil && time.Now().UTC().After(*reg.SecretExpiresAt) {
		return nil, s.deny(ctx, log, in, reg.ID, ErrInvalidClient)
	}

	// 4. Grant activo para el par (client, server).
	grant, err := s.deps.Store.Grants().GetActive(ctx, reg.ID, in.ServerID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, s.deny(ctx, log, in, reg.ID, ErrUnauthorizedClient)
		}
		return nil, err
	}

	srv, err := s.deps.Store.Servers().GetByID(ctx, in.ServerID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, s.deny(ctx, log, in, reg.ID, ErrUnauthorizedClient)
		}
		return nil, err
	}
	if !srv.IsActive {
		return nil, s.deny(ctx, log, in, reg.ID, ErrUnauthorizedClient)
	}

	// 5. Scopes pedidos ⊆ scopes del grant. Sin pedido explícito va el set
	// completo del grant.
	scopes := grant.Scopes
	if requested := splitScopes(in.Scope); len(requested) > 0 {
		for _, sc := range requested {
			if !grant.HasScope(sc) {
				return nil, s.deny(ctx, log, in, reg.ID, ErrInvalidScope)
			}
		}
		scopes = requested
	}

	// 6. Token de 60 minutos.
	signed, exp, err := s.deps.Issuer.IssueAccessToken(reg.ClientID, srv.ID, srv.Name, scopes, s.deps.AccessTTL)
	if err != nil {
		return nil, err
	}

	s.deps.Audit.Record(ctx, audit.Event{
		Action:               repository.AuditTokenIssued,
		ActorID:              reg.ClientID,
		ClientRegistrationID: reg.ID,
		McpServerID:          srv.ID,
		Detail:               in.GrantType,
	})
	log.Info("access token issued",
		logger.ServerID(srv.ID),
		logger.GrantType(in.GrantType),
		logger.Scope(strings.Join(scopes, " ")),
	)

	return &dto.Response{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(exp).Seconds()),
		Scope:       scopes,
	}, nil
}

// jwtBearer intercambia una assertion del IdP por un token de usuario.
func (s *service) jwtBearer(ctx context.Context, in dto.Request) (*dto.Response, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("token"),
		logger.Op("jwtBearer"),
	)

	if s.deps.Validator == nil || s.deps.Authorizer == nil {
		return nil, ErrUnsupportedGrantType
	}
	if strings.TrimSpace(in.ServerID) == "" {
		return nil, ErrMissingServer
	}

	// 1. La assertion la valida el IdP validator. Un error de la llamada es
	// infraestructura (metadata inaccesible), no un rechazo.
	res, err := s.deps.Validator.Validate(ctx, in.Assertion)
	if err != nil {
		return nil, err
	}
	if !res.IsValid {
		return nil, s.deny(ctx, log, in, "", ErrInvalidGrant)
	}
	log = log.With(logger.Subject(res.Subject))

	// 2. Server objetivo.
	srv, err := s.deps.Store.Servers().GetByID(ctx, in.ServerID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, s.deny(ctx, log, in, "", ErrInvalidTarget)
		}
		return nil, err
	}
	if !srv.IsActive {
		return nil, s.deny(ctx, log, in, "", ErrInvalidTarget)
	}

	// 3. Roles -> scopes. Pedir scopes fuera del set permitido es rechazo,
	// no truncado silencioso.
	decision := s.deps.Authorizer.Authorize(srv.Name, res.Roles, splitScopes(in.Scope))
	if !decision.Allowed {
		return nil, s.deny(ctx, log, in, "", ErrUnauthorizedClient)
	}

	// 4. Token de usuario.
	signed, exp, err := s.deps.Issuer.IssueUserAccessToken(res.Subject, res.PreferredUsername, srv.ID, srv.Name, decision.Scopes, s.deps.AccessTTL)
	if err != nil {
		return nil, err
	}

	s.deps.Audit.Record(ctx, audit.Event{
		Action:      repository.AuditTokenIssued,
		ActorID:     res.Subject,
		McpServerID: srv.ID,
		Detail:      in.GrantType,
	})
	log.Info("user token issued",
		logger.ServerID(srv.ID),
		logger.GrantType(in.GrantType),
		logger.Scope(strings.Join(decision.Scopes, " ")),
	)

	return &dto.Response{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(exp).Seconds()),
		Scope:       decision.Scopes,
	}, nil
}

// deny audita y loguea el rechazo antes de devolverlo.
func (s *service) deny(ctx context.Context, log *zap.Logger, in dto.Request, regID string, derr *Error) error {
	s.deps.Audit.Record(ctx, audit.Event{
		Action:               repository.AuditTokenDenied,
		ActorID:              in.ClientID,
		ClientRegistrationID: regID,
		McpServerID:          in.ServerID,
		Detail:               derr.Code,
	})
	log.Warn("token denied",
		logger.GrantType(in.GrantType),
		logger.String("reason", derr.Code),
	)
	return derr
}

func splitScopes(raw string) []string {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil
	}
	return fields
}
