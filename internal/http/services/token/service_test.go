package token

import (
	"context"
	"errors"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/mcpd/internal/audit"
	"github.com/dropDatabas3/mcpd/internal/domain/repository"
	dto "github.com/dropDatabas3/mcpd/internal/http/dto/token"
	"github.com/dropDatabas3/mcpd/internal/idp"
	jwtx "github.com/dropDatabas3/mcpd/internal/jwt"
	"github.com/dropDatabas3/mcpd/internal/security/secret"
	"github.com/dropDatabas3/mcpd/internal/store/adapters/mem"
)

var fastParams = secret.Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLen: 16, KeyLen: 32}

// fakeValidator responde lo que se le configure, sin tocar la red.
type fakeValidator struct {
	result idp.Result
	err    error
}

func (f *fakeValidator) Validate(ctx context.Context, assertion string) (idp.Result, error) {
	return f.result, f.err
}

type fixture struct {
	store     *mem.Store
	hasher    *secret.Hasher
	issuer    *jwtx.Issuer
	validator *fakeValidator
	svc       Service

	server *repository.McpServer
	reg    *repository.ClientRegistration
	secret string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := mem.New()
	hasher := secret.NewHasher(fastParams, 0)

	keys, err := jwtx.NewRSA()
	require.NoError(t, err)
	issuer := jwtx.NewIssuer("https://auth.example.com", keys)

	srv, err := store.Servers().Create(ctx, repository.McpServerInput{Name: "files", BaseURI: "https://files.internal"})
	require.NoError(t, err)

	plainSecret := "client-secret-plain"
	secretHash, err := hasher.Hash(ctx, plainSecret)
	require.NoError(t, err)
	reg, err := store.Clients().Create(ctx, repository.ClientRegistrationInput{
		ClientID:                "mcp_abc123",
		ClientSecretHash:        secretHash,
		ClientName:              "Acme",
		TokenEndpointAuthMethod: repository.AuthMethodSecretPost,
		GrantTypes:              []string{repository.GrantTypeClientCredentials},
		RedirectURIs:            []string{"https://app.example.com/cb"},
		SecretExpiresAt:         time.Now().UTC().Add(time.Hour),
	})
	require.NoError(t, err)

	_, err = store.Grants().Create(ctx, reg.ID, srv.ID, []string{"mcp:tools", "mcp:resources"})
	require.NoError(t, err)

	validator := &fakeValidator{}
	svc := NewService(Deps{
		Store:     store,
		Hasher:    hasher,
		Issuer:    issuer,
		Validator: validator,
		Authorizer: &idp.Authorizer{
			Mappings: map[string]idp.ServerMapping{
				"files": {
					RequiredRoles: []string{"mcp.user"},
					DefaultScopes: []string{"mcp:tools"},
				},
			},
			AdminRole: "mcp.admin",
		},
		Audit:     audit.NewRecorder(store.Audit()),
		AccessTTL: 10 * time.Minute,
	})

	return &fixture{
		store: store, hasher: hasher, issuer: issuer, validator: validator, svc: svc,
		server: srv, reg: reg, secret: plainSecret,
	}
}

func (f *fixture) clientCredentialsRequest() dto.Request {
	return dto.Request{
		GrantType:    repository.GrantTypeClientCredentials,
		ClientID:     f.reg.ClientID,
		ClientSecret: f.secret,
		AuthMethod:   repository.AuthMethodSecretPost,
		ServerID:     f.server.ID,
	}
}

func TestIssue_ClientCredentials_Success(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	resp, err := f.svc.Issue(ctx, f.clientCredentialsRequest())
	require.NoError(t, err)
	require.Equal(t, "Bearer", resp.TokenType)
	require.Equal(t, []string{"mcp:tools", "mcp:resources"}, resp.Scope)
	require.InDelta(t, 600, resp.ExpiresIn, 5)

	// round-trip: el token verifica contra la propia clave del issuer
	parsed, err := jwtv5.Parse(resp.AccessToken, f.issuer.Keyfunc(),
		jwtv5.WithValidMethods([]string{"RS256"}),
		jwtv5.WithIssuer("https://auth.example.com"),
		jwtv5.WithAudience("files"),
	)
	require.NoError(t, err)
	claims := parsed.Claims.(jwtv5.MapClaims)
	require.Equal(t, f.reg.ClientID, claims["sub"])
	require.Equal(t, f.server.ID, claims["server_id"])
	require.Equal(t, "mcp:tools mcp:resources", claims["scope"])
	require.NotEmpty(t, claims["jti"])
}

func TestIssue_MissingGrantType(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Issue(context.Background(), dto.Request{})
	require.True(t, errors.Is(err, ErrMissingGrantType))
}

func TestIssue_UnsupportedGrantType(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Issue(context.Background(), dto.Request{GrantType: "password"})
	require.True(t, errors.Is(err, ErrUnsupportedGrantType))
}

func TestIssue_MissingResource(t *testing.T) {
	f := newFixture(t)
	in := f.clientCredentialsRequest()
	in.ServerID = ""
	_, err := f.svc.Issue(context.Background(), in)
	require.True(t, errors.Is(err, ErrMissingServer))
}

func TestIssue_UnknownClient(t *testing.T) {
	f := newFixture(t)
	in := f.clientCredentialsRequest()
	in.ClientID = "mcp_nope"
	_, err := f.svc.Issue(context.Background(), in)
	require.True(t, errors.Is(err, ErrInvalidClient))
}

func TestIssue_RevokedClient(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Clients().SetStatus(ctx, f.reg.ID, repository.ClientStatusRevoked))

	_, err := f.svc.Issue(ctx, f.clientCredentialsRequest())
	require.True(t, errors.Is(err, ErrInvalidClient))
}

func TestIssue_AuthMethodMismatch(t *testing.T) {
	f := newFixture(t)
	in := f.clientCredentialsRequest()
	in.AuthMethod = repository.AuthMethodSecretBasic // registrado: secret_post

	_, err := f.svc.Issue(context.Background(), in)
	require.True(t, errors.Is(err, ErrInvalidClient))
}

func TestIssue_WrongSecret(t *testing.T) {
	f := newFixture(t)
	in := f.clientCredentialsRequest()
	in.ClientSecret = "wrong"
	_, err := f.svc.Issue(context.Background(), in)
	require.True(t, errors.Is(err, ErrInvalidClient))
}

func TestIssue_ExpiredSecret(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	// rotar con expiración en el pasado
	hash, err := f.hasher.Hash(ctx, f.secret)
	require.NoError(t, err)
	require.NoError(t, f.store.Clients().RotateSecret(ctx, f.reg.ID, hash, time.Now().UTC().Add(-time.Minute)))

	_, err = f.svc.Issue(ctx, f.clientCredentialsRequest())
	require.True(t, errors.Is(err, ErrInvalidClient))
}

func TestIssue_NoGrantForServer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	other, err := f.store.Servers().Create(ctx, repository.McpServerInput{Name: "notes", BaseURI: "https://notes.internal"})
	require.NoError(t, err)

	in := f.clientCredentialsRequest()
	in.ServerID = other.ID
	_, err = f.svc.Issue(ctx, in)
	require.True(t, errors.Is(err, ErrUnauthorizedClient))
}

func TestIssue_InactiveServer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Servers().Deactivate(ctx, f.server.ID))

	_, err := f.svc.Issue(ctx, f.clientCredentialsRequest())
	require.True(t, errors.Is(err, ErrUnauthorizedClient))
}

func TestIssue_ScopeSubset(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	in := f.clientCredentialsRequest()
	in.Scope = "mcp:tools"
	resp, err := f.svc.Issue(ctx, in)
	require.NoError(t, err)
	require.Equal(t, []string{"mcp:tools"}, resp.Scope)

	in.Scope = "mcp:tools mcp:admin"
	_, err = f.svc.Issue(ctx, in)
	require.True(t, errors.Is(err, ErrInvalidScope))
}

func TestIssue_DeniedAttemptsAreAudited(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	in := f.clientCredentialsRequest()
	in.ClientSecret = "wrong"

	_, err := f.svc.Issue(ctx, in)
	require.Error(t, err)

	entries := f.store.AuditEntries()
	require.NotEmpty(t, entries)
	require.Equal(t, repository.AuditTokenDenied, entries[len(entries)-1].Action)
}

func TestIssue_JWTBearer_Success(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.validator.result = idp.Result{
		IsValid:           true,
		Subject:           "user-42",
		PreferredUsername: "ada",
		Roles:             []string{"mcp.user"},
	}

	resp, err := f.svc.Issue(ctx, dto.Request{
		GrantType: repository.GrantTypeJWTBearer,
		Assertion: "some.idp.jwt",
		ServerID:  f.server.ID,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"mcp:tools"}, resp.Scope)

	parsed, err := jwtv5.Parse(resp.AccessToken, f.issuer.Keyfunc(),
		jwtv5.WithValidMethods([]string{"RS256"}),
		jwtv5.WithAudience("files"),
	)
	require.NoError(t, err)
	claims := parsed.Claims.(jwtv5.MapClaims)
	require.Equal(t, "user-42", claims["sub"])
	require.Equal(t, "user", claims["token_type"])
	require.Equal(t, "ada", claims["preferred_username"])
}

func TestIssue_JWTBearer_MissingAssertion(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Issue(context.Background(), dto.Request{
		GrantType: repository.GrantTypeJWTBearer,
		ServerID:  f.server.ID,
	})
	require.True(t, errors.Is(err, ErrMissingAssertion))
}

func TestIssue_JWTBearer_InvalidAssertion(t *testing.T) {
	f := newFixture(t)
	f.validator.result = idp.Result{IsValid: false, Error: "User token validation failed."}

	_, err := f.svc.Issue(context.Background(), dto.Request{
		GrantType: repository.GrantTypeJWTBearer,
		Assertion: "bad.jwt",
		ServerID:  f.server.ID,
	})
	require.True(t, errors.Is(err, ErrInvalidGrant))
}

func TestIssue_JWTBearer_InfraErrorIsNotDenial(t *testing.T) {
	f := newFixture(t)
	infraErr := errors.New("metadata fetch failed")
	f.validator.err = infraErr

	_, err := f.svc.Issue(context.Background(), dto.Request{
		GrantType: repository.GrantTypeJWTBearer,
		Assertion: "any.jwt",
		ServerID:  f.server.ID,
	})
	require.True(t, errors.Is(err, infraErr))
	var svcErr *Error
	require.False(t, errors.As(err, &svcErr))
}

func TestIssue_JWTBearer_UnknownServer(t *testing.T) {
	f := newFixture(t)
	f.validator.result = idp.Result{IsValid: true, Subject: "user-42", Roles: []string{"mcp.user"}}

	_, err := f.svc.Issue(context.Background(), dto.Request{
		GrantType: repository.GrantTypeJWTBearer,
		Assertion: "some.jwt",
		ServerID:  "00000000-0000-0000-0000-000000000000",
	})
	require.True(t, errors.Is(err, ErrInvalidTarget))
}

func TestIssue_JWTBearer_RoleNotAuthorized(t *testing.T) {
	f := newFixture(t)
	f.validator.result = idp.Result{IsValid: true, Subject: "user-42", Roles: []string{"guest"}}

	_, err := f.svc.Issue(context.Background(), dto.Request{
		GrantType: repository.GrantTypeJWTBearer,
		Assertion: "some.jwt",
		ServerID:  f.server.ID,
	})
	require.True(t, errors.Is(err, ErrUnauthorizedClient))
}

func TestIssue_JWTBearer_DisabledWithoutIdP(t *testing.T) {
	f := newFixture(t)
	bare := NewService(Deps{
		Store:  f.store,
		Hasher: f.hasher,
		Issuer: f.issuer,
		Audit:  audit.NewRecorder(f.store.Audit()),
	})
	_, err := bare.Issue(context.Background(), dto.Request{
		GrantType: repository.GrantTypeJWTBearer,
		Assertion: "some.jwt",
		ServerID:  f.server.ID,
	})
	require.True(t, errors.Is(err, ErrUnsupportedGrantType))
}
