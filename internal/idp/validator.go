package idp

import (
	"context"
	"fmt"
	"net/http"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	gocache "github.com/patrickmn/go-cache"

	"github.com/dropDatabas3/mcpd/internal/observability/logger"
)

// Options configura la validación contra el IdP externo.
type Options struct {
	// Authority es el issuer del IdP (ej: https://login.example.com/tenant).
	Authority string
	// Audience esperada en las assertions.
	Audience string
	// MetadataURL permite fijar la URL de discovery; si está vacío se deriva
	// de Authority + /.well-known/openid-configuration.
	MetadataURL string
	// RolesClaim es el claim del que se extraen los roles del usuario.
	// Default: "roles".
	RolesClaim string
	// MetadataTTL es la ventana de validez del cache de discovery/JWKS.
	// Default: 1h.
	MetadataTTL time.Duration
	// FetchTimeout limita cada fetch de metadata. Default: 10s.
	FetchTimeout time.Duration
}

// Result es el veredicto de validar una assertion.
// IsValid=false con Error poblado es un rechazo de política (invalid_grant);
// fallas de infraestructura se reportan como error de la llamada.
type Result struct {
	IsValid           bool
	Subject           string
	PreferredUsername string
	Roles             []string
	Error             string
}

// TokenValidator valida assertions del IdP. El engine de issuance depende de
// esta interfaz, no del validator concreto (tests inyectan fakes).
type TokenValidator interface {
	Validate(ctx context.Context, assertion string) (Result, error)
}

// Validator implementa TokenValidator contra un IdP OIDC real.
type Validator struct {
	opts         Options
	http         *http.Client
	cache        *gocache.Cache
	cacheTTL     time.Duration
	fetchTimeout time.Duration
}

// NewValidator crea el validator. Retorna error si Authority no está
// configurado: sin authority no hay forma de validar assertions.
func NewValidator(opts Options) (*Validator, error) {
	if opts.Authority == "" {
		return nil, fmt.Errorf("idp: authority not configured")
	}
	if opts.RolesClaim == "" {
		opts.RolesClaim = "roles"
	}
	ttl := opts.MetadataTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	timeout := opts.FetchTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Validator{
		opts:         opts,
		http:         &http.Client{Timeout: timeout},
		cache:        newMetadataCache(ttl),
		cacheTTL:     ttl,
		fetchTimeout: timeout,
	}, nil
}

// Validate verifica firma (RS256 contra el JWKS del IdP), issuer, audience y
// vigencia de la assertion, con 2 minutos de tolerancia de reloj.
func (v *Validator) Validate(ctx context.Context, assertion string) (Result, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("idp.validate"))

	keys, err := v.fetchJWKS(ctx)
	if err != nil {
		// Falla de infraestructura: no es una decisión de seguridad.
		log.Error("idp metadata unavailable", logger.Err(err))
		return Result{}, err
	}

	keyfunc := func(t *jwtv5.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if pub, ok := keys[kid]; ok {
			return pub, nil
		}
		return nil, fmt.Errorf("unknown kid %q", kid)
	}

	tok, err := jwtv5.Parse(assertion, keyfunc,
		jwtv5.WithValidMethods([]string{"RS256"}),
		jwtv5.WithIssuer(v.opts.Authority),
		jwtv5.WithAudience(v.opts.Audience),
		jwtv5.WithLeeway(2*time.Minute),
		jwtv5.WithExpirationRequired(),
	)
	if err != nil || !tok.Valid {
		log.Warn("assertion rejected", logger.Err(err))
		return Result{IsValid: false, Error: "User token validation failed."}, nil
	}

	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return Result{IsValid: false, Error: "User token validation failed."}, nil
	}

	subject := stringClaim(claims, "sub")
	if subject == "" {
		subject = stringClaim(claims, "oid")
	}
	preferred := stringClaim(claims, "preferred_username")
	if preferred == "" {
		preferred = stringClaim(claims, "name")
	}

	return Result{
		IsValid:           true,
		Subject:           subject,
		PreferredUsername: preferred,
		Roles:             stringSliceClaim(claims, v.opts.RolesClaim),
	}, nil
}

func stringClaim(claims jwtv5.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}

// stringSliceClaim acepta tanto un string suelto como un array de strings.
func stringSliceClaim(claims jwtv5.MapClaims, key string) []string {
	switch v := claims[key].(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
