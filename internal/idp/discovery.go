package idp

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// discoveryDocument es el subconjunto del documento OIDC que necesitamos.
type discoveryDocument struct {
	Issuer  string `json:"issuer"`
	JWKSUri string `json:"jwks_uri"`
}

// remoteJWK es una clave pública publicada por el IdP.
type remoteJWK struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type remoteJWKS struct {
	Keys []remoteJWK `json:"keys"`
}

const (
	discoveryCacheKey = "discovery"
	jwksCacheKey      = "jwks"
)

// fetchDiscovery obtiene (cacheado) el discovery document del authority.
func (v *Validator) fetchDiscovery(ctx context.Context) (*discoveryDocument, error) {
	if cached, ok := v.cache.Get(discoveryCacheKey); ok {
		return cached.(*discoveryDocument), nil
	}

	metadataURL := v.opts.MetadataURL
	if metadataURL == "" {
		metadataURL = strings.TrimRight(v.opts.Authority, "/") + "/.well-known/openid-configuration"
	}

	var doc discoveryDocument
	if err := v.getJSON(ctx, metadataURL, &doc); err != nil {
		return nil, fmt.Errorf("fetch idp metadata: %w", err)
	}
	if doc.JWKSUri == "" {
		return nil, fmt.Errorf("idp metadata: missing jwks_uri")
	}

	v.cache.Set(discoveryCacheKey, &doc, v.cacheTTL)
	return &doc, nil
}

// fetchJWKS obtiene (cacheado) el JWKS del IdP como mapa kid -> pubkey RSA.
func (v *Validator) fetchJWKS(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	if cached, ok := v.cache.Get(jwksCacheKey); ok {
		return cached.(map[string]*rsa.PublicKey), nil
	}

	doc, err := v.fetchDiscovery(ctx)
	if err != nil {
		return nil, err
	}

	var jwks remoteJWKS
	if err := v.getJSON(ctx, doc.JWKSUri, &jwks); err != nil {
		return nil, fmt.Errorf("fetch idp jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(jwks.Keys))
	for _, k := range jwks.Keys {
		if k.Kty != "RSA" || (k.Use != "" && k.Use != "sig") {
			continue
		}
		pub, err := parseRSAJWK(k)
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("idp jwks: no usable RSA signing keys")
	}

	v.cache.Set(jwksCacheKey, keys, v.cacheTTL)
	return keys, nil
}

func (v *Validator) getJSON(ctx context.Context, url string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, v.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := v.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

// parseRSAJWK construye una rsa.PublicKey desde n/e base64url.
func parseRSAJWK(k remoteJWK) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, err
	}
	eb, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, err
	}
	e := 0
	for _, b := range eb {
		e = e<<8 | int(b)
	}
	if e == 0 {
		return nil, fmt.Errorf("jwk: zero exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: e}, nil
}

// newMetadataCache crea el cache de metadata con expiración y cleanup.
func newMetadataCache(ttl time.Duration) *gocache.Cache {
	return gocache.New(ttl, 5*time.Minute)
}
