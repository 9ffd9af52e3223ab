package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	jwt "github.com/golang-jwt/jwt/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const (
	oidcMeterName      = "github.com/scootsmagoo/filtersfast-next-sub010/internal/platform/auth"
	defaultJWKSTTL     = 15 * time.Minute
	defaultJWKSTimeout = 5 * time.Second
	iapAssertionHeader = "X-Goog-Iap-Jwt-Assertion"
)

var (
	// ErrJWKSKeyNotFound means the key set has no key for the token's kid.
	ErrJWKSKeyNotFound = errors.New("auth: jwks key not found")
	// ErrJWKSFetchFailed wraps transport and decoding failures of the key set.
	ErrJWKSFetchFailed = errors.New("auth: jwks fetch failed")
)

// JWKSCache fetches the signing keys published at a JWKS endpoint and keeps
// them until the response's max-age (or the configured TTL) runs out.
type JWKSCache struct {
	url     string
	client  *http.Client
	now     func() time.Time
	ttl     time.Duration
	timeout time.Duration

	mu     sync.RWMutex
	keys   map[string]jose.JSONWebKey
	expiry time.Time

	refreshMu sync.Mutex
}

// JWKSOption customises a JWKSCache.
type JWKSOption func(*JWKSCache)

// WithJWKSHTTPClient overrides the HTTP client used for key set fetches.
func WithJWKSHTTPClient(client *http.Client) JWKSOption {
	return func(c *JWKSCache) {
		if client != nil {
			c.client = client
		}
	}
}

// WithJWKSClock injects the time source.
func WithJWKSClock(now func() time.Time) JWKSOption {
	return func(c *JWKSCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithJWKSTTL sets how long keys live when the endpoint sends no max-age.
func WithJWKSTTL(ttl time.Duration) JWKSOption {
	return func(c *JWKSCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// NewJWKSCache builds a cache for url. Nothing is fetched until first use.
func NewJWKSCache(url string, opts ...JWKSOption) *JWKSCache {
	c := &JWKSCache{
		url:     strings.TrimSpace(url),
		client:  &http.Client{Timeout: 10 * time.Second},
		now:     time.Now,
		ttl:     defaultJWKSTTL,
		timeout: defaultJWKSTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Key returns the public key for kid. An unknown kid forces one refetch so
// rotated keys are picked up before the cache expires.
func (c *JWKSCache) Key(ctx context.Context, kid string) (any, error) {
	if key, ok := c.lookup(kid, true); ok {
		return key, nil
	}

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	// another request may have refreshed while we waited
	if key, ok := c.lookup(kid, true); ok {
		return key, nil
	}
	if err := c.refresh(ctx); err != nil {
		return nil, err
	}
	if key, ok := c.lookup(kid, false); ok {
		return key, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrJWKSKeyNotFound, kid)
}

func (c *JWKSCache) lookup(kid string, requireFresh bool) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if requireFresh && !c.now().Before(c.expiry) {
		return nil, false
	}
	jwk, ok := c.keys[kid]
	if !ok {
		return nil, false
	}
	return jwk.Key, true
}

func (c *JWKSCache) refresh(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrJWKSFetchFailed, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrJWKSFetchFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrJWKSFetchFailed, resp.StatusCode)
	}

	var set jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrJWKSFetchFailed, err)
	}
	keys := make(map[string]jose.JSONWebKey, len(set.Keys))
	for _, jwk := range set.Keys {
		if jwk.KeyID != "" && jwk.Valid() {
			keys[jwk.KeyID] = jwk
		}
	}
	if len(keys) == 0 {
		return fmt.Errorf("%w: empty key set", ErrJWKSFetchFailed)
	}

	ttl := c.ttl
	if maxAge, ok := cacheMaxAge(resp.Header.Get("Cache-Control")); ok {
		ttl = maxAge
	}

	c.mu.Lock()
	c.keys = keys
	c.expiry = c.now().Add(ttl)
	c.mu.Unlock()
	return nil
}

func cacheMaxAge(header string) (time.Duration, bool) {
	for _, directive := range strings.Split(header, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(directive), "=")
		if !ok || !strings.EqualFold(name, "max-age") {
			continue
		}
		seconds, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || seconds <= 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	return 0, false
}

// ServiceIdentity is the calling service principal of a verified OIDC token.
type ServiceIdentity struct {
	Subject string
	Email   string
	Issuer  string
}

type serviceIdentityKey struct{}

// WithServiceIdentity stores identity on ctx.
func WithServiceIdentity(ctx context.Context, identity *ServiceIdentity) context.Context {
	if identity == nil {
		return ctx
	}
	return context.WithValue(ctx, serviceIdentityKey{}, identity)
}

// ServiceIdentityFromContext returns the identity stored by RequireOIDC.
func ServiceIdentityFromContext(ctx context.Context) (*ServiceIdentity, bool) {
	identity, ok := ctx.Value(serviceIdentityKey{}).(*ServiceIdentity)
	return identity, ok && identity != nil
}

// OIDCValidator checks Google-signed OIDC and IAP tokens presented by other
// services.
type OIDCValidator struct {
	cache    *JWKSCache
	logger   *zap.Logger
	outcomes metric.Int64Counter
}

// OIDCOption customises an OIDCValidator.
type OIDCOption func(*oidcOptions)

type oidcOptions struct {
	logger *zap.Logger
	meter  metric.Meter
}

// WithOIDCLogger sets the logger used for rejected tokens.
func WithOIDCLogger(logger *zap.Logger) OIDCOption {
	return func(o *oidcOptions) { o.logger = logger }
}

// WithOIDCMeter overrides the otel meter.
func WithOIDCMeter(m metric.Meter) OIDCOption {
	return func(o *oidcOptions) { o.meter = m }
}

// NewOIDCValidator builds a validator that resolves keys through cache.
func NewOIDCValidator(cache *JWKSCache, opts ...OIDCOption) (*OIDCValidator, error) {
	if cache == nil {
		return nil, errors.New("auth: oidc validator requires a jwks cache")
	}
	o := oidcOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.meter == nil {
		o.meter = otel.GetMeterProvider().Meter(oidcMeterName)
	}
	outcomes, err := o.meter.Int64Counter("auth.oidc.verifications",
		metric.WithDescription("OIDC verification outcomes by reason"))
	if err != nil {
		return nil, fmt.Errorf("auth: register oidc counter: %w", err)
	}
	return &OIDCValidator{cache: cache, logger: o.logger, outcomes: outcomes}, nil
}

// RequireOIDC admits requests carrying a valid RS256 token for audience from
// one of issuers. An empty audience rejects every request with 503.
func (v *OIDCValidator) RequireOIDC(audience string, issuers []string) func(http.Handler) http.Handler {
	audience = strings.TrimSpace(audience)
	allowed := make(map[string]struct{}, len(issuers))
	for _, issuer := range issuers {
		if issuer = strings.TrimSpace(issuer); issuer != "" {
			allowed[issuer] = struct{}{}
		}
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			reject := func(status int, code, message, reason string) {
				v.record(ctx, reason)
				v.logger.Warn("oidc verification rejected",
					zap.String("reason", reason), zap.String("path", r.URL.Path))
				respond(w, r, status, code, message)
			}

			if audience == "" {
				reject(http.StatusServiceUnavailable, "verification_unavailable", "oidc audience not configured", "audience_not_configured")
				return
			}
			raw := serviceToken(r)
			if raw == "" {
				reject(http.StatusUnauthorized, "unauthenticated", "service token missing", "token_missing")
				return
			}

			claims := jwt.MapClaims{}
			if _, err := parser.ParseWithClaims(raw, claims, v.keyfunc(ctx)); err != nil {
				if errors.Is(err, ErrJWKSFetchFailed) {
					reject(http.StatusServiceUnavailable, "verification_unavailable", "signing keys unavailable", "jwks_unavailable")
					return
				}
				reject(http.StatusUnauthorized, "invalid_token", "service token verification failed", "token_invalid")
				return
			}

			issuer, _ := claims["iss"].(string)
			if _, ok := allowed[issuer]; !ok {
				reject(http.StatusUnauthorized, "invalid_token", "service token issuer not allowed", "issuer_mismatch")
				return
			}
			if !claims.VerifyAudience(audience, true) {
				reject(http.StatusUnauthorized, "invalid_token", "service token audience mismatch", "audience_mismatch")
				return
			}

			identity := &ServiceIdentity{
				Subject: stringClaim(claims, "sub"),
				Email:   stringClaim(claims, "email"),
				Issuer:  issuer,
			}
			v.record(ctx, "ok")
			next.ServeHTTP(w, r.WithContext(WithServiceIdentity(ctx, identity)))
		})
	}
}

func (v *OIDCValidator) keyfunc(ctx context.Context) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("auth: token has no kid header")
		}
		return v.cache.Key(ctx, kid)
	}
}

func (v *OIDCValidator) record(ctx context.Context, reason string) {
	v.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("success", reason == "ok"),
		attribute.String("reason", reason),
	))
}

func serviceToken(r *http.Request) string {
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return token
	}
	return strings.TrimSpace(r.Header.Get(iapAssertionHeader))
}
