package config

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile          = ".env"
	defaultPort             = "8080"
	defaultReadTimeout      = 15 * time.Second
	defaultWriteTimeout     = 30 * time.Second
	defaultIdleTimeout      = 120 * time.Second
	defaultPostgresMaxConns = 10
	defaultTaxTimeout       = 8 * time.Second
	defaultTaxBaseURL       = "https://api.taxjar.com/v2"
	defaultLedgerTopic      = "checkout-ledger-events"
	defaultPublicPerMinute  = 60
	defaultRateLimitWindow  = time.Minute
	defaultSecurityEnv      = "local"
	defaultOIDCJWKSURL      = "https://www.googleapis.com/oauth2/v3/certs"
	secretRefPrefix         = "secret://"
	legacySecretRefPrefix   = "sm://"
	fieldPostgresDSN        = "Postgres.DSN"
	fieldRedisPassword      = "Redis.Password"
	fieldTaxAPIKey          = "Tax.APIKey"
)

// Config is the full runtime configuration of the API.
type Config struct {
	Server     ServerConfig
	Firebase   FirebaseConfig
	Firestore  FirestoreConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Tax        TaxConfig
	PubSub     PubSubConfig
	RateLimits RateLimitConfig
	Security   SecurityConfig
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirebaseConfig identifies the Firebase project used for ID tokens.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// FirestoreConfig configures the document store holding promos and gift cards.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// PostgresConfig configures the relational store for shipments and tax logs.
type PostgresConfig struct {
	DSN      string
	MaxConns int32
}

// RedisConfig configures the rate limiter store. An empty Addr selects the
// in-memory limiter.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// TaxConfig configures the external tax oracle.
type TaxConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// PubSubConfig configures ledger event publishing. An empty topic disables it.
type PubSubConfig struct {
	ProjectID   string
	LedgerTopic string
}

// RateLimitConfig controls throttling of the public routes.
type RateLimitConfig struct {
	PublicPerMinute int
	Window          time.Duration
}

// SecurityConfig carries deployment level switches.
type SecurityConfig struct {
	Environment string
	OIDC        OIDCConfig
}

// OIDCConfig controls verification of Google-signed service tokens on the
// internal routes.
type OIDCConfig struct {
	JWKSURL  string
	Audience string
	Issuers  []string
}

// IsLocal reports whether the service runs outside a deployed environment.
func (c SecurityConfig) IsLocal() bool {
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "", "local", "dev", "test":
		return true
	}
	return false
}

// SecretResolver resolves secret:// references.
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts a function to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret calls f.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError lists every missing or invalid field found by Load.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the offending field names.
func (e *ValidationError) Fields() []string {
	return append([]string(nil), e.fields...)
}

// SecretError wraps a failed secret lookup.
type SecretError struct {
	Ref string
	Err error
}

func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

func (e *SecretError) Unwrap() error { return e.Err }

// MissingSecretsError reports required secrets that resolved to nothing.
// Error() only prints hashed names so the message is safe to log.
type MissingSecretsError struct {
	names []string
}

func (e *MissingSecretsError) Error() string {
	redacted := make([]string, 0, len(e.names))
	for _, name := range e.names {
		sum := sha256.Sum256([]byte(name))
		redacted = append(redacted, hex.EncodeToString(sum[:8]))
	}
	sort.Strings(redacted)
	return fmt.Sprintf("missing required secrets [%s]", strings.Join(redacted, ", "))
}

// Names returns the field names of the missing secrets.
func (e *MissingSecretsError) Names() []string {
	out := append([]string(nil), e.names...)
	sort.Strings(out)
	return out
}

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile         string
	envMap          map[string]string
	useSystemEnv    bool
	secret          SecretResolver
	requiredSecrets []string
}

// WithEnvFile overrides the dotenv path. An empty path disables it.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) { o.envFile = path }
}

// WithEnvMap supplies values that win over every other source.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) { o.envMap = values }
}

// WithoutSystemEnv ignores the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) { o.useSystemEnv = false }
}

// WithSecretResolver sets the resolver for secret:// values.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) { o.secret = resolver }
}

// WithRequiredSecrets marks secret fields (e.g. "Tax.APIKey") as mandatory.
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) { o.requiredSecrets = append(o.requiredSecrets, names...) }
}

// EnvironmentValues returns the merged key/value view Load would read, so
// callers can configure the secret fetcher before calling Load.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := newOptions(opts)
	dotenv, err := loadDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}
	values := make(map[string]string, len(dotenv))
	for k, v := range dotenv {
		values[k] = v
	}
	if options.useSystemEnv {
		for _, entry := range os.Environ() {
			if key, value, ok := strings.Cut(entry, "="); ok && strings.TrimSpace(key) != "" {
				values[strings.TrimSpace(key)] = value
			}
		}
	}
	for k, v := range options.envMap {
		values[k] = v
	}
	return values, nil
}

func newOptions(opts []Option) loaderOptions {
	options := loaderOptions{envFile: defaultEnvFile, useSystemEnv: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	return options
}

// Load builds the configuration from defaults, the dotenv file, the process
// environment and WithEnvMap, in increasing precedence.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := newOptions(opts)
	values, err := EnvironmentValues(opts...)
	if err != nil {
		return Config{}, err
	}
	env := lookup(values)

	cfg := Config{
		Server: ServerConfig{
			Port:         env.str("API_SERVER_PORT", defaultPort),
			ReadTimeout:  env.duration("API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: env.duration("API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  env.duration("API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Firebase: FirebaseConfig{
			ProjectID:       env.str("API_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: env.str("API_FIREBASE_CREDENTIALS_FILE", ""),
		},
		Firestore: FirestoreConfig{
			ProjectID:    env.str("API_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: env.str("API_FIRESTORE_EMULATOR_HOST", ""),
		},
		Postgres: PostgresConfig{
			DSN:      env.str("API_POSTGRES_DSN", ""),
			MaxConns: int32(env.integer("API_POSTGRES_MAX_CONNS", defaultPostgresMaxConns)),
		},
		Redis: RedisConfig{
			Addr:     env.str("API_REDIS_ADDR", ""),
			Password: env.str("API_REDIS_PASSWORD", ""),
			DB:       env.integer("API_REDIS_DB", 0),
		},
		Tax: TaxConfig{
			BaseURL: env.str("API_TAX_BASE_URL", defaultTaxBaseURL),
			APIKey:  env.str("API_TAX_API_KEY", ""),
			Timeout: env.duration("API_TAX_TIMEOUT", defaultTaxTimeout),
		},
		PubSub: PubSubConfig{
			ProjectID:   env.str("API_PUBSUB_PROJECT_ID", ""),
			LedgerTopic: env.str("API_PUBSUB_LEDGER_TOPIC", defaultLedgerTopic),
		},
		RateLimits: RateLimitConfig{
			PublicPerMinute: env.integer("API_RATELIMIT_PUBLIC_PER_MINUTE", defaultPublicPerMinute),
			Window:          env.duration("API_RATELIMIT_WINDOW", defaultRateLimitWindow),
		},
		Security: SecurityConfig{
			Environment: env.str("API_SECURITY_ENVIRONMENT", defaultSecurityEnv),
			OIDC: OIDCConfig{
				JWKSURL:  env.str("API_SECURITY_OIDC_JWKS_URL", defaultOIDCJWKSURL),
				Audience: env.str("API_SECURITY_OIDC_AUDIENCE", ""),
				Issuers:  env.csv("API_SECURITY_OIDC_ISSUERS", []string{"https://accounts.google.com", "accounts.google.com"}),
			},
		},
	}

	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}
	if cfg.PubSub.ProjectID == "" {
		cfg.PubSub.ProjectID = cfg.Firestore.ProjectID
	}

	resolved := make(map[string]string, 3)
	for name, field := range map[string]*string{
		fieldPostgresDSN:   &cfg.Postgres.DSN,
		fieldRedisPassword: &cfg.Redis.Password,
		fieldTaxAPIKey:     &cfg.Tax.APIKey,
	} {
		value, err := resolveSecret(ctx, *field, options.secret)
		if err != nil {
			return Config{}, fmt.Errorf("config: resolve %s: %w", name, err)
		}
		*field = value
		resolved[name] = value
	}

	if missing := findMissingSecrets(options.requiredSecrets, resolved); missing != nil {
		return Config{}, missing
	}
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, secretRefPrefix) && !strings.HasPrefix(trimmed, legacySecretRefPrefix) {
		return value, nil
	}
	ref := secretRefPrefix + strings.TrimPrefix(strings.TrimPrefix(trimmed, secretRefPrefix), legacySecretRefPrefix)
	if resolver == nil {
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, ref)
	if err != nil {
		return "", &SecretError{Ref: ref, Err: err}
	}
	return secret, nil
}

func validate(cfg Config) error {
	var missing []string
	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Firebase.ProjectID == "" {
		missing = append(missing, "Firebase.ProjectID")
	}
	if cfg.Postgres.DSN == "" {
		missing = append(missing, fieldPostgresDSN)
	}
	if cfg.Postgres.MaxConns <= 0 {
		missing = append(missing, "Postgres.MaxConns")
	}
	if cfg.Tax.BaseURL == "" {
		missing = append(missing, "Tax.BaseURL")
	}
	if cfg.Tax.Timeout <= 0 {
		missing = append(missing, "Tax.Timeout")
	}
	if cfg.RateLimits.PublicPerMinute <= 0 {
		missing = append(missing, "RateLimits.PublicPerMinute")
	}
	if cfg.RateLimits.Window <= 0 {
		missing = append(missing, "RateLimits.Window")
	}
	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func findMissingSecrets(required []string, resolved map[string]string) *MissingSecretsError {
	var names []string
	seen := make(map[string]struct{}, len(required))
	for _, name := range required {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if strings.TrimSpace(resolved[name]) == "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	return &MissingSecretsError{names: names}
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", path, err)
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), "\"'")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", path, err)
	}
	return values, nil
}

type lookup map[string]string

func (l lookup) str(key, fallback string) string {
	if value := strings.TrimSpace(l[key]); value != "" {
		return value
	}
	return fallback
}

func (l lookup) duration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(l[key])); err == nil {
		return d
	}
	return fallback
}

func (l lookup) csv(key string, fallback []string) []string {
	var out []string
	for _, part := range strings.Split(l[key], ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func (l lookup) integer(key string, fallback int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(l[key])); err == nil {
		return n
	}
	return fallback
}
