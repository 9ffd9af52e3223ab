package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID": "ff-dev",
		"API_POSTGRES_DSN":        "postgres://localhost/ff",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Firestore.ProjectID != "ff-dev" {
		t.Errorf("expected firestore project to follow firebase, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.PubSub.ProjectID != "ff-dev" || cfg.PubSub.LedgerTopic != defaultLedgerTopic {
		t.Errorf("unexpected pubsub config %+v", cfg.PubSub)
	}
	if cfg.Tax.Timeout != defaultTaxTimeout || cfg.Tax.BaseURL != defaultTaxBaseURL {
		t.Errorf("unexpected tax config %+v", cfg.Tax)
	}
	if cfg.RateLimits.PublicPerMinute != 60 || cfg.RateLimits.Window != time.Minute {
		t.Errorf("unexpected rate limits %+v", cfg.RateLimits)
	}
	if cfg.Postgres.MaxConns != defaultPostgresMaxConns {
		t.Errorf("unexpected max conns %d", cfg.Postgres.MaxConns)
	}
	if !cfg.Security.IsLocal() {
		t.Errorf("expected local environment by default")
	}
}

func TestLoadResolvesSecrets(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID":  "ff-prod",
		"API_POSTGRES_DSN":         "secret://postgres/dsn",
		"API_TAX_API_KEY":          "sm://tax/api-key",
		"API_REDIS_ADDR":           "redis:6379",
		"API_SECURITY_ENVIRONMENT": "prod",
		"API_SERVER_READ_TIMEOUT":  "20s",
		"API_RATELIMIT_WINDOW":     "30s",
		"API_POSTGRES_MAX_CONNS":   "25",
	}

	var refs []string
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		refs = append(refs, ref)
		switch ref {
		case "secret://postgres/dsn":
			return "postgres://prod/ff", nil
		case "secret://tax/api-key":
			return "tax-key", nil
		}
		return "", errors.New("unknown secret")
	})

	cfg, err := Load(context.Background(),
		WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""),
		WithSecretResolver(resolver),
		WithRequiredSecrets(fieldTaxAPIKey),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Postgres.DSN != "postgres://prod/ff" {
		t.Errorf("dsn not resolved: %s", cfg.Postgres.DSN)
	}
	if cfg.Tax.APIKey != "tax-key" {
		t.Errorf("tax key not resolved: %s", cfg.Tax.APIKey)
	}
	if len(refs) != 2 {
		t.Errorf("expected two secret lookups, got %v", refs)
	}
	if cfg.Security.IsLocal() {
		t.Errorf("prod must not be local")
	}
	if cfg.Server.ReadTimeout != 20*time.Second || cfg.RateLimits.Window != 30*time.Second {
		t.Errorf("duration overrides not applied: %+v %+v", cfg.Server, cfg.RateLimits)
	}
	if cfg.Postgres.MaxConns != 25 {
		t.Errorf("unexpected max conns %d", cfg.Postgres.MaxConns)
	}
}

func TestLoadSecretFailure(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID": "ff",
		"API_POSTGRES_DSN":        "secret://postgres/dsn",
	}
	boom := errors.New("boom")
	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""),
		WithSecretResolver(SecretResolverFunc(func(context.Context, string) (string, error) { return "", boom })))

	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %v", err)
	}
	if secretErr.Ref != "secret://postgres/dsn" || !errors.Is(err, boom) {
		t.Fatalf("unexpected secret error %+v", secretErr)
	}
}

func TestLoadMissingRequiredSecret(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID": "ff",
		"API_POSTGRES_DSN":        "postgres://x",
	}
	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""),
		WithRequiredSecrets(fieldTaxAPIKey, fieldTaxAPIKey))

	var missing *MissingSecretsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSecretsError, got %v", err)
	}
	if names := missing.Names(); len(names) != 1 || names[0] != fieldTaxAPIKey {
		t.Fatalf("unexpected names %v", names)
	}
	if strings.Contains(missing.Error(), fieldTaxAPIKey) {
		t.Fatalf("error message leaks secret name: %s", missing.Error())
	}
}

func TestLoadValidationError(t *testing.T) {
	_, err := Load(context.Background(), WithEnvMap(map[string]string{"API_TAX_TIMEOUT": "0s"}), WithoutSystemEnv(), WithEnvFile(""))

	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	want := map[string]bool{"Firebase.ProjectID": true, "Postgres.DSN": true, "Tax.Timeout": true}
	fields := validation.Fields()
	if len(fields) != len(want) {
		t.Fatalf("unexpected fields %v", fields)
	}
	for _, f := range fields {
		if !want[f] {
			t.Fatalf("unexpected field %s", f)
		}
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# local\nexport API_FIREBASE_PROJECT_ID=\"from-file\"\nAPI_POSTGRES_DSN=postgres://file\nAPI_SERVER_PORT=7000\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}

	cfg, err := Load(context.Background(), WithEnvFile(path), WithoutSystemEnv(),
		WithEnvMap(map[string]string{"API_SERVER_PORT": "9000"}))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Firebase.ProjectID != "from-file" {
		t.Errorf("dotenv value not read: %s", cfg.Firebase.ProjectID)
	}
	if cfg.Server.Port != "9000" {
		t.Errorf("env map must win over dotenv, got %s", cfg.Server.Port)
	}
}


func TestLoadOIDCSettings(t *testing.T) {
	base := map[string]string{
		"API_FIREBASE_PROJECT_ID": "ff",
		"API_POSTGRES_DSN":        "postgres://x",
	}
	cfg, err := Load(context.Background(), WithEnvMap(base), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Security.OIDC.JWKSURL != defaultOIDCJWKSURL || cfg.Security.OIDC.Audience != "" {
		t.Errorf("unexpected oidc defaults: %+v", cfg.Security.OIDC)
	}
	if len(cfg.Security.OIDC.Issuers) != 2 {
		t.Errorf("expected default issuers, got %v", cfg.Security.OIDC.Issuers)
	}

	base["API_SECURITY_OIDC_AUDIENCE"] = "https://pricing.internal"
	base["API_SECURITY_OIDC_ISSUERS"] = " https://accounts.google.com , ,https://cloud.google.com/iap"
	cfg, err = Load(context.Background(), WithEnvMap(base), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Security.OIDC.Audience != "https://pricing.internal" {
		t.Errorf("audience not applied: %q", cfg.Security.OIDC.Audience)
	}
	want := []string{"https://accounts.google.com", "https://cloud.google.com/iap"}
	if len(cfg.Security.OIDC.Issuers) != len(want) || cfg.Security.OIDC.Issuers[0] != want[0] || cfg.Security.OIDC.Issuers[1] != want[1] {
		t.Errorf("unexpected issuers %v", cfg.Security.OIDC.Issuers)
	}
}
