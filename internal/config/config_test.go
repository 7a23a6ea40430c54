package config

import (
	"os"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	os.Setenv("MONGODB_URI", "mongodb://localhost:27017/testdb")
	os.Setenv("MONGODB_DATABASE", "docvault_test")
	os.Setenv("REDIS_HOST", "localhost")
	os.Setenv("REDIS_PORT", "6379")
	os.Setenv("JWT_SECRET", "testsecret123456789012345678901234")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.MongoDB.URI == "" || cfg.Redis.Host == "" {
		t.Fatalf("unexpected empty config values: %+v", cfg)
	}
	if cfg.MinIO.Bucket != "docvault" {
		t.Fatalf("expected default bucket, got %q", cfg.MinIO.Bucket)
	}
	if cfg.JWT.AccessTokenTTL <= 0 || cfg.JWT.RefreshTokenTTL <= 0 {
		t.Fatalf("token TTL defaults missing: %+v", cfg.JWT)
	}
}

func TestLoadConfigRequiresSecretOrIssuer(t *testing.T) {
	os.Unsetenv("JWT_SECRET")
	os.Unsetenv("OIDC_ISSUER")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error when neither JWT_SECRET nor OIDC_ISSUER set")
	}
	os.Setenv("JWT_SECRET", "testsecret123456789012345678901234")
}
