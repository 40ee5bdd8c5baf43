package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "starbak.yaml", "github:\n  username: octocat\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.GitHub.PageSize != 100 {
		t.Fatalf("unexpected page size: %d", cfg.GitHub.PageSize)
	}
	if cfg.GitHub.TopContributors != 10 {
		t.Fatalf("unexpected contributor limit: %d", cfg.GitHub.TopContributors)
	}
	if cfg.GitHub.APIBaseURL != "https://api.github.com" {
		t.Fatalf("unexpected api base url: %s", cfg.GitHub.APIBaseURL)
	}
	if cfg.Storage.Backend != "s3" {
		t.Fatalf("unexpected backend: %s", cfg.Storage.Backend)
	}
	if cfg.Backup.RetryCount != 3 {
		t.Fatalf("unexpected retry count: %d", cfg.Backup.RetryCount)
	}
}

func TestLoadDerivesR2Endpoint(t *testing.T) {
	path := writeConfig(t, "starbak.yaml", "storage:\n  s3:\n    account_id: abc123\n    bucket: gh-starred-backups\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Storage.S3.Endpoint != "abc123.r2.cloudflarestorage.com" {
		t.Fatalf("unexpected endpoint: %s", cfg.Storage.S3.Endpoint)
	}
	if !cfg.Storage.S3.UseSSL {
		t.Fatal("expected ssl for derived R2 endpoint")
	}
	if cfg.Storage.S3.Region != "auto" {
		t.Fatalf("unexpected region: %s", cfg.Storage.S3.Region)
	}
}

func TestLoadLegacyEnvFallback(t *testing.T) {
	t.Setenv("GH_TOKEN", "legacy-token")
	t.Setenv("GH_USER_ID", "12345")
	t.Setenv("R2_BUCKET_NAME", "legacy-bucket")
	path := writeConfig(t, "starbak.yaml", "global:\n  log_level: debug\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.GitHub.Token != "legacy-token" {
		t.Fatalf("unexpected token: %s", cfg.GitHub.Token)
	}
	if cfg.GitHub.UserID != "12345" {
		t.Fatalf("unexpected user id: %s", cfg.GitHub.UserID)
	}
	if cfg.Storage.S3.Bucket != "legacy-bucket" {
		t.Fatalf("unexpected bucket: %s", cfg.Storage.S3.Bucket)
	}
}

func TestLoadEncryptedConfig(t *testing.T) {
	key := base64.StdEncoding.EncodeToString(make([]byte, 32))
	plain := writeConfig(t, "starbak.yaml", "github:\n  username: octocat\n")
	sealed := plain + ".enc"
	if err := EncryptConfigFile(plain, sealed, key); err != nil {
		t.Fatalf("encrypt config: %v", err)
	}

	t.Setenv("STARBAK_CONFIG_KEY", key)
	cfg, err := Load(sealed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.GitHub.Username != "octocat" {
		t.Fatalf("unexpected username: %s", cfg.GitHub.Username)
	}
}
