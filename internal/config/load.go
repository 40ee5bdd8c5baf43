package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/starbak/starbak/internal/cryptoutil"
)

const envPrefix = "STARBAK"

// Load reads configuration from a file (optionally encrypted), env vars,
// and defaults. The legacy env names of the original cron deployment
// (GH_* and R2_*) are honored when the namespaced values are absent.
func Load(path string) (*Config, error) {
	vp := viper.New()
	vp.SetEnvPrefix(envPrefix)
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	setDefaults(vp)

	resolved, err := resolveConfigPath(path)
	if err != nil {
		return nil, err
	}

	if resolved != "" {
		data, readErr := os.ReadFile(resolved)
		if readErr != nil {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
		if isEncryptedPath(resolved) {
			if typ := configTypeFromPath(resolved); typ != "" {
				vp.SetConfigType(typ)
			}
			key := os.Getenv("STARBAK_CONFIG_KEY")
			if key == "" {
				key = vp.GetString("global.config_passphrase")
			}
			if key == "" {
				return nil, errors.New("config file is encrypted but STARBAK_CONFIG_KEY is not set")
			}
			parsed, keyErr := cryptoutil.ParseKey(key)
			if keyErr != nil {
				return nil, keyErr
			}
			plain, decErr := cryptoutil.DecryptConfig(data, parsed)
			if decErr != nil {
				return nil, fmt.Errorf("decrypt config: %w", decErr)
			}
			if err := vp.ReadConfig(bytes.NewReader(plain)); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		} else {
			vp.SetConfigFile(resolved)
			if err := vp.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := vp.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	expandEnv(&cfg)
	applyLegacyEnv(&cfg)
	applyPostLoadDefaults(&cfg)
	return &cfg, nil
}

func resolveConfigPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	if envPath := os.Getenv("STARBAK_CONFIG"); envPath != "" {
		return envPath, nil
	}

	candidates := []string{
		"starbak.yaml",
		"starbak.yml",
		"starbak.toml",
		"starbak.json",
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}

	configDir, err := os.UserConfigDir()
	if err == nil {
		base := filepath.Join(configDir, "starbak")
		for _, c := range candidates {
			p := filepath.Join(base, c)
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
		for _, c := range []string{"starbak.yaml.enc", "starbak.yml.enc", "starbak.toml.enc"} {
			p := filepath.Join(base, c)
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
	}

	return "", nil
}

func isEncryptedPath(path string) bool {
	return strings.HasSuffix(path, ".enc") || strings.HasSuffix(path, ".encrypted")
}

func configTypeFromPath(path string) string {
	switch {
	case strings.HasSuffix(path, ".toml") || strings.HasSuffix(path, ".toml.enc") || strings.HasSuffix(path, ".toml.encrypted"):
		return "toml"
	case strings.HasSuffix(path, ".json") || strings.HasSuffix(path, ".json.enc") || strings.HasSuffix(path, ".json.encrypted"):
		return "json"
	default:
		return "yaml"
	}
}

func setDefaults(vp *viper.Viper) {
	vp.SetDefault("global.log_level", "info")
	vp.SetDefault("global.log_format", "json")
	vp.SetDefault("global.operation_timeout", "4h")
	vp.SetDefault("github.api_base_url", "https://api.github.com")
	vp.SetDefault("github.page_size", 100)
	vp.SetDefault("github.top_contributors", 10)
	vp.SetDefault("backup.retry_count", 3)
	vp.SetDefault("backup.retry_backoff", "10s")
	vp.SetDefault("storage.backend", "s3")
	vp.SetDefault("storage.local.path", "./backups")
}

func applyPostLoadDefaults(cfg *Config) {
	if cfg.Global.OperationTimeout == 0 {
		cfg.Global.OperationTimeout = 4 * time.Hour
	}
	if cfg.Backup.RetryBackoff == 0 {
		cfg.Backup.RetryBackoff = 10 * time.Second
	}
	if cfg.GitHub.PageSize <= 0 {
		cfg.GitHub.PageSize = 100
	}
	if cfg.GitHub.TopContributors <= 0 {
		cfg.GitHub.TopContributors = 10
	}
	if cfg.GitHub.APIBaseURL == "" {
		cfg.GitHub.APIBaseURL = "https://api.github.com"
	}

	// Cloudflare R2: derive the S3 endpoint from the account id.
	if cfg.Storage.S3.Endpoint == "" && cfg.Storage.S3.AccountID != "" {
		cfg.Storage.S3.Endpoint = cfg.Storage.S3.AccountID + ".r2.cloudflarestorage.com"
		cfg.Storage.S3.UseSSL = true
		if cfg.Storage.S3.Region == "" {
			cfg.Storage.S3.Region = "auto"
		}
	}
}

func expandEnv(cfg *Config) {
	cfg.GitHub.Token = os.ExpandEnv(cfg.GitHub.Token)
	cfg.Storage.S3.AccessKey = os.ExpandEnv(cfg.Storage.S3.AccessKey)
	cfg.Storage.S3.SecretKey = os.ExpandEnv(cfg.Storage.S3.SecretKey)
	cfg.Storage.S3.SessionToken = os.ExpandEnv(cfg.Storage.S3.SessionToken)
	for i := range cfg.Notifications.Webhooks {
		cfg.Notifications.Webhooks[i].URL = os.ExpandEnv(cfg.Notifications.Webhooks[i].URL)
	}
}

func applyLegacyEnv(cfg *Config) {
	fallback := func(dst *string, env string) {
		if *dst == "" {
			*dst = os.Getenv(env)
		}
	}
	fallback(&cfg.GitHub.Token, "GH_TOKEN")
	fallback(&cfg.GitHub.UserID, "GH_USER_ID")
	fallback(&cfg.GitHub.Username, "GH_USERNAME")
	fallback(&cfg.Storage.S3.AccountID, "R2_ACCOUNT_ID")
	fallback(&cfg.Storage.S3.AccessKey, "R2_ACCESS_KEY_ID")
	fallback(&cfg.Storage.S3.SecretKey, "R2_SECRET_ACCESS_KEY")
	fallback(&cfg.Storage.S3.Bucket, "R2_BUCKET_NAME")
}
