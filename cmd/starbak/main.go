package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/starbak/starbak/internal/backup"
	"github.com/starbak/starbak/internal/config"
	"github.com/starbak/starbak/internal/github"
	"github.com/starbak/starbak/internal/logging"
	"github.com/starbak/starbak/internal/notify"
	"github.com/starbak/starbak/internal/storage"
	"github.com/starbak/starbak/internal/vcs"
	"github.com/starbak/starbak/internal/version"
)

type rootFlags struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
}

type overrideFlags struct {
	GitHubToken    string
	GitHubUserID   string
	GitHubUsername string
	Storage        string
	LocalPath      string
	S3Endpoint     string
	S3AccountID    string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string
	S3Region       string
	S3UseSSL       string
	S3PathStyle    string
}

func main() {
	root := &rootFlags{}
	overrides := &overrideFlags{}

	rootCmd := &cobra.Command{
		Use:   "starbak",
		Short: "Back up starred GitHub repositories to object storage",
	}

	rootCmd.PersistentFlags().StringVar(&root.ConfigPath, "config", "", "Path to config file (yaml/toml/json or .enc)")
	rootCmd.PersistentFlags().StringVar(&root.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&root.LogFormat, "log-format", "", "Log format (json, console)")

	rootCmd.PersistentFlags().StringVar(&overrides.GitHubToken, "github-token", "", "GitHub API token")
	rootCmd.PersistentFlags().StringVar(&overrides.GitHubUserID, "github-user-id", "", "GitHub numeric user id (preferred identity)")
	rootCmd.PersistentFlags().StringVar(&overrides.GitHubUsername, "github-username", "", "GitHub username (fallback identity)")

	rootCmd.PersistentFlags().StringVar(&overrides.Storage, "storage", "", "Storage backend (s3, local)")
	rootCmd.PersistentFlags().StringVar(&overrides.LocalPath, "storage-path", "", "Local storage path")
	rootCmd.PersistentFlags().StringVar(&overrides.S3Endpoint, "s3-endpoint", "", "S3 endpoint (MinIO/R2)")
	rootCmd.PersistentFlags().StringVar(&overrides.S3AccountID, "s3-account-id", "", "Cloudflare R2 account id (derives the endpoint)")
	rootCmd.PersistentFlags().StringVar(&overrides.S3Bucket, "s3-bucket", "", "S3 bucket")
	rootCmd.PersistentFlags().StringVar(&overrides.S3AccessKey, "s3-access-key", "", "S3 access key")
	rootCmd.PersistentFlags().StringVar(&overrides.S3SecretKey, "s3-secret-key", "", "S3 secret key")
	rootCmd.PersistentFlags().StringVar(&overrides.S3Region, "s3-region", "", "S3 region")
	rootCmd.PersistentFlags().StringVar(&overrides.S3UseSSL, "s3-ssl", "", "Use SSL for S3 endpoint (true/false)")
	rootCmd.PersistentFlags().StringVar(&overrides.S3PathStyle, "s3-path-style", "", "Force path-style S3 (true/false)")

	rootCmd.AddCommand(newBackupCmd(root, overrides))
	rootCmd.AddCommand(newValidateCmd(root, overrides))
	rootCmd.AddCommand(newListCmd(root, overrides))
	rootCmd.AddCommand(newManifestCmd(root, overrides))
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newBackupCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	var dryRun bool
	var maxRepos int

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Back up every starred repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, store, err := setup(root, overrides)
			if err != nil {
				return err
			}
			client := github.NewClient(cfg.GitHub, logger)
			runner := backup.NewRunner(cfg, client, store, vcs.NewGit(), logger)
			notifier := notify.FromConfig(cfg.Notifications)

			if maxRepos == 0 {
				maxRepos = cfg.Backup.MaxRepos
			}

			ctx, cancel := context.WithTimeout(context.Background(), cfg.Global.OperationTimeout)
			defer cancel()

			start := time.Now()
			summary, err := runner.Run(ctx, backup.Options{DryRun: dryRun, MaxRepos: maxRepos})

			event := notify.Event{
				Status:    "success",
				Username:  cfg.GitHub.Username,
				StartedAt: start,
				EndedAt:   time.Now(),
				Duration:  time.Since(start).String(),
			}
			if err != nil {
				event.Status = "failed"
				event.Error = err.Error()
				event.Message = "starred repository backup failed"
			} else {
				event.BackupID = summary.BackupID
				event.Total = summary.Total
				event.Succeeded = summary.Succeeded
				event.Failed = summary.Failed
				event.Message = fmt.Sprintf("backed up %d/%d starred repositories", summary.Succeeded, summary.Total)
				if len(summary.Failed) > 0 {
					event.Status = "partial"
				}
			}
			if len(notifier.Targets) > 0 {
				if nerr := notifier.Notify(context.Background(), event); nerr != nil {
					logger.Warn().Err(nerr).Msg("notification failed")
				}
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Record manifest entries without cloning, uploading, or deleting")
	cmd.Flags().IntVar(&maxRepos, "max-repos", 0, "Maximum number of repositories to process (0 = all)")
	return cmd
}

func newValidateCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate identity resolution and storage connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, store, err := setup(root, overrides)
			if err != nil {
				return err
			}
			client := github.NewClient(cfg.GitHub, logger)
			runner := backup.NewRunner(cfg, client, store, vcs.NewGit(), logger)

			ctx, cancel := context.WithTimeout(context.Background(), cfg.Global.OperationTimeout)
			defer cancel()
			if err := runner.Validate(ctx); err != nil {
				return err
			}
			logger.Info().Msg("validation succeeded")
			return nil
		},
	}
}

func newListCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored backup archives",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, store, err := setup(root, overrides)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Global.OperationTimeout)
			defer cancel()

			items, err := store.List(ctx, "")
			if err != nil {
				return err
			}
			sort.Slice(items, func(i, j int) bool { return items[i].Modified.After(items[j].Modified) })
			for _, item := range items {
				if !strings.HasSuffix(item.Key, ".zip") {
					continue
				}
				fmt.Printf("%s\t%d\t%s\n", item.Key, item.Size, item.Modified.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func newManifestCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "manifest",
		Short: "Print the latest stored manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, store, err := setup(root, overrides)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Global.OperationTimeout)
			defer cancel()

			items, err := store.List(ctx, "manifest_backup_")
			if err != nil {
				return err
			}
			if len(items) == 0 {
				return fmt.Errorf("no manifest found in storage")
			}
			sort.Slice(items, func(i, j int) bool { return items[i].Modified.After(items[j].Modified) })

			reader, err := store.Get(ctx, items[0].Key)
			if err != nil {
				return err
			}
			defer reader.Close()
			_, err = io.Copy(os.Stdout, reader)
			return err
		},
	}
}

func newConfigCmd() *cobra.Command {
	var input string
	var output string
	var key string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Config utilities",
	}

	encrypt := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt a config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if input == "" || output == "" || key == "" {
				return fmt.Errorf("--input, --output, and --key are required")
			}
			return config.EncryptConfigFile(input, output, key)
		},
	}
	encrypt.Flags().StringVar(&input, "input", "", "Input config file")
	encrypt.Flags().StringVar(&output, "output", "", "Output encrypted config file")
	encrypt.Flags().StringVar(&key, "key", "", "Encryption key (base64 or hex)")

	cmd.AddCommand(encrypt)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("starbak %s (commit %s, built %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}

func setup(root *rootFlags, overrides *overrideFlags) (*config.Config, zerolog.Logger, storage.Storage, error) {
	cfg, err := config.Load(root.ConfigPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}
	applyOverrides(cfg, root, overrides)

	logger := logging.Configure(cfg.Global.LogLevel, cfg.Global.LogFormat)
	store, err := storage.New(cfg.Storage)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}
	return cfg, logger, store, nil
}

func applyOverrides(cfg *config.Config, root *rootFlags, overrides *overrideFlags) {
	if root.LogLevel != "" {
		cfg.Global.LogLevel = root.LogLevel
	}
	if root.LogFormat != "" {
		cfg.Global.LogFormat = root.LogFormat
	}

	if overrides.GitHubToken != "" {
		cfg.GitHub.Token = overrides.GitHubToken
	}
	if overrides.GitHubUserID != "" {
		cfg.GitHub.UserID = overrides.GitHubUserID
	}
	if overrides.GitHubUsername != "" {
		cfg.GitHub.Username = overrides.GitHubUsername
	}

	if overrides.Storage != "" {
		cfg.Storage.Backend = overrides.Storage
	}
	if overrides.LocalPath != "" {
		cfg.Storage.Local.Path = overrides.LocalPath
	}
	if overrides.S3Endpoint != "" {
		cfg.Storage.S3.Endpoint = overrides.S3Endpoint
	}
	if overrides.S3AccountID != "" {
		cfg.Storage.S3.AccountID = overrides.S3AccountID
		if overrides.S3Endpoint == "" {
			cfg.Storage.S3.Endpoint = overrides.S3AccountID + ".r2.cloudflarestorage.com"
			cfg.Storage.S3.UseSSL = true
		}
	}
	if overrides.S3Bucket != "" {
		cfg.Storage.S3.Bucket = overrides.S3Bucket
	}
	if overrides.S3AccessKey != "" {
		cfg.Storage.S3.AccessKey = overrides.S3AccessKey
	}
	if overrides.S3SecretKey != "" {
		cfg.Storage.S3.SecretKey = overrides.S3SecretKey
	}
	if overrides.S3Region != "" {
		cfg.Storage.S3.Region = overrides.S3Region
	}
	if overrides.S3UseSSL != "" {
		cfg.Storage.S3.UseSSL = strings.EqualFold(overrides.S3UseSSL, "true") || overrides.S3UseSSL == "1"
	}
	if overrides.S3PathStyle != "" {
		cfg.Storage.S3.ForcePathStyle = strings.EqualFold(overrides.S3PathStyle, "true") || overrides.S3PathStyle == "1"
	}

	cfg.Storage.Backend = strings.ToLower(cfg.Storage.Backend)
}
