package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/starbak/starbak/internal/archive"
	"github.com/starbak/starbak/internal/config"
	"github.com/starbak/starbak/internal/github"
	"github.com/starbak/starbak/internal/lock"
	"github.com/starbak/starbak/internal/manifest"
	"github.com/starbak/starbak/internal/naming"
	"github.com/starbak/starbak/internal/storage"
	"github.com/starbak/starbak/internal/util"
)

// Catalog lists the starred repositories of the configured account.
type Catalog interface {
	ResolveUser(ctx context.Context) (github.User, error)
	ListStarred(ctx context.Context) ([]github.Repo, error)
}

// Snapshotter produces a full local mirror of a repository.
type Snapshotter interface {
	Mirror(ctx context.Context, cloneURL, dest string) error
}

// Options are the per-invocation knobs of a run.
type Options struct {
	DryRun   bool
	MaxRepos int
}

// Summary is the final run report.
type Summary struct {
	BackupID  string
	Total     int
	Succeeded int
	Failed    []string
	DryRun    bool
	Manifest  *manifest.Manifest
}

// Runner drives the per-repository backup pipeline. Repositories are
// processed strictly one at a time, in catalog order; one repository's
// failure never aborts the batch.
type Runner struct {
	Cfg       *config.Config
	Catalog   Catalog
	Storage   storage.Storage
	Snapshots Snapshotter
	Archive   func(srcDir, destPath string) error
	Log       zerolog.Logger
	Now       func() time.Time
}

func NewRunner(cfg *config.Config, catalog Catalog, store storage.Storage, snapshots Snapshotter, log zerolog.Logger) *Runner {
	return &Runner{
		Cfg:       cfg,
		Catalog:   catalog,
		Storage:   store,
		Snapshots: snapshots,
		Archive:   archive.Create,
		Log:       log,
		Now:       time.Now,
	}
}

// Run executes the whole backup batch. Identity errors abort before any
// repository is processed; everything after that is recovered per
// repository and reported in the summary.
func (r *Runner) Run(ctx context.Context, opts Options) (*Summary, error) {
	guard, err := lock.Acquire(r.Cfg.Global.LockFile)
	if err != nil {
		return nil, err
	}
	defer guard.Release()

	user, err := r.Catalog.ResolveUser(ctx)
	if err != nil {
		return nil, err
	}

	repos, err := r.Catalog.ListStarred(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch starred repositories: %w", err)
	}
	if len(repos) == 0 {
		r.Log.Warn().Str("user", user.Login).Msg("no starred repositories found; nothing to back up")
		return &Summary{DryRun: opts.DryRun}, nil
	}
	if opts.MaxRepos > 0 && len(repos) > opts.MaxRepos {
		repos = repos[:opts.MaxRepos]
		r.Log.Info().Int("max", opts.MaxRepos).Msg("limiting batch")
	}

	man := manifest.New(user.Login, r.Now())
	summary := &Summary{BackupID: man.BackupInfo.BackupID, Total: len(repos), DryRun: opts.DryRun, Manifest: man}

	tempRoot, err := os.MkdirTemp(r.Cfg.Backup.TempDir, "starbak-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tempRoot); err != nil {
			r.Log.Warn().Err(err).Str("dir", tempRoot).Msg("temp cleanup failed")
		}
	}()

	for i := range repos {
		repo := &repos[i]
		repoID := naming.RepoID(repo.FullName, repo.CloneURL, r.Now())
		r.Log.Info().
			Int("n", i+1).
			Int("of", len(repos)).
			Str("repo", repo.FullName).
			Str("id", repoID).
			Msg("processing repository")

		if opts.DryRun {
			// Dry run records the slot but touches neither the bucket
			// nor the network.
			man.Record(repo, repoID, manifest.StatusDryRun, "", false)
			continue
		}

		status, archiveName, isUpdate := r.backupOne(ctx, repo, repoID, tempRoot)
		man.Record(repo, repoID, status, archiveName, isUpdate)
		if status == manifest.StatusSuccess {
			summary.Succeeded++
		} else {
			summary.Failed = append(summary.Failed, repo.Name)
		}
	}

	if !opts.DryRun {
		// Archives that made it to storage stay there even if the
		// manifest upload fails; the next run replaces them anyway.
		if err := man.Save(ctx, r.Storage, r.Log); err != nil {
			r.Log.Warn().Err(err).Msg("manifest persistence failed")
		}
	}

	event := r.Log.Info().
		Int("total", summary.Total).
		Int("succeeded", summary.Succeeded).
		Int("failed", len(summary.Failed))
	if len(summary.Failed) > 0 {
		event = event.Str("failed_repos", strings.Join(summary.Failed, ", "))
	}
	event.Msg("backup run finished")

	return summary, nil
}

// backupOne walks one repository through the pipeline:
// match -> mirror -> zip -> delete stale -> upload.
//
// A match never causes a skip: repository content may have changed since
// the last capture, so a fresh backup is always produced. The match only
// decides what to delete afterwards and whether the entry is an update.
func (r *Runner) backupOne(ctx context.Context, repo *github.Repo, repoID, tempRoot string) (manifest.Status, string, bool) {
	match := findExisting(ctx, r.Storage, repo.FullName, r.Log)
	if match.Exists {
		r.Log.Info().
			Str("repo", repo.FullName).
			Int("existing", len(match.Candidates)).
			Str("latest", match.Candidates[0].Key).
			Msg("found existing backups, creating fresh one")
	}

	mirrorDir := filepath.Join(tempRoot, repo.Name)
	zipPath := filepath.Join(tempRoot, naming.ArchiveName(repoID))
	defer func() {
		if err := os.RemoveAll(mirrorDir); err != nil {
			r.Log.Warn().Err(err).Str("dir", mirrorDir).Msg("snapshot cleanup failed")
		}
		if err := os.Remove(zipPath); err != nil && !os.IsNotExist(err) {
			r.Log.Warn().Err(err).Str("file", zipPath).Msg("archive cleanup failed")
		}
	}()

	if err := r.Snapshots.Mirror(ctx, repo.CloneURL, mirrorDir); err != nil {
		r.Log.Error().Err(err).Str("repo", repo.FullName).Msg("clone failed")
		return manifest.StatusFailedClone, "", false
	}

	if err := r.Archive(mirrorDir, zipPath); err != nil {
		// The prior backup is not deleted: never destroy a known-good
		// backup when the replacement could not be produced.
		r.Log.Error().Err(err).Str("repo", repo.FullName).Msg("packaging failed")
		return manifest.StatusFailedZip, "", false
	}

	for _, stale := range match.Candidates {
		if err := r.Storage.Delete(ctx, stale.Key); err != nil {
			r.Log.Warn().Err(err).Str("key", stale.Key).Msg("could not delete stale backup")
			continue
		}
		r.Log.Info().Str("key", stale.Key).Msg("deleted stale backup")
	}

	archiveName := naming.ArchiveName(repoID)
	uploadErr := util.Retry(ctx, r.Cfg.Backup.RetryCount, r.Cfg.Backup.RetryBackoff, func() error {
		file, err := os.Open(zipPath)
		if err != nil {
			return err
		}
		defer file.Close()
		info, err := file.Stat()
		if err != nil {
			return err
		}
		return r.Storage.Put(ctx, archiveName, file, info.Size(), "application/zip")
	})
	if uploadErr != nil {
		// Stale objects are already gone at this point; the repository
		// has no current backup until the next successful run.
		r.Log.Error().Err(uploadErr).Str("repo", repo.FullName).Msg("upload failed")
		return manifest.StatusFailedUpload, archiveName, match.Exists
	}

	r.Log.Info().Str("repo", repo.FullName).Str("key", archiveName).Msg("backup uploaded")
	return manifest.StatusSuccess, archiveName, match.Exists
}

// Validate checks the two external collaborators without touching any
// repository: the account must resolve and the bucket must list.
func (r *Runner) Validate(ctx context.Context) error {
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		_, err := r.Catalog.ResolveUser(egCtx)
		return err
	})
	eg.Go(func() error {
		_, err := r.Storage.List(egCtx, "")
		return err
	})
	return eg.Wait()
}
