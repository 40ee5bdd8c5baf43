package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/starbak/starbak/internal/github"
	"github.com/starbak/starbak/internal/storage"
)

// Status is the terminal outcome of one repository's pipeline.
type Status string

const (
	StatusSuccess      Status = "success"
	StatusFailedClone  Status = "failed_clone"
	StatusFailedZip    Status = "failed_zip"
	StatusFailedUpload Status = "failed_upload"
	StatusDryRun       Status = "dry_run"
)

// Stored manifest objects are named manifest_{backupID}.json where the
// backup id is backup_{timestamp}; retention matches on this prefix.
const objectPrefix = "manifest_backup_"

const unknownLanguage = "Unknown"

type BackupInfo struct {
	CreatedAt      string `json:"created_at"`
	GithubUsername string `json:"github_username"`
	TotalRepos     int    `json:"total_repos"`
	BackupID       string `json:"backup_id"`
}

// Metadata is the flattened repository snapshot carried per entry. Field
// names match the manifests written by earlier runs.
type Metadata struct {
	Description   string           `json:"description"`
	Homepage      string           `json:"homepage"`
	Language      string           `json:"language"`
	Languages     map[string]int64 `json:"languages"`
	Topics        []string         `json:"topics"`
	StarsCount    int              `json:"stars_count"`
	ForksCount    int              `json:"forks_count"`
	WatchersCount int              `json:"watchers_count"`
	Size          int64            `json:"size"`
	CreatedAt     string           `json:"created_at"`
	UpdatedAt     string           `json:"updated_at"`
	PushedAt      string           `json:"pushed_at"`
	CloneURL      string           `json:"clone_url"`
	SSHURL        string           `json:"ssh_url"`
	HTMLURL       string           `json:"html_url"`
	License       string           `json:"license"`
	IsFork        bool             `json:"is_fork"`
	IsArchived    bool             `json:"is_archived"`
	IsPrivate     bool             `json:"is_private"`
	DefaultBranch string           `json:"default_branch"`
}

type OwnerInfo struct {
	Login   string `json:"login"`
	Type    string `json:"type"`
	HTMLURL string `json:"html_url"`
}

type Entry struct {
	OriginalName string               `json:"original_name"`
	FullName     string               `json:"full_name"`
	UniqueID     string               `json:"unique_id"`
	BackupStatus Status               `json:"backup_status"`
	ZipFilename  string               `json:"zip_filename,omitempty"`
	Metadata     Metadata             `json:"metadata"`
	Owner        OwnerInfo            `json:"owner"`
	Contributors []github.Contributor `json:"contributors"`
	BackedUpAt   string               `json:"backed_up_at"`
	IsUpdate     bool                 `json:"is_update"`
}

type StarredLists struct {
	ByLanguage map[string][]string `json:"by_language"`
	ByTopic    map[string][]string `json:"by_topic"`
}

// Manifest is the run-lifetime catalog of backup outcomes. It is owned
// by the run controller and mutated only by the orchestrator loop.
type Manifest struct {
	BackupInfo   BackupInfo        `json:"backup_info"`
	StarredLists StarredLists      `json:"starred_lists"`
	Repositories map[string]Entry  `json:"repositories"`
	Lookup       map[string]string `json:"lookup"`
}

func New(username string, now time.Time) *Manifest {
	return &Manifest{
		BackupInfo: BackupInfo{
			CreatedAt:      now.Format(time.RFC3339),
			GithubUsername: username,
			BackupID:       "backup_" + now.Format("20060102_150405"),
		},
		StarredLists: StarredLists{
			ByLanguage: map[string][]string{},
			ByTopic:    map[string][]string{},
		},
		Repositories: map[string]Entry{},
		Lookup:       map[string]string{},
	}
}

// Record appends the outcome for one repository: the entry itself, the
// lookup keys (short name collides last-write-wins; full name stays
// unambiguous), and the language/topic index buckets. The total counter
// counts attempts, so failures and dry runs are included.
func (m *Manifest) Record(repo *github.Repo, repoID string, status Status, zipFilename string, isUpdate bool) {
	m.Repositories[repoID] = Entry{
		OriginalName: repo.Name,
		FullName:     repo.FullName,
		UniqueID:     repoID,
		BackupStatus: status,
		ZipFilename:  zipFilename,
		Metadata: Metadata{
			Description:   repo.Description,
			Homepage:      repo.Homepage,
			Language:      repo.Language,
			Languages:     repo.Languages,
			Topics:        repo.Topics,
			StarsCount:    repo.StargazersCount,
			ForksCount:    repo.ForksCount,
			WatchersCount: repo.WatchersCount,
			Size:          repo.Size,
			CreatedAt:     repo.CreatedAt,
			UpdatedAt:     repo.UpdatedAt,
			PushedAt:      repo.PushedAt,
			CloneURL:      repo.CloneURL,
			SSHURL:        repo.SSHURL,
			HTMLURL:       repo.HTMLURL,
			License:       repo.LicenseName(),
			IsFork:        repo.Fork,
			IsArchived:    repo.Archived,
			IsPrivate:     repo.Private,
			DefaultBranch: repo.DefaultBranch,
		},
		Owner: OwnerInfo{
			Login:   repo.Owner.Login,
			Type:    repo.Owner.Type,
			HTMLURL: repo.Owner.HTMLURL,
		},
		Contributors: repo.Contributors,
		BackedUpAt:   time.Now().Format(time.RFC3339),
		IsUpdate:     isUpdate,
	}

	m.Lookup[repo.Name] = repoID
	m.Lookup[repo.FullName] = repoID

	language := repo.Language
	if language == "" {
		language = unknownLanguage
	}
	m.StarredLists.ByLanguage[language] = append(m.StarredLists.ByLanguage[language], repoID)
	for _, topic := range repo.Topics {
		m.StarredLists.ByTopic[topic] = append(m.StarredLists.ByTopic[topic], repoID)
	}

	m.BackupInfo.TotalRepos++
}

// ObjectKey is the storage key this manifest persists under.
func (m *Manifest) ObjectKey() string {
	return "manifest_" + m.BackupInfo.BackupID + ".json"
}

// Save uploads the manifest and then garbage-collects every other stored
// manifest object (single-latest retention). GC failures are warnings;
// the new manifest is never rolled back.
func (m *Manifest) Save(ctx context.Context, store storage.Storage, log zerolog.Logger) error {
	payload, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	key := m.ObjectKey()
	if err := store.Put(ctx, key, bytes.NewReader(payload), int64(len(payload)), "application/json"); err != nil {
		return fmt.Errorf("upload manifest: %w", err)
	}
	log.Info().Str("key", key).Int("repos", len(m.Repositories)).Msg("manifest uploaded")

	objects, err := store.List(ctx, objectPrefix)
	if err != nil {
		log.Warn().Err(err).Msg("could not list old manifests for cleanup")
		return nil
	}
	for _, obj := range objects {
		if obj.Key == key || !strings.HasSuffix(obj.Key, ".json") {
			continue
		}
		if err := store.Delete(ctx, obj.Key); err != nil {
			log.Warn().Err(err).Str("key", obj.Key).Msg("could not delete old manifest")
			continue
		}
		log.Debug().Str("key", obj.Key).Msg("deleted old manifest")
	}
	return nil
}
