package manifest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/starbak/starbak/internal/github"
	"github.com/starbak/starbak/internal/storage"
)

func sampleRepo(owner, name, language string, topics ...string) *github.Repo {
	return &github.Repo{
		Name:     name,
		FullName: owner + "/" + name,
		CloneURL: "https://example.com/" + owner + "/" + name + ".git",
		Language: language,
		Topics:   topics,
		Owner:    github.Owner{Login: owner, Type: "User"},
	}
}

func TestRecordCountsAttempts(t *testing.T) {
	m := New("octocat", time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))

	m.Record(sampleRepo("octo", "alpha", "Go"), "id-alpha", StatusSuccess, "id-alpha.zip", false)
	m.Record(sampleRepo("octo", "beta", "Go"), "id-beta", StatusFailedClone, "", false)
	m.Record(sampleRepo("octo", "gamma", "Go"), "id-gamma", StatusDryRun, "", false)

	if m.BackupInfo.TotalRepos != 3 {
		t.Fatalf("total should count attempts, got %d", m.BackupInfo.TotalRepos)
	}
	if len(m.Repositories) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(m.Repositories))
	}
	if m.Repositories["id-beta"].BackupStatus != StatusFailedClone {
		t.Fatalf("unexpected status: %s", m.Repositories["id-beta"].BackupStatus)
	}
	if m.Repositories["id-beta"].ZipFilename != "" {
		t.Fatalf("failed clone should have no archive name")
	}
}

func TestLookupShortNameLastWriteWins(t *testing.T) {
	m := New("octocat", time.Now())

	m.Record(sampleRepo("alice", "tool", "Go"), "id-alice", StatusSuccess, "id-alice.zip", false)
	m.Record(sampleRepo("bob", "tool", "Rust"), "id-bob", StatusSuccess, "id-bob.zip", false)

	if m.Lookup["tool"] != "id-bob" {
		t.Fatalf("short name should point at the later repo, got %s", m.Lookup["tool"])
	}
	if m.Lookup["alice/tool"] != "id-alice" || m.Lookup["bob/tool"] != "id-bob" {
		t.Fatalf("full names must stay unambiguous: %v", m.Lookup)
	}
}

func TestIndexesAndSentinelLanguage(t *testing.T) {
	m := New("octocat", time.Now())

	m.Record(sampleRepo("octo", "alpha", "", "cli", "backup"), "id-alpha", StatusSuccess, "id-alpha.zip", false)
	m.Record(sampleRepo("octo", "beta", "Go", "cli"), "id-beta", StatusSuccess, "id-beta.zip", true)

	if got := m.StarredLists.ByLanguage[unknownLanguage]; len(got) != 1 || got[0] != "id-alpha" {
		t.Fatalf("missing language should land in the sentinel bucket: %v", got)
	}
	if got := m.StarredLists.ByTopic["cli"]; len(got) != 2 {
		t.Fatalf("expected both repos under cli topic: %v", got)
	}
	if !m.Repositories["id-beta"].IsUpdate {
		t.Fatal("is_update not recorded")
	}
}

func TestSaveReplacesOldManifests(t *testing.T) {
	ctx := context.Background()
	store := storage.NewLocal(t.TempDir())

	// Prior-run leftovers plus an archive that must survive.
	seed := []string{
		"manifest_backup_20230101_000000.json",
		"manifest_backup_20230601_120000.json",
		"20230601_abcd1234_owner_repo.zip",
	}
	for _, key := range seed {
		if err := store.Put(ctx, key, strings.NewReader("old"), -1, ""); err != nil {
			t.Fatalf("seed %s: %v", key, err)
		}
	}

	m := New("octocat", time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	m.Record(sampleRepo("octo", "alpha", "Go"), "id-alpha", StatusSuccess, "id-alpha.zip", false)

	if err := m.Save(ctx, store, zerolog.Nop()); err != nil {
		t.Fatalf("save: %v", err)
	}

	if exists, _ := store.Exists(ctx, m.ObjectKey()); !exists {
		t.Fatalf("new manifest missing: %s", m.ObjectKey())
	}
	for _, key := range seed[:2] {
		if exists, _ := store.Exists(ctx, key); exists {
			t.Fatalf("old manifest not deleted: %s", key)
		}
	}
	if exists, _ := store.Exists(ctx, seed[2]); !exists {
		t.Fatal("archive object must not be touched by manifest cleanup")
	}
}

func TestObjectKeyFormat(t *testing.T) {
	m := New("octocat", time.Date(2024, 3, 15, 9, 30, 45, 0, time.UTC))
	if m.ObjectKey() != "manifest_backup_20240315_093045.json" {
		t.Fatalf("unexpected key: %s", m.ObjectKey())
	}
}
