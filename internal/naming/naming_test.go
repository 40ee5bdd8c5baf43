package naming

import (
	"strings"
	"testing"
	"time"
)

func TestRepoIDStableWithinDay(t *testing.T) {
	morning := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2024, 1, 1, 22, 30, 0, 0, time.UTC)
	a := RepoID("owner/repo", "https://example.com/owner/repo.git", morning)
	b := RepoID("owner/repo", "https://example.com/owner/repo.git", evening)
	if a != b {
		t.Fatalf("ids differ within the same day: %s vs %s", a, b)
	}
}

func TestRepoIDRollsWithDate(t *testing.T) {
	day1 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)
	a := RepoID("owner/repo", "https://example.com/owner/repo.git", day1)
	b := RepoID("owner/repo", "https://example.com/owner/repo.git", day2)
	if a == b {
		t.Fatalf("ids should differ across days: %s", a)
	}
}

func TestRepoIDFormat(t *testing.T) {
	when := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	id := RepoID("octo/widgets", "https://example.com/octo/widgets.git", when)
	if !strings.HasPrefix(id, "20240315_") {
		t.Fatalf("unexpected date prefix: %s", id)
	}
	if !strings.HasSuffix(id, "_octo_widgets") {
		t.Fatalf("unexpected slug suffix: %s", id)
	}
	parts := strings.SplitN(id, "_", 3)
	if len(parts) != 3 || len(parts[1]) != 8 {
		t.Fatalf("expected 8-char hash segment, got %s", id)
	}
}

func TestSuffixes(t *testing.T) {
	if got := CurrentSuffix("owner/repo"); got != "_owner_repo.zip" {
		t.Fatalf("unexpected current suffix: %s", got)
	}
	if got := LegacySuffix("owner/repo"); got != "_repo.zip" {
		t.Fatalf("unexpected legacy suffix: %s", got)
	}
	if got := LegacySuffix("repo"); got != "_repo.zip" {
		t.Fatalf("unexpected legacy suffix without owner: %s", got)
	}
}

func TestArchiveName(t *testing.T) {
	if got := ArchiveName("20240101_abcd1234_owner_repo"); got != "20240101_abcd1234_owner_repo.zip" {
		t.Fatalf("unexpected archive name: %s", got)
	}
}
