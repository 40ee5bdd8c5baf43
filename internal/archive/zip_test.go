package archive

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestCreateRoundTrip(t *testing.T) {
	src := t.TempDir()
	if err := os.MkdirAll(filepath.Join(src, "refs", "heads"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	files := map[string]string{
		"HEAD":            "ref: refs/heads/main\n",
		"config":          "[core]\n\tbare = true\n",
		"refs/heads/main": "0123456789abcdef0123456789abcdef01234567\n",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(src, filepath.FromSlash(name)), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	dest := filepath.Join(t.TempDir(), "snapshot.zip")
	if err := Create(src, dest); err != nil {
		t.Fatalf("create: %v", err)
	}

	reader, err := zip.OpenReader(dest)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer reader.Close()

	got := map[string]string{}
	for _, entry := range reader.File {
		rc, err := entry.Open()
		if err != nil {
			t.Fatalf("open entry %s: %v", entry.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read entry %s: %v", entry.Name, err)
		}
		got[entry.Name] = string(data)
	}

	if len(got) != len(files) {
		t.Fatalf("expected %d entries, got %d: %v", len(files), len(got), got)
	}
	for name, body := range files {
		if got[name] != body {
			t.Fatalf("entry %s mismatch: %q", name, got[name])
		}
	}
}

func TestCreateMissingSource(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.zip")
	if err := Create(filepath.Join(t.TempDir(), "nope"), dest); err == nil {
		t.Fatal("expected error for missing source tree")
	}
}
