package storage

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestLocalRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewLocal(t.TempDir())

	if err := store.Put(ctx, "20240101_abcd1234_owner_repo.zip", strings.NewReader("payload"), -1, "application/zip"); err != nil {
		t.Fatalf("put: %v", err)
	}

	exists, err := store.Exists(ctx, "20240101_abcd1234_owner_repo.zip")
	if err != nil || !exists {
		t.Fatalf("exists = %v, err = %v", exists, err)
	}

	reader, err := store.Get(ctx, "20240101_abcd1234_owner_repo.zip")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("unexpected payload: %q", data)
	}

	infos, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 1 || infos[0].Key != "20240101_abcd1234_owner_repo.zip" {
		t.Fatalf("unexpected listing: %+v", infos)
	}

	if err := store.Delete(ctx, "20240101_abcd1234_owner_repo.zip"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	exists, err = store.Exists(ctx, "20240101_abcd1234_owner_repo.zip")
	if err != nil || exists {
		t.Fatalf("object should be gone, exists = %v, err = %v", exists, err)
	}
}

func TestLocalListPrefix(t *testing.T) {
	ctx := context.Background()
	store := NewLocal(t.TempDir())

	for _, key := range []string{"manifest_backup_20240101_000000.json", "20240101_abcd1234_owner_repo.zip"} {
		if err := store.Put(ctx, key, strings.NewReader("x"), -1, ""); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}

	infos, err := store.List(ctx, "manifest_backup_")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 1 || infos[0].Key != "manifest_backup_20240101_000000.json" {
		t.Fatalf("unexpected listing: %+v", infos)
	}
}
