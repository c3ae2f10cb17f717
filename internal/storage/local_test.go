package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeLocalFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

func TestLocalStorage_UploadDownloadRoundTrip(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}
	ctx := context.Background()

	src := writeLocalFile(t, t.TempDir(), "events.json", `{"event_id":"evt_001"}`)
	if err := store.Upload(ctx, src, "raw/clickstream/events.json"); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	exists, err := store.Exists(ctx, "raw/clickstream/events.json")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Fatalf("uploaded object reported absent")
	}

	dest := filepath.Join(t.TempDir(), "fetched.json")
	if err := store.Download(ctx, "raw/clickstream/events.json", dest); err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("failed to read downloaded file: %v", err)
	}
	if string(data) != `{"event_id":"evt_001"}` {
		t.Errorf("round trip corrupted content: %q", data)
	}
}

func TestLocalStorage_DownloadMissing(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}

	err = store.Download(context.Background(), "raw/absent.json", filepath.Join(t.TempDir(), "out"))
	if !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestLocalStorage_DeleteIsIdempotent(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}
	ctx := context.Background()

	src := writeLocalFile(t, t.TempDir(), "a.json", "{}")
	if err := store.Upload(ctx, src, "raw/a.json"); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if err := store.Delete(ctx, "raw/a.json"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, "raw/a.json"); err != nil {
		t.Errorf("repeat Delete of missing object failed: %v", err)
	}
	exists, err := store.Exists(ctx, "raw/a.json")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Errorf("deleted object still reported present")
	}
}

func TestLocalStorage_ListObjects(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}
	ctx := context.Background()

	staging := t.TempDir()
	for _, object := range []string{
		"raw/clickstream/b.json",
		"raw/clickstream/a.json",
		"raw/other/c.json",
	} {
		src := writeLocalFile(t, staging, filepath.Base(object), "{}")
		if err := store.Upload(ctx, src, object); err != nil {
			t.Fatalf("Upload failed: %v", err)
		}
	}

	objects, err := store.ListObjects(ctx, "raw/clickstream")
	if err != nil {
		t.Fatalf("ListObjects failed: %v", err)
	}
	want := []string{"raw/clickstream/a.json", "raw/clickstream/b.json"}
	if len(objects) != len(want) {
		t.Fatalf("expected %d objects, got %v", len(want), objects)
	}
	for i := range want {
		if objects[i] != want[i] {
			t.Errorf("objects[%d] = %s, want %s", i, objects[i], want[i])
		}
	}

	empty, err := store.ListObjects(ctx, "raw/nothing")
	if err != nil {
		t.Fatalf("ListObjects failed for missing prefix: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no objects under missing prefix, got %v", empty)
	}
}

func TestBatchDownloader_FetchesAllObjects(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}
	ctx := context.Background()

	staging := t.TempDir()
	objects := []string{
		"raw/clickstream/part-0001.json",
		"raw/clickstream/part-0002.json",
		"raw/clickstream/part-0003.json",
	}
	for _, object := range objects {
		src := writeLocalFile(t, staging, filepath.Base(object), "{}")
		if err := store.Upload(ctx, src, object); err != nil {
			t.Fatalf("Upload failed: %v", err)
		}
	}

	downloader := NewBatchDownloader(store, 2, t.TempDir())
	result, err := downloader.Download(ctx, objects)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected download errors: %v", result.Errors)
	}
	if len(result.LocalPaths) != len(objects) {
		t.Fatalf("expected %d local files, got %d", len(objects), len(result.LocalPaths))
	}
	seen := make(map[string]bool)
	for object, local := range result.LocalPaths {
		if seen[local] {
			t.Errorf("local path collision for %s", object)
		}
		seen[local] = true
		if _, err := os.Stat(local); err != nil {
			t.Errorf("local file for %s missing: %v", object, err)
		}
	}
}

func TestBatchDownloader_ReportsFailures(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}
	ctx := context.Background()

	src := writeLocalFile(t, t.TempDir(), "good.json", "{}")
	if err := store.Upload(ctx, src, "raw/good.json"); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	downloader := NewBatchDownloader(store, 2, t.TempDir())
	result, err := downloader.Download(ctx, []string{"raw/good.json", "raw/missing.json"})
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if _, ok := result.LocalPaths["raw/good.json"]; !ok {
		t.Errorf("good object missing from results")
	}
	if !errors.Is(result.Errors["raw/missing.json"], ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound for missing object, got %v", result.Errors["raw/missing.json"])
	}
}
