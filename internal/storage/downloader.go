package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"
)

// BatchDownloader fetches a bounded set of source objects in parallel,
// bounded by a weighted semaphore. Every object either lands on local
// disk or is reported in Errors; a failed download never disappears
// silently.
type BatchDownloader struct {
	storage     ObjectStorage
	concurrency int
	downloadDir string
}

// BatchResult contains the outcome of a batch download.
type BatchResult struct {
	// LocalPaths maps object path to the local file it was saved as.
	LocalPaths map[string]string
	// Errors maps object path to the download failure, if any.
	Errors map[string]error
}

// NewBatchDownloader creates a batch downloader writing into downloadDir.
func NewBatchDownloader(storage ObjectStorage, concurrency int, downloadDir string) *BatchDownloader {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &BatchDownloader{
		storage:     storage,
		concurrency: concurrency,
		downloadDir: downloadDir,
	}
}

// Download fetches all objects, at most concurrency at a time.
func (b *BatchDownloader) Download(ctx context.Context, objectPaths []string) (*BatchResult, error) {
	result := &BatchResult{
		LocalPaths: make(map[string]string),
		Errors:     make(map[string]error),
	}
	if len(objectPaths) == 0 {
		return result, nil
	}

	sem := semaphore.NewWeighted(int64(b.concurrency))
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, objectPath := range objectPaths {
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			result.Errors[objectPath] = fmt.Errorf("semaphore acquire failed: %w", err)
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			defer sem.Release(1)

			localPath := b.localPath(path)
			err := b.storage.Download(ctx, path, localPath)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors[path] = err
				return
			}
			result.LocalPaths[path] = localPath
		}(objectPath)
	}

	wg.Wait()
	return result, nil
}

// localPath maps an object path to a flat local filename, replacing
// separators so distinct objects never collide.
func (b *BatchDownloader) localPath(objectPath string) string {
	flat := strings.NewReplacer("/", "_", "=", "-").Replace(objectPath)
	return filepath.Join(b.downloadDir, flat)
}
