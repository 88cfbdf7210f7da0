package dataset

import (
	"context"
	"fmt"
	"os"

	"github.com/cavaliergopher/grab/v3"
)

// FetchResult reports one download attempt. Err is set when that URL
// failed; Path and Size are only meaningful when Err is nil.
type FetchResult struct {
	URL  string `json:"url"`
	Path string `json:"path,omitempty"`
	Size int64  `json:"size,omitempty"`
	Err  error  `json:"-"`
}

// Fetch downloads exported shards into destDir, one request per URL.
// Downloads are resumable; a partially downloaded shard is picked up where
// it left off. A failed URL does not stop the remaining downloads: its
// failure is recorded on the result, and the returned error summarizes
// how many URLs failed.
func Fetch(ctx context.Context, destDir string, urls []string) ([]FetchResult, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("no URLs to fetch")
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("create destination directory: %w", err)
	}

	client := grab.NewClient()
	results := make([]FetchResult, 0, len(urls))
	failed := 0

	for _, url := range urls {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		result := FetchResult{URL: url}
		req, err := grab.NewRequest(destDir, url)
		if err != nil {
			result.Err = fmt.Errorf("build request: %w", err)
		} else {
			resp := client.Do(req.WithContext(ctx))
			if err := resp.Err(); err != nil {
				result.Err = fmt.Errorf("download: %w", err)
			} else {
				result.Path = resp.Filename
				result.Size = resp.Size()
			}
		}

		if result.Err != nil {
			failed++
		}
		results = append(results, result)
	}

	if failed > 0 {
		return results, fmt.Errorf("%d of %d downloads failed", failed, len(urls))
	}
	return results, nil
}
