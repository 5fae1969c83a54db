package artifact

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/otiai10/copy"
)

// Fetcher materializes an artifact location (path or URL) at a local path.
type Fetcher struct {
	Client *http.Client
}

func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{Client: &http.Client{Timeout: timeout}}
}

// Fetch copies or downloads location to dest, creating parent directories
// and replacing any existing file.
func (f *Fetcher) Fetch(ctx context.Context, location, dest string) error {
	if IsURL(location) {
		return f.Download(ctx, location, dest)
	}

	info, err := os.Stat(location)
	if err != nil {
		return fmt.Errorf("stat %s: %w", location, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected an archive", location)
	}
	if err := copy.Copy(location, dest); err != nil {
		return fmt.Errorf("copy %s to %s: %w", location, dest, err)
	}
	return nil
}

func (f *Fetcher) Download(ctx context.Context, rawURL, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: HTTP %d", rawURL, resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(dest)
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return out.Close()
}
