// Package fetch downloads data assets to local paths, skipping files that
// already exist.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/banshee-data/cloudrender/internal/httputil"
)

// IsURL reports whether the data source looks like a remote asset.
func IsURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Fetch downloads url to dest unless dest already exists. The download goes
// through a .partial file renamed into place only on success, so an aborted
// transfer never leaves a truncated asset behind.
func Fetch(ctx context.Context, client httputil.HTTPClient, url, dest string) error {
	if _, err := os.Stat(dest); err == nil {
		log.Printf("asset %s already present, skipping download", dest)
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat %s: %w", dest, err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create asset directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to fetch %s: status %d", url, resp.StatusCode)
	}

	partial := dest + ".partial"
	f, err := os.Create(partial)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", partial, err)
	}

	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(partial)
		return fmt.Errorf("failed to download %s: %w", url, err)
	}

	if err := os.Rename(partial, dest); err != nil {
		os.Remove(partial)
		return fmt.Errorf("failed to move asset into place: %w", err)
	}
	log.Printf("fetched %s (%d bytes) to %s", url, n, dest)
	return nil
}

// LocalPath maps a data source to a local file path: URLs are cached under
// cacheDir by basename, local paths pass through unchanged.
func LocalPath(source, cacheDir string) string {
	if !IsURL(source) {
		return source
	}
	base := filepath.Base(source)
	if base == "" || base == "." || base == "/" {
		base = "asset.npz"
	}
	return filepath.Join(cacheDir, base)
}
