package directory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const (
	// DefaultURL is the masternode index the directory is fetched from.
	DefaultURL = "https://www.dashninja.pl/data/masternodeslistfull-0.json"

	// DefaultCacheFile is the local snapshot that takes priority over the
	// remote index.
	DefaultCacheFile = "masternodeslistfull-0.json"

	// DefaultTimeout bounds the whole HTTP request.
	DefaultTimeout = 30 * time.Second

	// maxErrorBody is how much of an error response body is kept in the
	// returned error.
	maxErrorBody = 512
)

// Source produces a raw directory snapshot.
type Source interface {
	// Name returns a human readable description of the source.
	Name() string

	// Fetch returns the snapshot body. The caller must close it.
	Fetch(ctx context.Context) (io.ReadCloser, error)
}

// SnapshotSaver is implemented by sources that keep a copy of a snapshot.
// The loader only hands over snapshots that parsed successfully.
type SnapshotSaver interface {
	SaveSnapshot(raw []byte) error
}

// FileSource reads the snapshot from a local file.
type FileSource struct {
	Path string
}

// A compile-time check to ensure FileSource implements Source.
var _ Source = (*FileSource)(nil)

// Name returns a human readable description of the source.
func (f *FileSource) Name() string {
	return fmt.Sprintf("local file %v", f.Path)
}

// Fetch opens the snapshot file.
func (f *FileSource) Fetch(_ context.Context) (io.ReadCloser, error) {
	return os.Open(f.Path)
}

// WebSource downloads the snapshot with a single HTTP GET.
type WebSource struct {
	// URL is the location of the snapshot.
	URL string

	// SaveTo, if set, receives a copy of every downloaded body that
	// parsed as a usable directory, so later runs can use it as a
	// FileSource.
	SaveTo string

	client *http.Client
}

// Compile-time checks to ensure WebSource implements Source and
// SnapshotSaver.
var (
	_ Source        = (*WebSource)(nil)
	_ SnapshotSaver = (*WebSource)(nil)
)

// NewWebSource creates a WebSource whose requests are bounded by timeout.
func NewWebSource(url string, timeout time.Duration) *WebSource {
	// Rather than use the default http.Client, we'll make a custom one
	// which will allow us to control how long we'll wait to read the
	// response from the service.
	netTransport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: timeout,
		}).DialContext,
		TLSHandshakeTimeout: timeout,
		Proxy:               http.ProxyFromEnvironment,
	}

	return &WebSource{
		URL: url,
		client: &http.Client{
			Timeout:   timeout,
			Transport: netTransport,
		},
	}
}

// Name returns a human readable description of the source.
func (w *WebSource) Name() string {
	return fmt.Sprintf("remote API %v", w.URL)
}

// Fetch downloads the snapshot. Any non-2xx status is an error.
func (w *WebSource) Fetch(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to query directory: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()

		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	return resp.Body, nil
}

// SaveSnapshot stores raw at SaveTo, if set. The snapshot is written to a
// temp file next to SaveTo and renamed into place so a later run never
// reads a partial cache.
func (w *WebSource) SaveSnapshot(raw []byte) error {
	if w.SaveTo == "" {
		return nil
	}

	tempFile, err := os.CreateTemp(filepath.Dir(w.SaveTo),
		filepath.Base(w.SaveTo)+".tmp-*")
	if err != nil {
		return fmt.Errorf("unable to create temp cache file: %w", err)
	}
	defer os.Remove(tempFile.Name())

	if _, err := tempFile.Write(raw); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("unable to write temp cache file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("unable to sync temp cache file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("unable to close temp cache file: %w", err)
	}

	if err := os.Rename(tempFile.Name(), w.SaveTo); err != nil {
		return fmt.Errorf("unable to save directory to %v: %w",
			w.SaveTo, err)
	}

	log.Infof("Saved directory snapshot to %v", w.SaveTo)

	return nil
}

// HTTPError is returned when the directory answers with a non-2xx status.
type HTTPError struct {
	StatusCode int
	Body       string
}

// Error returns the status together with the start of the response body.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("directory responded with %d %s: %s",
		e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// Config selects where the snapshot is loaded from.
type Config struct {
	// CacheFile is the local snapshot used when it exists.
	CacheFile string

	// URL is the remote index used when there is no local snapshot.
	URL string

	// Timeout bounds the remote request.
	Timeout time.Duration

	// SaveCache stores a downloaded snapshot at CacheFile.
	SaveCache bool
}

// ChooseSource prefers the cache file when it exists and falls back to the
// remote index otherwise.
func ChooseSource(cfg *Config) (Source, error) {
	if cfg.CacheFile != "" {
		info, err := os.Stat(cfg.CacheFile)
		switch {
		case err == nil && !info.IsDir():
			return &FileSource{Path: cfg.CacheFile}, nil

		case err != nil && !errors.Is(err, os.ErrNotExist):
			return nil, err
		}
	}

	if cfg.URL == "" {
		return nil, errors.New("no directory cache file and no URL")
	}

	web := NewWebSource(cfg.URL, cfg.Timeout)
	if cfg.SaveCache {
		web.SaveTo = cfg.CacheFile
	}

	return web, nil
}
