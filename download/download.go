// Package download holds the HTTP transfer helpers shared by the stream and platform downloaders.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// StatusError is returned for a response outside the 2xx range.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// CreateFile creates (or truncates) the named file, creating parent directories as needed.
func CreateFile(filename string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return nil, err
	}
	return os.Create(filename)
}

// SaveStream copies stream into the named file, stopping early if ctx is cancelled.
func SaveStream(ctx context.Context, filename string, stream io.Reader) (int64, error) {
	f, err := CreateFile(filename)
	if err != nil {
		return 0, fmt.Errorf("failed to open target file: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, NewReader(ctx, stream))
	if err != nil {
		return n, fmt.Errorf("failed to save stream: %w", err)
	}
	if err := f.Close(); err != nil {
		return n, fmt.Errorf("failed to save stream: %w", err)
	}
	return n, nil
}

// Open performs a GET request and returns the response body, which the caller must close. Any non-2xx response is
// a *StatusError.
func Open(ctx context.Context, client *http.Client, url string) (io.ReadCloser, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	return resp.Body, nil
}

// Get fetches url and returns the whole body.
func Get(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	body, err := Open(ctx, client, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	data, err := io.ReadAll(NewReader(ctx, body))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return data, nil
}

// SaveURL fetches url into the named file.
func SaveURL(ctx context.Context, client *http.Client, url string, filename string) (int64, error) {
	body, err := Open(ctx, client, url)
	if err != nil {
		return 0, err
	}
	defer body.Close()
	return SaveStream(ctx, filename, body)
}
