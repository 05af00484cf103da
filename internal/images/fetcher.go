package images

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/xkcd-vk/comicposter/internal/apperr"
)

// Fetcher downloads comic images to local files
type Fetcher struct {
	HTTPClient *http.Client
}

// NewFetcher creates a new image fetcher. A nil client gets a 30 second timeout.
func NewFetcher(httpClient *http.Client) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 30 * time.Second,
		}
	}
	return &Fetcher{
		HTTPClient: httpClient,
	}
}

// Fetch downloads url and writes the complete body to destination,
// replacing any existing file.
func (f *Fetcher) Fetch(ctx context.Context, url, destination string) error {
	const op = "image download"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create image request: %w", err)
	}

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return apperr.Transport(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperr.Status(op, resp.StatusCode, string(body))
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Transport(op, err)
	}

	if err := os.WriteFile(destination, imageData, 0644); err != nil {
		return fmt.Errorf("failed to write image file: %w", err)
	}

	slog.Debug("Downloaded image", "url", url, "path", destination, "bytes", len(imageData))
	return nil
}
