package intake

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
)

// download fetches sourceURL into dest through a temp file so an
// interrupted transfer never leaves a plausible-looking partial source.
// The HTTP status is returned when a response was received so callers can
// classify failures.
func download(ctx context.Context, client *http.Client, sourceURL, dest string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Upscale-Go/0.1.0")

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, fmt.Errorf("unexpected HTTP status: %s", resp.Status)
	}

	tmp := dest + ".download"
	file, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("create download file: %w", err)
	}

	_, copyErr := io.Copy(file, resp.Body)
	closeErr := file.Close()
	if copyErr != nil {
		os.Remove(tmp)
		return resp.StatusCode, fmt.Errorf("write download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmp)
		return resp.StatusCode, fmt.Errorf("close download: %w", closeErr)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return resp.StatusCode, fmt.Errorf("move download into place: %w", err)
	}
	return resp.StatusCode, nil
}
