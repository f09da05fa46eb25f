package httpfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
)

// Adapter downloads remote media over HTTP, streaming straight to disk so
// arbitrarily large sources never get buffered in memory.
type Adapter struct {
	client *http.Client
}

func New(client *http.Client) *Adapter {
	if client == nil {
		// No client-level timeout: a whole-download deadline would cap the
		// size of fetchable sources. The caller bounds the call via ctx.
		client = &http.Client{}
	}
	return &Adapter{client: client}
}

func (a *Adapter) Fetch(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request for %q: %w", url, err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %q: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %q: unexpected status %d", url, resp.StatusCode)
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %q: %w", dest, err)
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(dest)
		return fmt.Errorf("stream %q to disk: %w", url, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %q: %w", dest, err)
	}
	return nil
}
