package dht

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/dpc/rostra/pkg/rostra"
)

// HTTPTransport is a Transport that PUTs and GETs packets against a single
// shared rendezvous server, keyed by RostraId. It is not the real
// pkarr/mainline DHT network — no BitTorrent-mainline-DHT client exists
// anywhere in this module's dependency corpus, and this package never
// fabricates one. HTTPTransport exists so cmd/rostra-node has something
// real to run against out of the box; production deployments are expected
// to supply their own Transport backed by an actual DHT client.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
}

// NewHTTPTransport returns a Transport that stores packets on the
// rendezvous server at baseURL (e.g. "http://localhost:8787").
func NewHTTPTransport(baseURL string) *HTTPTransport {
	return &HTTPTransport{baseURL: baseURL, client: http.DefaultClient}
}

func (t *HTTPTransport) Publish(ctx context.Context, id rostra.RostraId, raw []byte, ttlSecs uint32) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, t.url(id), bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("dht: building publish request: %w", err)
	}
	req.Header.Set("X-Rostra-TTL-Seconds", fmt.Sprintf("%d", ttlSecs))

	resp, err := t.client.Do(req)
	if err != nil {
		return &ResolveError{Source: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("dht: rendezvous publish returned %s", resp.Status)
	}
	return nil
}

func (t *HTTPTransport) Fetch(ctx context.Context, id rostra.RostraId) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.url(id), nil)
	if err != nil {
		return nil, fmt.Errorf("dht: building fetch request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &ResolveError{Source: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dht: rendezvous fetch returned %s", resp.Status)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("dht: reading fetch response: %w", err)
	}
	return raw, nil
}

func (t *HTTPTransport) url(id rostra.RostraId) string {
	return t.baseURL + "/rostra/v0/packet/" + id.String()
}
