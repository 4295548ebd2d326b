package bing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/couchcryptid/geocode-orchestrator/internal/domain"
)

// maxBodyBytes caps provider response bodies. Boundary payloads for large
// countries run to a few megabytes.
const maxBodyBytes = 32 << 20

// HTTPTransport sends provider requests over plain HTTP GET. In-flight
// requests are aborted when their context is cancelled.
type HTTPTransport struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPTransport creates a transport with the given per-request timeout.
func NewHTTPTransport(timeout time.Duration, logger *slog.Logger) *HTTPTransport {
	return &HTTPTransport{
		httpClient: newOutboundClient(timeout),
		logger:     logger,
	}
}

// Abortable reports that cancelled requests are torn down.
func (t *HTTPTransport) Abortable() bool { return true }

// Send fetches rawURL and returns the response body.
func (t *HTTPTransport) Send(ctx context.Context, rawURL string) ([]byte, error) {
	return fetch(ctx, t.httpClient, rawURL)
}

func fetch(ctx context.Context, client *http.Client, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTransportFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: bing API error: status %d: %s", domain.ErrTransportFailure, resp.StatusCode, body)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", domain.ErrTransportFailure, err)
	}
	return body, nil
}

func newOutboundClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}
