package bing

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/geocode-orchestrator/internal/domain"
	"github.com/google/uuid"
)

// callbackPrefix namespaces generated callback names.
const callbackPrefix = "GeocodeCallback_"

// CallbackTransport loads provider responses the way a script-tag loader
// does: each request names a callback, the provider answers with
// name(payload), and the payload is handed to whoever registered the name.
// A request cannot be withdrawn once issued, so Abortable is false and the
// queue discards late results instead.
type CallbackTransport struct {
	httpClient *http.Client
	logger     *slog.Logger

	mu      sync.Mutex
	waiting map[string]chan []byte
}

// NewCallbackTransport creates a callback transport with the given
// per-request timeout.
func NewCallbackTransport(timeout time.Duration, logger *slog.Logger) *CallbackTransport {
	return &CallbackTransport{
		httpClient: newOutboundClient(timeout),
		logger:     logger,
		waiting:    make(map[string]chan []byte),
	}
}

// Abortable reports that issued requests always run to completion.
func (t *CallbackTransport) Abortable() bool { return false }

// Send registers a callback, requests rawURL with it, and returns the payload
// of the invocation naming that callback. A payload pushed through Deliver
// while the request runs takes precedence. Cancellation of ctx is ignored.
func (t *CallbackTransport) Send(ctx context.Context, rawURL string) ([]byte, error) {
	name := callbackPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	q := u.Query()
	q.Set("jsonp", name)
	u.RawQuery = q.Encode()

	ch := t.register(name)
	defer t.unregister(name)

	script, fetchErr := fetch(context.WithoutCancel(ctx), t.httpClient, u.String())
	select {
	case payload := <-ch:
		return payload, nil
	default:
	}
	if fetchErr != nil {
		return nil, fetchErr
	}

	got, payload, err := unwrapCallback(script)
	if err != nil {
		return nil, err
	}
	if got != name {
		t.logger.Warn("callback name mismatch", "callback", name, "got", got)
		return nil, fmt.Errorf("%w: response invokes callback %q, want %q", domain.ErrTransportFailure, got, name)
	}
	return payload, nil
}

// Deliver evaluates an externally received callback-wrapped body and hands
// the payload to the request waiting on that callback name.
func (t *CallbackTransport) Deliver(script []byte) error {
	name, payload, err := unwrapCallback(script)
	if err != nil {
		return err
	}

	t.mu.Lock()
	ch, ok := t.waiting[name]
	delete(t.waiting, name)
	t.mu.Unlock()

	if !ok {
		t.logger.Warn("callback not registered", "callback", name)
		return fmt.Errorf("%w: unknown callback %q", domain.ErrTransportFailure, name)
	}
	ch <- payload
	return nil
}

// Pending returns the number of callbacks still waiting for a payload.
func (t *CallbackTransport) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.waiting)
}

func (t *CallbackTransport) register(name string) chan []byte {
	ch := make(chan []byte, 1)
	t.mu.Lock()
	t.waiting[name] = ch
	t.mu.Unlock()
	return ch
}

func (t *CallbackTransport) unregister(name string) {
	t.mu.Lock()
	delete(t.waiting, name)
	t.mu.Unlock()
}

// unwrapCallback splits `name(payload);` into its parts.
func unwrapCallback(script []byte) (string, []byte, error) {
	s := bytes.TrimSpace(script)
	s = bytes.TrimSuffix(s, []byte(";"))
	open := bytes.IndexByte(s, '(')
	if open <= 0 || s[len(s)-1] != ')' {
		return "", nil, fmt.Errorf("%w: response is not a callback invocation", domain.ErrTransportFailure)
	}
	name := string(bytes.TrimSpace(s[:open]))
	return name, s[open+1 : len(s)-1], nil
}
