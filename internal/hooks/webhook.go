package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"

	"github.com/kilimcininkoroglu/dogan/internal/version"
)

// WebhookHook posts the payload as JSON
type WebhookHook struct {
	URL     string
	Events  []Event
	Headers map[string]string
	client  *http.Client
}

// WebhookOption configures a WebhookHook
type WebhookOption func(*WebhookHook) error

// WithEvents restricts the events that are posted
func WithEvents(events ...Event) WebhookOption {
	return func(h *WebhookHook) error {
		if len(events) > 0 {
			h.Events = events
		}
		return nil
	}
}

// WithHeader adds a request header
func WithHeader(key, value string) WebhookOption {
	return func(h *WebhookHook) error {
		h.Headers[key] = value
		return nil
	}
}

// WithTimeout sets the request timeout
func WithTimeout(d time.Duration) WebhookOption {
	return func(h *WebhookHook) error {
		h.client.Timeout = d
		return nil
	}
}

// WithProxy sends requests through a socks5:// proxy
func WithProxy(proxyURL string) WebhookOption {
	return func(h *WebhookHook) error {
		if proxyURL == "" {
			return nil
		}
		u, err := url.Parse(proxyURL)
		if err != nil {
			return fmt.Errorf("parsing webhook proxy: %w", err)
		}
		dialer, err := proxy.FromURL(u, proxy.Direct)
		if err != nil {
			return fmt.Errorf("webhook proxy: %w", err)
		}

		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.Proxy = nil
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
		h.client.Transport = transport
		return nil
	}
}

// NewWebhookHook creates a webhook for url. Without WithEvents it posts
// every event.
func NewWebhookHook(url string, opts ...WebhookOption) (*WebhookHook, error) {
	h := &WebhookHook{
		URL:     url,
		Events:  []Event{EventStart, EventProgress, EventComplete, EventError},
		Headers: make(map[string]string),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *WebhookHook) Name() string {
	return "webhook:" + h.URL
}

func (h *WebhookHook) Execute(ctx context.Context, payload *Payload) error {
	if !eventSet(h.Events).has(payload.Event) {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "dogan-webhook/"+version.Short())
	for key, value := range h.Headers {
		req.Header.Set(key, value)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
