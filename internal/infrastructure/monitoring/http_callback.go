package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/smilemakc/cil/internal/domain"
	"github.com/smilemakc/cil/internal/infrastructure/websocket"
)

// HTTPCallbackObserver POSTs a JSON LogEvent payload to a configured webhook
// URL for every strand append/update, for operators who want push
// notifications without holding open the websocket subscription feed.
type HTTPCallbackObserver struct {
	callbackURL string
	client *http.Client
	headers map[string]string
	timeout time.Duration
	mu sync.RWMutex
	enabled bool
}

// HTTPCallbackObserverConfig configures the HTTP callback observer.
type HTTPCallbackObserverConfig struct {
	CallbackURL string
	Timeout time.Duration
	Headers map[string]string
	Client *http.Client
}

// NewHTTPCallbackObserver builds an HTTPCallbackObserver from config.
func NewHTTPCallbackObserver(config HTTPCallbackObserverConfig) (*HTTPCallbackObserver, error) {
	if config.CallbackURL == "" {
		return nil, fmt.Errorf("callback URL is required")
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	client := config.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	headers := make(map[string]string)
	for k, v := range config.Headers {
		headers[k] = v
	}
	if _, ok := headers["Content-Type"]; !ok {
		headers["Content-Type"] = "application/json"
	}

	return &HTTPCallbackObserver{
		callbackURL: config.CallbackURL, client: client, headers: headers,
		timeout: timeout, enabled: true,
	}, nil
}

// SetEnabled enables or disables delivery.
func (o *HTTPCallbackObserver) SetEnabled(enabled bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.enabled = enabled
}

// IsEnabled reports whether delivery is enabled.
func (o *HTTPCallbackObserver) IsEnabled() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.enabled
}

func (o *HTTPCallbackObserver) sendEvent(payload any) error {
	o.mu.RLock()
	enabled := o.enabled
	url := o.callbackURL
	client := o.client
	headers := make(map[string]string, len(o.headers))
	for k, v := range o.headers {
		headers[k] = v
	}
	o.mu.RUnlock()

	if !enabled {
		return nil
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback returned non-success status: %d", resp.StatusCode)
	}
	return nil
}

// OnStrandAppended implements websocket.StrandObserver.
func (o *HTTPCallbackObserver) OnStrandAppended(s *domain.Strand) {
	_ = o.sendEvent(NewStrandAppendedEvent(s))
}

// OnStrandUpdated implements websocket.StrandObserver.
func (o *HTTPCallbackObserver) OnStrandUpdated(s *domain.Strand) {
	_ = o.sendEvent(NewStrandUpdatedEvent(s))
}

var _ websocket.StrandObserver = (*HTTPCallbackObserver)(nil)
