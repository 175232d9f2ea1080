package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// BackoffConfig controls exponential backoff behaviour. MaxRetries of 0
// means a single attempt.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultBackoff returns the backoff used by every client with the given retry count.
func DefaultBackoff(maxRetries int) BackoffConfig {
	return BackoffConfig{
		MaxRetries:      maxRetries,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// HTTPClientConfig bundles HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client  *http.Client
	Backoff BackoffConfig
}

// Options configures one provider client.
type Options struct {
	BaseURL string
	APIKey  string
	HTTP    HTTPClientConfig
}

// TransportError is a non-2xx response or a network failure.
type TransportError struct {
	Provider   string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// PayloadError is a 2xx response whose body is malformed, lacks required
// fields, or carries a provider-reported error.
type PayloadError struct {
	Provider string
	Reason   string
	Err      error
}

func (e *PayloadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: invalid payload: %s: %v", e.Provider, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: invalid payload: %s", e.Provider, e.Reason)
}

func (e *PayloadError) Unwrap() error { return e.Err }

// ErrMissingAPIKey is returned without any network call when a client's key
// is empty or still a placeholder.
var ErrMissingAPIKey = errors.New("api key is not configured")

var (
	errRateLimited   = errors.New("rate limited")
	errServerError   = errors.New("server error")
	errUnexpected    = errors.New("unexpected status code")
	errCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

func newCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
}

// checkAPIKey rejects empty keys and the "your_..._here" placeholders shipped as defaults.
func checkAPIKey(provider, key string) error {
	k := strings.TrimSpace(key)
	if k == "" || (strings.HasPrefix(k, "your_") && strings.HasSuffix(k, "_here")) {
		return fmt.Errorf("%s: %w", provider, ErrMissingAPIKey)
	}
	return nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// client is the transport shared by all providers.
type client struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func newClient(name string, opts Options) *client {
	cfg := opts.HTTP
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.Backoff.InitialInterval == 0 {
		cfg.Backoff = DefaultBackoff(cfg.Backoff.MaxRetries)
	}
	return &client{
		name:    name,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		httpCfg: cfg,
		circuit: newCircuitBreaker(name),
	}
}

func (c *client) endpoint(path string, values url.Values) string {
	u := c.baseURL + path
	if len(values) > 0 {
		u += "?" + values.Encode()
	}
	return u
}

// getJSON issues a GET and decodes the 2xx body into out.
func (c *client) getJSON(ctx context.Context, path string, values url.Values, out any) error {
	u := c.endpoint(path, values)
	return c.do(ctx, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, u, nil)
	}, out)
}

// postJSON issues a POST with a JSON body and decodes the 2xx body into out.
func (c *client) postJSON(ctx context.Context, path string, values url.Values, body, out any) error {
	u := c.endpoint(path, values)
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", c.name, err)
	}
	return c.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, u, bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, out)
}

func (c *client) do(ctx context.Context, buildRequest func() (*http.Request, error), out any) error {
	resp, err := doRequestWithResilience(ctx, c.name, c.httpCfg, c.circuit, buildRequest)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &PayloadError{Provider: c.name, Reason: "decode body", Err: err}
	}
	return nil
}

// doRequestWithResilience executes the HTTP request with retries, exponential backoff,
// and a circuit breaker. Any failure is returned as a *TransportError.
func doRequestWithResilience(
	ctx context.Context,
	provider string,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) (*http.Response, error) {
	if cfg.Client == nil {
		return nil, &TransportError{Provider: provider, Err: errNoHTTPClient}
	}
	if cfg.Backoff.MaxRetries < 0 || (cfg.Backoff.MaxRetries > 0 && cfg.Backoff.InitialInterval <= 0) {
		return nil, &TransportError{Provider: provider, Err: errInvalidConfig}
	}

	var attempt int

	for {
		if ctx.Err() != nil {
			return nil, &TransportError{Provider: provider, Err: ctx.Err()}
		}

		req, err := buildRequest()
		if err != nil {
			return nil, &TransportError{Provider: provider, Err: err}
		}

		// Ensure the request obeys context cancellation.
		req = req.WithContext(ctx)

		result, err := cb.Execute(func() (interface{}, error) {
			resp, execErr := cfg.Client.Do(req)
			if execErr != nil {
				return nil, &TransportError{Provider: provider, Err: execErr}
			}

			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return resp, nil
			}

			// Drain so the connection can be reused.
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()

			switch {
			case resp.StatusCode == http.StatusTooManyRequests:
				return nil, &TransportError{Provider: provider, StatusCode: resp.StatusCode, Err: errRateLimited}
			case resp.StatusCode >= 500:
				return nil, &TransportError{Provider: provider, StatusCode: resp.StatusCode, Err: errServerError}
			default:
				return nil, &TransportError{Provider: provider, StatusCode: resp.StatusCode, Err: errUnexpected}
			}
		})

		if err == nil {
			resp, ok := result.(*http.Response)
			if !ok {
				return nil, &TransportError{Provider: provider, Err: fmt.Errorf("unexpected result type from circuit breaker")}
			}
			return resp, nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &TransportError{Provider: provider, Err: fmt.Errorf("%w: %v", errCircuitOpen, err)}
		}

		if attempt >= cfg.Backoff.MaxRetries {
			return nil, err
		}

		delay := cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > cfg.Backoff.MaxInterval && cfg.Backoff.MaxInterval > 0 {
			delay = cfg.Backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &TransportError{Provider: provider, Err: ctx.Err()}
		case <-timer.C:
		}

		attempt++
	}
}
