package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	retry "github.com/appleboy/go-httpretry"
	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/shelfx/internal/shared"
)

// TokenFunc returns the current bearer token, or "" when signed out.
type TokenFunc func() string

// TransportOpts configures a [Transport].
type TransportOpts struct {
	BaseURL           string
	Client            *http.Client
	Token             TokenFunc
	RequestsPerSecond float64
	// Retry wraps GET requests with exponential backoff.
	Retry  bool
	Logger *log.Logger
}

// Transport performs JSON requests against a Google API base URL.
//
// Every request carries the current bearer token when one is stored. Any 401
// response invokes the callback registered with [Transport.OnUnauthorized]
// before the error is returned to the caller.
type Transport struct {
	baseURL string
	client  *http.Client
	retry   *retry.Client
	token   TokenFunc
	limiter *rate.Limiter
	logger  *log.Logger

	mu             sync.RWMutex
	onUnauthorized func(ctx context.Context)
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// NewTransport creates a transport, defaulting to the public googleapis.com base URL.
func NewTransport(opts TransportOpts) (*Transport, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = googleAPIBaseURL
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Token == nil {
		opts.Token = func() string { return "" }
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(io.Discard)
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	t := &Transport{
		baseURL: opts.BaseURL,
		client:  opts.Client,
		token:   opts.Token,
		limiter: rate.NewLimiter(limit, 1),
		logger:  opts.Logger,
	}

	if opts.Retry {
		rc, err := retry.NewBackgroundClient(retry.WithHTTPClient(opts.Client))
		if err != nil {
			return nil, fmt.Errorf("failed to create retry client: %w", err)
		}
		t.retry = rc
	}
	return t, nil
}

// OnUnauthorized registers fn to run when a request receives HTTP 401.
//
// fn runs synchronously on the requesting goroutine. Requests whose context was
// built with [WithoutUnauthorizedHook] skip it.
func (t *Transport) OnUnauthorized(fn func(ctx context.Context)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onUnauthorized = fn
}

// Get performs a GET request and decodes a JSON body into result when non-nil.
func (t *Transport) Get(ctx context.Context, path string, query url.Values, result any) error {
	resp, err := t.Do(ctx, http.MethodGet, path, query)
	if err != nil {
		return err
	}
	return decode(resp, result)
}

// Post performs a body-less POST, as used by the mylibrary mutation endpoints.
func (t *Transport) Post(ctx context.Context, path string, query url.Values, result any) error {
	resp, err := t.Do(ctx, http.MethodPost, path, query)
	if err != nil {
		return err
	}
	return decode(resp, result)
}

// Do sends the request and returns the response for 2xx statuses, or an [*APIError].
func (t *Transport) Do(ctx context.Context, method, path string, query url.Values) (*APIResponse, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	fullURL := t.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token := t.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	var resp *http.Response
	if method == http.MethodGet && t.retry != nil {
		resp, err = t.retry.DoWithContext(ctx, req)
	} else {
		resp, err = t.client.Do(req)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", shared.ErrAPIRequest, method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	t.logger.Debug("api request", "method", method, "path", path, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := parseAPIError(resp.StatusCode, body)
		if apiErr.Status == http.StatusUnauthorized && !hookSuppressed(ctx) {
			t.mu.RLock()
			fn := t.onUnauthorized
			t.mu.RUnlock()
			if fn != nil {
				fn(ctx)
			}
		}
		return nil, apiErr
	}

	return &APIResponse{StatusCode: resp.StatusCode, Headers: resp.Header, Body: body}, nil
}

func decode(resp *APIResponse, result any) error {
	if result == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseAPIError reads both error shapes Google returns: the structured
// {"error": {"code", "message", "errors": [{"reason"}]}} and OAuth's
// {"error": "invalid_token", "error_description": "..."}.
func parseAPIError(status int, body []byte) *APIError {
	var envelope struct {
		Error            json.RawMessage `json:"error"`
		ErrorDescription string          `json:"error_description"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Error) == 0 {
		return newAPIError(status, "", http.StatusText(status))
	}

	var code string
	if err := json.Unmarshal(envelope.Error, &code); err == nil {
		return newAPIError(status, code, envelope.ErrorDescription)
	}

	var detail struct {
		Message string `json:"message"`
		Status  string `json:"status"`
		Errors  []struct {
			Reason  string `json:"reason"`
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(envelope.Error, &detail); err != nil {
		return newAPIError(status, "", http.StatusText(status))
	}

	reason := detail.Status
	if len(detail.Errors) > 0 && detail.Errors[0].Reason != "" {
		reason = detail.Errors[0].Reason
	}
	return newAPIError(status, reason, detail.Message)
}
