package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/logging"
)

const (
	DefaultTimeout = 30 * time.Second

	// Access tokens expiring within refreshLeeway are refreshed before use.
	refreshLeeway = 30 * time.Second
	maxPages      = 100
)

type HTTPClient struct {
	baseURL string
	http    *http.Client
	log     logging.Logger
	now     func() time.Time

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

type Option func(*HTTPClient)

func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *HTTPClient) { c.http = h }
}

func WithTokens(access, refresh string) Option {
	return func(c *HTTPClient) {
		c.accessToken = access
		c.refreshToken = refresh
	}
}

func WithLogger(l logging.Logger) Option {
	return func(c *HTTPClient) { c.log = l }
}

// NewHTTPClient returns a client for the API rooted at baseURL.
func NewHTTPClient(baseURL string, opts ...Option) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid api url %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid api url %q: scheme and host required", baseURL)
	}
	c := &HTTPClient{
		baseURL: strings.TrimRight(u.String(), "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		log:     logging.NewDiscard(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) Tokens() (access, refresh string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken, c.refreshToken
}

func (c *HTTPClient) SetTokens(access, refresh string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = access
	c.refreshToken = refresh
}

// Ping probes the health endpoint. Any answer below 500 counts as reachable,
// including 401 and 404 from servers without a health route.
func (c *HTTPClient) Ping(ctx context.Context) error {
	access, _ := c.Tokens()
	status, body, err := c.send(ctx, http.MethodGet, c.resolve(PathHealth, nil), nil, access)
	if err != nil {
		return err
	}
	if status >= 500 {
		return mapStatus(status, body)
	}
	return nil
}

type tokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

func (c *HTTPClient) Login(ctx context.Context, username, password string) error {
	payload, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	status, body, err := c.send(ctx, http.MethodPost, c.resolve(PathToken, nil), payload, "")
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return mapStatus(status, body)
	}
	var tokens tokenPair
	if err := json.Unmarshal(body, &tokens); err != nil {
		return fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokens.Access == "" {
		return fmt.Errorf("token response carried no access token")
	}
	c.SetTokens(tokens.Access, tokens.Refresh)
	return nil
}

func (c *HTTPClient) Checkout(ctx context.Context, req *CheckoutRequest) (*CheckoutResponse, error) {
	body, err := c.do(ctx, http.MethodPost, PathCheckout, nil, req)
	if err != nil {
		return nil, err
	}
	var resp CheckoutResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode checkout response: %w", err)
	}
	return &resp, nil
}

func (c *HTTPClient) Checkin(ctx context.Context, req *CheckinRequest) (*CheckinResponse, error) {
	body, err := c.do(ctx, http.MethodPost, PathCheckin, nil, req)
	if err != nil {
		return nil, err
	}
	var resp CheckinResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode checkin response: %w", err)
	}
	return &resp, nil
}

func (c *HTTPClient) List(ctx context.Context, resource string, params url.Values) ([]json.RawMessage, error) {
	var out []json.RawMessage
	ref := resource
	for page := 0; ref != ""; page++ {
		if page == maxPages {
			return nil, fmt.Errorf("failed to list %s: more than %d pages", resource, maxPages)
		}
		body, err := c.do(ctx, http.MethodGet, ref, params, nil)
		if err != nil {
			return nil, err
		}
		results, next, err := decodePage(body)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", resource, err)
		}
		out = append(out, results...)
		// next already carries the query
		ref, params = next, nil
	}
	return out, nil
}

func (c *HTTPClient) Create(ctx context.Context, resource string, body any) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, resource, nil, body)
}

func (c *HTTPClient) Update(ctx context.Context, resource string, id int64, body any) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPatch, Detail(resource, id), nil, body)
}

func (c *HTTPClient) Delete(ctx context.Context, resource string, id int64) error {
	_, err := c.do(ctx, http.MethodDelete, Detail(resource, id), nil, nil)
	return err
}

// do sends an authenticated request. A 401 triggers one token refresh and a
// single retry of the original request.
func (c *HTTPClient) do(ctx context.Context, method, ref string, params url.Values, body any) ([]byte, error) {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		payload = b
	}
	target := c.resolve(ref, params)

	c.refreshIfExpiring(ctx)

	access, refresh := c.Tokens()
	status, respBody, err := c.send(ctx, method, target, payload, access)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized && refresh != "" {
		if rerr := c.refresh(ctx); rerr != nil {
			c.log.Warn(ctx, "token refresh failed", "error", rerr)
			return nil, mapStatus(status, respBody)
		}
		access, _ = c.Tokens()
		status, respBody, err = c.send(ctx, method, target, payload, access)
		if err != nil {
			return nil, err
		}
	}

	if status < 200 || status >= 300 {
		return nil, mapStatus(status, respBody)
	}
	return respBody, nil
}

func (c *HTTPClient) send(ctx context.Context, method, target string, payload []byte, token string) (int, []byte, error) {
	var rdr io.Reader
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: failed to read response: %w", ErrUnavailable, err)
	}
	c.log.Debug(ctx, "http round trip", "method", method, "url", target, "status", resp.StatusCode)
	return resp.StatusCode, b, nil
}

func (c *HTTPClient) refresh(ctx context.Context) error {
	_, refresh := c.Tokens()
	if refresh == "" {
		return ErrUnauthorized
	}
	payload, err := json.Marshal(map[string]string{"refresh": refresh})
	if err != nil {
		return err
	}
	status, body, err := c.send(ctx, http.MethodPost, c.resolve(PathTokenRefresh, nil), payload, "")
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return mapStatus(status, body)
	}
	var tokens tokenPair
	if err := json.Unmarshal(body, &tokens); err != nil {
		return fmt.Errorf("failed to decode refresh response: %w", err)
	}
	if tokens.Access == "" {
		return fmt.Errorf("refresh response carried no access token")
	}

	c.mu.Lock()
	c.accessToken = tokens.Access
	if tokens.Refresh != "" {
		c.refreshToken = tokens.Refresh
	}
	c.mu.Unlock()
	return nil
}

func (c *HTTPClient) refreshIfExpiring(ctx context.Context) {
	access, refresh := c.Tokens()
	if access == "" || refresh == "" {
		return
	}
	exp, ok := tokenExpiry(access)
	if !ok || exp.Sub(c.now()) > refreshLeeway {
		return
	}
	if err := c.refresh(ctx); err != nil {
		c.log.Warn(ctx, "proactive token refresh failed", "error", err)
	}
}

// resolve joins a relative path to the base URL; absolute URLs (pagination
// links) pass through.
func (c *HTTPClient) resolve(ref string, params url.Values) string {
	target := ref
	if !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://") {
		target = c.baseURL + ref
	}
	if len(params) == 0 {
		return target
	}
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + params.Encode()
}

// decodePage accepts either a paginated envelope or a bare JSON array.
func decodePage(body []byte) ([]json.RawMessage, string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, "", nil
	}
	if trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, "", err
		}
		return items, "", nil
	}
	var p Page
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return nil, "", err
	}
	next := ""
	if p.Next != nil {
		next = *p.Next
	}
	return p.Results, next, nil
}
