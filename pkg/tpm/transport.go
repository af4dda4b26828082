package tpm

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/systmms/tpmops/internal/logging"
	"github.com/systmms/tpmops/internal/secure"
)

// maxErrorBody caps how much of an unexpected response is kept on errors.
const maxErrorBody = 512

// Observer receives one call per HTTP round-trip. Status is 0 when no
// response was received.
type Observer interface {
	ObserveRequest(method string, status int, elapsed time.Duration)
}

// Option customizes a Transport.
type Option func(*Transport)

// WithHTTPClient replaces the HTTP client. The TLS settings derived from
// Config.SSLVerify are not applied to it.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) { t.httpClient = c }
}

// WithLogger sets the logger used for request debug lines.
func WithLogger(l *logging.Logger) Option {
	return func(t *Transport) { t.logger = l }
}

// WithObserver registers a request observer.
func WithObserver(o Observer) Option {
	return func(t *Transport) { t.observer = o }
}

// WithClock overrides the clock used for HMAC timestamps.
func WithClock(now func() time.Time) Option {
	return func(t *Transport) { t.signer.now = now }
}

// WithRetryBackOff overrides the delay policy between GET retries.
func WithRetryBackOff(newBackOff func() backoff.BackOff) Option {
	return func(t *Transport) { t.newBackOff = newBackOff }
}

// Transport performs signed requests against https://{host}/index.php/.
type Transport struct {
	baseURL    string
	httpClient *http.Client
	signer     *Signer

	basicUser string
	basicPass *secure.Secret

	maxPages   int
	maxRetries int
	newBackOff func() backoff.BackOff

	logger   *logging.Logger
	observer Observer
}

type response struct {
	status int
	header http.Header
	body   []byte
}

// NewTransport builds a transport for cfg.
func NewTransport(cfg Config, opts ...Option) (*Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tpm config: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	maxPages := cfg.MaxPages
	if maxPages == 0 {
		maxPages = DefaultMaxPages
	}

	t := &Transport{
		baseURL: fmt.Sprintf("https://%s/index.php/", normalizeHost(cfg.Host)),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: !cfg.SSLVerify, //nolint:gosec // opt-out is explicit in config
				},
			},
		},
		signer:     NewSigner(cfg),
		maxPages:   maxPages,
		maxRetries: cfg.MaxRetries,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		logger:     logging.Discard(),
	}

	// HMAC headers replace Basic credentials entirely.
	if cfg.AuthMode() == AuthBasic {
		t.basicUser = cfg.Basic.Username
		t.basicPass = secure.NewSecret(cfg.Basic.Password)
	}

	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// URL returns the absolute URL for an API path.
func (t *Transport) URL(path string) string {
	return t.baseURL + strings.TrimPrefix(path, "/")
}

// Get fetches path and follows rel="next" links, concatenating JSON array
// pages in order. A single page is returned unchanged.
func (t *Transport) Get(ctx context.Context, path string) (json.RawMessage, error) {
	var pages []json.RawMessage
	next := path

	for page := 1; ; page++ {
		if page > t.maxPages {
			return nil, &OpenURLError{
				Method: http.MethodGet,
				Path:   path,
				Err:    fmt.Errorf("%w: more than %d", ErrTooManyPages, t.maxPages),
			}
		}

		resp, err := t.getWithRetry(ctx, next)
		if err != nil {
			return nil, err
		}
		pages = append(pages, resp.body)

		link, ok, err := nextPagePath(resp.header.Values("Link"))
		if err != nil {
			return nil, &OpenURLError{Method: http.MethodGet, Path: next, Err: err}
		}
		if !ok {
			break
		}
		t.logger.Debug("GET %s: following next page %s", next, link)
		next = link
	}

	if len(pages) == 1 {
		return pages[0], nil
	}
	merged, err := concatPages(pages)
	if err != nil {
		return nil, &OpenURLError{Method: http.MethodGet, Path: path, Err: err}
	}
	return merged, nil
}

// Post sends body and expects 201 with a JSON document.
func (t *Transport) Post(ctx context.Context, path string, body interface{}) (json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	resp, err := t.do(ctx, http.MethodPost, path, payload, http.StatusCreated)
	if err != nil {
		return nil, err
	}
	return resp.body, nil
}

// Put sends body and expects 204. The server sends no body, so an empty
// object is returned unless it does.
func (t *Transport) Put(ctx context.Context, path string, body interface{}) (json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	resp, err := t.do(ctx, http.MethodPut, path, payload, http.StatusNoContent)
	if err != nil {
		return nil, err
	}
	return orEmptyObject(resp.body), nil
}

// Delete expects 204 and returns an empty object.
func (t *Transport) Delete(ctx context.Context, path string) (json.RawMessage, error) {
	resp, err := t.do(ctx, http.MethodDelete, path, nil, http.StatusNoContent)
	if err != nil {
		return nil, err
	}
	return orEmptyObject(resp.body), nil
}

// getWithRetry issues one GET, retrying network failures and transient
// statuses up to maxRetries times.
func (t *Transport) getWithRetry(ctx context.Context, path string) (*response, error) {
	var resp *response
	op := func() error {
		r, err := t.do(ctx, http.MethodGet, path, nil, http.StatusOK)
		if err != nil {
			if !retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		resp = r
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(t.newBackOff(), uint64(t.maxRetries)), ctx)
	notify := func(err error, wait time.Duration) {
		t.logger.Debug("GET %s failed (%v), retrying in %s", path, err, wait)
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, err
	}
	return resp, nil
}

func (t *Transport) do(ctx context.Context, method, path string, payload []byte, want int) (*response, error) {
	headers, err := t.signer.Headers(path, payload)
	if err != nil {
		return nil, &OpenURLError{Method: method, Path: path, Err: fmt.Errorf("failed to sign request: %w", err)}
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.URL(path), body)
	if err != nil {
		return nil, &OpenURLError{Method: method, Path: path, Err: err}
	}
	req.Header = headers

	if !t.basicPass.Empty() {
		pass, err := t.basicPass.Reveal()
		if err != nil {
			return nil, &OpenURLError{Method: method, Path: path, Err: err}
		}
		req.SetBasicAuth(t.basicUser, pass)
	}

	start := time.Now()
	httpResp, err := t.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		t.observe(method, 0, elapsed)
		t.logger.Debug("%s %s: %v (%s)", method, path, err, elapsed)
		return nil, &OpenURLError{Method: method, Path: path, Err: err}
	}
	defer func() { _ = httpResp.Body.Close() }()

	data, err := io.ReadAll(httpResp.Body)
	t.observe(method, httpResp.StatusCode, elapsed)
	t.logger.Debug("%s %s: %d (%s)", method, path, httpResp.StatusCode, elapsed)
	if err != nil {
		return nil, &OpenURLError{Method: method, Path: path, Status: httpResp.StatusCode, Err: err}
	}

	if httpResp.StatusCode != want {
		return nil, &OpenURLError{
			Method: method,
			Path:   path,
			Status: httpResp.StatusCode,
			Body:   truncate(string(data), maxErrorBody),
		}
	}

	return &response{status: httpResp.StatusCode, header: httpResp.Header, body: data}, nil
}

func (t *Transport) observe(method string, status int, elapsed time.Duration) {
	if t.observer != nil {
		t.observer.ObserveRequest(method, status, elapsed)
	}
}

// retryable reports whether a GET failure is worth another attempt.
func retryable(err error) bool {
	var ue *OpenURLError
	if !errors.As(err, &ue) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch ue.Status {
	case 0:
		// Only failures of the round-trip itself; signing and request
		// construction fail the same way every time.
		var netErr *url.Error
		return errors.As(err, &netErr)
	case http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func concatPages(pages []json.RawMessage) (json.RawMessage, error) {
	var all []json.RawMessage
	for i, page := range pages {
		var items []json.RawMessage
		if err := json.Unmarshal(page, &items); err != nil {
			return nil, fmt.Errorf("page %d is not a JSON array: %w", i+1, err)
		}
		all = append(all, items...)
	}
	if all == nil {
		all = []json.RawMessage{}
	}
	return json.Marshal(all)
}

func orEmptyObject(body []byte) json.RawMessage {
	if len(bytes.TrimSpace(body)) == 0 {
		return json.RawMessage("{}")
	}
	return body
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
