package tpm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/tpmops/tests/fakes"
)

type recordingObserver struct {
	mu       sync.Mutex
	statuses []int
}

func (o *recordingObserver) ObserveRequest(_ string, status int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statuses = append(o.statuses, status)
}

func TestTransport_URL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		host string
		want string
	}{
		{host: "tpm.example.com", want: "https://tpm.example.com/index.php/api/v4/passwords/1.json"},
		{host: "tpm.example.com:8443/tpm", want: "https://tpm.example.com:8443/tpm/index.php/api/v4/passwords/1.json"},
		{host: "https://tpm.example.com/", want: "https://tpm.example.com/index.php/api/v4/passwords/1.json"},
	}

	for _, tt := range tests {
		tr, err := NewTransport(Config{Host: tt.host})
		require.NoError(t, err)
		assert.Equal(t, tt.want, tr.URL("api/v4/passwords/1.json"))
		assert.Equal(t, tt.want, tr.URL("/api/v4/passwords/1.json"))
	}
}

func TestTransport_RejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := NewTransport(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid tpm config")
}

func TestTransport_BasicAuthIsSentUpFront(t *testing.T) {
	t.Parallel()

	f := fakes.NewFakeTPM(t)
	f.RequireBasic("ansible", "hunter22")
	id := f.AddPassword(map[string]interface{}{"name": "db"})

	c := newTestClient(t, f, nil)
	_, err := c.Passwords().GetByID(context.Background(), id)
	require.NoError(t, err)

	reqs := f.Requests()
	require.Len(t, reqs, 1, "credentials must not wait for a challenge")
	assert.Equal(t, ContentType, reqs[0].Header.Get("Content-Type"))
	assert.Empty(t, reqs[0].Header.Get(HeaderRequestHash))
}

func TestTransport_HMACReplacesBasic(t *testing.T) {
	t.Parallel()

	f := fakes.NewFakeTPM(t)
	f.RequireHMAC("pub", "priv")
	f.AddPassword(map[string]interface{}{"name": "nexus admin"})

	c := newTestClient(t, f, func(cfg *Config) {
		cfg.HMAC = &HMACAuth{PublicKey: "pub", PrivateKey: "priv"}
	})

	_, err := c.Passwords().Find(context.Background(), "username:admin tag:nexus,prd")
	require.NoError(t, err)

	reqs := f.Requests()
	require.Len(t, reqs, 1)
	req := reqs[0]
	assert.Empty(t, req.Header.Get("Authorization"))
	assert.Equal(t, "pub", req.Header.Get(HeaderPublicKey))
	assert.Equal(t, "1700000000", req.Header.Get(HeaderRequestTimestamp))
	assert.Equal(t, "api/v4/passwords/search/username%3Aadmin%20tag%3Anexus%2Cprd.json", req.Path)
	assert.Equal(t,
		Sign([]byte("priv"), req.Path, "1700000000", nil),
		req.Header.Get(HeaderRequestHash))
}

func TestTransport_HMACSignsBody(t *testing.T) {
	t.Parallel()

	f := fakes.NewFakeTPM(t)
	f.RequireHMAC("pub", "priv")
	f.AddProject(map[string]interface{}{"name": "infra"})

	c := newTestClient(t, f, func(cfg *Config) {
		cfg.Basic = nil
		cfg.HMAC = &HMACAuth{PublicKey: "pub", PrivateKey: "priv"}
	})

	_, err := c.Passwords().Create(context.Background(), PasswordInput{ProjectName: "infra", Name: "db", Password: "x"})
	require.NoError(t, err)

	posts := f.RequestsFor(http.MethodPost, "api/v4/passwords.json")
	require.Len(t, posts, 1)
	assert.Equal(t,
		Sign([]byte("priv"), "api/v4/passwords.json", "1700000000", posts[0].Body),
		posts[0].Header.Get(HeaderRequestHash))
}

func TestTransport_PaginationConcatenatesPages(t *testing.T) {
	t.Parallel()

	f := fakes.NewFakeTPM(t)
	f.PageSize = 2
	a := f.AddProject(map[string]interface{}{"name": "a"})
	b := f.AddProject(map[string]interface{}{"name": "b"})
	c := f.AddProject(map[string]interface{}{"name": "c"})
	f.SetProjectSearch("abc", a, b, c)

	client := newTestClient(t, f, nil)
	raw, err := client.Transport().Get(context.Background(), "api/v4/projects/search/abc.json")
	require.NoError(t, err)

	var items []map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &items))
	require.Len(t, items, 3)
	assert.Equal(t, "a", items[0]["name"])
	assert.Equal(t, "b", items[1]["name"])
	assert.Equal(t, "c", items[2]["name"])
	assert.Len(t, f.RequestsFor(http.MethodGet, "api/v4/projects/search/"), 2)
}

func TestTransport_PaginationIsBounded(t *testing.T) {
	t.Parallel()

	f := fakes.NewFakeTPM(t)
	f.PageSize = 1
	f.EndlessPaging = true
	f.AddProject(map[string]interface{}{"name": "loop"})

	client := newTestClient(t, f, func(cfg *Config) { cfg.MaxPages = 3 })
	_, err := client.Projects().Find(context.Background(), "loop")
	require.Error(t, err)

	assert.True(t, errors.Is(err, ErrTooManyPages))
	var ue *OpenURLError
	require.True(t, errors.As(err, &ue))
	assert.True(t, IsOp(err, OpFind))
	assert.Len(t, f.RequestsFor(http.MethodGet, "api/v4/projects/search/"), 3)
}

func TestTransport_UnexpectedStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		method string
		status int
		call   func(*Client) error
	}{
		{
			name: "get forbidden", method: "GET api/v4/passwords/1.json", status: http.StatusForbidden,
			call: func(c *Client) error { _, err := c.Passwords().GetByID(context.Background(), 1); return err },
		},
		{
			name: "put returns ok instead of no content", method: "PUT api/v4/projects/1.json", status: http.StatusOK,
			call: func(c *Client) error {
				_, err := c.Transport().Put(context.Background(), "api/v4/projects/1.json", map[string]string{})
				return err
			},
		},
		{
			name: "delete not found", method: "DELETE api/v4/passwords/1.json", status: http.StatusNotFound,
			call: func(c *Client) error { _, err := c.Passwords().Delete(context.Background(), 1); return err },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := fakes.NewFakeTPM(t)
			f.AddPassword(map[string]interface{}{"id": 1, "name": "x"})
			f.AddProject(map[string]interface{}{"id": 1, "name": "p"})
			f.StatusOverrides[tt.method] = tt.status

			err := tt.call(newTestClient(t, f, nil))
			require.Error(t, err)
			assert.Equal(t, tt.status, StatusCode(err))

			var ue *OpenURLError
			require.True(t, errors.As(err, &ue))
			assert.Contains(t, ue.Error(), "HTTP")
		})
	}
}

func TestTransport_PutAndDeleteReturnEmptyObject(t *testing.T) {
	t.Parallel()

	f := fakes.NewFakeTPM(t)
	id := f.AddProject(map[string]interface{}{"name": "p"})
	c := newTestClient(t, f, nil)
	path := "api/v4/projects/" + strconv.Itoa(id) + ".json"

	got, err := c.Transport().Put(context.Background(), path, map[string]string{"notes": "n"})
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(got))

	got, err = c.Transport().Delete(context.Background(), path)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(got))
}

func TestTransport_SSLVerifyRejectsUntrustedCertificate(t *testing.T) {
	t.Parallel()

	f := fakes.NewFakeTPM(t)
	c := newTestClient(t, f, func(cfg *Config) { cfg.SSLVerify = true })

	_, err := c.Passwords().Generate(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, StatusCode(err))
	assert.True(t, IsOp(err, OpGenerate))
}

func TestTransport_RetriesTransientGetFailures(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"password":"fresh"}`))
	}))
	t.Cleanup(srv.Close)

	obs := &recordingObserver{}
	client, err := New(
		Config{Host: strings.TrimPrefix(srv.URL, "https://"), MaxRetries: 2},
		WithRetryBackOff(constantBackOff),
		WithObserver(obs),
	)
	require.NoError(t, err)

	g, err := client.Passwords().Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", g.Password)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, []int{503, 503, 200}, obs.statuses)
}

func TestTransport_DoesNotRetryByDefaultOrOnClientErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     int
		maxRetries int
		wantCalls  int32
	}{
		{name: "transient without retries", status: http.StatusBadGateway, maxRetries: 0, wantCalls: 1},
		{name: "client error with retries", status: http.StatusUnauthorized, maxRetries: 3, wantCalls: 1},
		{name: "transient with retries", status: http.StatusTooManyRequests, maxRetries: 2, wantCalls: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls int32
			srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
			}))
			t.Cleanup(srv.Close)

			client, err := New(
				Config{Host: strings.TrimPrefix(srv.URL, "https://"), MaxRetries: tt.maxRetries},
				WithRetryBackOff(constantBackOff),
			)
			require.NoError(t, err)

			_, err = client.Passwords().GetByID(context.Background(), 9)
			require.Error(t, err)
			assert.Equal(t, tt.status, StatusCode(err))
			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(&calls))
		})
	}
}

func TestRetryable(t *testing.T) {
	t.Parallel()

	network := &url.Error{Op: "Get", URL: "https://h/index.php/x", Err: errors.New("connection refused")}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "network failure", err: &OpenURLError{Method: http.MethodGet, Err: network}, want: true},
		{name: "service unavailable", err: &OpenURLError{Method: http.MethodGet, Status: http.StatusServiceUnavailable}, want: true},
		{name: "too many requests", err: &OpenURLError{Method: http.MethodGet, Status: http.StatusTooManyRequests}, want: true},
		{name: "unauthorized", err: &OpenURLError{Method: http.MethodGet, Status: http.StatusUnauthorized}},
		{name: "signing failure", err: &OpenURLError{Method: http.MethodGet, Err: fmt.Errorf("failed to sign request: %w", errors.New("enclave"))}},
		{name: "invalid request", err: &OpenURLError{Method: http.MethodGet, Err: errors.New(`parse "https://h\x00": invalid control character in URL`)}},
		{name: "canceled", err: &OpenURLError{Method: http.MethodGet, Err: &url.Error{Op: "Get", Err: context.Canceled}}},
		{name: "not a transport error", err: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, retryable(tt.err))
		})
	}
}

func TestTransport_RetriesNetworkFailures(t *testing.T) {
	t.Parallel()

	srv := httptest.NewTLSServer(http.NotFoundHandler())
	host := strings.TrimPrefix(srv.URL, "https://")
	srv.Close()

	obs := &recordingObserver{}
	client, err := New(
		Config{Host: host, MaxRetries: 2},
		WithRetryBackOff(constantBackOff),
		WithObserver(obs),
	)
	require.NoError(t, err)

	_, err = client.Passwords().GetByID(context.Background(), 1)
	require.Error(t, err)
	assert.Zero(t, StatusCode(err))
	assert.Equal(t, []int{0, 0, 0}, obs.statuses)
}

func TestTransport_WritesAreNeverRetried(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	client, err := New(
		Config{Host: strings.TrimPrefix(srv.URL, "https://"), MaxRetries: 5},
		WithRetryBackOff(constantBackOff),
	)
	require.NoError(t, err)

	_, err = client.Transport().Post(context.Background(), "api/v4/projects.json", map[string]string{"name": "x"})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
