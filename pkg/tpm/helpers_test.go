package tpm

import (
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"

	"github.com/systmms/tpmops/tests/fakes"
)

var fixedNow = time.Unix(1700000000, 0)

func testConfig(f *fakes.FakeTPM) Config {
	return Config{
		Host:      f.Host(),
		SSLVerify: false,
		Basic:     &BasicAuth{Username: "ansible", Password: "hunter22"},
	}
}

func newTestClient(t *testing.T, f *fakes.FakeTPM, mutate func(*Config), opts ...Option) *Client {
	t.Helper()

	cfg := testConfig(f)
	if mutate != nil {
		mutate(&cfg)
	}
	opts = append([]Option{
		WithClock(func() time.Time { return fixedNow }),
		WithRetryBackOff(constantBackOff),
	}, opts...)

	c, err := New(cfg, opts...)
	require.NoError(t, err)
	return c
}

func constantBackOff() backoff.BackOff {
	return backoff.NewConstantBackOff(time.Millisecond)
}
