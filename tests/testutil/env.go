package testutil

import (
	"os"
	"testing"

	"github.com/systmms/tpmops/internal/config"
)

// TPMEnv lists the environment variables read by the config resolver.
var TPMEnv = []string{
	config.EnvHost,
	config.EnvPublicKey,
	config.EnvPrivateKey,
	config.EnvUser,
	config.EnvPass,
	config.EnvSSLVerify,
}

// SetupTestEnv sets environment variables for the duration of a test.
//
// Tests using it cannot run in parallel.
func SetupTestEnv(t *testing.T, vars map[string]string) {
	t.Helper()

	for key, value := range vars {
		t.Setenv(key, value)
	}
}

// ClearTPMEnv unsets every TPM_* variable for the duration of a test, so
// the developer's own settings do not leak into it.
func ClearTPMEnv(t *testing.T) {
	t.Helper()

	for _, key := range TPMEnv {
		// t.Setenv registers the restore; the unset takes effect after it.
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("Failed to unset %s: %v", key, err)
		}
	}
}
