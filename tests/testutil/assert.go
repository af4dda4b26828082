package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// AssertSecretRedacted verifies that secretValue does not appear in output
// and that the [REDACTED] marker does.
func AssertSecretRedacted(t *testing.T, output, secretValue string) {
	t.Helper()

	assert.NotContains(t, output, secretValue,
		"Secret value %q should be redacted, but appears in output", secretValue)
	assert.Contains(t, output, "[REDACTED]",
		"Expected [REDACTED] marker when secret is used")
}

// AssertNoSecretLeak verifies that none of secrets appears in output. Unlike
// AssertSecretRedacted it does not require the secrets to have been logged.
func AssertNoSecretLeak(t *testing.T, output string, secrets ...string) {
	t.Helper()

	for _, secret := range secrets {
		assert.NotContains(t, output, secret,
			"Secret %q should never appear in output", secret)
	}
}

// AssertErrorContains verifies that err is set and mentions substr.
func AssertErrorContains(t *testing.T, err error, substr string) {
	t.Helper()

	if assert.Error(t, err, "Expected an error to occur") {
		assert.Contains(t, err.Error(), substr,
			"Error message should contain %q", substr)
	}
}
