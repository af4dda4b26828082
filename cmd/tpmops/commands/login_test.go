package commands

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/systmms/tpmops/internal/config"
	"github.com/systmms/tpmops/tests/fakes"
)

// Keyring tests replace the global keyring provider and must not run in
// parallel.

func TestLoginCommand_StoresPrivateKey(t *testing.T) {
	keyring.MockInit()

	cfg, logs := newTestConfig(t)
	cmd := NewLoginCommand(cfg)
	cmd.SetIn(strings.NewReader("priv-from-stdin\n"))

	envFile := filepath.Join(t.TempDir(), ".env")
	_, err := execute(t, cmd, "--host", "tpm.example.com", "--public-key", "pub", "--env-file", envFile)
	require.NoError(t, err)
	assert.Contains(t, logs.GetOutput(), "Stored private key for public key pub on tpm.example.com")
	logs.AssertLogCount(t, "info", 1)

	secret, err := config.KeyringGet("tpm.example.com", config.KeyringPrivateKey)
	require.NoError(t, err)
	assert.Equal(t, "priv-from-stdin", secret)

	_, err = execute(t, NewLoginCommand(cfg), "--host", "tpm.example.com", "--logout", "--env-file", envFile)
	require.NoError(t, err)
	_, err = config.KeyringGet("tpm.example.com", config.KeyringPrivateKey)
	assert.ErrorIs(t, err, config.ErrSecretNotFound)
}

func TestLoginCommand_PasswordFromFlag(t *testing.T) {
	keyring.MockInit()

	cfg, _ := newTestConfig(t)
	_, err := execute(t, NewLoginCommand(cfg), "--host", "tpm.example.com",
		"--username", "ansible", "--password", "hunter22",
		"--env-file", filepath.Join(t.TempDir(), ".env"))
	require.NoError(t, err)

	secret, err := config.KeyringGet("tpm.example.com", config.KeyringPassword)
	require.NoError(t, err)
	assert.Equal(t, "hunter22", secret)
}

func TestLoginCommand_Errors(t *testing.T) {
	keyring.MockInit()

	envFile := filepath.Join(t.TempDir(), ".env")

	tests := []struct {
		name  string
		args  []string
		stdin string
		want  string
	}{
		{name: "no host", args: []string{"--public-key", "pub"}, want: "host"},
		{name: "nothing to store", args: []string{"--host", "tpm.example.com"}, want: "Nothing to log in with"},
		{name: "empty secret", args: []string{"--host", "tpm.example.com", "--username", "ansible"}, stdin: "\n", want: "Empty secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, _ := newTestConfig(t)
			cmd := NewLoginCommand(cfg)
			cmd.SetIn(strings.NewReader(tt.stdin))

			_, err := execute(t, cmd, append(tt.args, "--env-file", envFile)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

// A key stored by login completes a half-configured key pair.
func TestLoginCommand_UsedByLookup(t *testing.T) {
	keyring.MockInit()

	f := fakes.NewFakeTPM(t)
	f.RequireHMAC("pub", "stored-private")
	f.Generated = []string{"from-keyring"}
	cfg, _ := newTestConfig(t)
	envFile := filepath.Join(t.TempDir(), ".env")

	login := NewLoginCommand(cfg)
	login.SetIn(strings.NewReader("stored-private\n"))
	_, err := execute(t, login, "--host", f.Host(), "--public-key", "pub", "--env-file", envFile)
	require.NoError(t, err)

	out, err := execute(t, NewGenerateCommand(cfg), "--host", f.Host(), "--public-key", "pub",
		"--ssl-verify=false", "--env-file", envFile)
	require.NoError(t, err)
	assert.Equal(t, "from-keyring\n", out)
}
