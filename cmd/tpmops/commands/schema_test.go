package commands

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/tpmops/tests/fakes"
)

func TestSchemaCommand(t *testing.T) {
	t.Parallel()

	cfg, _ := newTestConfig(t)
	out, err := execute(t, NewSchemaCommand(cfg), "password")
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	props, ok := doc["properties"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, props, "project_name")
	assert.Contains(t, props, "custom_data10")

	_, err = execute(t, NewSchemaCommand(cfg), "vault")
	assert.Error(t, err)
}

func TestCompletionCommand(t *testing.T) {
	t.Parallel()

	cfg, _ := newTestConfig(t)
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		out, err := execute(t, NewCompletionCommand(cfg), shell)
		require.NoError(t, err, shell)
		assert.NotEmpty(t, out, shell)
	}

	_, err := execute(t, NewCompletionCommand(cfg), "tcsh")
	assert.Error(t, err)
}

func TestGenerateCommand(t *testing.T) {
	t.Parallel()

	f := fakes.NewFakeTPM(t)
	f.Generated = []string{"one", "two"}
	cfg, _ := newTestConfig(t)

	out, err := execute(t, NewGenerateCommand(cfg), connArgs(t, f)...)
	require.NoError(t, err)
	assert.Equal(t, "one\n", out)

	out, err = execute(t, NewGenerateCommand(cfg), append([]string{"--json"}, connArgs(t, f)...)...)
	require.NoError(t, err)
	assert.JSONEq(t, `"two"`, out)
}
