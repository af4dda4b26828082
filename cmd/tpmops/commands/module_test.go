package commands

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/systmms/tpmops/internal/errors"
	"github.com/systmms/tpmops/pkg/tpm"
	"github.com/systmms/tpmops/tests/fakes"
)

type moduleOutput struct {
	Changed bool   `json:"changed"`
	Failed  bool   `json:"failed"`
	Error   string `json:"error"`
	Result  *struct {
		TPM json.RawMessage `json:"tpm"`
	} `json:"result"`
}

func decodeModuleOutput(t *testing.T, out string) moduleOutput {
	t.Helper()
	var got moduleOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got), out)
	return got
}

func (o moduleOutput) entry(t *testing.T) map[string]interface{} {
	t.Helper()
	require.NotNil(t, o.Result)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(o.Result.TPM, &doc))
	return doc
}

func TestPasswordCommand_Lifecycle(t *testing.T) {
	t.Parallel()

	f := fakes.NewFakeTPM(t)
	f.AddProject(map[string]interface{}{"name": "infra"})
	f.Generated = []string{"first", "second"}
	cfg, _ := newTestConfig(t)

	run := func(args ...string) (moduleOutput, error) {
		out, err := execute(t, NewPasswordCommand(cfg), append(args, connArgs(t, f)...)...)
		return decodeModuleOutput(t, out), err
	}

	got, err := run("--name", "db", "--project-name", "infra", "--tags", "prd,db",
		"--entry-username", "app", "--custom-data", "3=5432")
	require.NoError(t, err)
	assert.True(t, got.Changed)
	created := got.entry(t)
	assert.Equal(t, "db", created["name"])
	assert.Equal(t, "first", created["password"])
	assert.Equal(t, "app", created["username"])
	assert.Equal(t, "prd,db", created["tags"])

	got, err = run("--name", "db", "--project-name", "infra")
	require.NoError(t, err)
	assert.False(t, got.Changed, "existing entry is left alone")
	assert.Equal(t, "db", got.entry(t)["name"])

	got, err = run("--state", "update", "--name", "db", "--notes", "rotated", "--tags", "ops")
	require.NoError(t, err)
	assert.True(t, got.Changed)
	updated := got.entry(t)
	assert.Equal(t, "second", updated["password"])
	assert.Equal(t, "rotated", updated["notes"])
	assert.Equal(t, "prd,db,ops", updated["tags"])

	got, err = run("--state", "absent", "--name", "db")
	require.NoError(t, err)
	assert.True(t, got.Changed)
	var message string
	require.NoError(t, json.Unmarshal(got.Result.TPM, &message))
	assert.Equal(t, "Successfully deleted password", message)

	got, err = run("--state", "absent", "--name", "db")
	require.Error(t, err)
	assert.True(t, got.Failed)
	assert.True(t, errors.Is(err, tpm.ErrNoResult))
}

func TestPasswordCommand_PreservePassword(t *testing.T) {
	t.Parallel()

	f := fakes.NewFakeTPM(t)
	f.AddPassword(map[string]interface{}{"name": "db", "password": "keep-me"})
	cfg, _ := newTestConfig(t)

	args := append([]string{"--state", "update", "--name", "db", "--preserve-password"}, connArgs(t, f)...)
	out, err := execute(t, NewPasswordCommand(cfg), args...)
	require.NoError(t, err)
	assert.Equal(t, "keep-me", decodeModuleOutput(t, out).entry(t)["password"])
	assert.Empty(t, f.RequestsFor(http.MethodGet, "api/v4/generate_password.json"))
}

func TestPasswordCommand_ParamsFile(t *testing.T) {
	t.Parallel()

	f := fakes.NewFakeTPM(t)
	f.AddProject(map[string]interface{}{"name": "infra"})
	cfg, _ := newTestConfig(t)

	params := writeFile(t, "task.yaml", `
state: present
name: from-file
project_name: infra
password: file-secret
expiry_date: 2026-12-31
custom_data1: one
`)

	args := append([]string{"--params", params, "--name", "from-flag"}, connArgs(t, f)...)
	out, err := execute(t, NewPasswordCommand(cfg), args...)
	require.NoError(t, err)

	created := decodeModuleOutput(t, out).entry(t)
	assert.Equal(t, "from-flag", created["name"], "flags override the file")
	assert.Equal(t, "file-secret", created["password"])
	assert.Equal(t, "2026-12-31", created["expiry_date"])
}

func TestPasswordCommand_InvalidArguments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "present needs a project", args: []string{"--name", "db"}, want: "project_name"},
		{name: "name is required", args: []string{"--state", "absent"}, want: "name"},
		{name: "unknown state", args: []string{"--state", "gone", "--name", "db"}, want: "state"},
		{name: "bad expiry date", args: []string{"--state", "update", "--name", "db", "--expiry-date", "31/12/2026"}, want: "expiry_date"},
		{name: "custom field out of range", args: []string{"--state", "update", "--name", "db", "--custom-data", "11=x"}, want: "custom field number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := fakes.NewFakeTPM(t)
			cfg, _ := newTestConfig(t)

			_, err := execute(t, NewPasswordCommand(cfg), append(tt.args, connArgs(t, f)...)...)
			require.Error(t, err)

			var userErr dserrors.UserError
			require.True(t, errors.As(err, &userErr))
			assert.Contains(t, userErr.Error(), tt.want)
			assert.Empty(t, f.Requests(), "nothing is sent for invalid arguments")
		})
	}
}

func TestPasswordCommand_MissingProject(t *testing.T) {
	t.Parallel()

	f := fakes.NewFakeTPM(t)
	cfg, _ := newTestConfig(t)

	args := append([]string{"--name", "db", "--project-name", "nowhere"}, connArgs(t, f)...)
	out, err := execute(t, NewPasswordCommand(cfg), args...)
	require.Error(t, err)
	assert.True(t, errors.Is(err, tpm.ErrProjectNotFound))

	got := decodeModuleOutput(t, out)
	assert.True(t, got.Failed)
	assert.False(t, got.Changed)
	assert.Contains(t, got.Error, "nowhere")
	assert.Empty(t, f.RequestsFor(http.MethodPost, "api/v4/passwords.json"))
}

func TestProjectCommand_Lifecycle(t *testing.T) {
	t.Parallel()

	f := fakes.NewFakeTPM(t)
	cfg, _ := newTestConfig(t)

	run := func(args ...string) (moduleOutput, error) {
		out, err := execute(t, NewProjectCommand(cfg), append(args, connArgs(t, f)...)...)
		return decodeModuleOutput(t, out), err
	}

	got, err := run("--name", "infra", "--tags", "ops")
	require.NoError(t, err)
	assert.True(t, got.Changed)
	created := got.entry(t)
	assert.Equal(t, "infra", created["name"])

	posts := f.RequestsFor(http.MethodPost, "api/v4/projects.json")
	require.Len(t, posts, 1)
	assert.Equal(t, float64(0), posts[0].JSON()["parent_id"], "root project by default")

	got, err = run("--name", "infra")
	require.NoError(t, err)
	assert.False(t, got.Changed)

	got, err = run("--state", "update", "--name", "infra", "--notes", "platform team")
	require.NoError(t, err)
	assert.True(t, got.Changed)
	assert.Equal(t, "platform team", got.entry(t)["notes"])

	got, err = run("--state", "absent", "--name", "infra")
	require.NoError(t, err)
	var message string
	require.NoError(t, json.Unmarshal(got.Result.TPM, &message))
	assert.Equal(t, "Successfully deleted project", message)
}

func TestProjectCommand_InvalidParentID(t *testing.T) {
	t.Parallel()

	f := fakes.NewFakeTPM(t)
	cfg, _ := newTestConfig(t)

	_, err := execute(t, NewProjectCommand(cfg), append([]string{"--name", "infra", "--parent-id=-2"}, connArgs(t, f)...)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parent_id")
	assert.Empty(t, f.Requests())
}
