package lookup_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/tpmops/pkg/lookup"
	"github.com/systmms/tpmops/pkg/tpm"
)

func decodePasswords(t *testing.T, docs ...string) []tpm.Password {
	t.Helper()

	out := make([]tpm.Password, 0, len(docs))
	for _, doc := range docs {
		var p tpm.Password
		require.NoError(t, json.Unmarshal([]byte(doc), &p))
		out = append(out, p)
	}
	return out
}

func TestSelect_SortsByName(t *testing.T) {
	t.Parallel()

	entries := decodePasswords(t,
		`{"id":1,"name":"b","password":"pb"}`,
		`{"id":2,"name":"a","password":"pa"}`,
		`{"id":3,"name":"B","password":"pB"}`,
		`{"id":4,"name":"a","password":"pa2"}`,
	)

	got, err := lookup.Select("q", entries, "id", lookup.Options{All: true})
	require.NoError(t, err)

	// Byte order puts upper case first; equal names keep server order.
	assert.Equal(t, []interface{}{json.Number("3"), json.Number("2"), json.Number("4"), json.Number("1")}, got)
	assert.Equal(t, 1, entries[0].ID, "input is not reordered")
}

func TestSelect_SingleOrAll(t *testing.T) {
	t.Parallel()

	entries := decodePasswords(t,
		`{"id":1,"name":"b","password":"pb"}`,
		`{"id":2,"name":"a","password":"pa"}`,
	)

	tests := []struct {
		name string
		opts lookup.Options
		want []interface{}
	}{
		{name: "first only", opts: lookup.Options{}, want: []interface{}{"pa"}},
		{name: "all", opts: lookup.Options{All: true}, want: []interface{}{"pa", "pb"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := lookup.Select("q", entries, "password", tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelect_EmptyResult(t *testing.T) {
	t.Parallel()

	_, err := lookup.Select[tpm.Password]("web prd", nil, "password", lookup.Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, tpm.ErrNoResult))
	assert.Equal(t, `Query "web prd" did not match any result`, err.Error())

	got, err := lookup.Select[tpm.Password]("web prd", nil, "password", lookup.Options{All: true})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestProject_Projection(t *testing.T) {
	t.Parallel()

	entry := decodePasswords(t, `{"id":5,"name":"db","password":"s3cret"}`)[0]

	tests := []struct {
		name    string
		field   string
		strict  bool
		want    interface{}
		wantErr error
	}{
		{name: "all returns the entry", field: lookup.FieldAll, want: entry},
		{name: "known key", field: "password", want: "s3cret"},
		{name: "unknown key falls back to the entry", field: "nonexistent", want: entry},
		{name: "unknown key in strict mode", field: "nonexistent", strict: true, wantErr: lookup.ErrUnknownField},
		{name: "all in strict mode", field: lookup.FieldAll, strict: true, want: entry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := lookup.Project(entry, tt.field, tt.strict)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
