package module_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/tpmops/pkg/module"
	"github.com/systmms/tpmops/pkg/tpm"
)

type fakeEntry struct {
	id   int
	name string
}

func (e fakeEntry) EntryID() int      { return e.id }
func (e fakeEntry) EntryName() string { return e.name }

// fakeResource records which verbs the orchestrator called.
type fakeResource struct {
	name    string
	found   []module.Entry
	findErr error

	createCalls int
	updateIDs   []int
	deleteIDs   []int
}

func (r *fakeResource) Kind() string { return "password" }
func (r *fakeResource) Name() string { return r.name }

func (r *fakeResource) Find(context.Context, string) ([]module.Entry, error) {
	return r.found, r.findErr
}

func (r *fakeResource) Create(context.Context) (module.Entry, error) {
	r.createCalls++
	return fakeEntry{id: 99, name: r.name}, nil
}

func (r *fakeResource) Update(_ context.Context, id int) (module.Entry, error) {
	r.updateIDs = append(r.updateIDs, id)
	return fakeEntry{id: id, name: r.name}, nil
}

func (r *fakeResource) Delete(_ context.Context, id int) (string, error) {
	r.deleteIDs = append(r.deleteIDs, id)
	return "Successfully deleted password", nil
}

func findError(status int) error {
	return &tpm.OperationError{
		Op:       tpm.OpFind,
		Resource: "password",
		Key:      "db",
		Err:      &tpm.OpenURLError{Method: "GET", Path: "api/v4/passwords/search/db.json", Status: status},
	}
}

func TestOrchestrator_Present(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		found       []module.Entry
		findErr     error
		wantCreate  bool
		wantExists  bool
		wantErrIsOp bool
	}{
		{name: "no match creates", wantCreate: true},
		{name: "fuzzy match only creates", found: []module.Entry{fakeEntry{1, "db-old"}}, wantCreate: true},
		{name: "exact match exists", found: []module.Entry{fakeEntry{1, "db-old"}, fakeEntry{2, "db"}}, wantExists: true},
		{name: "search 404 creates", findErr: findError(404), wantCreate: true},
		{name: "search 500 fails", findErr: findError(500), wantErrIsOp: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := &fakeResource{name: "db", found: tt.found, findErr: tt.findErr}
			got, err := module.New(nil).Apply(context.Background(), module.StatePresent, r)

			switch {
			case tt.wantCreate:
				require.NoError(t, err)
				assert.Equal(t, fakeEntry{id: 99, name: "db"}, got)
				assert.Equal(t, 1, r.createCalls)
			case tt.wantExists:
				var exists *module.AlreadyExistsError
				require.ErrorAs(t, err, &exists)
				assert.Equal(t, 2, exists.Entry.EntryID())
				assert.Zero(t, r.createCalls)
			case tt.wantErrIsOp:
				require.Error(t, err)
				assert.True(t, tpm.IsOp(err, tpm.OpFind))
				assert.Zero(t, r.createCalls)
			}
		})
	}
}

func TestOrchestrator_AbsentAndUpdate(t *testing.T) {
	t.Parallel()

	t.Run("absent deletes the exact match", func(t *testing.T) {
		t.Parallel()

		r := &fakeResource{name: "db", found: []module.Entry{fakeEntry{3, "db"}}}
		got, err := module.New(nil).Apply(context.Background(), module.StateAbsent, r)
		require.NoError(t, err)
		assert.Equal(t, "Successfully deleted password", got)
		assert.Equal(t, []int{3}, r.deleteIDs)
	})

	t.Run("update rewrites the exact match", func(t *testing.T) {
		t.Parallel()

		r := &fakeResource{name: "db", found: []module.Entry{fakeEntry{4, "db"}}}
		_, err := module.New(nil).Apply(context.Background(), module.StateUpdate, r)
		require.NoError(t, err)
		assert.Equal(t, []int{4}, r.updateIDs)
	})

	for _, state := range []module.State{module.StateAbsent, module.StateUpdate} {
		t.Run(string(state)+" without match", func(t *testing.T) {
			t.Parallel()

			r := &fakeResource{name: "db", found: []module.Entry{fakeEntry{5, "db2"}}}
			_, err := module.New(nil).Apply(context.Background(), state, r)
			require.Error(t, err)
			assert.True(t, tpm.IsOp(err, tpm.OpFind))
			assert.True(t, errors.Is(err, tpm.ErrNoResult))
			assert.Empty(t, r.deleteIDs)
			assert.Empty(t, r.updateIDs)
		})

		t.Run(string(state)+" propagates search 404", func(t *testing.T) {
			t.Parallel()

			r := &fakeResource{name: "db", findErr: findError(404)}
			_, err := module.New(nil).Apply(context.Background(), state, r)
			require.Error(t, err)
			assert.Equal(t, 404, tpm.StatusCode(err))
		})
	}
}

func TestOrchestrator_UnknownState(t *testing.T) {
	t.Parallel()

	_, err := module.New(nil).Apply(context.Background(), module.State("latest"), &fakeResource{name: "db"})
	var notImpl *module.StateNotImplementedError
	require.ErrorAs(t, err, &notImpl)
	assert.Equal(t, module.State("latest"), notImpl.State)
}

func TestOrchestrator_Run(t *testing.T) {
	t.Parallel()

	o := module.New(nil)

	res, err := o.Run(context.Background(), module.StatePresent, &fakeResource{name: "db"})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, fakeEntry{id: 99, name: "db"}, res.Result.TPM)

	existing := fakeEntry{id: 7, name: "db"}
	res, err = o.Run(context.Background(), module.StatePresent, &fakeResource{name: "db", found: []module.Entry{existing}})
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, existing, res.Result.TPM)

	res, err = o.Run(context.Background(), module.StateAbsent, &fakeResource{name: "db"})
	require.Error(t, err)
	assert.True(t, res.Failed)
	assert.False(t, res.Changed)
	assert.Equal(t, err.Error(), res.Error)
	assert.Nil(t, res.Result)
}
