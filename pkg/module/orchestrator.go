// Package module applies a desired state (present, absent, update) to a
// single named TPM entry, the way configuration-management tasks do.
package module

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/systmms/tpmops/internal/logging"
	"github.com/systmms/tpmops/pkg/tpm"
)

// State is the desired state of an entry.
type State string

const (
	StatePresent State = "present"
	StateAbsent  State = "absent"
	StateUpdate  State = "update"
)

// States lists the supported states.
var States = []State{StatePresent, StateAbsent, StateUpdate}

// Entry is a stored password or project.
type Entry interface {
	EntryID() int
	EntryName() string
}

// Resource is one resource kind bound to the caller's input. The
// orchestrator decides which verb to call; the resource knows how.
type Resource interface {
	Kind() string
	// Name is the entry name the input refers to.
	Name() string
	Find(ctx context.Context, name string) ([]Entry, error)
	Create(ctx context.Context) (Entry, error)
	Update(ctx context.Context, id int) (Entry, error)
	Delete(ctx context.Context, id int) (string, error)
}

// AlreadyExistsError is returned by present when an entry with the same
// name exists. It is reported as an unchanged result.
type AlreadyExistsError struct {
	Entry Entry
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%q already exists with id %d", e.Entry.EntryName(), e.Entry.EntryID())
}

// StateNotImplementedError is returned for a state with no handler.
type StateNotImplementedError struct {
	State State
}

func (e *StateNotImplementedError) Error() string {
	return fmt.Sprintf("state %q is not implemented", e.State)
}

// Orchestrator runs the state machine. It holds no resource state and can
// be shared.
type Orchestrator struct {
	logger *logging.Logger
}

// New returns an orchestrator; a nil logger discards output.
func New(logger *logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Orchestrator{logger: logger}
}

// Apply brings the entry named by r to state. The returned value is the
// created or updated entry, or the delete confirmation message.
func (o *Orchestrator) Apply(ctx context.Context, state State, r Resource) (interface{}, error) {
	switch state {
	case StatePresent:
		return o.present(ctx, r)
	case StateAbsent:
		return o.absent(ctx, r)
	case StateUpdate:
		return o.update(ctx, r)
	}
	return nil, &StateNotImplementedError{State: state}
}

// Run is Apply with the outcome folded into a Result. The error is nil
// for successful and unchanged outcomes.
func (o *Orchestrator) Run(ctx context.Context, state State, r Resource) (Result, error) {
	value, err := o.Apply(ctx, state, r)

	var exists *AlreadyExistsError
	switch {
	case errors.As(err, &exists):
		o.logger.Info("%s %q already exists, nothing to do", r.Kind(), r.Name())
		return Result{Changed: false, Result: &Payload{TPM: exists.Entry}}, nil
	case err != nil:
		return Result{Failed: true, Error: err.Error()}, err
	}

	return Result{Changed: true, Result: &Payload{TPM: value}}, nil
}

func (o *Orchestrator) present(ctx context.Context, r Resource) (interface{}, error) {
	match, err := o.findExact(ctx, r)
	if err != nil {
		if !notFound(err) {
			return nil, err
		}
		o.logger.Debug("search for %s %q answered 404, creating", r.Kind(), r.Name())
	}
	if match != nil {
		return nil, &AlreadyExistsError{Entry: match}
	}

	o.logger.Debug("creating %s %q", r.Kind(), r.Name())
	return r.Create(ctx)
}

func (o *Orchestrator) absent(ctx context.Context, r Resource) (interface{}, error) {
	match, err := o.requireMatch(ctx, r)
	if err != nil {
		return nil, err
	}
	o.logger.Debug("deleting %s %q (id %d)", r.Kind(), r.Name(), match.EntryID())
	return r.Delete(ctx, match.EntryID())
}

func (o *Orchestrator) update(ctx context.Context, r Resource) (interface{}, error) {
	match, err := o.requireMatch(ctx, r)
	if err != nil {
		return nil, err
	}
	o.logger.Debug("updating %s %q (id %d)", r.Kind(), r.Name(), match.EntryID())
	return r.Update(ctx, match.EntryID())
}

func (o *Orchestrator) requireMatch(ctx context.Context, r Resource) (Entry, error) {
	match, err := o.findExact(ctx, r)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, &tpm.OperationError{Op: tpm.OpFind, Resource: r.Kind(), Key: r.Name(), Err: tpm.ErrNoResult}
	}
	return match, nil
}

// findExact searches by name and keeps the first entry whose name is
// exactly the requested one. Search is fuzzy on the server side.
func (o *Orchestrator) findExact(ctx context.Context, r Resource) (Entry, error) {
	entries, err := r.Find(ctx, r.Name())
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.EntryName() == r.Name() {
			return e, nil
		}
	}
	return nil, nil
}

func notFound(err error) bool {
	return tpm.IsOp(err, tpm.OpFind) && tpm.StatusCode(err) == http.StatusNotFound
}
