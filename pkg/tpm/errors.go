package tpm

import (
	"errors"
	"fmt"
)

// Op names the resource verb that failed.
type Op string

const (
	OpGet      Op = "get"
	OpFind     Op = "find"
	OpGenerate Op = "generate"
	OpCreate   Op = "create"
	OpUpdate   Op = "update"
	OpDelete   Op = "delete"
)

// Sentinel errors
var (
	ErrNoResult        = errors.New("no result")
	ErrProjectNotFound = errors.New("project not found")
	ErrTooManyPages    = errors.New("too many pages")
)

// OpenURLError is a transport failure: the request could not be sent or
// the server answered with an unexpected status.
type OpenURLError struct {
	Method string
	Path   string
	Status int    // 0 when no response was received
	Body   string // truncated response body, if any
	Err    error
}

func (e *OpenURLError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("HTTP %d - failed to %s %s", e.Status, e.Method, e.Path)
	}
	if e.Err != nil {
		return fmt.Sprintf("failed to %s %s: %v", e.Method, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s %s", e.Method, e.Path)
}

func (e *OpenURLError) Unwrap() error {
	return e.Err
}

// OperationError is returned by every resource verb. The inner cause is
// kept for diagnostics.
type OperationError struct {
	Op       Op
	Resource string // "password" or "project"
	Key      string // id, query or name the verb was called with
	Err      error
}

func (e *OperationError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s %s %q: %v", e.Resource, e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Resource, e.Op, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// IsOp reports whether any *OperationError in err's chain has the given Op.
func IsOp(err error, op Op) bool {
	for err != nil {
		var oe *OperationError
		if !errors.As(err, &oe) {
			return false
		}
		if oe.Op == op {
			return true
		}
		err = oe.Err
	}
	return false
}

// StatusCode returns the HTTP status carried by the first *OpenURLError in
// err's chain, or 0.
func StatusCode(err error) int {
	var ue *OpenURLError
	if errors.As(err, &ue) {
		return ue.Status
	}
	return 0
}

func opError(op Op, resource, key string, err error) error {
	return &OperationError{Op: op, Resource: resource, Key: key, Err: err}
}
