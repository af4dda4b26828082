package errors

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/systmms/tpmops/pkg/tpm"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// TPMError turns a client failure into a UserError with a suggestion
// based on the HTTP status or transport failure.
func TPMError(operation string, err error) error {
	msg := fmt.Sprintf("Team Password Manager error during %s", operation)
	if status := tpm.StatusCode(err); status > 0 {
		msg += fmt.Sprintf(" (HTTP %d)", status)
	}

	return UserError{
		Message:    msg,
		Details:    err.Error(),
		Suggestion: getTPMSuggestion(err),
		Err:        err,
	}
}

// getTPMSuggestion returns helpful suggestions based on the failure
func getTPMSuggestion(err error) string {
	switch tpm.StatusCode(err) {
	case http.StatusUnauthorized:
		return "Check the API credentials (TPM_PUBLIC_KEY/TPM_PRIVATE_KEY or TPM_USER/TPM_PASS) and that API access is enabled for this user"
	case http.StatusForbidden:
		return "The API user lacks permission on this project or password. Ask a TPM administrator to grant access"
	case http.StatusNotFound:
		return "Verify the id or query. Use 'tpmops lookup password <query> --all --field all' to search"
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return "The server is busy or unavailable. Retry later or pass --retries to retry reads automatically"
	}

	switch {
	case errors.Is(err, tpm.ErrProjectNotFound):
		return "Create the project first: 'tpmops project --state present --name <project>'"
	case errors.Is(err, tpm.ErrTooManyPages):
		return "Narrow the search query or raise --max-pages"
	case errors.Is(err, tpm.ErrNoResult):
		return "Relax the search query, or use --all to see every match"
	case errors.Is(err, context.DeadlineExceeded):
		return "The request timed out. Check connectivity or raise --timeout"
	}

	var unknownAuthority x509.UnknownAuthorityError
	var hostname x509.HostnameError
	if errors.As(err, &unknownAuthority) || errors.As(err, &hostname) {
		return "The server certificate could not be verified. Install the CA certificate, or pass --ssl-verify=false for a trusted self-signed instance"
	}

	errStr := err.Error()
	if strings.Contains(errStr, "timeout") {
		return "The request timed out. Check connectivity or raise --timeout"
	}
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return "Unable to connect. Check --host (TPM_HOST) and your network"
	}

	return ""
}

// SimplifyError simplifies complex error messages for users
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	// Already a user-friendly error
	var userErr UserError
	if errors.As(err, &userErr) {
		return err
	}
	var configErr ConfigError
	if errors.As(err, &configErr) {
		return err
	}

	// Client failures carry enough context for a suggestion
	var opErr *tpm.OperationError
	var urlErr *tpm.OpenURLError
	if errors.As(err, &opErr) || errors.As(err, &urlErr) {
		return TPMError("request", err)
	}

	// Unwrap to get the root cause
	rootErr := err
	for {
		unwrapped := errors.Unwrap(rootErr)
		if unwrapped == nil {
			break
		}
		rootErr = unwrapped
	}

	// Simplify common technical errors
	errStr := rootErr.Error()

	if strings.Contains(errStr, "yaml:") {
		return ConfigError{
			Message:    "Invalid YAML format",
			Suggestion: "Check for indentation errors and missing quotes",
		}
	}

	if strings.Contains(errStr, "json:") {
		return ConfigError{
			Message:    "Invalid JSON format",
			Suggestion: "Validate your JSON at https://jsonlint.com/",
		}
	}

	if strings.Contains(errStr, "permission denied") {
		return UserError{
			Message:    "Permission denied",
			Suggestion: "Check file permissions or run with appropriate privileges",
			Err:        err,
		}
	}

	if strings.Contains(errStr, "no such file or directory") {
		return UserError{
			Message:    "File or directory not found",
			Suggestion: "Verify the path exists and is spelled correctly",
			Err:        err,
		}
	}

	// Return original error if we can't simplify it
	return err
}
