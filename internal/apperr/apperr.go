// Package apperr defines the error taxonomy shared by every layer.
//
// Repositories and services return these typed errors; the HTTP layer maps
// them to status codes in one place. Anything not covered by the taxonomy is
// treated as an internal error and never shown to the caller verbatim.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError reports bad input shape or a violated constraint.
// Safe to show to the caller.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NotFoundError reports an absent or inactive entity.
type NotFoundError struct {
	Entity string
	Code   string
}

func (e *NotFoundError) Error() string {
	return e.Entity + " not found"
}

// ConflictError reports a uniqueness or concurrent-mutation clash.
type ConflictError struct {
	Code    string
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// PermissionDeniedError reports insufficient effective rights.
type PermissionDeniedError struct {
	Operation string
}

func (e *PermissionDeniedError) Error() string {
	return "permission denied: " + e.Operation
}

// ConnectionUnavailableError reports pool exhaustion or a connect timeout.
// Callers must not assume retries happen automatically.
type ConnectionUnavailableError struct {
	Err error
}

func (e *ConnectionUnavailableError) Error() string {
	return "database connection unavailable: " + e.Err.Error()
}

func (e *ConnectionUnavailableError) Unwrap() error { return e.Err }

// ProvisioningFailedError reports a failed multi-step tenant setup.
// The caller is guaranteed the whole setup was rolled back.
type ProvisioningFailedError struct {
	Detail string
	Err    error
}

func (e *ProvisioningFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provisioning failed: %s: %v", e.Detail, e.Err)
	}
	return "provisioning failed: " + e.Detail
}

func (e *ProvisioningFailedError) Unwrap() error { return e.Err }

// Validation builds a ValidationError for a single field.
func Validation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NotFound builds a NotFoundError for a named entity.
func NotFound(entity string) *NotFoundError {
	return &NotFoundError{Entity: entity}
}

// Conflict builds a ConflictError with a stable machine-readable code.
func Conflict(code, message string) *ConflictError {
	return &ConflictError{Code: code, Message: message}
}

// Named constructors for the conflicts the provisioning and metadata layers
// produce. Codes are stable: clients branch on them.

func InvalidSchemaIdentifier(name string) *ValidationError {
	return &ValidationError{Field: "schema", Message: fmt.Sprintf("invalid schema identifier %q", name)}
}

func DuplicateEmail(email string) *ConflictError {
	return Conflict("DUPLICATE_EMAIL", fmt.Sprintf("email %q is already registered", email))
}

func DuplicateTableName(name string) *ConflictError {
	return Conflict("DUPLICATE_TABLE_NAME", fmt.Sprintf("table %q already exists in this module", name))
}

func SchemaNameExhausted(base string) *ConflictError {
	return Conflict("SCHEMA_NAME_EXHAUSTED", fmt.Sprintf("could not derive a unique schema name from %q", base))
}

func EmailExhausted(base string) *ConflictError {
	return Conflict("EMAIL_EXHAUSTED", fmt.Sprintf("could not derive a unique email from %q", base))
}

func HasDependentData(entity string) *ConflictError {
	return Conflict("HAS_DEPENDENT_DATA", entity+" still has dependent data")
}

func SourceNotFound(code string) *NotFoundError {
	return &NotFoundError{Entity: "source tenant " + code, Code: "SOURCE_NOT_FOUND"}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

func IsConflict(err error) bool {
	var e *ConflictError
	return errors.As(err, &e)
}

func IsPermissionDenied(err error) bool {
	var e *PermissionDeniedError
	return errors.As(err, &e)
}

func IsConnectionUnavailable(err error) bool {
	var e *ConnectionUnavailableError
	return errors.As(err, &e)
}

// HTTPStatus maps a taxonomy error to the status code the API layer returns.
// Unknown errors map to 500.
func HTTPStatus(err error) int {
	switch {
	case IsValidation(err):
		return http.StatusBadRequest
	case IsNotFound(err):
		return http.StatusNotFound
	case IsConflict(err):
		return http.StatusConflict
	case IsPermissionDenied(err):
		return http.StatusForbidden
	case IsConnectionUnavailable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
