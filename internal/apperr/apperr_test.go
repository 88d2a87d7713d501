package apperr

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", Validation("name", "required"), http.StatusBadRequest},
		{"invalid schema", InvalidSchemaIdentifier("1bad"), http.StatusBadRequest},
		{"not found", NotFound("tenant"), http.StatusNotFound},
		{"source not found", SourceNotFound("EMP-XYZ"), http.StatusNotFound},
		{"duplicate email", DuplicateEmail("a@b.c"), http.StatusConflict},
		{"schema exhausted", SchemaNameExhausted("acme"), http.StatusConflict},
		{"permission denied", &PermissionDeniedError{Operation: "read"}, http.StatusForbidden},
		{"connection unavailable", &ConnectionUnavailableError{Err: fmt.Errorf("pool timeout")}, http.StatusServiceUnavailable},
		{"provisioning failed", &ProvisioningFailedError{Detail: "create schema"}, http.StatusInternalServerError},
		{"plain error", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestHTTPStatusWrapped(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", DuplicateEmail("a@b.c"))
	assert.Equal(t, http.StatusConflict, HTTPStatus(wrapped))
	assert.True(t, IsConflict(wrapped))
}

func TestConflictCodes(t *testing.T) {
	assert.Equal(t, "DUPLICATE_EMAIL", DuplicateEmail("a@b.c").Code)
	assert.Equal(t, "DUPLICATE_TABLE_NAME", DuplicateTableName("orders").Code)
	assert.Equal(t, "SCHEMA_NAME_EXHAUSTED", SchemaNameExhausted("acme").Code)
	assert.Equal(t, "EMAIL_EXHAUSTED", EmailExhausted("a@b.c").Code)
	assert.Equal(t, "HAS_DEPENDENT_DATA", HasDependentData("module").Code)
	assert.Equal(t, "SOURCE_NOT_FOUND", SourceNotFound("EMP-XYZ").Code)
}
