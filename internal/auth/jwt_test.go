package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	svc, err := NewTokenService(testSecret, 30*time.Minute, 8*time.Hour)
	require.NoError(t, err)
	return svc
}

func TestNewTokenServiceRejectsShortSecret(t *testing.T) {
	_, err := NewTokenService("short", time.Minute, time.Minute)
	assert.Error(t, err)
}

func TestPreTenantRoundTrip(t *testing.T) {
	svc := newTestTokenService(t)

	token, err := svc.GeneratePreTenant("jo@acme.test", "Jo")
	require.NoError(t, err)

	claims, err := svc.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, StagePreTenant, claims.Stage)
	assert.Equal(t, "jo@acme.test", claims.Email)
	assert.Equal(t, "Jo", claims.Name)
	assert.Empty(t, claims.TenantSchema)
	assert.Empty(t, claims.UserID)
}

func TestTenantRoundTrip(t *testing.T) {
	svc := newTestTokenService(t)
	userID := uuid.New()

	token, err := svc.GenerateTenant(userID, "jo@acme.test", "EMP-ABC123", "acme_corp", []string{"Admin", "Editor"})
	require.NoError(t, err)

	claims, err := svc.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, StageTenant, claims.Stage)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, "EMP-ABC123", claims.TenantCode)
	assert.Equal(t, "acme_corp", claims.TenantSchema)
	assert.Equal(t, []string{"Admin", "Editor"}, claims.Roles)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	svc := newTestTokenService(t)
	other, err := NewTokenService("ffffffffffffffffffffffffffffffff", time.Minute, time.Minute)
	require.NoError(t, err)

	token, err := svc.GeneratePreTenant("jo@acme.test", "Jo")
	require.NoError(t, err)

	_, err = other.Parse(token)
	assert.Error(t, err)
}

func TestParseRejectsExpired(t *testing.T) {
	svc, err := NewTokenService(testSecret, -time.Minute, -time.Minute)
	require.NoError(t, err)

	token, err := svc.GeneratePreTenant("jo@acme.test", "Jo")
	require.NoError(t, err)

	_, err = svc.Parse(token)
	assert.Error(t, err)
}

func TestParseRejectsGarbage(t *testing.T) {
	svc := newTestTokenService(t)
	_, err := svc.Parse("not.a.token")
	assert.Error(t, err)
}
