package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBcryptCredentialsRoundTrip(t *testing.T) {
	creds := NewBcryptCredentials()

	hash, err := creds.Hash("correct horse battery")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery", hash)

	assert.True(t, creds.Verify("correct horse battery", hash))
	assert.False(t, creds.Verify("wrong password", hash))
	assert.False(t, creds.Verify("correct horse battery", "not-a-hash"))
}

func TestBcryptCredentialsRejectsShortPassword(t *testing.T) {
	creds := NewBcryptCredentials()
	_, err := creds.Hash("short")
	assert.Error(t, err)
}
