package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidSchemaIdentifier(t *testing.T) {
	valid := []string{
		"acme",
		"acme_corp",
		"c_123",
		"A",
		"tenant_2",
		"public",
	}
	for _, name := range valid {
		assert.True(t, ValidSchemaIdentifier(name), "expected %q to be valid", name)
	}

	invalid := []string{
		"",
		"1acme",
		"_acme",
		"acme corp",
		"acme-corp",
		`acme"; DROP SCHEMA public; --`,
		"acme.corp",
		"café",
	}
	for _, name := range invalid {
		assert.False(t, ValidSchemaIdentifier(name), "expected %q to be invalid", name)
	}
}

// A released session's connection may already be bound to another tenant,
// so every query path must refuse instead of silently running on it.
func TestReleasedSessionRefusesQueries(t *testing.T) {
	ctx := context.Background()
	sess := &Session{schema: "c_acme", released: true}

	_, err := sess.Exec(ctx, `SELECT 1`)
	assert.Error(t, err)

	_, err = sess.Query(ctx, `SELECT 1`)
	assert.Error(t, err)

	var n int
	assert.Error(t, sess.QueryRow(ctx, `SELECT 1`).Scan(&n))

	_, err = sess.Begin(ctx)
	assert.Error(t, err)
}
