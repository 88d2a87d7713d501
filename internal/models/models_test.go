package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRightsOr(t *testing.T) {
	// A user with a read-only role and a create-only role ends up with
	// both, and nothing more.
	reader := Rights{CanRead: true}
	creator := Rights{CanCreate: true}

	effective := reader.Or(creator)
	assert.Equal(t, Rights{CanCreate: true, CanRead: true}, effective)

	// OR never revokes: folding in an all-false grant changes nothing.
	assert.Equal(t, effective, effective.Or(Rights{}))

	// Zero roles means zero rights.
	var none Rights
	assert.Equal(t, Rights{}, none)
	assert.False(t, none.Any())
}

func TestRightsAny(t *testing.T) {
	assert.False(t, Rights{}.Any())
	assert.True(t, Rights{CanDelete: true}.Any())
	assert.True(t, Rights{CanCreate: true, CanRead: true, CanUpdate: true, CanDelete: true}.Any())
}
