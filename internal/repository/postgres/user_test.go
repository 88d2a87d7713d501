package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lalith-99/gridbase/internal/db"
)

func TestMirrorRequired(t *testing.T) {
	assert.True(t, mirrorRequired("c_acme"))

	// A session bound to the shared schema writes the mirror row directly;
	// a second mirror statement would conflict with that write.
	assert.False(t, mirrorRequired(db.SharedSchema))
}
