package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDirection(t *testing.T) {
	d, err := normalizeDirection("")
	require.NoError(t, err)
	assert.Equal(t, "asc", d)

	d, err = normalizeDirection("asc")
	require.NoError(t, err)
	assert.Equal(t, "asc", d)

	d, err = normalizeDirection("desc")
	require.NoError(t, err)
	assert.Equal(t, "desc", d)

	for _, bad := range []string{"ASC", "descending", "random()"} {
		_, err := normalizeDirection(bad)
		assert.Error(t, err, "expected %q to be rejected", bad)
	}
}
