package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoinPairCanonicalOrder(t *testing.T) {
	lo, hi := joinPair(3, 9)
	assert.Equal(t, int64(3), lo)
	assert.Equal(t, int64(9), hi)

	// Swapped arguments must address the same stored row, otherwise two
	// concurrent creates for one pair slip past the unique constraint.
	lo, hi = joinPair(9, 3)
	assert.Equal(t, int64(3), lo)
	assert.Equal(t, int64(9), hi)
}
