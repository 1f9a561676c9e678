package clock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestampRoundTrip(t *testing.T) {
	s := Now()
	parsed, err := ParseTime(s)
	require.NoError(t, err)
	assert.Equal(t, s, FormatTime(parsed))
}

func TestGeomSpaceMonotonicDecreasing(t *testing.T) {
	pts := GeomSpace(2.0, 0.001, 30)
	require.Len(t, pts, 30)
	assert.Equal(t, 2.0, pts[0])
	for i := 1; i < len(pts); i++ {
		assert.Less(t, pts[i], pts[i-1])
	}
	assert.Greater(t, pts[len(pts)-1], 0.001, "endpoint=False: stop value itself is excluded")
}
