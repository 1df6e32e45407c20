package numeric

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUnit(t *testing.T) {
	testCases := []struct {
		in     string
		want   Unit
		wantMM float64
	}{
		{"mm", Millimetre, 1},
		{"cm", Centimetre, 10},
		{"m", Metre, 1000},
		{"in", Inch, 25.4},
		{"ft", Foot, 304.8},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			u, err := ParseUnit(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, u)
			assert.Equal(t, tc.wantMM, u.Factor())
		})
	}

	_, err := ParseUnit("furlong")
	assert.Error(t, err)
}

func TestContext_Conversions(t *testing.T) {
	c := Default()
	c.Unit = Centimetre

	assert.Equal(t, 25.0, c.ToInternal(2.5))
	assert.Equal(t, 2.5, c.FromInternal(25.0))
}

func TestAngles(t *testing.T) {
	assert.InDelta(t, math.Pi, Radians(180), 1e-12)
	assert.InDelta(t, 90.0, Degrees(math.Pi/2), 1e-12)
}
