package vec_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/lanesim/utils/vec"
)

func TestPerpAndFromAngle(t *testing.T) {
	assert.Equal(t, vec.New(-2, 1), vec.Perp(vec.New(1, 2)))
	r := vec.New(1, 2).Rotate(math.Pi / 2)
	assert.InDelta(t, -2, r.X, 1e-12)
	assert.InDelta(t, 1, r.Y, 1e-12)

	f := vec.FromAngle(math.Pi)
	assert.InDelta(t, -1, f.X, 1e-12)
	assert.InDelta(t, 0, f.Y, 1e-12)
	assert.InDelta(t, math.Pi/3, vec.FromAngle(math.Pi/3).Angle2D(), 1e-12)
}

func TestHeadingAndAngle(t *testing.T) {
	h, ok := vec.Heading(vec.New(1, 1), vec.New(1, 5))
	assert.True(t, ok)
	assert.InDelta(t, math.Pi/2, h, 1e-12)
	_, ok = vec.Heading(vec.New(1, 1), vec.New(1, 1))
	assert.False(t, ok)
	_, ok = vec.Heading(vec.New(1, 1), vec.New(math.NaN(), 1))
	assert.False(t, ok)

	assert.InDelta(t, math.Pi, vec.Angle(vec.New(1, 0), vec.New(-2, 0)), 1e-12)
	assert.InDelta(t, math.Pi/4, vec.Angle(vec.New(1, 0), vec.New(1, 1)), 1e-12)
	assert.Equal(t, 0., vec.Angle(vec.New(0, 0), vec.New(1, 0)))
}
