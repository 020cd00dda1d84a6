package randengine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/lanesim/utils/randengine"
)

func TestDeterministic(t *testing.T) {
	a, b := randengine.New(7), randengine.New(7)
	for range 10 {
		assert.Equal(t, a.Float64Safe(), b.Float64Safe())
	}
}

func TestJitter(t *testing.T) {
	e := randengine.New(1)
	assert.Equal(t, 4., e.Jitter(4, 0))
	for range 1000 {
		v := e.Jitter(4, 0.1)
		assert.GreaterOrEqual(t, v, 3.6)
		assert.Less(t, v, 4.4)
	}
}
