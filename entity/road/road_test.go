package road_test

import (
	"testing"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/lanesim/entity/road"
	"github.com/tsinghua-fib-lab/lanesim/utils/spline"
)

func straight(t *testing.T, lanes int, twoWay bool) *road.Road {
	s := spline.Line(geometry.Point{}, geometry.Point{X: 100})
	r, err := road.New(1, s, lanes, 5, 20, twoWay, road.WithLaneGap(8))
	require.NoError(t, err)
	return r
}

func TestNewRejectsOddTwoWay(t *testing.T) {
	s := spline.Line(geometry.Point{}, geometry.Point{X: 100})
	_, err := road.New(1, s, 3, 5, 20, true)
	assert.True(t, errors.Is(err, road.ErrOddTwoWayLanes))

	_, err = road.New(1, s, 3, 5, 20, false)
	assert.NoError(t, err)
}

func TestLaneGeometry(t *testing.T) {
	r := straight(t, 2, false)
	assert.Equal(t, 2, r.LaneCount())
	assert.InDelta(t, 14, r.LaneOffset(0), 1e-9)
	assert.InDelta(t, -14, r.LaneOffset(1), 1e-9)
	assert.InDelta(t, 2*20+3*8, r.Thickness(), 1e-9)
	assert.InDelta(t, r.Thickness(), r.Spline().Thickness(), 1e-9)

	pts := r.RoadPoints(0)
	require.Len(t, pts, 100)
	assert.InDelta(t, 0, pts[0].X, 1e-6)
	assert.InDelta(t, 14, pts[0].Y, 1e-6)
	assert.InDelta(t, 50, pts[50].X, 1e-6)
	assert.InDelta(t, -14, r.RoadPoints(1)[10].Y, 1e-6)
	assert.Nil(t, r.RoadPoints(2))
}

func TestBuildLanePointsDetail(t *testing.T) {
	r := straight(t, 1, false)
	pts := r.BuildLanePoints(4)
	require.Len(t, pts, 1)
	require.Len(t, pts[0], 4)
	for j, p := range pts[0] {
		assert.InDelta(t, float64(j)*25, p.X, 1e-6)
	}
}

func TestRecomputeAfterMove(t *testing.T) {
	r := straight(t, 1, false)
	r.Spline().MoveTo(geometry.Point{Y: 50})
	r.RecomputePoints()
	assert.InDelta(t, 50, r.RoadPoints(0)[0].Y, 1e-6)
}

func TestLaneLinesIsCopy(t *testing.T) {
	r := straight(t, 2, false)
	lines := r.LaneLines()
	lines[0][0].X = 1000
	assert.InDelta(t, 0, r.RoadPoints(0)[0].X, 1e-6)
}

func TestTwoWayLaneCount(t *testing.T) {
	r := straight(t, 4, true)
	assert.Equal(t, 4, r.NumLanes())
	assert.Equal(t, 2, r.LaneCount())
	assert.True(t, r.LaneInRange(1))
	assert.False(t, r.LaneInRange(2))
	assert.False(t, r.LaneInRange(-1))
}
