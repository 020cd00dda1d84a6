package car_test

import (
	"testing"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/lanesim/entity"
	"github.com/tsinghua-fib-lab/lanesim/entity/car"
	"github.com/tsinghua-fib-lab/lanesim/entity/junction"
	"github.com/tsinghua-fib-lab/lanesim/entity/road"
	"github.com/tsinghua-fib-lab/lanesim/utils/config"
	"github.com/tsinghua-fib-lab/lanesim/utils/spline"
)

type crossing struct {
	roads                    *road.RoadManager
	i                        *junction.Intersection
	west, east, south, north *road.Road
}

// 中心位于原点的四车道双向停车让行路口
func newCrossing(t *testing.T) crossing {
	roads := road.NewManager(nil)
	i, err := junction.New(roads.NextID(), entity.StopSign, geometry.Point{}, 4, 20, true, roads, config.DefaultParams())
	require.NoError(t, err)
	require.NoError(t, roads.Add(i))
	mk := func(from, to geometry.Point) *road.Road {
		r, err := road.New(roads.NextID(), spline.Line(from, to), 4, 5, 20, true)
		require.NoError(t, err)
		require.NoError(t, roads.Add(r))
		return r
	}
	c := crossing{
		roads: roads,
		i:     i,
		west:  mk(geometry.Point{X: -400}, geometry.Point{X: -100}),
		east:  mk(geometry.Point{X: 100}, geometry.Point{X: 400}),
		south: mk(geometry.Point{Y: -100}, geometry.Point{Y: -400}),
		north: mk(geometry.Point{Y: 400}, geometry.Point{Y: 100}),
	}
	require.NoError(t, i.ConnectRoadEnd(c.west, entity.SideLeft, 50))
	require.NoError(t, i.ConnectRoadStart(c.east, entity.SideRight, 50))
	require.NoError(t, i.ConnectRoadStart(c.south, entity.SideBottom, 50))
	require.NoError(t, i.ConnectRoadEnd(c.north, entity.SideTop, 50))
	return c
}

// 沿x轴的单向直路
func newStraight(t *testing.T, lanes int, length float64) (*road.RoadManager, *road.Road) {
	roads := road.NewManager(nil)
	r, err := road.New(roads.NextID(), spline.Line(geometry.Point{}, geometry.Point{X: length}), lanes, 5, 20, false)
	require.NoError(t, err)
	require.NoError(t, roads.Add(r))
	return roads, r
}

func TestSetRouteErrors(t *testing.T) {
	c := newCrossing(t)
	v := car.New(1, 0, entity.OriginStart, c.roads, config.DefaultParams())

	err := v.SetRoute([]int32{c.i.ID(), c.east.ID()})
	assert.True(t, errors.Is(err, car.ErrRouteStartsOnIntersection))

	err = v.SetRoute([]int32{c.west.ID(), c.i.ID(), c.west.ID()})
	assert.True(t, errors.Is(err, junction.ErrNoPath))

	err = v.SetRoute([]int32{c.west.ID(), c.i.ID()})
	assert.True(t, errors.Is(err, junction.ErrNoPath))

	assert.Error(t, v.SetRoute([]int32{c.west.ID(), 99}))

	bad := car.New(2, 2, entity.OriginStart, c.roads, config.DefaultParams())
	err = bad.SetRoute([]int32{c.west.ID()})
	assert.True(t, errors.Is(err, road.ErrLaneOutOfRange))
	assert.Zero(t, bad.Tracker().RouteLen())
}

func TestOriginInference(t *testing.T) {
	c := newCrossing(t)
	v := car.New(1, 0, entity.OriginStart, c.roads, config.DefaultParams())
	require.NoError(t, v.SetRoute([]int32{c.east.ID(), c.i.ID(), c.west.ID()}))

	// 向西行驶时最外侧车道在y>0一侧
	p := v.Position()
	assert.InDelta(t, 42, p.Y, 1e-6)
	assert.Greater(t, p.X, 390.)

	w := car.New(2, 0, entity.OriginStart, c.roads, config.DefaultParams())
	require.NoError(t, w.SetRoute([]int32{c.west.ID(), c.i.ID(), c.east.ID()}))
	p = w.Position()
	assert.InDelta(t, -42, p.Y, 1e-6)
	assert.InDelta(t, -400, p.X, 1e-6)
}

func TestCrossIntersection(t *testing.T) {
	c := newCrossing(t)
	v := car.New(1, 0, entity.OriginStart, c.roads, config.DefaultParams())
	require.NoError(t, v.SetRoute([]int32{c.west.ID(), c.i.ID(), c.east.ID()}))
	tr := v.Tracker()
	tr.SetHasStopped(true)

	for n := 0; tr.RoadIndex() == 0; n++ {
		require.Less(t, n, 10000)
		tr.NextPoint()
	}
	assert.True(t, tr.InIntersection())
	assert.True(t, c.i.IsRegistered(v))
	assert.False(t, tr.HasStopped())
	assert.Equal(t, 0, tr.Lane())
	assert.InDelta(t, -42, tr.CurrentPoint().Y, 1e-6)

	for n := 0; tr.RoadIndex() == 1; n++ {
		require.Less(t, n, 10000)
		tr.NextPoint()
	}
	assert.False(t, tr.InIntersection())
	assert.False(t, c.i.IsRegistered(v))
	assert.Equal(t, 0, tr.Lane())
	assert.InDelta(t, -42, tr.CurrentPoint().Y, 1e-6)

	for n := 0; !tr.AtLastPoint(); n++ {
		require.Less(t, n, 10000)
		tr.NextPoint()
	}
	last := tr.CurrentPoint()
	tr.NextPoint()
	assert.True(t, tr.AtLastPoint())
	assert.Equal(t, last, tr.CurrentPoint())
}

func TestTurnTargetLane(t *testing.T) {
	c := newCrossing(t)
	params := config.DefaultParams()

	// 右转只能从最外侧车道驶入
	right := car.New(1, 1, entity.OriginStart, c.roads, params)
	require.NoError(t, right.SetRoute([]int32{c.west.ID(), c.i.ID(), c.south.ID()}))
	lane, ok := right.Tracker().TargetLane()
	assert.True(t, ok)
	assert.Equal(t, 0, lane)
	want, target, forced := right.WantsLaneChange()
	assert.True(t, want)
	assert.True(t, forced)
	assert.Equal(t, 0, target)

	// 左转只能从最内侧车道驶入
	left := car.New(2, 0, entity.OriginStart, c.roads, params)
	require.NoError(t, left.SetRoute([]int32{c.west.ID(), c.i.ID(), c.north.ID()}))
	lane, ok = left.Tracker().TargetLane()
	assert.True(t, ok)
	assert.Equal(t, 1, lane)

	// 直行对车道没有要求
	straight := car.New(3, 1, entity.OriginStart, c.roads, params)
	require.NoError(t, straight.SetRoute([]int32{c.west.ID(), c.i.ID(), c.east.ID()}))
	_, ok = straight.Tracker().TargetLane()
	assert.False(t, ok)
	want, _, _ = straight.WantsLaneChange()
	assert.False(t, want)
}

func TestTurnExitLane(t *testing.T) {
	c := newCrossing(t)
	v := car.New(1, 0, entity.OriginStart, c.roads, config.DefaultParams())
	require.NoError(t, v.SetRoute([]int32{c.west.ID(), c.i.ID(), c.south.ID()}))
	tr := v.Tracker()
	for n := 0; tr.RoadIndex() < 2; n++ {
		require.Less(t, n, 10000)
		if tr.InIntersection() {
			assert.Equal(t, 0, tr.Lane())
		}
		tr.NextPoint()
	}
	assert.Equal(t, 0, tr.Lane())
	// 向南行驶时最外侧车道在x<0一侧
	assert.InDelta(t, -42, tr.CurrentPoint().X, 1e-6)
}

func TestSetLaneOutOfRange(t *testing.T) {
	roads, r := newStraight(t, 2, 1000)
	v := car.New(1, 0, entity.OriginStart, roads, config.DefaultParams())
	require.NoError(t, v.SetRoute([]int32{r.ID()}))
	tr := v.Tracker()
	before := tr.CurrentPoint()

	err := tr.SetLane(2, 0)
	assert.True(t, errors.Is(err, road.ErrLaneOutOfRange))
	err = tr.SetLane(-1, 0)
	assert.True(t, errors.Is(err, road.ErrLaneOutOfRange))
	assert.Equal(t, 0, tr.Lane())
	assert.False(t, tr.IsChangingLanes())
	assert.Equal(t, before, tr.CurrentPoint())
}

func TestLaneChangeCompletes(t *testing.T) {
	params := config.DefaultParams()
	roads, r := newStraight(t, 2, 1000)
	v := car.New(1, 0, entity.OriginStart, roads, params)
	require.NoError(t, v.SetRoute([]int32{r.ID()}))
	tr := v.Tracker()
	assert.InDelta(t, 14, tr.CurrentPoint().Y, 1e-9)

	require.NoError(t, tr.SetLane(1, 0))
	assert.True(t, tr.IsChangingLanes())
	assert.Equal(t, 0, tr.ChangingFrom())
	assert.Equal(t, 1, tr.Lane())
	assert.InDelta(t, 14, tr.CurrentPoint().Y, 1e-9)

	steps := int(params.MinLaneChangeSteps)
	for n := 0; n < steps-1; n++ {
		tr.NextPoint()
	}
	assert.True(t, tr.IsChangingLanes())
	y := tr.CurrentPoint().Y
	assert.Less(t, y, 14.)
	assert.Greater(t, y, -14.)

	tr.NextPoint()
	assert.False(t, tr.IsChangingLanes())
	assert.Equal(t, -1, tr.ChangingFrom())
	assert.Equal(t, 1, tr.Lane())
	assert.InDelta(t, -14, tr.CurrentPoint().Y, 1e-9)
}

// 变道未完成时再次变道返回错误且不打断当前插值
func TestSetLaneWhileChanging(t *testing.T) {
	roads, r := newStraight(t, 3, 1000)
	v := car.New(1, 0, entity.OriginStart, roads, config.DefaultParams())
	require.NoError(t, v.SetRoute([]int32{r.ID()}))
	tr := v.Tracker()
	require.NoError(t, tr.SetLane(1, 0))
	tr.NextPoint()
	p := tr.CurrentPoint()

	err := tr.SetLane(2, 0)
	assert.True(t, errors.Is(err, car.ErrLaneChangeInProgress))
	assert.True(t, tr.IsChangingLanes())
	assert.Equal(t, 0, tr.ChangingFrom())
	assert.Equal(t, 1, tr.Lane())
	assert.Equal(t, p, tr.CurrentPoint())
	// 目标就是正在驶入的车道时不做任何事
	assert.NoError(t, tr.SetLane(1, 0))
}

func TestLaneChangeDisabled(t *testing.T) {
	roads, r := newStraight(t, 2, 1000)
	v := car.New(1, 0, entity.OriginStart, roads, config.DefaultParams(), car.WithLaneChange(false))
	require.NoError(t, v.SetRoute([]int32{r.ID()}))
	require.NoError(t, v.Tracker().SetLane(1, 0))
	assert.False(t, v.Tracker().IsChangingLanes())
	assert.Equal(t, 0, v.Lane())
	want, _, _ := v.WantsLaneChange()
	assert.False(t, want)
}

func TestLoopRoute(t *testing.T) {
	roads, r := newStraight(t, 1, 100)
	v := car.New(1, 0, entity.OriginStart, roads, config.DefaultParams(), car.WithLoop(true))
	require.NoError(t, v.SetRoute([]int32{r.ID()}))
	tr := v.Tracker()
	first := tr.CurrentPoint()
	for n := 0; n < len(r.RoadPoints(0)); n++ {
		assert.False(t, tr.AtLastPoint())
		tr.NextPoint()
	}
	assert.Equal(t, 0, tr.ProgressIndex())
	assert.Equal(t, first, tr.CurrentPoint())
}

func TestAddToRouteTrailingIntersection(t *testing.T) {
	c := newCrossing(t)
	v := car.New(1, 0, entity.OriginStart, c.roads, config.DefaultParams())
	require.NoError(t, v.AddToRoute(c.west.ID()))
	require.NoError(t, v.AddToRoute(c.i.ID()))
	require.NoError(t, v.AddToRoute(c.east.ID()))
	assert.Equal(t, 3, v.Tracker().RouteLen())
	assert.InDelta(t, -400, v.Position().X, 1e-6)
	inter, prev, next, ok := v.Tracker().NextIntersection()
	require.True(t, ok)
	assert.Equal(t, c.i.ID(), inter.ID())
	assert.Equal(t, c.west.ID(), prev)
	assert.Equal(t, c.east.ID(), next)
}

// 末尾的路口还没有驶出道路时停在驶入道路末端，追加后继续行驶
func TestTrailingIntersectionHold(t *testing.T) {
	c := newCrossing(t)
	v := car.New(1, 0, entity.OriginStart, c.roads, config.DefaultParams())
	require.NoError(t, v.AddToRoute(c.west.ID()))
	require.NoError(t, v.AddToRoute(c.i.ID()))
	tr := v.Tracker()

	require.NotPanics(t, func() {
		for n := 0; n < 1000; n++ {
			tr.NextPoint()
		}
	})
	assert.Equal(t, 0, tr.RoadIndex())
	assert.True(t, tr.AtLastPoint())
	assert.InDelta(t, -100, tr.CurrentPoint().X, 2)

	require.NoError(t, tr.AddToRoute(c.east.ID()))
	assert.False(t, tr.AtLastPoint())
	tr.NextPoint()
	assert.Equal(t, 1, tr.RoadIndex())
	assert.True(t, tr.InIntersection())
	for n := 0; tr.RoadIndex() < 2; n++ {
		require.Less(t, n, 1000)
		tr.NextPoint()
	}
	assert.Equal(t, c.east.ID(), tr.CurrentRoad().ID())
}

func TestStartAt(t *testing.T) {
	roads, r := newStraight(t, 1, 1000)
	v := car.New(1, 0, entity.OriginEnd, roads, config.DefaultParams())
	require.NoError(t, v.SetRoute([]int32{r.ID()}))
	assert.InDelta(t, 999, v.Position().X, 1e-6)
	v.StartAt(0.5)
	assert.InDelta(t, 500, v.Position().X, 1.)
}
