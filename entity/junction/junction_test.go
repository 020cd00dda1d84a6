package junction_test

import (
	"testing"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/lanesim/entity"
	"github.com/tsinghua-fib-lab/lanesim/entity/junction"
	"github.com/tsinghua-fib-lab/lanesim/entity/junction/trafficlight"
	"github.com/tsinghua-fib-lab/lanesim/entity/road"
	"github.com/tsinghua-fib-lab/lanesim/utils/config"
	"github.com/tsinghua-fib-lab/lanesim/utils/spline"
)

type fakeCar struct {
	id      int32
	lane    int
	pos     geometry.Point
	stopped bool
}

func (c *fakeCar) ID() int32                       { return c.id }
func (c *fakeCar) Lane() int                       { return c.lane }
func (c *fakeCar) Position() geometry.Point        { return c.pos }
func (c *fakeCar) DirectionVector() geometry.Point { return geometry.Point{X: 1} }
func (c *fakeCar) Speed() float64                  { return 0 }
func (c *fakeCar) HasStopped() bool                { return c.stopped }

type scene struct {
	i                        *junction.Intersection
	west, east, south, north *road.Road
}

// 中心位于原点的四车道路口，四条道路分别接在四条边上
func setup(t *testing.T, kind entity.IntersectionKind, twoWay bool) scene {
	roads := road.NewManager(nil)
	i, err := junction.New(roads.NextID(), kind, geometry.Point{}, 4, 20, twoWay, roads, config.DefaultParams())
	require.NoError(t, err)
	require.NoError(t, roads.Add(i))
	mk := func(from, to geometry.Point) *road.Road {
		r, err := road.New(roads.NextID(), spline.Line(from, to), 4, 5, 20, twoWay)
		require.NoError(t, err)
		require.NoError(t, roads.Add(r))
		return r
	}
	s := scene{
		i:     i,
		west:  mk(geometry.Point{X: -400}, geometry.Point{X: -100}),
		east:  mk(geometry.Point{X: 100}, geometry.Point{X: 400}),
		south: mk(geometry.Point{Y: -100}, geometry.Point{Y: -400}),
		north: mk(geometry.Point{Y: 400}, geometry.Point{Y: 100}),
	}
	require.NoError(t, i.ConnectRoadEnd(s.west, entity.SideLeft, 50))
	require.NoError(t, i.ConnectRoadStart(s.east, entity.SideRight, 50))
	require.NoError(t, i.ConnectRoadStart(s.south, entity.SideBottom, 50))
	require.NoError(t, i.ConnectRoadEnd(s.north, entity.SideTop, 50))
	return s
}

func TestGeometry(t *testing.T) {
	s := setup(t, entity.StopSign, true)
	assert.InDelta(t, 4*20+5*8, s.i.Size(), 1e-9)
	assert.Equal(t, geometry.Point{X: -60}, s.i.SidePoint(entity.SideLeft))
	assert.Equal(t, geometry.Point{Y: 60}, s.i.SidePoint(entity.SideTop))
	assert.Len(t, s.i.Paths(), 12)
	assert.Equal(t, 0, s.i.LaneCount())
	assert.InDelta(t, config.DefaultParams().StopSignSpeedLimit, s.i.SpeedLimit(), 1e-9)

	_, end := s.west.Endpoints()
	assert.InDelta(t, -60, end.X, 1e-6)
	assert.InDelta(t, 0, end.Y, 1e-6)
	start, end := s.east.Endpoints()
	assert.InDelta(t, 60, start.X, 1e-6)
	assert.InDelta(t, 400, end.X, 1e-6)
}

func TestOneWayPaths(t *testing.T) {
	roads := road.NewManager(nil)
	i, err := junction.New(0, entity.TrafficLight, geometry.Point{}, 2, 20, false, roads, config.DefaultParams())
	require.NoError(t, err)
	moves := make([][2]entity.Side, 0)
	for _, tp := range i.Paths() {
		moves = append(moves, [2]entity.Side{tp.FromSide, tp.ToSide})
	}
	assert.ElementsMatch(t, [][2]entity.Side{
		{entity.SideLeft, entity.SideRight},
		{entity.SideTop, entity.SideBottom},
		{entity.SideLeft, entity.SideBottom},
		{entity.SideTop, entity.SideRight},
	}, moves)
}

func TestOddTwoWayLanes(t *testing.T) {
	_, err := junction.New(0, entity.StopSign, geometry.Point{}, 3, 20, true, road.NewManager(nil), config.DefaultParams())
	assert.True(t, errors.Is(err, road.ErrOddTwoWayLanes))
}

func TestConnectErrors(t *testing.T) {
	s := setup(t, entity.StopSign, true)
	r, err := road.New(99, spline.Line(geometry.Point{X: -500}, geometry.Point{X: -300}), 4, 5, 20, true)
	require.NoError(t, err)
	assert.True(t, errors.Is(s.i.ConnectRoadEnd(r, entity.SideLeft, 10), junction.ErrSideTaken))
	assert.True(t, errors.Is(s.i.ConnectRoadStart(r, entity.Side(4), 10), junction.ErrInvalidSide))
	assert.True(t, errors.Is(s.i.ConnectRoadStart(r, entity.Side(-1), 10), junction.ErrInvalidSide))
}

func TestGetPath(t *testing.T) {
	s := setup(t, entity.StopSign, true)

	tp, err := s.i.GetPath(s.west.ID(), s.east.ID())
	require.NoError(t, err)
	assert.Equal(t, entity.SideLeft, tp.FromSide)
	assert.Equal(t, entity.SideRight, tp.ToSide)
	assert.Equal(t, entity.OriginStart, tp.Origin)
	assert.Empty(t, tp.EntryLanes)
	assert.Equal(t, -1, tp.ExitLane)

	back, err := s.i.GetPath(s.east.ID(), s.west.ID())
	require.NoError(t, err)
	assert.Equal(t, tp.Path, back.Path)
	assert.Equal(t, entity.OriginEnd, back.Origin)

	// 右转使用外侧车道，左转使用内侧车道
	right, err := s.i.GetPath(s.west.ID(), s.south.ID())
	require.NoError(t, err)
	assert.Equal(t, 0, junction.PathLane(right, 1))
	assert.Equal(t, 0, junction.PathLane(entity.TurnPath{}, 1))
	assert.Equal(t, []int{0}, right.EntryLanes)
	assert.Equal(t, 0, right.ExitLane)
	assert.Equal(t, 1, right.Path.NumLanes())
	start, end := right.Path.Endpoints()
	assert.InDelta(t, -60, start.X, 1e-6)
	assert.InDelta(t, -42, start.Y, 1e-6)
	assert.InDelta(t, -42, end.X, 1e-6)

	left, err := s.i.GetPath(s.west.ID(), s.north.ID())
	require.NoError(t, err)
	assert.Equal(t, []int{1}, left.EntryLanes)
	assert.Equal(t, 1, left.ExitLane)

	_, err = s.i.GetPath(s.west.ID(), 1234)
	assert.True(t, errors.Is(err, junction.ErrNoPath))
}

func TestQueue(t *testing.T) {
	s := setup(t, entity.StopSign, true)
	a, b := &fakeCar{id: 1}, &fakeCar{id: 2}
	assert.Equal(t, -1, s.i.QueueIndex(a))
	s.i.Register(a)
	s.i.Register(b)
	s.i.Register(a)
	assert.Equal(t, 0, s.i.QueueIndex(a))
	assert.Equal(t, 1, s.i.QueueIndex(b))
	assert.True(t, s.i.IsRegistered(b))

	s.i.Unregister(a)
	s.i.Unregister(a)
	assert.False(t, s.i.IsRegistered(a))
	assert.Equal(t, 0, s.i.QueueIndex(b))
	assert.Len(t, s.i.Queue(), 1)
}

func TestCanContinueStopSign(t *testing.T) {
	s := setup(t, entity.StopSign, true)
	far := &fakeCar{id: 1, pos: geometry.Point{X: -400, Y: -42}}
	assert.Equal(t, entity.Continue, s.i.CanContinue(far, nil, s.west.ID(), s.east.ID()).State)

	near := &fakeCar{id: 2, pos: geometry.Point{X: -100, Y: -42}}
	res := s.i.CanContinue(near, nil, s.west.ID(), s.east.ID())
	require.Equal(t, entity.Stop, res.State)
	assert.InDelta(t, -60, res.Point.X, 1e-6)
	assert.InDelta(t, -42, res.Point.Y, 1e-6)

	// 更近的障碍物已经约束车辆
	obstacles := []entity.Obstacle{{Point: geometry.Point{X: -90, Y: -42}}}
	assert.Equal(t, entity.Continue, s.i.CanContinue(near, obstacles, s.west.ID(), s.east.ID()).State)

	near.stopped = true
	assert.Equal(t, entity.Continue, s.i.CanContinue(near, nil, s.west.ID(), s.east.ID()).State)

	assert.Equal(t, entity.NoPath, s.i.CanContinue(near, nil, s.west.ID(), 1234).State)
}

func TestStopSignFIFO(t *testing.T) {
	s := setup(t, entity.StopSign, true)
	first := &fakeCar{id: 1, pos: geometry.Point{X: -90, Y: -42}, stopped: true}
	second := &fakeCar{id: 2, pos: geometry.Point{X: -42, Y: 90}, stopped: true}
	s.i.Register(first)
	s.i.Register(second)

	assert.Equal(t, entity.Continue, s.i.CanContinue(first, nil, s.west.ID(), s.east.ID()).State)
	assert.Equal(t, entity.Stop, s.i.CanContinue(second, nil, s.north.ID(), s.south.ID()).State)

	s.i.Unregister(first)
	assert.Equal(t, entity.Continue, s.i.CanContinue(second, nil, s.north.ID(), s.south.ID()).State)
}

func TestCanContinueTrafficLight(t *testing.T) {
	s := setup(t, entity.TrafficLight, true)
	car := &fakeCar{id: 1, pos: geometry.Point{X: -100, Y: -42}}
	// 没有程序时全绿，但仍需先停稳
	assert.Equal(t, entity.Stop, s.i.CanContinue(car, nil, s.west.ID(), s.east.ID()).State)
	car.stopped = true
	assert.Equal(t, entity.Continue, s.i.CanContinue(car, nil, s.west.ID(), s.east.ID()).State)

	require.NoError(t, s.i.SetTrafficLight(&trafficlight.Program{Phases: []trafficlight.Phase{
		{Duration: 10, GreenSides: []entity.Side{entity.SideTop, entity.SideBottom}},
		{Duration: 10, GreenSides: []entity.Side{entity.SideLeft, entity.SideRight}},
	}}))
	m := junction.NewManager(nil)
	m.Add(s.i)
	m.Update(1)
	// 红灯时已停稳也不能通行
	res := s.i.CanContinue(car, nil, s.west.ID(), s.east.ID())
	assert.Equal(t, entity.Stop, res.State)
	assert.NotEqual(t, geometry.Point{}, res.Point)

	m.Update(10)
	assert.Equal(t, entity.Continue, s.i.CanContinue(car, nil, s.west.ID(), s.east.ID()).State)
	// 绿灯时未停稳的车辆仍需停车
	moving := &fakeCar{id: 2, pos: geometry.Point{X: -100, Y: -42}}
	assert.Equal(t, entity.Stop, s.i.CanContinue(moving, nil, s.west.ID(), s.east.ID()).State)

	stop := setup(t, entity.StopSign, true)
	assert.Error(t, stop.i.SetTrafficLight(&trafficlight.Program{}))
}

// 绿灯同样按先到先行，排在后面的车辆等待
func TestCanContinueTrafficLightQueue(t *testing.T) {
	s := setup(t, entity.TrafficLight, true)
	first := &fakeCar{id: 1, pos: geometry.Point{X: -90, Y: -42}, stopped: true}
	second := &fakeCar{id: 2, pos: geometry.Point{X: -42, Y: 90}, stopped: true}
	s.i.Register(first)
	s.i.Register(second)

	assert.Equal(t, entity.Continue, s.i.CanContinue(first, nil, s.west.ID(), s.east.ID()).State)
	assert.Equal(t, entity.Stop, s.i.CanContinue(second, nil, s.north.ID(), s.south.ID()).State)

	s.i.Unregister(first)
	assert.Equal(t, entity.Continue, s.i.CanContinue(second, nil, s.north.ID(), s.south.ID()).State)
}

func TestManagerGet(t *testing.T) {
	s := setup(t, entity.StopSign, true)
	m := junction.NewManager(nil)
	m.Add(s.i)
	assert.Equal(t, entity.IIntersection(s.i), m.Get(s.i.ID()))
	_, err := m.GetOrError(77)
	assert.Error(t, err)
	assert.Panics(t, func() { m.Get(77) })
}
