package car_test

import (
	"math"
	"testing"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/lanesim/entity"
	"github.com/tsinghua-fib-lab/lanesim/entity/car"
	"github.com/tsinghua-fib-lab/lanesim/utils/config"
)

type stubCar struct {
	speed float64
}

func (c *stubCar) ID() int32                       { return 99 }
func (c *stubCar) Lane() int                       { return 0 }
func (c *stubCar) Position() geometry.Point        { return geometry.Point{} }
func (c *stubCar) DirectionVector() geometry.Point { return geometry.Point{X: 1} }
func (c *stubCar) Speed() float64                  { return c.speed }
func (c *stubCar) HasStopped() bool                { return false }

func TestTravelNoOvershoot(t *testing.T) {
	roads, r := newStraight(t, 1, 1000)
	v := car.New(1, 0, entity.OriginStart, roads, config.DefaultParams())
	require.NoError(t, v.SetRoute([]int32{r.ID()}))

	v.Travel(1)
	assert.InDelta(t, 0.05, v.Speed(), 1e-12)
	assert.InDelta(t, 0.05, v.Position().X, 1e-9)

	v.Travel(2)
	assert.InDelta(t, 0.1, v.Speed(), 1e-12)
	assert.InDelta(t, 0.25, v.Position().X, 1e-9)
	assert.InDelta(t, 0, v.Position().Y, 1e-9)
	assert.InDelta(t, 0, v.Rotation(), 1e-9)
}

func TestTravelStopsAtRouteEnd(t *testing.T) {
	roads, r := newStraight(t, 1, 50)
	v := car.New(1, 0, entity.OriginStart, roads, config.DefaultParams())
	require.NoError(t, v.SetRoute([]int32{r.ID()}))
	for n := 0; n < 1000; n++ {
		v.Travel(1)
	}
	assert.True(t, v.Tracker().AtLastPoint())
	assert.InDelta(t, 49, v.Position().X, 1e-9)
}

func TestTravelAlongReverseOrigin(t *testing.T) {
	roads, r := newStraight(t, 1, 1000)
	v := car.New(1, 0, entity.OriginEnd, roads, config.DefaultParams())
	require.NoError(t, v.SetRoute([]int32{r.ID()}))
	for n := 0; n < 100; n++ {
		v.Travel(1)
	}
	assert.Less(t, v.Position().X, 999.)
	assert.InDelta(t, math.Pi, math.Abs(v.Rotation()), 1e-9)
	assert.InDelta(t, -1, v.DirectionVector().X, 1e-9)
}

// 三车道直路，每条车道一辆车，没有障碍物时单调加速到最高速度并保持
func TestAccelerateToMaxSpeed(t *testing.T) {
	roads, r := newStraight(t, 3, 3000)
	cars := make([]*car.Car, 3)
	for l := range cars {
		cars[l] = car.New(int32(l), l, entity.OriginStart, roads, config.DefaultParams(), car.WithMaxSpeed(4))
		require.NoError(t, cars[l].SetRoute([]int32{r.ID()}))
	}
	prev := make([]float64, 3)
	for n := 0; n < 200; n++ {
		for l, v := range cars {
			v.Travel(1)
			assert.GreaterOrEqual(t, v.Speed(), prev[l])
			assert.LessOrEqual(t, v.Speed(), 4.)
			prev[l] = v.Speed()
		}
	}
	for l, v := range cars {
		assert.InDelta(t, 4, v.Speed(), 1e-9)
		assert.Equal(t, l, v.Lane())
	}
}

func TestSpeedLimitCapsTarget(t *testing.T) {
	roads, r := newStraight(t, 1, 1000)
	v := car.New(1, 0, entity.OriginStart, roads, config.DefaultParams(), car.WithMaxSpeed(8))
	require.NoError(t, v.SetRoute([]int32{r.ID()}))
	assert.InDelta(t, 5, v.TargetSpeed(), 1e-12)
	v.SetMaxSpeed(2)
	assert.InDelta(t, 2, v.TargetSpeed(), 1e-12)
}

// 同车道前车停止时，后车减速停下且距离不小于停车距离
func TestFollowParkedCar(t *testing.T) {
	params := config.DefaultParams()
	roads, r := newStraight(t, 1, 1000)
	v := car.New(1, 0, entity.OriginStart, roads, params)
	require.NoError(t, v.SetRoute([]int32{r.ID()}))
	leader := geometry.Point{X: 600}
	for n := 0; n < 3000; n++ {
		v.SetObstaclesAhead([]entity.Obstacle{{Point: leader}})
		v.Travel(1)
		require.GreaterOrEqual(t, geometry.Distance2D(v.Position(), leader), params.StopDistance)
		require.GreaterOrEqual(t, v.Speed(), 0.)
	}
	assert.Zero(t, v.Speed())
	assert.False(t, v.HasStopped())
}

func TestStepToTargetSpeed(t *testing.T) {
	params := config.DefaultParams()
	roads, r := newStraight(t, 2, 1000)
	v := car.New(1, 0, entity.OriginStart, roads, params)
	require.NoError(t, v.SetRoute([]int32{r.ID()}))

	assert.InDelta(t, 1.05, v.StepToTargetSpeed(1, 3), 1e-12)
	assert.InDelta(t, 1.02, v.StepToTargetSpeed(1, 1.02), 1e-12)
	assert.InDelta(t, 0.9, v.StepToTargetSpeed(1, 0), 1e-12)
	assert.InDelta(t, 0.95, v.StepToTargetSpeed(1, 0.95), 1e-12)
	assert.Zero(t, v.StepToTargetSpeed(0.05, 0.01))
	assert.False(t, v.HasStopped())

	// 变道中加速度较小，减速不受影响
	require.NoError(t, v.Tracker().SetLane(1, 0))
	assert.InDelta(t, 1.02, v.StepToTargetSpeed(1, 3), 1e-12)
	assert.InDelta(t, 0.9, v.StepToTargetSpeed(1, 0), 1e-12)

	// 受路口停止线约束停稳时记为已停稳
	v.SetObstaclesAhead([]entity.Obstacle{{Point: geometry.Point{X: 20}, IsIntersection: true}})
	assert.Zero(t, v.StepToTargetSpeed(0.01, 0))
	assert.True(t, v.HasStopped())
}

func TestTargetSpeedObstacles(t *testing.T) {
	params := config.DefaultParams()
	roads, r := newStraight(t, 2, 1000)
	v := car.New(1, 0, entity.OriginStart, roads, params)
	require.NoError(t, v.SetRoute([]int32{r.ID()}))

	// 在停车距离之内
	v.SetObstaclesAhead([]entity.Obstacle{{Point: geometry.Point{X: 50, Y: 14}}})
	assert.Zero(t, v.TargetSpeed())

	// 制动窗口之外
	far := params.StopDistance + params.BrakingDistance + 10
	v.SetObstaclesAhead([]entity.Obstacle{{Point: geometry.Point{X: far, Y: 14}, Speed: 0}})
	assert.InDelta(t, 5, v.TargetSpeed(), 1e-12)

	// 路口停止线使用最小停车距离
	mid := params.MinStopDistance + params.BrakingDistance/2
	v.SetObstaclesAhead([]entity.Obstacle{{Point: geometry.Point{X: mid, Y: 14}, IsIntersection: true}})
	assert.InDelta(t, 5*0.75, v.TargetSpeed(), 1e-9)

	// 并线让行：不超过目标车道车辆速度的0.8倍
	v.SetObstaclesAhead(nil)
	v.SetLaneObstacle(&entity.LaneObstacle{Obstacle: &stubCar{speed: 2}, IsBehind: true})
	assert.InDelta(t, 2*params.MergeSlowDownScale, v.TargetSpeed(), 1e-12)
	v.SetLaneObstacle(&entity.LaneObstacle{Obstacle: &stubCar{speed: 2}})
	assert.InDelta(t, 2*params.MergeSpeedUpScale, v.TargetSpeed(), 1e-12)
	v.SetLaneObstacle(&entity.LaneObstacle{Obstacle: &stubCar{speed: 10}})
	assert.InDelta(t, 5, v.TargetSpeed(), 1e-12)

	require.NoError(t, v.SetLane(1))
	assert.Nil(t, v.LaneObstacle())
	assert.True(t, v.Tracker().IsChangingLanes())
}

func TestWantsLaneChangeBehindSlowCar(t *testing.T) {
	params := config.DefaultParams()
	roads, r := newStraight(t, 2, 1000)
	v := car.New(1, 0, entity.OriginStart, roads, params)
	require.NoError(t, v.SetRoute([]int32{r.ID()}))

	want, _, _ := v.WantsLaneChange()
	assert.False(t, want)

	v.SetObstaclesAhead([]entity.Obstacle{{Point: geometry.Point{X: 100, Y: 14}, Speed: 1}})
	want, _, forced := v.WantsLaneChange()
	assert.True(t, want)
	assert.False(t, forced)

	v.SetObstaclesAhead([]entity.Obstacle{{Point: geometry.Point{X: 100, Y: 14}, IsIntersection: true}})
	want, _, _ = v.WantsLaneChange()
	assert.False(t, want)

	v.SetObstaclesAhead([]entity.Obstacle{{Point: geometry.Point{X: 200, Y: 14}, Speed: 1}})
	want, _, _ = v.WantsLaneChange()
	assert.False(t, want)

	single, sr := newStraight(t, 1, 1000)
	w := car.New(2, 0, entity.OriginStart, single, params)
	require.NoError(t, w.SetRoute([]int32{sr.ID()}))
	w.SetObstaclesAhead([]entity.Obstacle{{Point: geometry.Point{X: 100}, Speed: 1}})
	want, _, _ = w.WantsLaneChange()
	assert.False(t, want)
}

func TestRenderSurface(t *testing.T) {
	roads, _ := newStraight(t, 1, 100)
	v := car.New(1, 0, entity.OriginStart, roads, config.DefaultParams(), car.WithStyle("red"))
	assert.Equal(t, "red", v.Style())
	v.MoveTo(geometry.Point{X: 1, Y: 2})
	v.Move(geometry.Point{X: 1})
	assert.Equal(t, geometry.Point{X: 2, Y: 2}, v.Position())
	v.RotateTo(math.Pi / 2)
	assert.InDelta(t, 1, v.DirectionVector().Y, 1e-12)
	assert.Equal(t, math.Pi/2, v.Rotation())

	// 没有路线时不移动
	v.Travel(1)
	assert.Equal(t, geometry.Point{X: 2, Y: 2}, v.Position())
}
