package engine

import (
	"math"

	"git.fiblab.net/general/common/v2/geometry"
	"git.fiblab.net/general/common/v2/mathutil"
	"github.com/tsinghua-fib-lab/lanesim/entity"
	"github.com/tsinghua-fib-lab/lanesim/entity/car"
	"github.com/tsinghua-fib-lab/lanesim/utils/vec"
)

// CheckLaneAvailability 检查目标车道能否并入
// 返回：ok-能否并入；nearest-目标车道上最近车辆的距离，没有车辆为无穷大；obstacle-最近车辆及让行判定
func (e *Engine) CheckLaneAvailability(c *car.Car, target int) (ok bool, nearest float64, obstacle *entity.LaneObstacle) {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return e.checkLaneAvailability(c, target)
}

// checkLaneAvailability 检查目标车道能否并入
// 算法说明：
// 1. 目标车道越界时不可并入
// 2. 找到同一道路、同向、位于目标车道上最近的车辆，没有则可以并入
// 3. 按车头方向与相对位置的点积判定前后，前方车辆使用较大的最小间距
// 4. 相对位置与车头方向的夹角偏离90°不超过截止角时，对方与自身大致并排，判定应减速让行；
//    对方明显在前方或后方时抢行
func (e *Engine) checkLaneAvailability(c *car.Car, target int) (bool, float64, *entity.LaneObstacle) {
	r := c.Tracker().CurrentRoad()
	if r == nil || !r.LaneInRange(target) {
		return false, 0, nil
	}
	pos, dir := c.Position(), c.DirectionVector()
	_, path := c.Tracker().Track()
	var near *car.Car
	nearest := mathutil.INF
	for _, o := range e.cars {
		if o == c || o.Lane() != target {
			continue
		}
		if _, p := o.Tracker().Track(); p != path || dir.Dot2D(o.DirectionVector()) < 0 {
			continue
		}
		if d := geometry.Distance2D(pos, o.Position()); d < nearest {
			near, nearest = o, d
		}
	}
	if near == nil {
		return true, nearest, nil
	}
	rel := near.Position().Sub(pos)
	minGap := e.params.LaneChangeMinDist
	if dir.Dot2D(rel) >= 0 {
		minGap = e.params.LaneChangeMinFrontDist
	}
	obstacle := &entity.LaneObstacle{
		Obstacle: near,
		IsBehind: math.Abs(vec.Angle(dir, rel)-math.Pi/2) < e.params.SpeedUpCutoffRotation,
	}
	return nearest >= minGap, nearest, obstacle
}

// LaneChange 择机变道的目标车道
func (e *Engine) LaneChange(c *car.Car) int {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return e.laneChange(c)
}

// laneChange 在左右相邻车道中选择可并入且间距更大的一条，都不可用时保持当前车道
// 说明：间距相同时选择编号较小的车道
func (e *Engine) laneChange(c *car.Car) int {
	lane := c.Lane()
	best, bestDist := lane, -1.
	for _, l := range []int{lane - 1, lane + 1} {
		if ok, d, _ := e.checkLaneAvailability(c, l); ok && d > bestDist {
			best, bestDist = l, d
		}
	}
	return best
}

// decide 变道决策
// 算法说明：
// 1. 清除上一步的并线障碍物，路口内不变道
// 2. 路线要求的强制变道直接检查目标车道，不可并入时记录并线障碍物供速度控制使用
// 3. 择机变道选择相邻车道中更空的一条
func (e *Engine) decide(c *car.Car) {
	c.ClearLaneObstacle()
	if c.Tracker().InIntersection() {
		return
	}
	want, target, forced := c.WantsLaneChange()
	if !want {
		return
	}
	if forced {
		ok, _, obstacle := e.checkLaneAvailability(c, target)
		if !ok {
			if obstacle != nil {
				c.SetLaneObstacle(obstacle)
			}
			return
		}
	} else if target = e.laneChange(c); target == c.Lane() {
		return
	}
	if err := c.SetLane(target); err != nil {
		log.Warnf("%v: change to lane %d failed: %v", c, target, err)
	}
}
