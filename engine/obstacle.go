package engine

import (
	"fmt"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/tsinghua-fib-lab/lanesim/entity"
	"github.com/tsinghua-fib-lab/lanesim/entity/car"
	"github.com/tsinghua-fib-lab/lanesim/utils/container"
)

// ObstaclesAhead 车辆前方的障碍物，由近及远
func (e *Engine) ObstaclesAhead(c *car.Car) []entity.Obstacle {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return e.obstaclesAhead(c)
}

// obstaclesAhead 发现前方障碍物
// 算法说明：
// 1. 同一轨道同一车道（或正从该车道变出）、同向、位于车头前方且在制动窗口内的车辆按距离插入
// 2. 下一项是路口时询问CanContinue，需要停车则把停止线按距离插入；距停止线足够近时登记到路口队列
func (e *Engine) obstaclesAhead(c *car.Car) []entity.Obstacle {
	list := &container.List[entity.Obstacle]{ID: fmt.Sprintf("obstacles-%d", c.ID())}
	pos, dir := c.Position(), c.DirectionVector()
	window := e.params.BrakingDistance + e.params.StopDistance
	for _, o := range e.cars {
		if o == c || !e.sameTrack(c, o) {
			continue
		}
		rel := o.Position().Sub(pos)
		if dir.Dot2D(rel) < 0 || dir.Dot2D(o.DirectionVector()) < 0 {
			continue
		}
		d := rel.Length2D()
		if d > window {
			continue
		}
		list.InsertSorted(&container.ListNode[entity.Obstacle]{
			S:     d,
			Value: entity.Obstacle{Point: o.Position(), Speed: o.Speed()},
		})
	}
	if inter, prev, next, ok := c.Tracker().NextIntersection(); ok {
		res := inter.CanContinue(c, list.Values(), prev, next)
		if res.State == entity.Stop {
			d := geometry.Distance2D(pos, res.Point)
			if d <= e.params.IntersectionRegisterDist {
				inter.Register(c)
			}
			list.InsertSorted(&container.ListNode[entity.Obstacle]{
				S:     d,
				Value: entity.Obstacle{Point: res.Point, IsIntersection: true},
			})
		}
	}
	return list.Values()
}

// sameTrack 车辆o是否在c当前或下一项的同一车道上
// 说明：c在下一项上使用的车道由转向路径推出，因此同一路口内只有同一转向路径上的车辆相互可见
func (e *Engine) sameTrack(c, o *car.Car) bool {
	ct, ot := c.Tracker(), o.Tracker()
	if ot.RouteLen() == 0 || ct.RouteLen() == 0 {
		return false
	}
	inLane := func(lane int) bool {
		return o.Lane() == lane || ot.ChangingFrom() == lane
	}
	_, path := ct.Track()
	_, otherPath := ot.Track()
	if path == otherPath {
		return inLane(c.Lane())
	}
	if _, nextPath, nextLane, ok := ct.NextTrack(); ok && nextPath == otherPath {
		return inLane(nextLane)
	}
	return false
}
