package engine

import (
	"sync"
	"time"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/lanesim/clock"
	"github.com/tsinghua-fib-lab/lanesim/entity"
	"github.com/tsinghua-fib-lab/lanesim/entity/car"
	"github.com/tsinghua-fib-lab/lanesim/utils/config"
)

// Option 引擎构造选项
type Option func(*Engine)

// WithJunctions 每步推进路口信号灯
func WithJunctions(m entity.IJunctionManager) Option {
	return func(e *Engine) { e.junctions = m }
}

// WithClock 实时循环使用的时钟
func WithClock(c *clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithInterval 实时循环的帧间隔
func WithInterval(d time.Duration) Option {
	return func(e *Engine) { e.interval = d }
}

// WithAfterTick 实时循环中每步结束后的回调，在循环所在的goroutine中执行
func WithAfterTick(f func(timeScale float64)) Option {
	return func(e *Engine) { e.afterTick = f }
}

// CarState 车辆状态快照
type CarState struct {
	ID            int32          `json:"id" bson:"id"`
	Style         string         `json:"style,omitempty" bson:"style,omitempty"`
	Position      geometry.Point `json:"position" bson:"position"`
	Rotation      float64        `json:"rotation" bson:"rotation"`
	Speed         float64        `json:"speed" bson:"speed"`
	Lane          int            `json:"lane" bson:"lane"`
	RoadID        int32          `json:"road_id" bson:"road_id"`
	PathID        int32          `json:"path_id" bson:"path_id"`
	ChangingLanes bool           `json:"changing_lanes" bson:"changing_lanes"`
	HasStopped    bool           `json:"has_stopped" bson:"has_stopped"`
}

// Engine 交通引擎
// 功能：每步为所有车辆发现前方障碍物、仲裁变道，并驱动车辆移动
// 说明：Tick整体在互斥锁内执行，车辆按加入顺序依次决策与移动，后处理的车辆能看到先处理车辆本步的新位置
type Engine struct {
	params    config.Params
	junctions entity.IJunctionManager
	clock     *clock.Clock
	interval  time.Duration
	afterTick func(timeScale float64)

	mtx  sync.Mutex
	cars []*car.Car
	step int64

	loopMtx sync.Mutex
	cancel  func()
	done    chan struct{}
}

// New 创建交通引擎
// 参数：params-调参常量，opts-可选项
func New(params config.Params, opts ...Option) *Engine {
	e := &Engine{
		params:   params,
		interval: time.Duration(config.IdealFrameMs * float64(time.Millisecond)),
		cars:     make([]*car.Car, 0),
	}
	for _, o := range opts {
		o(e)
	}
	if e.clock == nil {
		e.clock = clock.New(config.ControlStep{})
	}
	return e
}

// AddCar 加入车辆
func (e *Engine) AddCar(c *car.Car) {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	e.cars = append(e.cars, c)
}

// SetCars 替换全部车辆
func (e *Engine) SetCars(cars []*car.Car) {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	e.cars = append(make([]*car.Car, 0, len(cars)), cars...)
}

// RemoveCar 移除车辆并将其移出所在路口的通行队列
func (e *Engine) RemoveCar(id int32) bool {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	c, idx, ok := lo.FindIndexOf(e.cars, func(c *car.Car) bool { return c.ID() == id })
	if !ok {
		return false
	}
	if entryID, _ := c.Tracker().Track(); entryID >= 0 {
		if inter, ok := c.Tracker().Roads().Intersection(entryID); ok {
			inter.Unregister(c)
		}
	}
	if inter, _, _, ok := c.Tracker().NextIntersection(); ok {
		inter.Unregister(c)
	}
	e.cars = append(e.cars[:idx], e.cars[idx+1:]...)
	return true
}

// Cars 当前车辆列表的拷贝
func (e *Engine) Cars() []*car.Car {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return append([]*car.Car(nil), e.cars...)
}

// Steps 已执行的步数
func (e *Engine) Steps() int64 {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return e.step
}

// Tick 推进一步
// 功能：推进信号灯，然后逐车完成变道决策、障碍物发现与移动
// 参数：timeScale-相对60fps基准的时间缩放系数
// 算法说明：
// 1. 信号灯按timeScale换算出的秒数推进
// 2. 不在路口内的车辆先决定是否变道
// 3. 计算前方障碍物交给车辆，车辆调用Travel移动
func (e *Engine) Tick(timeScale float64) {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	e.step++
	if e.junctions != nil {
		e.junctions.Update(timeScale * config.IdealFrameMs / 1000)
	}
	for _, c := range e.cars {
		e.decide(c)
		c.SetObstaclesAhead(e.obstaclesAhead(c))
		c.Travel(timeScale)
	}
}

// Snapshot 复制当前全部车辆的状态
func (e *Engine) Snapshot() []CarState {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return lo.Map(e.cars, func(c *car.Car, _ int) CarState {
		t := c.Tracker()
		entryID, pathID := t.Track()
		return CarState{
			ID:            c.ID(),
			Style:         c.Style(),
			Position:      c.Position(),
			Rotation:      c.Rotation(),
			Speed:         c.Speed(),
			Lane:          c.Lane(),
			RoadID:        entryID,
			PathID:        pathID,
			ChangingLanes: t.IsChangingLanes(),
			HasStopped:    c.HasStopped(),
		}
	})
}
