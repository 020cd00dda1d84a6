package car

import (
	"fmt"
	"math"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/lanesim/entity"
	"github.com/tsinghua-fib-lab/lanesim/utils/config"
	"github.com/tsinghua-fib-lab/lanesim/utils/easing"
	"github.com/tsinghua-fib-lab/lanesim/utils/vec"
)

// DefaultMaxSpeed 未指定时的最高速度（像素/帧）
const DefaultMaxSpeed = 5.

// Option 车辆构造选项
type Option func(*Car)

// WithLoop 路线首尾相接，车辆到达末尾后回到第一项
func WithLoop(loop bool) Option {
	return func(c *Car) { c.tracker.loop = loop }
}

// WithLaneChange 是否允许变道
func WithLaneChange(enabled bool) Option {
	return func(c *Car) { c.tracker.canChangeLane = enabled }
}

// WithMaxSpeed 最高速度
func WithMaxSpeed(v float64) Option {
	return func(c *Car) { c.maxSpeed = v }
}

// WithStyle 渲染样式，仿真不读取
func WithStyle(style string) Option {
	return func(c *Car) { c.style = style }
}

// Car 车辆
// 功能：持有路线跟踪器与速度，根据引擎给出的前方障碍物控制速度并沿采样点移动
type Car struct {
	id      int32
	style   string
	params  config.Params
	tracker *Tracker

	speed    float64
	maxSpeed float64

	position geometry.Point
	rotation float64

	step stepContext
}

// New 创建车辆
// 参数：id-车辆ID，lane-初始相对车道，origin-单条道路路线的行进方向，roads-道路仓库，params-调参常量
// 说明：默认允许变道、不循环
func New(
	id int32, lane int, origin entity.Origin, roads entity.IRoadManager, params config.Params, opts ...Option,
) *Car {
	c := &Car{
		id:       id,
		params:   params,
		maxSpeed: DefaultMaxSpeed,
	}
	c.tracker = newTracker(roads, params, lane, origin, false, true)
	c.tracker.self = c
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Car) String() string {
	return fmt.Sprintf("Car %d", c.id)
}

func (c *Car) ID() int32 {
	return c.id
}

func (c *Car) Style() string {
	return c.style
}

// Tracker 路线跟踪器
func (c *Car) Tracker() *Tracker {
	return c.tracker
}

func (c *Car) Lane() int {
	return c.tracker.Lane()
}

func (c *Car) Speed() float64 {
	return c.speed
}

func (c *Car) MaxSpeed() float64 {
	return c.maxSpeed
}

func (c *Car) SetMaxSpeed(v float64) {
	c.maxSpeed = math.Max(v, 0)
}

func (c *Car) HasStopped() bool {
	return c.tracker.HasStopped()
}

// SetRoute 设置路线并将车辆放到起点
func (c *Car) SetRoute(ids []int32) error {
	if err := c.tracker.SetRoute(ids); err != nil {
		return err
	}
	c.placeOnTrack()
	return nil
}

// AddToRoute 追加路线，原路线为空时同时把车辆放到起点
func (c *Car) AddToRoute(id int32) error {
	empty := c.tracker.RouteLen() == 0
	if err := c.tracker.AddToRoute(id); err != nil {
		return err
	}
	if empty || (c.tracker.RoadIndex() == 0 && c.tracker.ProgressIndex() == 0) {
		c.placeOnTrack()
	}
	return nil
}

// StartAt 跳到当前道路的指定比例处
func (c *Car) StartAt(fraction float64) {
	c.tracker.StartAt(fraction)
	c.placeOnTrack()
}

func (c *Car) placeOnTrack() {
	c.MoveTo(c.tracker.CurrentPoint())
	c.updateRotation()
}

// SetObstaclesAhead 设置本帧的前方障碍物（由近及远）
func (c *Car) SetObstaclesAhead(obstacles []entity.Obstacle) {
	c.step.obstacles = obstacles
}

// ObstaclesAhead 本帧的前方障碍物
func (c *Car) ObstaclesAhead() []entity.Obstacle {
	return c.step.obstacles
}

// SetLaneObstacle 设置并线障碍物
func (c *Car) SetLaneObstacle(o *entity.LaneObstacle) {
	c.step.laneObstacle = o
}

func (c *Car) LaneObstacle() *entity.LaneObstacle {
	return c.step.laneObstacle
}

func (c *Car) ClearLaneObstacle() {
	c.step.laneObstacle = nil
}

// TargetSpeed 目标速度
// 算法说明：
// 1. 基础目标为最高速度与当前道路限速的较小值
// 2. 有前方障碍物时，按(距离-停车距离)/制动距离做缓出减速，再叠加障碍物与自身的速度差；
// 路口停止线使用固定的最小停车距离
// 3. 截断到[0, 基础目标]
// 4. 有并线障碍物时，目标不超过其速度乘以让行（在其后方）或抢行系数
func (c *Car) TargetSpeed() float64 {
	base := c.maxSpeed
	if r := c.tracker.CurrentRoad(); r != nil {
		base = math.Min(base, r.SpeedLimit())
	}
	target := base
	if obs := c.step.obstacles; len(obs) > 0 {
		o := obs[0]
		stop := c.params.StopDistance
		if o.IsIntersection {
			stop = c.params.MinStopDistance
		}
		d := geometry.Distance2D(c.position, o.Point)
		target = base*easing.EaseOutQuad((d-stop)/c.params.BrakingDistance) + (o.Speed - c.speed)
	}
	target = lo.Clamp(target, 0, math.Max(base, 0))
	if m := c.step.laneObstacle; m != nil && m.Obstacle != nil {
		scale := c.params.MergeSpeedUpScale
		if m.IsBehind {
			scale = c.params.MergeSlowDownScale
		}
		target = math.Min(target, m.Obstacle.Speed()*scale)
	}
	return target
}

// StepToTargetSpeed 向目标速度前进一步
// 说明：加速每步不超过加速度（变道中使用较小的变道加速度），减速每步不超过制动能力；
// 结果低于最小速度时置零，此时若最近的障碍物是路口停止线则记为已停稳
func (c *Car) StepToTargetSpeed(current, target float64) float64 {
	next := current
	switch {
	case target > current:
		a := c.params.Acceleration
		if c.tracker.IsChangingLanes() {
			a = c.params.LaneChangeAcceleration
		}
		next = math.Min(target, current+a)
	case target < current:
		next = math.Max(target, current-c.params.BrakeCapacity)
	}
	if next < c.params.MinSpeed {
		next = 0
		if obs := c.step.obstacles; len(obs) > 0 && obs[0].IsIntersection {
			c.tracker.SetHasStopped(true)
		}
	}
	return next
}

// Travel 按时间比例移动
// 功能：更新速度后沿采样点移动speed*timeScale的距离
// 算法说明：
// 1. 剩余距离不小于到当前目标点的距离时，走到目标点并前进到下一个采样点
// 2. 否则沿指向目标点的方向走完剩余距离
// 3. 到达路线终点后停止，多余的距离丢弃
// 4. 每一步都按看向点更新朝向，方向无定义时保持原朝向
func (c *Car) Travel(timeScale float64) {
	if c.tracker.RouteLen() == 0 {
		return
	}
	c.speed = c.StepToTargetSpeed(c.speed, c.TargetSpeed())
	remain := c.speed * timeScale
	for remain > 0 {
		target := c.tracker.CurrentPoint()
		d := geometry.Distance2D(c.position, target)
		if remain < d {
			c.Move(target.Sub(c.position).Scale(remain / d))
			break
		}
		c.MoveTo(target)
		remain -= d
		if c.tracker.AtLastPoint() {
			break
		}
		c.tracker.NextPoint()
		c.updateRotation()
	}
	c.updateRotation()
}

func (c *Car) updateRotation() {
	if angle, ok := vec.Heading(c.position, c.tracker.LookAtPoint()); ok {
		c.RotateTo(angle)
	}
}

// WantsLaneChange 是否希望变道
// 返回：want-是否希望变道；target-路线要求的目标车道，forced为false时无意义
// 算法说明：
// 1. 禁止变道、在路口内、正在变道或当前道路只有一条车道时不变道
// 2. 路线推出的目标车道与当前车道不同时强制变道
// 3. 前方最近的障碍物是车辆、在触发距离内且自身速度不高于max(触发速度, 前车速度*系数)时，希望择机变道
func (c *Car) WantsLaneChange() (want bool, target int, forced bool) {
	t := c.tracker
	if !t.canChangeLane || t.RouteLen() == 0 || t.InIntersection() || t.IsChangingLanes() {
		return false, 0, false
	}
	if t.CurrentRoad().LaneCount() <= 1 {
		return false, 0, false
	}
	if lane, ok := t.TargetLane(); ok && lane != t.Lane() {
		return true, lane, true
	}
	if obs := c.step.obstacles; len(obs) > 0 {
		o := obs[0]
		if !o.IsIntersection &&
			geometry.Distance2D(c.position, o.Point) < c.params.LaneChangeStartDist &&
			c.speed <= math.Max(c.params.LaneChangeTriggerSpeed, o.Speed*c.params.LaneChangeSpeedScale) {
			return true, 0, false
		}
	}
	return false, 0, false
}

// SetLane 变道到目标车道
// 说明：可用距离为到最近障碍物的距离乘以系数，没有障碍物时使用最大变道步数
func (c *Car) SetLane(target int) error {
	budget := c.params.MaxLaneChangeSteps
	if obs := c.step.obstacles; len(obs) > 0 {
		budget = geometry.Distance2D(c.position, obs[0].Point) * c.params.LaneChangeObstacleScale
	}
	c.ClearLaneObstacle()
	return c.tracker.SetLane(target, budget)
}

// MoveTo 移动到指定位置
func (c *Car) MoveTo(p geometry.Point) {
	c.position = p
}

// Move 平移
func (c *Car) Move(delta geometry.Point) {
	c.position = c.position.Add(delta)
}

// RotateTo 设置朝向角（弧度）
func (c *Car) RotateTo(angle float64) {
	c.rotation = angle
}

func (c *Car) Position() geometry.Point {
	return c.position
}

func (c *Car) Rotation() float64 {
	return c.rotation
}

// DirectionVector 朝向单位向量
func (c *Car) DirectionVector() geometry.Point {
	return vec.FromAngle(c.rotation)
}
