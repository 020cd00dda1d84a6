package junction

import (
	"fmt"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/lanesim/entity"
	"github.com/tsinghua-fib-lab/lanesim/entity/junction/trafficlight"
	"github.com/tsinghua-fib-lab/lanesim/entity/road"
	"github.com/tsinghua-fib-lab/lanesim/utils/config"
	"github.com/tsinghua-fib-lab/lanesim/utils/container"
	"github.com/tsinghua-fib-lab/lanesim/utils/spline"
	"github.com/tsinghua-fib-lab/lanesim/utils/vec"
)

var (
	ErrSideTaken   = errors.New("intersection side already connected")
	ErrInvalidSide = errors.New("invalid intersection side")
	ErrNoPath      = errors.New("no turn path between roads")
)

// Intersection 路口
// 功能：连接至多四条道路的正方形区域，内部由若干转向路径组成，并负责停车让行与信号灯的通行判定
// 说明：路口本身没有可行驶的车道，车辆在路口内沿转向路径行驶
type Intersection struct {
	*road.Road

	kind      entity.IntersectionKind
	center    geometry.Point
	lanes     int // 直行路径的物理车道数
	laneWidth float64
	twoWay    bool
	params    config.Params

	sides [entity.SideCount]entity.IRoad // 各边连接的道路
	paths []entity.TurnPath

	trafficLight ITrafficLight // 仅信号灯路口，nil表示全绿

	queue *container.List[entity.ICar]
	nodes map[int32]*container.ListNode[entity.ICar]
}

// New 创建路口
// 功能：按中心点、车道数生成路口的几何与全部转向路径，转向路径登记到道路仓库
// 参数：id-路口ID，kind-路口类型，center-中心点，lanes-相连道路的物理车道数，laneWidth-车道宽度，
// twoWay-相连道路是否双向，roads-道路仓库，params-调参常量
// 返回：路口实例；双向路口车道数为奇数时返回错误
func New(
	id int32,
	kind entity.IntersectionKind,
	center geometry.Point,
	lanes int,
	laneWidth float64,
	twoWay bool,
	roads entity.IRoadManager,
	params config.Params,
) (*Intersection, error) {
	if lanes <= 0 {
		return nil, errors.Wrapf(road.ErrLaneOutOfRange, "intersection %d: %d lanes", id, lanes)
	}
	if twoWay && lanes%2 != 0 {
		return nil, errors.Wrapf(road.ErrOddTwoWayLanes, "intersection %d: %d lanes", id, lanes)
	}
	i := &Intersection{
		kind:      kind,
		center:    center,
		lanes:     lanes,
		laneWidth: laneWidth,
		twoWay:    twoWay,
		params:    params,
		queue:     &container.List[entity.ICar]{ID: fmt.Sprintf("intersection-%d", id)},
		nodes:     make(map[int32]*container.ListNode[entity.ICar]),
	}
	h := i.Size() / 2
	body, err := road.New(
		id,
		spline.Line(center.Add(vec.New(-h, 0)), center.Add(vec.New(h, 0))),
		0, i.speedLimit(), laneWidth, false,
		road.WithLaneGap(params.LaneGap),
	)
	if err != nil {
		return nil, err
	}
	body.Spline().SetThickness(i.Size())
	i.Road = body
	if err := i.buildPaths(roads); err != nil {
		return nil, err
	}
	if kind == entity.TrafficLight {
		i.trafficLight = trafficlight.NewLocalTrafficLight(id)
	}
	return i, nil
}

func (i *Intersection) String() string {
	return fmt.Sprintf("Intersection %d (%v)", i.ID(), i.kind)
}

func (i *Intersection) Kind() entity.IntersectionKind {
	return i.kind
}

func (i *Intersection) Center() geometry.Point {
	return i.center
}

// Size 路口边长：与相连道路的总宽度一致
func (i *Intersection) Size() float64 {
	l := float64(i.lanes)
	return l*i.laneWidth + (l+1)*i.params.LaneGap
}

// Paths 全部转向路径
func (i *Intersection) Paths() []entity.TurnPath {
	return i.paths
}

// TrafficLight 信号灯，停车让行路口返回nil
func (i *Intersection) TrafficLight() ITrafficLight {
	return i.trafficLight
}

// SetTrafficLight 设置固定相位信号灯程序
func (i *Intersection) SetTrafficLight(p *trafficlight.Program) error {
	tl, ok := i.trafficLight.(*trafficlight.LocalTrafficLight)
	if !ok {
		return fmt.Errorf("%v has no traffic light", i)
	}
	return tl.Set(p)
}

func (i *Intersection) speedLimit() float64 {
	if i.kind == entity.StopSign {
		return i.params.StopSignSpeedLimit
	}
	return i.params.TrafficLightSpeedLimit
}

// update 推进信号灯
// 参数：dt-时间步长（秒）
func (i *Intersection) update(dt float64) {
	if i.trafficLight != nil {
		i.trafficLight.Update(dt)
	}
}

// Register 加入通行队列，已在队列中则忽略
func (i *Intersection) Register(car entity.ICar) {
	if _, ok := i.nodes[car.ID()]; ok {
		return
	}
	node := &container.ListNode[entity.ICar]{Value: car}
	i.queue.PushBack(node)
	i.nodes[car.ID()] = node
}

// Unregister 移出通行队列，不在队列中则忽略
func (i *Intersection) Unregister(car entity.ICar) {
	node, ok := i.nodes[car.ID()]
	if !ok {
		return
	}
	i.queue.Remove(node)
	delete(i.nodes, car.ID())
}

func (i *Intersection) IsRegistered(car entity.ICar) bool {
	_, ok := i.nodes[car.ID()]
	return ok
}

// QueueIndex 在通行队列中的位置，不在队列中返回-1
func (i *Intersection) QueueIndex(car entity.ICar) int {
	return i.queue.Index(i.nodes[car.ID()])
}

// Queue 按登记顺序返回队列中的车辆
func (i *Intersection) Queue() []entity.ICar {
	return i.queue.Values()
}

// StopPoint 车辆经prev驶入、next驶出时的停止线位置
// 说明：停止线为车辆在转向路径上所用车道的第一个行进点
func (i *Intersection) StopPoint(car entity.ICar, prev, next int32) (entity.TurnPath, geometry.Point, error) {
	tp, err := i.GetPath(prev, next)
	if err != nil {
		return tp, geometry.Point{}, err
	}
	lane := PathLane(tp, car.Lane())
	p, ok := road.EntryPoint(tp.Path, tp.Origin, lane)
	if !ok {
		return tp, geometry.Point{}, errors.Wrapf(ErrNoPath, "%v: lane %d unusable on path %v", i, lane, tp.Path)
	}
	return tp, p, nil
}

// PathLane 车辆在转向路径上使用的相对车道
// 说明：单车道转弯路径总是0，直行路径沿用当前车道并截断到路径车道范围内；尚未解析路径时为0
func PathLane(tp entity.TurnPath, lane int) int {
	if tp.Path == nil {
		return 0
	}
	return lo.Clamp(lane, 0, max(tp.Path.LaneCount()-1, 0))
}

// CanContinue 判定车辆能否驶入路口
// 功能：按路口类型给出通行、停车或无路径的判定
// 参数：car-车辆，obstacles-已知的前方障碍物（由近及远），prev-驶入道路，next-驶出道路
// 返回：判定结果，Stop时附带停止线位置
// 算法说明：
// 1. 查找转向路径并计算停止线，找不到返回NoPath
// 2. 停止线在减速窗口之外，或已有更近的障碍物约束车辆时返回Continue
// 3. 两种路口都要求车辆在停止线前停稳，且队列中没有排在其前面的车辆
// 4. 信号灯路口还要求驶入边为绿灯，没有配时程序时视为全绿
// 5. 满足条件返回Continue，否则返回停止线
func (i *Intersection) CanContinue(car entity.ICar, obstacles []entity.Obstacle, prev, next int32) entity.ContinueResult {
	tp, stop, err := i.StopPoint(car, prev, next)
	if err != nil {
		return entity.ContinueResult{State: entity.NoPath}
	}
	pos := car.Position()
	dist := geometry.Distance2D(pos, stop)
	if dist > i.params.BrakingDistance+i.params.StopDistance {
		return entity.ContinueResult{State: entity.Continue}
	}
	if len(obstacles) > 0 && geometry.Distance2D(pos, obstacles[0].Point) < dist {
		return entity.ContinueResult{State: entity.Continue}
	}
	green := i.kind != entity.TrafficLight || i.trafficLight == nil || i.trafficLight.Green(tp.FromSide)
	if green && car.HasStopped() && i.QueueIndex(car) <= 0 {
		return entity.ContinueResult{State: entity.Continue}
	}
	return entity.ContinueResult{State: entity.Stop, Point: stop}
}
