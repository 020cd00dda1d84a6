package car

import (
	"math"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/lanesim/entity"
	"github.com/tsinghua-fib-lab/lanesim/entity/junction"
	"github.com/tsinghua-fib-lab/lanesim/entity/road"
	"github.com/tsinghua-fib-lab/lanesim/utils/config"
	"github.com/tsinghua-fib-lab/lanesim/utils/easing"
)

var (
	ErrRouteStartsOnIntersection = errors.New("route cannot start on an intersection")
	ErrLaneChangeInProgress      = errors.New("lane change already in progress")
)

// entry 路线中的一项
type entry struct {
	id     int32
	road   entity.IRoad
	inter  entity.IIntersection // 非路口为nil
	origin entity.Origin        // 沿道路（或转向路径）的行进方向
	turn   entity.TurnPath      // 仅路口有效
}

// path 车辆实际行驶的几何：道路本身或路口内的转向路径
func (e *entry) path() entity.IRoad {
	if e.inter != nil {
		return e.turn.Path
	}
	return e.road
}

// Tracker 车辆在路线上的位置
// 功能：维护路线、当前车道、沿当前道路点列的进度，以及变道插值与路口通行状态
// 说明：点列总是按行进顺序存放，progressIndex只会递增
type Tracker struct {
	roads  entity.IRoadManager
	params config.Params
	self   entity.ICar // 用于路口登记

	loop          bool
	canChangeLane bool
	initialOrigin entity.Origin

	route      []entry
	roadIndex  int
	lane       int // 当前道路上的相对车道
	laneBefore int // 进入路口前的车道，驶出时沿用

	progressPoints []geometry.Point
	progressIndex  int

	changingFrom     int // 变道前的车道，-1表示未在变道
	laneChangePoints []geometry.Point
	laneChangeIndex  int

	hasStopped bool
}

func newTracker(
	roads entity.IRoadManager, params config.Params, lane int, origin entity.Origin, loop, canChangeLane bool,
) *Tracker {
	return &Tracker{
		roads:         roads,
		params:        params,
		loop:          loop,
		canChangeLane: canChangeLane,
		initialOrigin: origin,
		lane:          lane,
		laneBefore:    lane,
		changingFrom:  -1,
	}
}

// SetRoute 设置路线
// 功能：解析路线中每一项的行进方向与转向路径，并将车辆放到路线起点
// 参数：ids-按行进顺序排列的道路（路口）ID
// 返回：路线以路口开头、路口缺少驶出道路、不存在转向或车道越界时返回错误，此时路线不变
func (t *Tracker) SetRoute(ids []int32) error {
	route, err := t.resolve(ids, false)
	if err != nil {
		return err
	}
	if len(route) > 0 && !route[0].road.LaneInRange(t.lane) {
		return errors.Wrapf(road.ErrLaneOutOfRange, "lane %d on %v", t.lane, route[0].road)
	}
	t.route = route
	t.roadIndex = 0
	t.progressIndex = 0
	t.hasStopped = false
	t.clearLaneChange()
	t.progressPoints = nil
	if len(route) > 0 {
		t.progressPoints, _ = road.TravelPoints(route[0].road, route[0].origin, t.lane)
	}
	return nil
}

// AddToRoute 在路线末尾追加一项
// 说明：允许末尾暂时是路口，等待追加驶出道路后再解析转向
func (t *Tracker) AddToRoute(id int32) error {
	if len(t.route) == 0 {
		return t.SetRoute([]int32{id})
	}
	ids := lo.Map(t.route, func(e entry, _ int) int32 { return e.id })
	route, err := t.resolve(append(ids, id), true)
	if err != nil {
		return err
	}
	cur := t.route[t.roadIndex]
	t.route = route
	// 当前道路的行进方向可能因新的相邻关系而改变，尚未开始行驶时重新取点
	if route[t.roadIndex].origin != cur.origin && t.progressIndex == 0 && !t.IsChangingLanes() {
		if pts, err := t.pointsFor(t.roadIndex, t.lane); err == nil {
			t.progressPoints = pts
		}
	}
	return nil
}

// resolve 解析路线
// 算法说明：
// 1. 路口项需要前后都有道路，并按(前一项, 后一项)查找转向路径，行进方向取转向路径的方向
// 2. 道路项的行进方向由几何相邻关系确定：离上一项出口更近的端点为入口
// 3. 第一项没有上一项时，以离下一项更近的端点为出口；只有一项时使用构造时指定的方向
func (t *Tracker) resolve(ids []int32, allowTrailing bool) ([]entry, error) {
	route := make([]entry, len(ids))
	for k, id := range ids {
		r, err := t.roads.GetOrError(id)
		if err != nil {
			return nil, err
		}
		route[k] = entry{id: id, road: r}
		if inter, ok := t.roads.Intersection(id); ok {
			route[k].inter = inter
		}
	}
	for k := range route {
		e := &route[k]
		if e.inter != nil {
			if k == 0 {
				return nil, errors.Wrapf(ErrRouteStartsOnIntersection, "%v", e.inter)
			}
			if k == len(route)-1 {
				if allowTrailing {
					continue
				}
				return nil, errors.Wrapf(junction.ErrNoPath, "%v has no exit road in route", e.inter)
			}
			tp, err := e.inter.GetPath(route[k-1].id, route[k+1].id)
			if err != nil {
				return nil, err
			}
			e.turn = tp
			e.origin = tp.Origin
			continue
		}
		start, end := e.road.Endpoints()
		switch {
		case k > 0:
			exit := exitPoint(&route[k-1])
			e.origin = nearerOrigin(exit, start, end)
		case len(route) > 1:
			// 出口是离下一项更近的端点
			next := anchorPoint(&route[1])
			e.origin = nearerOrigin(next, start, end).Reverse()
		default:
			e.origin = t.initialOrigin
		}
	}
	return route, nil
}

// exitPoint 路线项的出口（中心线端点）
func exitPoint(e *entry) geometry.Point {
	start, end := e.path().Endpoints()
	if e.origin == entity.OriginStart {
		return end
	}
	return start
}

// anchorPoint 用于判定第一项出口的参考点：道路取离其最近的端点，路口取中心
func anchorPoint(e *entry) geometry.Point {
	if i, ok := e.inter.(interface{ Center() geometry.Point }); ok {
		return i.Center()
	}
	start, end := e.road.Endpoints()
	return start.Add(end).Scale(0.5)
}

// nearerOrigin p离起点更近时从起点出发
func nearerOrigin(p, start, end geometry.Point) entity.Origin {
	if geometry.Distance2D(p, start) <= geometry.Distance2D(p, end) {
		return entity.OriginStart
	}
	return entity.OriginEnd
}

// pointsFor 路线第k项在相对车道lane上的行进点列
func (t *Tracker) pointsFor(k int, lane int) ([]geometry.Point, error) {
	e := &t.route[k]
	if e.inter != nil {
		return road.TravelPoints(e.turn.Path, e.turn.Origin, junction.PathLane(e.turn, lane))
	}
	return road.TravelPoints(e.road, e.origin, lane)
}

// NextPoint 前进一个采样点
// 功能：推进进度与变道插值，到达当前道路末端时切换到路线的下一项
// 算法说明：
// 1. 变道中则推进变道插值，插值点用尽时结束变道
// 2. 推进progressIndex，未到末端则返回
// 3. 离开路口时注销登记；到达路线末尾时循环路线回到第一项，否则停在终点；
//    下一项是尚未追加驶出道路的路口时同样停在当前道路末端
// 4. 进入新的一项时换算车道、重新取点；进入路口时登记并重置hasStopped
func (t *Tracker) NextPoint() {
	if len(t.route) == 0 {
		return
	}
	if t.IsChangingLanes() {
		t.laneChangeIndex++
		if t.laneChangeIndex >= len(t.laneChangePoints) {
			t.clearLaneChange()
		}
	}
	t.progressIndex++
	if t.progressIndex < len(t.progressPoints) {
		return
	}
	cur := &t.route[t.roadIndex]
	if (t.roadIndex == len(t.route)-1 && !t.loop) || t.awaitingExit() {
		t.progressIndex = len(t.progressPoints) - 1
		return
	}
	if cur.inter != nil {
		if t.roadIndex+1 >= len(t.route) {
			// 末尾的路口还没有驶出道路
			t.progressIndex = len(t.progressPoints) - 1
			return
		}
		if t.self != nil {
			cur.inter.Unregister(t.self)
		}
	}
	t.clearLaneChange()
	t.roadIndex = (t.roadIndex + 1) % len(t.route)
	next := &t.route[t.roadIndex]
	switch {
	case next.inter != nil:
		t.laneBefore = t.lane
		t.lane = junction.PathLane(next.turn, t.lane)
		if t.self != nil {
			next.inter.Register(t.self)
		}
		t.hasStopped = false
	case cur.inter != nil:
		if cur.turn.ExitLane >= 0 {
			t.lane = cur.turn.ExitLane
		} else {
			t.lane = t.laneBefore
		}
	}
	t.lane = lo.Clamp(t.lane, 0, max(next.path().LaneCount()-1, 0))
	t.progressPoints, _ = t.pointsFor(t.roadIndex, t.lane)
	t.progressIndex = 0
}

// SetLane 开始变道
// 功能：在当前车道与目标车道的点列之间生成缓动插值路径
// 参数：target-目标相对车道，distanceBudget-可用于变道的距离
// 返回：目标车道越界时返回ErrLaneOutOfRange，已在变道时返回ErrLaneChangeInProgress，两者都不修改状态
// 说明：禁止变道或目标即当前车道时不做任何事
func (t *Tracker) SetLane(target int, distanceBudget float64) error {
	if !t.canChangeLane || len(t.route) == 0 {
		return nil
	}
	r := t.CurrentRoad()
	if !r.LaneInRange(target) {
		return errors.Wrapf(road.ErrLaneOutOfRange, "lane %d on %v with %d lanes", target, r, r.LaneCount())
	}
	if target == t.lane {
		return nil
	}
	if t.IsChangingLanes() {
		return errors.Wrapf(ErrLaneChangeInProgress, "lane %d to %d, requested %d", t.changingFrom, t.lane, target)
	}
	to, err := t.pointsFor(t.roadIndex, target)
	if err != nil {
		return err
	}
	from := t.progressPoints
	steps := int(math.Floor(math.Max(t.params.MinLaneChangeSteps, distanceBudget*t.params.LaneChangeDistScale)))
	points := make([]geometry.Point, 0, steps)
	for i := 0; i < steps; i++ {
		idx := t.progressIndex + i
		if idx >= len(from) || idx >= len(to) {
			break
		}
		k := easing.EaseInOutQuad(float64(i) / float64(steps))
		points = append(points, geometry.Blend(from[idx], to[idx], k))
	}
	if len(points) > 0 {
		t.changingFrom = t.lane
		t.laneChangePoints = points
		t.laneChangeIndex = 0
	}
	t.lane = target
	t.progressPoints = to
	t.progressIndex = min(t.progressIndex, len(to)-1)
	return nil
}

func (t *Tracker) clearLaneChange() {
	t.changingFrom = -1
	t.laneChangePoints = nil
	t.laneChangeIndex = 0
}

// CurrentPoint 当前目标点：变道中取插值点，否则取进度点
func (t *Tracker) CurrentPoint() geometry.Point {
	if t.IsChangingLanes() {
		return t.laneChangePoints[t.laneChangeIndex]
	}
	if len(t.progressPoints) == 0 {
		return geometry.Point{}
	}
	return t.progressPoints[t.progressIndex]
}

// LookAtPoint 朝向参考点：当前目标点的下一个点，不超出点列末端
func (t *Tracker) LookAtPoint() geometry.Point {
	if t.IsChangingLanes() {
		return t.laneChangePoints[min(t.laneChangeIndex+1, len(t.laneChangePoints)-1)]
	}
	if len(t.progressPoints) == 0 {
		return geometry.Point{}
	}
	return t.progressPoints[min(t.progressIndex+1, len(t.progressPoints)-1)]
}

// AtLastPoint 是否已到达路线终点，循环路线永远不会到达
// 说明：下一项是没有驶出道路的路口时，当前道路末端即为终点
func (t *Tracker) AtLastPoint() bool {
	if t.loop {
		return false
	}
	end := t.progressIndex >= len(t.progressPoints)-1
	return (t.roadIndex >= len(t.route)-1 || t.awaitingExit()) && end
}

// awaitingExit 下一项是末尾的路口且尚未解析转向路径
func (t *Tracker) awaitingExit() bool {
	k := t.roadIndex + 1
	return k < len(t.route) && t.route[k].inter != nil && t.route[k].turn.Path == nil
}

// StartAt 跳到当前道路的指定比例处（调试用）
func (t *Tracker) StartAt(fraction float64) {
	if len(t.progressPoints) == 0 {
		return
	}
	t.clearLaneChange()
	t.progressIndex = int(lo.Clamp(fraction, 0, 1) * float64(len(t.progressPoints)-1))
}

// TargetLane 由下一个路口的转向推出的目标车道
// 功能：下一项是路口且当前车道不能驶入对应转向路径时，返回最近的可用车道方向上相邻的一条车道
// 返回：目标车道；ok为false表示路线对车道没有要求
// 说明：两侧可用车道距离相同时取编号较小的一侧并记录警告
func (t *Tracker) TargetLane() (int, bool) {
	next, ok := t.nextEntry()
	if !ok || next.inter == nil || len(next.turn.EntryLanes) == 0 {
		return t.lane, false
	}
	lanes := next.turn.EntryLanes
	if lo.Contains(lanes, t.lane) {
		return t.lane, false
	}
	best, bestDist, tie := lanes[0], math.MaxInt, false
	for _, l := range lanes {
		d := l - t.lane
		if d < 0 {
			d = -d
		}
		switch {
		case d < bestDist:
			best, bestDist, tie = l, d, false
		case d == bestDist:
			tie = true
			best = min(best, l)
		}
	}
	if tie {
		log.Warnf("turn at %v allows lanes %v equally far from lane %d, choosing %d", next.inter, lanes, t.lane, best)
	}
	return lo.Clamp(best, t.lane-1, t.lane+1), true
}

// nextEntry 路线的下一项，循环路线会回到第一项
func (t *Tracker) nextEntry() (*entry, bool) {
	k := t.roadIndex + 1
	if k >= len(t.route) {
		if !t.loop || len(t.route) == 0 {
			return nil, false
		}
		k = 0
	}
	return &t.route[k], true
}

// IsChangingLanes 是否正在变道
func (t *Tracker) IsChangingLanes() bool {
	return t.changingFrom >= 0 && len(t.laneChangePoints) > 0
}

// ChangingFrom 变道前的车道，未变道返回-1
func (t *Tracker) ChangingFrom() int {
	return t.changingFrom
}

func (t *Tracker) Lane() int {
	return t.lane
}

func (t *Tracker) HasStopped() bool {
	return t.hasStopped
}

func (t *Tracker) SetHasStopped(stopped bool) {
	t.hasStopped = stopped
}

func (t *Tracker) RouteLen() int {
	return len(t.route)
}

func (t *Tracker) RoadIndex() int {
	return t.roadIndex
}

func (t *Tracker) ProgressIndex() int {
	return t.progressIndex
}

// CurrentEntry 当前路线项（道路或路口）
func (t *Tracker) CurrentEntry() entity.IRoad {
	if len(t.route) == 0 {
		return nil
	}
	return t.route[t.roadIndex].road
}

// CurrentRoad 当前实际行驶的道路：路口内为转向路径
func (t *Tracker) CurrentRoad() entity.IRoad {
	if len(t.route) == 0 {
		return nil
	}
	return t.route[t.roadIndex].path()
}

// InIntersection 是否在路口内
func (t *Tracker) InIntersection() bool {
	return len(t.route) > 0 && t.route[t.roadIndex].inter != nil
}

// NextIntersection 下一项是路口时返回路口与前后道路ID
func (t *Tracker) NextIntersection() (inter entity.IIntersection, prev, next int32, ok bool) {
	if len(t.route) == 0 || t.InIntersection() {
		return nil, 0, 0, false
	}
	e, ok := t.nextEntry()
	if !ok || e.inter == nil {
		return nil, 0, 0, false
	}
	k := (t.roadIndex + 2) % len(t.route)
	if t.roadIndex+2 >= len(t.route) && !t.loop {
		return nil, 0, 0, false
	}
	return e.inter, t.route[t.roadIndex].id, t.route[k].id, true
}

// Track 车辆所在的轨道：路线项ID与实际行驶的道路ID
func (t *Tracker) Track() (entryID, pathID int32) {
	if len(t.route) == 0 {
		return -1, -1
	}
	e := &t.route[t.roadIndex]
	return e.id, e.path().ID()
}

// NextTrack 下一项的轨道以及车辆驶入后将使用的车道
func (t *Tracker) NextTrack() (entryID, pathID int32, lane int, ok bool) {
	e, ok := t.nextEntry()
	if !ok || (e.inter != nil && e.turn.Path == nil) {
		return -1, -1, 0, false
	}
	cur := &t.route[t.roadIndex]
	switch {
	case e.inter != nil:
		lane = junction.PathLane(e.turn, t.lane)
	case cur.inter != nil && cur.turn.ExitLane >= 0:
		lane = cur.turn.ExitLane
	case cur.inter != nil:
		lane = t.laneBefore
	default:
		lane = t.lane
	}
	return e.id, e.path().ID(), lane, true
}

// Roads 路线所用的道路仓库
func (t *Tracker) Roads() entity.IRoadManager {
	return t.roads
}
