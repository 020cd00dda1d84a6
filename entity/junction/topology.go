package junction

import (
	"math"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/lanesim/entity"
	"github.com/tsinghua-fib-lab/lanesim/entity/road"
	"github.com/tsinghua-fib-lab/lanesim/utils/spline"
	"github.com/tsinghua-fib-lab/lanesim/utils/vec"
)

// 转弯路径控制柄长度相对弦长的比例
const turnHandleScale = 0.5

// sideDirection 各边的外法向（y轴向上）
var sideDirection = [entity.SideCount]geometry.Point{
	entity.SideTop:    {X: 0, Y: 1},
	entity.SideRight:  {X: 1, Y: 0},
	entity.SideBottom: {X: 0, Y: -1},
	entity.SideLeft:   {X: -1, Y: 0},
}

// SideDirection 边的外法向单位向量
func SideDirection(side entity.Side) geometry.Point {
	return sideDirection[side]
}

// SidePoint 边中点的世界坐标
func (i *Intersection) SidePoint(side entity.Side) geometry.Point {
	return i.center.Add(sideDirection[side].Scale(i.Size() / 2))
}

// straightEntry 直行路径的登记信息
type straightEntry struct {
	from, to entity.Side
	horizon  bool // 是否为东西向路径
	origin   entity.Origin
}

// buildPaths 生成全部转向路径
// 功能：创建东西向与南北向两条直行路径，再在直行路径的车道端点之间生成单车道转弯路径
// 算法说明：
// 1. 东西向路径从左边中点指向右边中点，南北向路径从上边中点指向下边中点
// 2. 双向路口四个方向的直行、右转、左转均可用；单向路口只能从左、上驶入，从右、下驶出
// 3. 转弯路径起点为驶入直行路径中距离驶出边最近的车道起点，终点为驶出直行路径中距离该起点最近的车道终点
// 4. 转弯路径为三次贝塞尔曲线，两端控制柄分别沿驶入、驶出方向
func (i *Intersection) buildPaths(roads entity.IRoadManager) error {
	h := i.Size() / 2
	limit := i.speedLimit()
	newPath := func(s *spline.Spline, lanes int, twoWay bool, speedLimit float64) (*road.Road, error) {
		r, err := road.New(roads.NextID(), s, lanes, speedLimit, i.laneWidth, twoWay, road.WithLaneGap(i.params.LaneGap))
		if err != nil {
			return nil, err
		}
		return r, roads.Add(r)
	}
	horizon, err := newPath(
		spline.Line(i.center.Add(vec.New(-h, 0)), i.center.Add(vec.New(h, 0))),
		i.lanes, i.twoWay, limit,
	)
	if err != nil {
		return err
	}
	vertical, err := newPath(
		spline.Line(i.center.Add(vec.New(0, h)), i.center.Add(vec.New(0, -h))),
		i.lanes, i.twoWay, limit,
	)
	if err != nil {
		return err
	}

	straights := []straightEntry{
		{entity.SideLeft, entity.SideRight, true, entity.OriginStart},
		{entity.SideTop, entity.SideBottom, false, entity.OriginStart},
	}
	if i.twoWay {
		straights = append(straights,
			straightEntry{entity.SideRight, entity.SideLeft, true, entity.OriginEnd},
			straightEntry{entity.SideBottom, entity.SideTop, false, entity.OriginEnd},
		)
	}
	inbound := make(map[entity.Side]entity.TurnPath)
	outbound := make(map[entity.Side]entity.TurnPath)
	for _, s := range straights {
		path := entity.IRoad(vertical)
		if s.horizon {
			path = horizon
		}
		tp := entity.TurnPath{
			FromSide: s.from,
			ToSide:   s.to,
			Path:     path,
			Origin:   s.origin,
			ExitLane: -1,
		}
		i.paths = append(i.paths, tp)
		inbound[s.from] = tp
		outbound[s.to] = tp
	}

	turnLimit := math.Min(i.params.TurnSpeedLimit, limit)
	for from := entity.Side(0); from < entity.SideCount; from++ {
		in, ok := inbound[from]
		if !ok {
			continue
		}
		for _, to := range []entity.Side{(from + 3) % entity.SideCount, (from + 1) % entity.SideCount} {
			out, ok := outbound[to]
			if !ok {
				continue
			}
			inLane, entry := closestLane(in, i.SidePoint(to), road.EntryPoint)
			outLane, exit := closestLane(out, entry, road.ExitPoint)
			chord := geometry.Distance2D(entry, exit) * turnHandleScale
			s, err := spline.New(entry,
				spline.Node{Out: sideDirection[from].Scale(-chord)},
				spline.Node{Point: exit.Sub(entry), In: sideDirection[to].Scale(-chord)},
			)
			if err != nil {
				return err
			}
			path, err := newPath(s, 1, false, turnLimit)
			if err != nil {
				return err
			}
			i.paths = append(i.paths, entity.TurnPath{
				FromSide:   from,
				ToSide:     to,
				Path:       path,
				Origin:     entity.OriginStart,
				EntryLanes: []int{inLane},
				ExitLane:   outLane,
			})
		}
	}
	return nil
}

// closestLane 在直行路径的各车道端点中找到距离target最近的一个
func closestLane(
	tp entity.TurnPath,
	target geometry.Point,
	endpoint func(entity.IRoad, entity.Origin, int) (geometry.Point, bool),
) (int, geometry.Point) {
	best, bestPoint, bestDist := 0, geometry.Point{}, math.Inf(1)
	for lane := 0; lane < tp.Path.LaneCount(); lane++ {
		p, ok := endpoint(tp.Path, tp.Origin, lane)
		if !ok {
			continue
		}
		if d := geometry.Distance2D(p, target); d < bestDist {
			best, bestPoint, bestDist = lane, p, d
		}
	}
	return best, bestPoint
}

// ConnectRoadEnd 将道路终点接到路口的某条边
// 功能：修改道路样条的最后一个控制节点，使其落在边中点且切向垂直于边，然后重新采样
// 参数：r-道路，side-边，controlScale-终点入控制柄长度
// 返回：边号非法返回ErrInvalidSide，边已被占用返回ErrSideTaken
func (i *Intersection) ConnectRoadEnd(r *road.Road, side entity.Side, controlScale float64) error {
	if err := i.attach(r, side); err != nil {
		return err
	}
	s := r.Spline()
	last := s.NumNodes() - 1
	node := s.Node(last)
	if err := s.UpdatePointAbsolute(last, i.SidePoint(side), sideDirection[side].Scale(controlScale), node.Out); err != nil {
		return err
	}
	r.RecomputePoints()
	return nil
}

// ConnectRoadStart 将道路起点接到路口的某条边
// 功能：平移道路样条使第一个控制节点落在边中点，出控制柄沿边的外法向，然后重新采样
// 参数：r-道路，side-边，controlScale-起点出控制柄长度
// 说明：平移后其余节点的世界坐标保持不变
func (i *Intersection) ConnectRoadStart(r *road.Road, side entity.Side, controlScale float64) error {
	if err := i.attach(r, side); err != nil {
		return err
	}
	s := r.Spline()
	target := i.SidePoint(side)
	shift := s.Pos().Sub(target)
	nodes := make([]spline.Node, s.NumNodes())
	for k := range nodes {
		nodes[k] = s.Node(k)
		nodes[k].Point = nodes[k].Point.Add(shift)
	}
	nodes[0] = spline.Node{In: nodes[0].In, Out: sideDirection[side].Scale(controlScale)}
	s.MoveTo(target)
	for k, n := range nodes {
		if err := s.UpdateControlPoint(k, n); err != nil {
			return err
		}
	}
	r.RecomputePoints()
	return nil
}

func (i *Intersection) attach(r entity.IRoad, side entity.Side) error {
	if !side.Valid() {
		return errors.Wrapf(ErrInvalidSide, "%v: side %d", i, side)
	}
	if i.sides[side] != nil {
		return errors.Wrapf(ErrSideTaken, "%v: side %d has %v", i, side, i.sides[side])
	}
	if r.NumLanes() != i.lanes || r.IsTwoWay() != i.twoWay {
		log.Warnf("%v connects %v with %d lanes (two-way %v) to side %d, expected %d lanes (two-way %v)",
			i, r, r.NumLanes(), r.IsTwoWay(), side, i.lanes, i.twoWay)
	}
	i.sides[side] = r
	return nil
}

// SideRoad 某条边连接的道路，未连接返回nil
func (i *Intersection) SideRoad(side entity.Side) entity.IRoad {
	if !side.Valid() {
		return nil
	}
	return i.sides[side]
}

// SideOf 道路所连接的边
func (i *Intersection) SideOf(roadID int32) (entity.Side, bool) {
	for s, r := range i.sides {
		if r != nil && r.ID() == roadID {
			return entity.Side(s), true
		}
	}
	return 0, false
}

// GetPath 根据驶入道路与驶出道路查找转向路径
// 返回：转向路径；道路未连接到路口或不存在对应转向时返回ErrNoPath
func (i *Intersection) GetPath(from, to int32) (entity.TurnPath, error) {
	fromSide, ok := i.SideOf(from)
	if !ok {
		return entity.TurnPath{}, errors.Wrapf(ErrNoPath, "%v: road %d is not connected", i, from)
	}
	toSide, ok := i.SideOf(to)
	if !ok {
		return entity.TurnPath{}, errors.Wrapf(ErrNoPath, "%v: road %d is not connected", i, to)
	}
	tp, ok := lo.Find(i.paths, func(tp entity.TurnPath) bool {
		return tp.FromSide == fromSide && tp.ToSide == toSide
	})
	if !ok {
		return entity.TurnPath{}, errors.Wrapf(ErrNoPath, "%v: side %d to side %d", i, fromSide, toSide)
	}
	return tp, nil
}
