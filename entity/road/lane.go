package road

import (
	"git.fiblab.net/general/common/v2/geometry"
	"github.com/pkg/errors"
	"github.com/tsinghua-fib-lab/lanesim/entity"
)

// AbsoluteLane 相对车道到物理车道的映射
// 功能：将以行进方向为参照的相对车道换算为道路存储点列的下标
// 参数：r-道路，origin-行进方向，rel-相对车道
// 返回：物理车道下标
// 说明：双向道路从起点出发时使用右半部分车道，按由外到内倒序编号；其余情况相对车道即物理车道
func AbsoluteLane(r entity.IRoad, origin entity.Origin, rel int) int {
	if r.IsTwoWay() && origin == entity.OriginStart {
		return r.NumLanes() - 1 - rel
	}
	return rel
}

// TravelPoints 按行进顺序返回某相对车道的点列
// 功能：origin为终点时返回逆序副本，保证下标始终沿行进方向递增
// 返回：点列；车道越界时返回ErrLaneOutOfRange
func TravelPoints(r entity.IRoad, origin entity.Origin, rel int) ([]geometry.Point, error) {
	if !r.LaneInRange(rel) {
		return nil, errors.Wrapf(ErrLaneOutOfRange, "%v: lane %d of %d", r, rel, r.LaneCount())
	}
	pts := r.RoadPoints(AbsoluteLane(r, origin, rel))
	if origin == entity.OriginStart {
		return pts, nil
	}
	reversed := make([]geometry.Point, len(pts))
	for i, p := range pts {
		reversed[len(pts)-1-i] = p
	}
	return reversed, nil
}

// EntryPoint 沿origin方向进入道路时第rel条车道的第一个点
func EntryPoint(r entity.IRoad, origin entity.Origin, rel int) (geometry.Point, bool) {
	if !r.LaneInRange(rel) {
		return geometry.Point{}, false
	}
	return endPoint(r.RoadPoints(AbsoluteLane(r, origin, rel)), origin == entity.OriginStart)
}

// ExitPoint 沿origin方向离开道路时第rel条车道的最后一个点
func ExitPoint(r entity.IRoad, origin entity.Origin, rel int) (geometry.Point, bool) {
	if !r.LaneInRange(rel) {
		return geometry.Point{}, false
	}
	return endPoint(r.RoadPoints(AbsoluteLane(r, origin, rel)), origin == entity.OriginEnd)
}

func endPoint(pts []geometry.Point, first bool) (geometry.Point, bool) {
	if len(pts) == 0 {
		return geometry.Point{}, false
	}
	if first {
		return pts[0], true
	}
	return pts[len(pts)-1], true
}
