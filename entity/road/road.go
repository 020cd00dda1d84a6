package road

import (
	"fmt"
	"math"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/pkg/errors"
	"github.com/tsinghua-fib-lab/lanesim/utils/config"
	"github.com/tsinghua-fib-lab/lanesim/utils/spline"
	"github.com/tsinghua-fib-lab/lanesim/utils/vec"
)

var (
	ErrOddTwoWayLanes = errors.New("two-way road needs an even lane count")
	ErrLaneOutOfRange = errors.New("lane out of range")
)

// Option Road构造选项
type Option func(*Road)

// WithLaneGap 设置车道间隙，默认取DefaultParams
func WithLaneGap(gap float64) Option {
	return func(r *Road) {
		r.laneGap = gap
	}
}

// WithDetail 固定每条车道的采样点数，默认按样条长度每像素一个点
func WithDetail(detail int) Option {
	return func(r *Road) {
		r.detail = detail
	}
}

// Road 道路实体
// 功能：表示一段带车道的道路，由中心线样条按固定分辨率采样并按车道横向偏移得到各车道点列
// 说明：点列在构造与RecomputePoints时生成，其余时间只读
type Road struct {
	id         int32
	spline     *spline.Spline
	numLanes   int
	speedLimit float64
	laneWidth  float64
	laneGap    float64
	twoWay     bool
	detail     int // 0表示按长度自动确定

	points [][]geometry.Point // points[lane][i]，起点到终点顺序
}

// New 创建道路
// 功能：校验车道数并采样车道点
// 参数：id-道路ID，s-中心线样条，numLanes-物理车道数，speedLimit-限速，laneWidth-车道宽度，twoWay-是否双向
// 返回：道路实例；双向道路车道数为奇数时返回ErrOddTwoWayLanes
func New(
	id int32, s *spline.Spline, numLanes int, speedLimit, laneWidth float64, twoWay bool, opts ...Option,
) (*Road, error) {
	if numLanes < 0 {
		return nil, errors.Wrapf(ErrLaneOutOfRange, "road %d: negative lane count %d", id, numLanes)
	}
	if twoWay && numLanes%2 != 0 {
		return nil, errors.Wrapf(ErrOddTwoWayLanes, "road %d: %d lanes", id, numLanes)
	}
	r := &Road{
		id:         id,
		spline:     s,
		numLanes:   numLanes,
		speedLimit: speedLimit,
		laneWidth:  laneWidth,
		laneGap:    config.DefaultParams().LaneGap,
		twoWay:     twoWay,
	}
	for _, opt := range opts {
		opt(r)
	}
	s.SetThickness(r.Thickness())
	r.RecomputePoints()
	return r, nil
}

func (r *Road) String() string {
	return fmt.Sprintf("Road %d", r.id)
}

// ID 获取道路ID，nil返回-1
func (r *Road) ID() int32 {
	if r == nil {
		return -1
	}
	return r.id
}

func (r *Road) Spline() *spline.Spline {
	return r.spline
}

func (r *Road) NumLanes() int {
	return r.numLanes
}

// LaneCount 单方向可用的车道数
func (r *Road) LaneCount() int {
	if r.twoWay {
		return r.numLanes / 2
	}
	return r.numLanes
}

// LaneInRange 相对车道是否在[0, LaneCount)内
func (r *Road) LaneInRange(lane int) bool {
	return lane >= 0 && lane < r.LaneCount()
}

func (r *Road) LaneWidth() float64 {
	return r.laneWidth
}

func (r *Road) LaneGap() float64 {
	return r.laneGap
}

func (r *Road) SpeedLimit() float64 {
	return r.speedLimit
}

func (r *Road) IsTwoWay() bool {
	return r.twoWay
}

// Thickness 道路总宽度：车道与两侧、车道之间的间隙
func (r *Road) Thickness() float64 {
	l := float64(r.numLanes)
	return l*r.laneWidth + (l+1)*r.laneGap
}

// Endpoints 中心线起终点（世界坐标）
func (r *Road) Endpoints() (geometry.Point, geometry.Point) {
	return r.spline.Interpolate(0), r.spline.Interpolate(1)
}

// RoadPoints 获取物理车道的采样点（起点到终点顺序），越界返回nil
func (r *Road) RoadPoints(lane int) []geometry.Point {
	if lane < 0 || lane >= len(r.points) {
		return nil
	}
	return r.points[lane]
}

// LaneLines 车道采样点的副本，供可视化使用
func (r *Road) LaneLines() [][]geometry.Point {
	lines := make([][]geometry.Point, len(r.points))
	for i, pts := range r.points {
		lines[i] = append([]geometry.Point(nil), pts...)
	}
	return lines
}

// LaneOffset 第lane条物理车道相对中心线的横向偏移（沿切向左法向为正）
func (r *Road) LaneOffset(lane int) float64 {
	mid := float64(r.numLanes-1) / 2
	l := float64(lane)
	return r.laneWidth*(mid-l) - r.laneGap*(l-mid)
}

// RecomputePoints 按当前样条重新采样车道点
// 功能：路口移动道路端点控制点后需要调用
func (r *Road) RecomputePoints() {
	detail := r.detail
	if detail <= 0 {
		detail = int(math.Ceil(r.spline.Length()))
	}
	detail = max(detail, 2)
	r.points = r.BuildLanePoints(detail)
}

// BuildLanePoints 按给定分辨率采样所有车道
// 功能：将中心线样条离散化为每条车道的点列
// 参数：detail-每条车道的采样点数
// 返回：points[lane][j]
// 算法说明：
// 1. 对j∈[0, detail)，取t=j/detail处的位置与切向
// 2. 法向为切向逆时针旋转90°
// 3. 第l条车道沿法向偏移LaneOffset(l)
func (r *Road) BuildLanePoints(detail int) [][]geometry.Point {
	points := make([][]geometry.Point, r.numLanes)
	for l := range points {
		points[l] = make([]geometry.Point, detail)
	}
	for j := 0; j < detail; j++ {
		pos, tangent := r.spline.InterpolateSlope(float64(j) / float64(detail))
		normal := vec.Perp(tangent)
		for l := range points {
			points[l][j] = pos.Add(normal.Scale(r.LaneOffset(l)))
		}
	}
	return points
}
