// 三次贝塞尔样条，为道路中心线提供按弧长参数化的插值
package spline

import (
	"fmt"
	"sort"

	"git.fiblab.net/general/common/v2/geometry"
	"honnef.co/go/curve"
)

const (
	arclenAccuracy = 1e-3 // 弧长计算精度（像素）
	eps            = 1e-9 // 判定退化切向量的阈值
)

// Node 样条控制节点
// 说明：Point为相对样条原点的坐标，In/Out为相对Point的入/出控制柄
type Node struct {
	Point geometry.Point `yaml:"point" bson:"point"` // 节点坐标（相对原点）
	In    geometry.Point `yaml:"in" bson:"in"`       // 入控制柄
	Out   geometry.Point `yaml:"out" bson:"out"`     // 出控制柄
}

// Spline 分段三次贝塞尔样条
// 功能：提供插值、切向、长度查询以及构建期的控制点修改
// 说明：t∈[0,1]按弧长均匀映射到样条上，便于按固定分辨率采样车道点
type Spline struct {
	pos       geometry.Point // 样条原点（世界坐标）
	nodes     []Node         // 控制节点
	thickness float64        // 绘制宽度，仅供可视化

	segs       []curve.CubicBez // 每段的贝塞尔曲线（相对坐标）
	cumLengths []float64        // 每段起点的累计弧长
	length     float64          // 总长度
}

// New 创建样条
// 功能：根据原点与控制节点创建样条并计算各段弧长
// 参数：pos-原点（世界坐标），nodes-至少两个控制节点
// 返回：样条实例，节点不足时返回错误
func New(pos geometry.Point, nodes ...Node) (*Spline, error) {
	if len(nodes) < 2 {
		return nil, fmt.Errorf("spline needs at least 2 nodes, got %d", len(nodes))
	}
	s := &Spline{
		pos:   pos,
		nodes: append([]Node(nil), nodes...),
	}
	s.refresh()
	return s, nil
}

// Line 以两点构造直线样条
func Line(from, to geometry.Point) *Spline {
	s, _ := New(from, Node{}, Node{Point: to.Sub(from)})
	return s
}

// Pos 获取样条原点
func (s *Spline) Pos() geometry.Point {
	return s.pos
}

// 获取控制节点数量
func (s *Spline) NumNodes() int {
	return len(s.nodes)
}

// Node 获取第i个控制节点（相对坐标）
func (s *Spline) Node(i int) Node {
	return s.nodes[i]
}

// NodeAbsolute 获取第i个控制节点的世界坐标
func (s *Spline) NodeAbsolute(i int) geometry.Point {
	return s.pos.Add(s.nodes[i].Point)
}

// Length 获取样条总长度
func (s *Spline) Length() float64 {
	return s.length
}

func (s *Spline) Thickness() float64 {
	return s.thickness
}

func (s *Spline) SetThickness(thickness float64) {
	s.thickness = thickness
}

// MoveTo 平移样条原点
// 说明：控制节点保持相对坐标不变，整体平移
func (s *Spline) MoveTo(pos geometry.Point) {
	s.pos = pos
}

// UpdateControlPoint 修改第i个控制节点（相对坐标）
// 功能：替换控制节点并重建各段曲线
// 返回：索引越界时返回错误
func (s *Spline) UpdateControlPoint(i int, node Node) error {
	if i < 0 || i >= len(s.nodes) {
		return fmt.Errorf("control point %d out of range [0, %d)", i, len(s.nodes))
	}
	s.nodes[i] = node
	s.refresh()
	return nil
}

// UpdatePointAbsolute 以世界坐标修改第i个控制节点
// 参数：i-节点索引，point-节点世界坐标，in/out-相对节点的控制柄
func (s *Spline) UpdatePointAbsolute(i int, point, in, out geometry.Point) error {
	return s.UpdateControlPoint(i, Node{Point: point.Sub(s.pos), In: in, Out: out})
}

// Interpolate 插值得到世界坐标
// 参数：t-弧长比例，[0, 1]
func (s *Spline) Interpolate(t float64) geometry.Point {
	p, _ := s.InterpolateSlope(t)
	return p
}

// InterpolateSlope 插值得到世界坐标与切向量
// 功能：按弧长比例t定位样条上的点并计算该点切向
// 参数：t-弧长比例，[0, 1]
// 返回：世界坐标与单位切向量
// 算法说明：
// 1. 将t换算为弧长，按累计弧长定位所在段
// 2. 在段内求解弧长对应的贝塞尔参数u
// 3. 计算位置与导数；导数退化（控制柄与端点重合）时使用弦方向
func (s *Spline) InterpolateSlope(t float64) (geometry.Point, geometry.Point) {
	seg, u := s.locate(t)
	c := s.segs[seg]
	pos := c.Eval(u)
	d := curve.Vec2(c.Differentiate().Eval(u))
	if d.Hypot() < eps {
		d = c.P3.Sub(c.P0)
	}
	var tangent geometry.Point
	if d.Hypot() >= eps {
		d = d.Normalize()
		tangent = geometry.Point{X: d.X, Y: d.Y}
	}
	return s.pos.Add(geometry.Point{X: pos.X, Y: pos.Y}), tangent
}

// locate 将弧长比例转换为(段索引, 段内贝塞尔参数)
func (s *Spline) locate(t float64) (int, float64) {
	last := len(s.segs) - 1
	if s.length < eps {
		return 0, t
	}
	target := t * s.length
	if target <= 0 {
		return 0, 0
	}
	if target >= s.length {
		return last, 1
	}
	seg := sort.SearchFloat64s(s.cumLengths, target) - 1
	seg = max(min(seg, last), 0)
	return seg, curve.SolveForArclen(s.segs[seg], target-s.cumLengths[seg], arclenAccuracy)
}

// refresh 由控制节点重建各段曲线与累计弧长
// 说明：第seg段的控制点依次为节点a、a+Out、b+In、节点b
func (s *Spline) refresh() {
	numSeg := len(s.nodes) - 1
	s.segs = make([]curve.CubicBez, numSeg)
	s.cumLengths = make([]float64, numSeg)
	total := 0.
	for seg := 0; seg < numSeg; seg++ {
		a, b := s.nodes[seg], s.nodes[seg+1]
		c := curve.CubicBez{
			P0: toCurve(a.Point),
			P1: toCurve(a.Point.Add(a.Out)),
			P2: toCurve(b.Point.Add(b.In)),
			P3: toCurve(b.Point),
		}
		s.segs[seg] = c
		s.cumLengths[seg] = total
		total += c.Arclen(arclenAccuracy)
	}
	s.length = total
}

func toCurve(p geometry.Point) curve.Point {
	return curve.Pt(p.X, p.Y)
}
