package input

import (
	"fmt"
	"sort"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/lanesim/entity"
	"github.com/tsinghua-fib-lab/lanesim/entity/junction/trafficlight"
)

// 单位圆四段贝塞尔近似的控制柄比例
const circleHandle = 0.5522847498

var builtins = map[string]func() *Scene{
	"straight": straightScene,
	"crossing": crossingScene,
	"loop":     loopScene,
}

// Builtin 内置场景
func Builtin(name string) (*Scene, error) {
	f, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("unknown builtin scene %q, expected one of %v", name, BuiltinNames())
	}
	return f(), nil
}

// BuiltinNames 所有内置场景名
func BuiltinNames() []string {
	names := lo.Keys(builtins)
	sort.Strings(names)
	return names
}

func line(from, to geometry.Point) []SplineNode {
	return []SplineNode{{Point: from}, {Point: to}}
}

// straightScene 三车道单向直路，慢车与快车混行
func straightScene() *Scene {
	s := &Scene{
		Name: "straight",
		Seed: 1,
		Roads: []Road{
			{ID: 1, Nodes: line(geometry.Point{}, geometry.Point{X: 3000}), Lanes: 3, Width: 20, SpeedLimit: 5},
		},
	}
	for k := 0; k < 9; k++ {
		s.Cars = append(s.Cars, Car{
			ID:       int32(k + 1),
			Lane:     k % 3,
			Route:    []int32{1},
			MaxSpeed: []float64{2, 5, 3.5}[k%3],
			Jitter:   0.1,
			StartAt:  float64(k/3) * 0.05,
		})
	}
	return s
}

// crossingScene 四车道双向信号灯十字路口
func crossingScene() *Scene {
	s := &Scene{
		Name: "crossing",
		Seed: 2,
		Roads: []Road{
			{ID: 1, Nodes: line(geometry.Point{X: -800}, geometry.Point{X: -100}), Lanes: 4, Width: 20, SpeedLimit: 5, TwoWay: true},
			{ID: 2, Nodes: line(geometry.Point{X: 100}, geometry.Point{X: 800}), Lanes: 4, Width: 20, SpeedLimit: 5, TwoWay: true},
			{ID: 3, Nodes: line(geometry.Point{Y: 800}, geometry.Point{Y: 100}), Lanes: 4, Width: 20, SpeedLimit: 5, TwoWay: true},
			{ID: 4, Nodes: line(geometry.Point{Y: -100}, geometry.Point{Y: -800}), Lanes: 4, Width: 20, SpeedLimit: 5, TwoWay: true},
		},
		Intersections: []Intersection{{
			ID:     10,
			Kind:   entity.TrafficLight.String(),
			Lanes:  4,
			Width:  20,
			TwoWay: true,
			Connections: []Connection{
				{Road: 1, Side: "left", End: "end"},
				{Road: 2, Side: "right", End: "start"},
				{Road: 3, Side: "top", End: "end"},
				{Road: 4, Side: "bottom", End: "start"},
			},
			Program: &trafficlight.Program{Phases: []trafficlight.Phase{
				{Duration: 10, GreenSides: []entity.Side{entity.SideLeft, entity.SideRight}},
				{Duration: 2},
				{Duration: 10, GreenSides: []entity.Side{entity.SideTop, entity.SideBottom}},
				{Duration: 2},
			}},
		}},
	}
	routes := [][]int32{
		{1, 10, 2}, {1, 10, 4}, {1, 10, 3},
		{2, 10, 1}, {2, 10, 3},
		{3, 10, 4}, {3, 10, 1},
		{4, 10, 3}, {4, 10, 2},
	}
	for k, r := range routes {
		s.Cars = append(s.Cars, Car{
			ID:       int32(k + 1),
			Lane:     k % 2,
			Origin:   entity.OriginStart.String(),
			Route:    r,
			MaxSpeed: 4,
			Jitter:   0.2,
			StartAt:  float64(k%3) * 0.2,
		})
	}
	return s
}

// loopScene 两车道单向环路，车辆循环行驶
func loopScene() *Scene {
	const r = 400.
	k := r * circleHandle
	s := &Scene{
		Name: "loop",
		Seed: 3,
		Roads: []Road{{
			ID: 1,
			Nodes: []SplineNode{
				{Point: geometry.Point{X: r}, Out: geometry.Point{Y: k}},
				{Point: geometry.Point{Y: r}, In: geometry.Point{X: k}, Out: geometry.Point{X: -k}},
				{Point: geometry.Point{X: -r}, In: geometry.Point{Y: k}, Out: geometry.Point{Y: -k}},
				{Point: geometry.Point{Y: -r}, In: geometry.Point{X: -k}, Out: geometry.Point{X: k}},
				{Point: geometry.Point{X: r}, In: geometry.Point{Y: -k}},
			},
			Lanes:      2,
			Width:      20,
			SpeedLimit: 5,
		}},
	}
	for n := 0; n < 8; n++ {
		s.Cars = append(s.Cars, Car{
			ID:       int32(n + 1),
			Lane:     n % 2,
			Route:    []int32{1},
			MaxSpeed: 3 + float64(n%4)*0.5,
			Jitter:   0.1,
			Loop:     true,
			StartAt:  float64(n) / 8,
		})
	}
	return s
}
