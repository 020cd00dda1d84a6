package input

import (
	"fmt"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/pkg/errors"
	"github.com/tsinghua-fib-lab/lanesim/entity"
	"github.com/tsinghua-fib-lab/lanesim/entity/junction/trafficlight"
)

// SplineNode 道路中心线的控制节点
// 说明：Point为世界坐标，In/Out为相对Point的控制柄
type SplineNode struct {
	Point geometry.Point `yaml:"point" bson:"point"`
	In    geometry.Point `yaml:"in,omitempty" bson:"in,omitempty"`
	Out   geometry.Point `yaml:"out,omitempty" bson:"out,omitempty"`
}

// Road 场景中的道路
type Road struct {
	ID         int32        `yaml:"id" bson:"id"`
	Nodes      []SplineNode `yaml:"nodes" bson:"nodes"`
	Lanes      int          `yaml:"lanes" bson:"lanes"`
	Width      float64      `yaml:"width" bson:"width"`
	SpeedLimit float64      `yaml:"speed_limit" bson:"speed_limit"`
	TwoWay     bool         `yaml:"two_way,omitempty" bson:"two_way,omitempty"`
}

// Connection 道路与路口某条边的连接
type Connection struct {
	Road    int32   `yaml:"road" bson:"road"`
	Side    string  `yaml:"side" bson:"side"`                           // top/right/bottom/left
	End     string  `yaml:"end" bson:"end"`                             // 接到路口的是道路的start还是end
	Control float64 `yaml:"control,omitempty" bson:"control,omitempty"` // 控制柄长度，默认50
}

// Intersection 场景中的路口
type Intersection struct {
	ID          int32                 `yaml:"id" bson:"id"`
	Kind        string                `yaml:"kind" bson:"kind"` // traffic_light/stop_sign
	Center      geometry.Point        `yaml:"center" bson:"center"`
	Lanes       int                   `yaml:"lanes" bson:"lanes"`
	Width       float64               `yaml:"width" bson:"width"`
	TwoWay      bool                  `yaml:"two_way,omitempty" bson:"two_way,omitempty"`
	Connections []Connection          `yaml:"connections" bson:"connections"`
	Program     *trafficlight.Program `yaml:"program,omitempty" bson:"program,omitempty"`
}

// Car 场景中的车辆
type Car struct {
	ID           int32   `yaml:"id" bson:"id"`
	Lane         int     `yaml:"lane" bson:"lane"`
	Origin       string  `yaml:"origin,omitempty" bson:"origin,omitempty"` // 单条道路路线的行进方向
	Route        []int32 `yaml:"route" bson:"route"`
	MaxSpeed     float64 `yaml:"max_speed,omitempty" bson:"max_speed,omitempty"`
	Jitter       float64 `yaml:"jitter,omitempty" bson:"jitter,omitempty"` // 最高速度的随机扰动比例
	Loop         bool    `yaml:"loop,omitempty" bson:"loop,omitempty"`
	NoLaneChange bool    `yaml:"no_lane_change,omitempty" bson:"no_lane_change,omitempty"`
	StartAt      float64 `yaml:"start_at,omitempty" bson:"start_at,omitempty"`
	Style        string  `yaml:"style,omitempty" bson:"style,omitempty"`
}

// Scene 场景
// 说明：道路与路口共用一个ID空间，车辆路线引用这些ID
type Scene struct {
	Name          string         `yaml:"name" bson:"name"`
	Seed          uint64         `yaml:"seed,omitempty" bson:"seed,omitempty"`
	Roads         []Road         `yaml:"roads" bson:"roads"`
	Intersections []Intersection `yaml:"intersections,omitempty" bson:"intersections,omitempty"`
	Cars          []Car          `yaml:"cars" bson:"cars"`
}

// Validate 检查场景内部的引用关系
// 说明：几何与拓扑上的错误（车道数、转向路径）在构建时由各实体报告
func (s *Scene) Validate() error {
	ids := make(map[int32]string)
	claim := func(id int32, what string) error {
		if prev, ok := ids[id]; ok {
			return fmt.Errorf("scene %q: %s %d reuses the id of a %s", s.Name, what, id, prev)
		}
		ids[id] = what
		return nil
	}
	for _, r := range s.Roads {
		if err := claim(r.ID, "road"); err != nil {
			return err
		}
		if len(r.Nodes) < 2 {
			return fmt.Errorf("scene %q: road %d needs at least 2 nodes", s.Name, r.ID)
		}
	}
	for _, i := range s.Intersections {
		if err := claim(i.ID, "intersection"); err != nil {
			return err
		}
		if _, err := entity.ParseIntersectionKind(i.Kind); err != nil {
			return errors.Wrapf(err, "scene %q: intersection %d", s.Name, i.ID)
		}
		for _, c := range i.Connections {
			if ids[c.Road] != "road" {
				return fmt.Errorf("scene %q: intersection %d connects unknown road %d", s.Name, i.ID, c.Road)
			}
			if _, err := entity.ParseSide(c.Side); err != nil {
				return errors.Wrapf(err, "scene %q: intersection %d", s.Name, i.ID)
			}
			if _, err := entity.ParseOrigin(c.End); err != nil {
				return errors.Wrapf(err, "scene %q: intersection %d", s.Name, i.ID)
			}
		}
	}
	cars := make(map[int32]struct{})
	for _, c := range s.Cars {
		if _, ok := cars[c.ID]; ok {
			return fmt.Errorf("scene %q: duplicated car id %d", s.Name, c.ID)
		}
		cars[c.ID] = struct{}{}
		if _, err := entity.ParseOrigin(c.Origin); err != nil {
			return errors.Wrapf(err, "scene %q: car %d", s.Name, c.ID)
		}
		for _, id := range c.Route {
			if _, ok := ids[id]; !ok {
				return fmt.Errorf("scene %q: car %d routes through unknown id %d", s.Name, c.ID, id)
			}
		}
	}
	return nil
}
