package task

import (
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/lanesim/entity"
	"github.com/tsinghua-fib-lab/lanesim/entity/car"
	"github.com/tsinghua-fib-lab/lanesim/entity/road"
	"github.com/tsinghua-fib-lab/lanesim/utils/input"
	"github.com/tsinghua-fib-lab/lanesim/utils/randengine"
	"github.com/tsinghua-fib-lab/lanesim/utils/spline"
)

// 路口连接处控制柄的默认长度
const defaultControl = 50.

// Init 构建场景
// 功能：把场景中的道路、路口与车辆构建为仿真实体并交给交通引擎
// 返回：几何或路线不合法时返回错误
// 算法说明：
// 1. 按场景顺序创建道路，记录场景ID到仓库ID的映射
// 2. 创建路口（同时生成转向路径），把道路端点接到路口的边上，设置信号灯程序
// 3. 创建车辆：最高速度按场景种子施加随机扰动，设置路线与初始位置
func (ctx *Context) Init() error {
	ctx.clock.Init()
	scene := ctx.scene
	roads := make(map[int32]*road.Road, len(scene.Roads))
	for _, r := range scene.Roads {
		s, err := newSpline(r.Nodes)
		if err != nil {
			return errors.Wrapf(err, "road %d", r.ID)
		}
		built, err := ctx.roadManager.NewRoad(s, r.Lanes, r.SpeedLimit, r.Width, r.TwoWay)
		if err != nil {
			return errors.Wrapf(err, "road %d", r.ID)
		}
		roads[r.ID] = built
		ctx.ids[r.ID] = built.ID()
	}
	for _, si := range scene.Intersections {
		if err := ctx.buildIntersection(si, roads); err != nil {
			return errors.Wrapf(err, "intersection %d", si.ID)
		}
	}

	rng := randengine.New(scene.Seed)
	cars := make([]*car.Car, 0, len(scene.Cars))
	for _, sc := range scene.Cars {
		c, err := ctx.buildCar(sc, rng)
		if err != nil {
			return errors.Wrapf(err, "car %d", sc.ID)
		}
		cars = append(cars, c)
	}
	ctx.engine.SetCars(cars)

	log.Infof("Road: %v", len(ctx.roadManager.Roads()))
	log.Infof("Intersection: %v", len(ctx.junctionManager.Intersections()))
	log.Infof("Car: %v", len(cars))
	return nil
}

// newSpline 场景节点为世界坐标，样条节点相对第一个节点
func newSpline(nodes []input.SplineNode) (*spline.Spline, error) {
	if len(nodes) == 0 {
		return nil, errors.New("road has no nodes")
	}
	origin := nodes[0].Point
	return spline.New(origin, lo.Map(nodes, func(n input.SplineNode, _ int) spline.Node {
		return spline.Node{Point: n.Point.Sub(origin), In: n.In, Out: n.Out}
	})...)
}

func (ctx *Context) buildIntersection(si input.Intersection, roads map[int32]*road.Road) error {
	kind, err := entity.ParseIntersectionKind(si.Kind)
	if err != nil {
		return err
	}
	i, err := ctx.junctionManager.NewIntersection(kind, si.Center, si.Lanes, si.Width, si.TwoWay)
	if err != nil {
		return err
	}
	ctx.ids[si.ID] = i.ID()
	for _, conn := range si.Connections {
		r, ok := roads[conn.Road]
		if !ok {
			return errors.Errorf("unknown road %d", conn.Road)
		}
		side, err := entity.ParseSide(conn.Side)
		if err != nil {
			return err
		}
		end, err := entity.ParseOrigin(conn.End)
		if err != nil {
			return err
		}
		control := conn.Control
		if control == 0 {
			control = defaultControl
		}
		if end == entity.OriginStart {
			err = i.ConnectRoadStart(r, side, control)
		} else {
			err = i.ConnectRoadEnd(r, side, control)
		}
		if err != nil {
			return errors.Wrapf(err, "connect road %d", conn.Road)
		}
	}
	if si.Program != nil {
		if err := i.SetTrafficLight(si.Program); err != nil {
			return err
		}
	}
	return nil
}

func (ctx *Context) buildCar(sc input.Car, rng *randengine.Engine) (*car.Car, error) {
	origin, err := entity.ParseOrigin(sc.Origin)
	if err != nil {
		return nil, err
	}
	maxSpeed := sc.MaxSpeed
	if maxSpeed <= 0 {
		maxSpeed = car.DefaultMaxSpeed
	}
	c := car.New(
		sc.ID, sc.Lane, origin, ctx.roadManager, ctx.runtimeConfig.Params,
		car.WithLoop(sc.Loop),
		car.WithLaneChange(!sc.NoLaneChange),
		car.WithMaxSpeed(rng.Jitter(maxSpeed, sc.Jitter)),
		car.WithStyle(sc.Style),
	)
	route, failed := mapIDs(ctx.ids, sc.Route)
	if len(failed) > 0 {
		return nil, errors.Errorf("unknown route entries %v", failed)
	}
	if err := c.SetRoute(route); err != nil {
		return nil, err
	}
	if sc.StartAt > 0 {
		c.StartAt(sc.StartAt)
	}
	return c, nil
}

// mapIDs 将场景ID映射为仿真ID，找不到的ID记录到失败列表中
func mapIDs(ids map[int32]int32, sceneIDs []int32) (mapped []int32, failedIDs []int32) {
	mapped = make([]int32, 0, len(sceneIDs))
	for _, id := range sceneIDs {
		if d, ok := ids[id]; ok {
			mapped = append(mapped, d)
		} else {
			failedIDs = append(failedIDs, id)
		}
	}
	return
}
