package entity

import (
	"fmt"

	"git.fiblab.net/general/common/v2/geometry"
)

// Origin 车辆在某条道路上的行进方向
type Origin int

const (
	OriginStart Origin = iota // 从道路起点驶向终点，采样点下标递增
	OriginEnd                 // 从道路终点驶向起点，采样点下标递减
)

func (o Origin) String() string {
	switch o {
	case OriginStart:
		return "start"
	case OriginEnd:
		return "end"
	default:
		return fmt.Sprintf("Origin(%d)", int(o))
	}
}

// Reverse 相反方向
func (o Origin) Reverse() Origin {
	if o == OriginStart {
		return OriginEnd
	}
	return OriginStart
}

// ParseOrigin 解析"start"/"end"
func ParseOrigin(s string) (Origin, error) {
	switch s {
	case "start", "":
		return OriginStart, nil
	case "end":
		return OriginEnd, nil
	default:
		return OriginStart, fmt.Errorf("bad origin %q, expected start or end", s)
	}
}

// Side 路口的连接边，0~3为从上方开始顺时针编号
type Side int

const (
	SideTop    Side = 0
	SideRight  Side = 1
	SideBottom Side = 2
	SideLeft   Side = 3

	SideCount = 4 // 路口边数
)

// Valid 检查边号是否合法
func (s Side) Valid() bool {
	return s >= 0 && s < SideCount
}

func (s Side) String() string {
	switch s {
	case SideTop:
		return "top"
	case SideRight:
		return "right"
	case SideBottom:
		return "bottom"
	case SideLeft:
		return "left"
	default:
		return fmt.Sprintf("Side(%d)", int(s))
	}
}

// ParseSide 解析"top"/"right"/"bottom"/"left"
func ParseSide(s string) (Side, error) {
	for side := Side(0); side < SideCount; side++ {
		if side.String() == s {
			return side, nil
		}
	}
	return 0, fmt.Errorf("bad side %q, expected top, right, bottom or left", s)
}

// IntersectionKind 路口类型
type IntersectionKind int

const (
	TrafficLight IntersectionKind = iota // 信号灯路口
	StopSign                             // 停车让行路口
)

func (k IntersectionKind) String() string {
	switch k {
	case TrafficLight:
		return "traffic_light"
	case StopSign:
		return "stop_sign"
	default:
		return fmt.Sprintf("IntersectionKind(%d)", int(k))
	}
}

// ParseIntersectionKind 解析路口类型名
func ParseIntersectionKind(s string) (IntersectionKind, error) {
	switch s {
	case "traffic_light", "":
		return TrafficLight, nil
	case "stop_sign":
		return StopSign, nil
	default:
		return TrafficLight, fmt.Errorf("bad intersection kind %q", s)
	}
}

// Obstacle 前方障碍物
// 说明：可以是前车（具有速度），也可以是路口停止线（速度为0）
type Obstacle struct {
	Point          geometry.Point // 障碍物位置（世界坐标）
	Speed          float64        // 障碍物速度
	IsIntersection bool           // 是否为路口停止线
}

// LaneObstacle 变道目标车道上阻挡并线的车辆
type LaneObstacle struct {
	Obstacle ICar // 目标车道上最近的车辆
	IsBehind bool // 是否应让行（减速跟在其后）
}

// ContinueState 路口通行判定结果
type ContinueState int

const (
	Continue ContinueState = iota // 无新增约束，继续行驶
	NoPath                        // 路口内不存在对应转向路径
	Stop                          // 需要在停止线停车
)

// ContinueResult 路口通行判定
type ContinueResult struct {
	State ContinueState
	Point geometry.Point // State为Stop时的停止线位置
}

// TurnPath 路口内一条转向路径
type TurnPath struct {
	FromSide   Side   // 驶入边
	ToSide     Side   // 驶出边
	Path       IRoad  // 路径几何
	Origin     Origin // 沿Path行进的方向
	EntryLanes []int  // 允许驶入该路径的相对车道，空表示任意车道
	ExitLane   int    // 驶出后的相对车道，-1表示保持原车道
}

// entity/road/road.go的依赖倒置
type IRoad interface {
	String() string

	ID() int32                              // 获取道路ID
	NumLanes() int                          // 物理车道数
	LaneCount() int                         // 单方向可用的车道数（双向道路为一半）
	LaneInRange(lane int) bool              // 相对车道是否在范围内
	LaneWidth() float64                     // 车道宽度
	SpeedLimit() float64                    // 限速
	IsTwoWay() bool                         // 是否双向
	RoadPoints(lane int) []geometry.Point   // 获取物理车道的采样点（起点到终点顺序）
	Endpoints() (start, end geometry.Point) // 中心线起终点（世界坐标）
	RecomputePoints()                       // 样条变化后重新采样车道点
}

// entity/junction/junction.go的依赖倒置
type IIntersection interface {
	IRoad

	Kind() IntersectionKind // 路口类型

	// 根据驶入道路与驶出道路查找转向路径
	GetPath(from, to int32) (TurnPath, error)

	Register(car ICar)       // 加入通行队列
	Unregister(car ICar)     // 移出通行队列
	IsRegistered(car ICar) bool
	QueueIndex(car ICar) int // 在通行队列中的位置，不在队列中返回-1

	// 判定车辆能否驶入路口
	CanContinue(car ICar, obstacles []Obstacle, prev, next int32) ContinueResult
}

// entity/car/car.go的依赖倒置
type ICar interface {
	ID() int32                       // 车辆ID
	Lane() int                       // 当前相对车道
	Position() geometry.Point        // 当前位置
	DirectionVector() geometry.Point // 朝向单位向量
	Speed() float64                  // 当前速度
	HasStopped() bool                // 是否曾在当前路口前停稳
}
