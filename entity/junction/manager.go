package junction

import (
	"fmt"

	"git.fiblab.net/general/common/v2/geometry"
	"git.fiblab.net/general/common/v2/parallel"
	"github.com/tsinghua-fib-lab/lanesim/entity"
)

// Junction管理器
type JunctionManager struct {
	ctx entity.ITaskContext

	data          map[int32]*Intersection
	intersections []*Intersection
}

// NewManager 创建Junction管理器实例
// 参数：ctx-任务上下文
// 返回：新创建的Junction管理器实例
func NewManager(ctx entity.ITaskContext) *JunctionManager {
	return &JunctionManager{
		ctx:           ctx,
		data:          make(map[int32]*Intersection),
		intersections: make([]*Intersection, 0),
	}
}

// NewIntersection 创建路口并登记到道路仓库与本管理器
// 参数：kind-路口类型，center-中心点，lanes-相连道路的物理车道数，laneWidth-车道宽度，twoWay-是否双向
// 返回：路口实例或构造错误
func (m *JunctionManager) NewIntersection(
	kind entity.IntersectionKind, center geometry.Point, lanes int, laneWidth float64, twoWay bool,
) (*Intersection, error) {
	roads := m.ctx.RoadManager()
	i, err := New(roads.NextID(), kind, center, lanes, laneWidth, twoWay, roads, m.ctx.RuntimeConfig().Params)
	if err != nil {
		return nil, err
	}
	if err := roads.Add(i); err != nil {
		return nil, err
	}
	m.Add(i)
	return i, nil
}

// Add 加入已创建的路口
func (m *JunctionManager) Add(i *Intersection) {
	m.intersections = append(m.intersections, i)
	m.data[i.ID()] = i
}

// Get 根据ID获取路口，不存在则panic
func (m *JunctionManager) Get(id int32) entity.IIntersection {
	if junction, ok := m.data[id]; !ok {
		log.Panicf("no id %d in junction data", id)
		return nil
	} else {
		return junction
	}
}

// GetOrError 根据ID获取路口（带错误处理）
func (m *JunctionManager) GetOrError(id int32) (entity.IIntersection, error) {
	if junction, ok := m.data[id]; !ok {
		return nil, fmt.Errorf("no id %d in junction data", id)
	} else {
		return junction, nil
	}
}

// Intersections 所有路口
func (m *JunctionManager) Intersections() []*Intersection {
	return m.intersections
}

// Update 更新阶段，推进所有路口的信号灯
// 参数：dt-时间步长（秒）
// 说明：各路口互不影响，并行处理
func (m *JunctionManager) Update(dt float64) {
	parallel.GoFor(m.intersections, func(i *Intersection) { i.update(dt) })
}
