package road

import (
	"fmt"
	"sync"

	"git.fiblab.net/general/common/v2/parallel"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/lanesim/entity"
	"github.com/tsinghua-fib-lab/lanesim/utils/spline"
)

// RoadManager Road管理器
// 功能：道路、路口与转向路径共用的ID仓库，路线中的每一项都是该仓库中的索引
type RoadManager struct {
	ctx entity.ITaskContext

	mtx    sync.RWMutex
	data   map[int32]entity.IRoad
	roads  []entity.IRoad
	nextID int32
}

// NewManager 创建Road管理器实例
// 参数：ctx-任务上下文
// 返回：新创建的Road管理器实例
func NewManager(ctx entity.ITaskContext) *RoadManager {
	return &RoadManager{
		ctx:   ctx,
		data:  make(map[int32]entity.IRoad),
		roads: make([]entity.IRoad, 0),
	}
}

// NextID 分配一个未使用的ID
func (m *RoadManager) NextID() int32 {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	id := m.nextID
	m.nextID++
	return id
}

// Add 加入道路
// 功能：按ID登记道路，ID重复时返回错误
func (m *RoadManager) Add(r entity.IRoad) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if _, ok := m.data[r.ID()]; ok {
		return fmt.Errorf("duplicate road id %d", r.ID())
	}
	m.data[r.ID()] = r
	m.roads = append(m.roads, r)
	m.nextID = max(m.nextID, r.ID()+1)
	return nil
}

// NewRoad 创建并登记道路
// 功能：分配ID，以运行时配置中的车道间隙创建道路并加入仓库
// 参数：s-中心线样条，numLanes-物理车道数，speedLimit-限速，laneWidth-车道宽度，twoWay-是否双向
// 返回：道路实例或构造错误
func (m *RoadManager) NewRoad(
	s *spline.Spline, numLanes int, speedLimit, laneWidth float64, twoWay bool,
) (*Road, error) {
	r, err := New(
		m.NextID(), s, numLanes, speedLimit, laneWidth, twoWay,
		WithLaneGap(m.ctx.RuntimeConfig().Params.LaneGap),
	)
	if err != nil {
		return nil, err
	}
	if err := m.Add(r); err != nil {
		return nil, err
	}
	return r, nil
}

// Get 根据ID获取Road实例，不存在则panic
func (m *RoadManager) Get(id int32) entity.IRoad {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	if road, ok := m.data[id]; !ok {
		log.Panicf("no id %d in road data", id)
		return nil
	} else {
		return road
	}
}

// GetOrError 根据ID获取Road实例（带错误处理）
// 返回：Road实例和错误信息，如果不存在则返回nil和错误
func (m *RoadManager) GetOrError(id int32) (entity.IRoad, error) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	if road, ok := m.data[id]; !ok {
		return nil, fmt.Errorf("no id %d in road data", id)
	} else {
		return road, nil
	}
}

// Intersection 如果ID对应路口则返回路口
func (m *RoadManager) Intersection(id int32) (entity.IIntersection, bool) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	i, ok := m.data[id].(entity.IIntersection)
	return i, ok
}

// Roads 按加入顺序返回所有非路口道路
func (m *RoadManager) Roads() []entity.IRoad {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return lo.Filter(m.roads, func(r entity.IRoad, _ int) bool {
		_, ok := r.(entity.IIntersection)
		return !ok
	})
}

// RecomputePoints 并行重新采样所有道路的车道点
func (m *RoadManager) RecomputePoints() {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	parallel.GoFor(m.roads, func(r entity.IRoad) { r.RecomputePoints() })
}
