package entity

// Manager依赖倒置

// entity/road/manager.go的依赖倒置
// 道路与路口共用一个ID空间，路线中的每一项都是该仓库中的索引
type IRoadManager interface {
	Add(r IRoad) error // 加入道路（含路口与转向路径）
	NextID() int32     // 分配一个未使用的ID

	// 输入道路ID，查找道路，如果不存在则panic
	Get(id int32) IRoad
	// 输入道路ID，查找道路，如果不存在则返回error
	GetOrError(id int32) (IRoad, error)
	// 输入道路ID，如果是路口则返回路口
	Intersection(id int32) (IIntersection, bool)

	RecomputePoints() // 重新计算所有道路的车道采样点
}

// entity/junction/manager.go的依赖倒置
type IJunctionManager interface {
	// 输入路口ID，查找路口，如果不存在则panic
	Get(id int32) IIntersection
	// 输入路口ID，查找路口，如果不存在则返回error
	GetOrError(id int32) (IIntersection, error)

	Update(dt float64) // 更新阶段：推进信号灯
}
