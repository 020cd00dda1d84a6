package car

import "github.com/tsinghua-fib-lab/lanesim/entity"

// stepContext 每帧由引擎写入的决策输入
type stepContext struct {
	obstacles    []entity.Obstacle    // 前方障碍物，由近及远
	laneObstacle *entity.LaneObstacle // 目标车道上阻挡并线的车辆
}
