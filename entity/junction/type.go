package junction

import "github.com/tsinghua-fib-lab/lanesim/entity"

// 依赖倒置，表达junction对信号灯实现的接口需求

// 给交通参与者提供的信控读取接口
type ITrafficLightGetter interface {
	Green(side entity.Side) bool // 驶入边当前是否放行
	Step() int                   // 当前相位
	RemainingTime() float64      // 当前相位剩余时长
	Ok() bool                    // 当前信控开关情况
}

// 信号灯接口
type ITrafficLight interface {
	ITrafficLightGetter
	Update(dt float64) // 更新阶段，推进相位
	Unset()            // 删除信控程序（全绿）
	SetOk(ok bool)     // 设置信控开关情况（true信控工作|false信控失效-全绿）
}
