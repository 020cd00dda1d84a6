package clock

import (
	"fmt"
	"time"

	"github.com/tsinghua-fib-lab/lanesim/utils/config"
)

// Clock 仿真时钟管理器
// 功能：管理仿真系统的时间推进，把墙上时钟的帧间隔换算为物理量的时间缩放系数
// 说明：物理量以60fps为基准，timeScale = 实际帧间隔 / 基准帧间隔
type Clock struct {
	DT         float64 // 每个模拟步的理想时间间隔（毫秒）
	START_STEP int32   // 起始步
	END_STEP   int32   // 结束步，模拟区间[START, END)，END<=START表示不限

	T            float64 // 当前仿真时间（毫秒）
	InternalStep int32   // 当前步数
}

// New 根据配置创建新的时钟实例
// 参数：stepConfig-控制步配置，包含时间间隔、起始步与总步数
// 返回：初始化完成的时钟实例
func New(stepConfig config.ControlStep) *Clock {
	dt := stepConfig.Interval
	if dt <= 0 {
		dt = config.IdealFrameMs
	}
	c := &Clock{
		DT:         dt,
		START_STEP: stepConfig.Start,
		END_STEP:   stepConfig.Start + stepConfig.Total,
	}
	c.Init()
	return c
}

// Init 重置时钟状态
func (c *Clock) Init() {
	c.InternalStep = c.START_STEP
	c.T = float64(c.InternalStep) * c.DT
}

// TimeScale 固定步长下每步的时间缩放系数
func (c *Clock) TimeScale() float64 {
	return c.DT / config.IdealFrameMs
}

// Step 以固定步长推进一步
// 返回：本步的时间缩放系数
func (c *Clock) Step() float64 {
	c.InternalStep++
	c.T += c.DT
	return c.TimeScale()
}

// Advance 以实际经过的墙上时间推进一步
// 功能：实时模式下按实际帧间隔推进，帧率波动时保持物理量与帧率无关
// 参数：elapsed-距上一帧的实际时间
// 返回：本步的时间缩放系数 elapsedMs / idealFrameMs
func (c *Clock) Advance(elapsed time.Duration) float64 {
	ms := float64(elapsed) / float64(time.Millisecond)
	c.InternalStep++
	c.T += ms
	return ms / config.IdealFrameMs
}

// Done 是否已到达结束步
func (c *Clock) Done() bool {
	return c.END_STEP > c.START_STEP && c.InternalStep >= c.END_STEP
}

// String 获取时钟的字符串表示
// 功能：将当前时间格式化为可读的字符串
// 返回：格式化的时间字符串（HH:MM:SS）
// 算法说明：
// 1. 将总毫秒数转换为秒
// 2. 将秒数转换为小时、分钟、秒并格式化
func (c *Clock) String() string {
	t := c.T / 1000
	h := int(t / 3600)
	t -= float64(h * 3600)
	m := int(t / 60)
	t -= float64(m * 60)
	s := int(t)
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
