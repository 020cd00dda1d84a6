package trafficlight

import (
	"fmt"

	"git.fiblab.net/general/common/v2/mathutil"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/lanesim/entity"
)

// Phase 信号灯相位
type Phase struct {
	Duration   float64       `yaml:"duration" bson:"duration"`       // 持续时间（秒）
	GreenSides []entity.Side `yaml:"green_sides" bson:"green_sides"` // 放行的驶入边
}

// Program 固定相位信号灯程序
type Program struct {
	Phases []Phase `yaml:"phases" bson:"phases"`
}

// Validate 检查程序是否可用
func (p *Program) Validate() error {
	if p == nil || len(p.Phases) == 0 {
		return fmt.Errorf("set with empty traffic light")
	}
	total := 0.
	for i, phase := range p.Phases {
		if phase.Duration < 0 {
			return fmt.Errorf("phase %d has negative duration %v", i, phase.Duration)
		}
		for _, s := range phase.GreenSides {
			if !s.Valid() {
				return fmt.Errorf("phase %d has invalid side %d", i, s)
			}
		}
		total += phase.Duration
	}
	if total <= 0 {
		return fmt.Errorf("traffic light program has zero cycle length")
	}
	return nil
}

// localTlRuntime 本地信号灯运行时数据结构
type localTlRuntime struct {
	tl           *Program
	tlStep       int
	tlRemainingT float64
}

// LocalTrafficLight 本地固定相位信号灯控制器
// 功能：按照预设的相位顺序和时长循环切换，各相位放行一组驶入边
// 说明：没有程序或关闭时全绿
type LocalTrafficLight struct {
	junctionID int32

	runtime localTlRuntime  // 运行时数据
	buffer  *localTlRuntime // 数据buffer，下一次Update生效
	ok      bool            // 信号灯状态，true为开启，false为关闭（全绿）
}

// NewLocalTrafficLight 创建固定相位信号灯控制器
// 参数：junctionID-路口ID，用于错开各路口的初始相位
func NewLocalTrafficLight(junctionID int32) *LocalTrafficLight {
	return &LocalTrafficLight{
		junctionID: junctionID,
		ok:         true,
	}
}

// Set 设置信号灯程序
// 功能：校验并设置新的信号灯程序，初始相位按路口ID错开
// 返回：程序无效时返回错误
// 说明：程序设置会延迟到下一个更新周期生效
func (l *LocalTrafficLight) Set(tl *Program) error {
	if err := tl.Validate(); err != nil {
		return err
	}
	phaseIndex := int(l.junctionID) % len(tl.Phases)
	l.buffer = &localTlRuntime{
		tl: tl, tlStep: phaseIndex, tlRemainingT: tl.Phases[phaseIndex].Duration,
	}
	return nil
}

// Unset 取消信号灯程序（全绿）
func (l *LocalTrafficLight) Unset() {
	l.buffer = &localTlRuntime{}
}

// SetPhase 设置当前相位与剩余时间
func (l *LocalTrafficLight) SetPhase(offset int, remainingT float64) {
	tl := l.runtime.tl
	if l.buffer != nil {
		tl = l.buffer.tl
	}
	if tl == nil {
		return
	}
	l.buffer = &localTlRuntime{
		tl: tl, tlStep: offset % len(tl.Phases), tlRemainingT: remainingT,
	}
}

// SetOk 设置信号灯开关
func (l *LocalTrafficLight) SetOk(ok bool) {
	l.ok = ok
}

// Update 推进信号灯
// 功能：应用buffer中的修改，扣减剩余时间并在到期时切换到下一个时长非零的相位
// 参数：dt-时间步长（秒）
func (l *LocalTrafficLight) Update(dt float64) {
	if l.buffer != nil {
		l.runtime = *l.buffer
		l.buffer = nil
	}
	if l.runtime.tl == nil || !l.ok {
		return
	}
	l.runtime.tlRemainingT -= dt
	for l.runtime.tlRemainingT <= 0 {
		l.runtime.tlStep = (l.runtime.tlStep + 1) % len(l.runtime.tl.Phases)
		l.runtime.tlRemainingT += l.runtime.tl.Phases[l.runtime.tlStep].Duration
	}
}

// Green 驶入边当前是否放行
func (l *LocalTrafficLight) Green(side entity.Side) bool {
	if l.runtime.tl == nil || !l.ok {
		return true
	}
	return lo.Contains(l.runtime.tl.Phases[l.runtime.tlStep].GreenSides, side)
}

// Step 当前相位索引
func (l *LocalTrafficLight) Step() int {
	return l.runtime.tlStep
}

// RemainingTime 当前相位剩余时间，没有程序时为无穷大
func (l *LocalTrafficLight) RemainingTime() float64 {
	if l.runtime.tl == nil || !l.ok {
		return mathutil.INF
	}
	return l.runtime.tlRemainingT
}

func (l *LocalTrafficLight) Ok() bool {
	return l.ok
}
