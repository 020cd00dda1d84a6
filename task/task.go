package task

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tsinghua-fib-lab/lanesim/clock"
	"github.com/tsinghua-fib-lab/lanesim/engine"
	"github.com/tsinghua-fib-lab/lanesim/entity"
	"github.com/tsinghua-fib-lab/lanesim/entity/junction"
	"github.com/tsinghua-fib-lab/lanesim/entity/road"
	"github.com/tsinghua-fib-lab/lanesim/output"
	"github.com/tsinghua-fib-lab/lanesim/utils/config"
	"github.com/tsinghua-fib-lab/lanesim/utils/input"
)

// Context 仿真任务上下文
// 功能：包含一次仿真任务的所有变量和状态，替代全局变量
// 说明：管理时钟、道路与路口管理器、交通引擎与输出
type Context struct {
	// 任务名
	job string
	// 本次运行的唯一标识，写入每一帧
	runID string
	// 关闭指令
	closed atomic.Bool

	// 时钟
	clock *clock.Clock

	// Road管理器（道路、路口、转向路径共用ID）
	roadManager *road.RoadManager
	// Junction管理器
	junctionManager *junction.JunctionManager
	// 交通引擎
	engine *engine.Engine

	// 运行时配置
	runtimeConfig *config.RuntimeConfig

	// 用于初始化的场景
	scene *input.Scene
	// 场景ID到道路仓库ID的映射
	ids map[int32]int32

	// 帧数据输出，nil表示不输出
	sink output.Sink
	// 实时模式下结束循环
	cancel context.CancelFunc
}

// NewContext 创建新的仿真任务上下文
// 功能：初始化时钟、运行时配置与各管理器，场景在Init中构建
// 参数：job-任务名称，c-配置对象，scene-场景，sink-帧数据输出（可为nil）
// 返回：Context实例
func NewContext(job string, c config.Config, scene *input.Scene, sink output.Sink) *Context {
	ctx := &Context{
		job:   job,
		runID: uuid.NewString(),
		scene: scene,
		ids:   make(map[int32]int32),
		sink:  sink,
	}
	ctx.clock = clock.New(c.Control.Step)
	ctx.runtimeConfig = config.NewRuntimeConfig(c)

	ctx.roadManager = road.NewManager(ctx)
	ctx.junctionManager = junction.NewManager(ctx)
	ctx.engine = engine.New(
		ctx.runtimeConfig.Params,
		engine.WithJunctions(ctx.junctionManager),
		engine.WithClock(ctx.clock),
		engine.WithInterval(time.Duration(ctx.clock.DT*float64(time.Millisecond))),
		engine.WithAfterTick(func(float64) { ctx.afterStep() }),
	)
	return ctx
}

func (ctx *Context) Job() string {
	return ctx.job
}

func (ctx *Context) RunID() string {
	return ctx.runID
}

func (ctx *Context) Clock() *clock.Clock {
	return ctx.clock
}

func (ctx *Context) RoadManager() entity.IRoadManager {
	return ctx.roadManager
}

func (ctx *Context) JunctionManager() entity.IJunctionManager {
	return ctx.junctionManager
}

func (ctx *Context) RuntimeConfig() *config.RuntimeConfig {
	return ctx.runtimeConfig
}

func (ctx *Context) Engine() *engine.Engine {
	return ctx.engine
}

// RoadID 场景中的道路或路口ID对应的道路仓库ID
func (ctx *Context) RoadID(sceneID int32) (int32, bool) {
	id, ok := ctx.ids[sceneID]
	return id, ok
}

// Close 关闭输出，可重复调用
func (ctx *Context) Close() {
	if ctx.closed.Swap(true) {
		return
	}
	ctx.engine.Stop()
	if ctx.sink != nil {
		if err := ctx.sink.Close(context.Background()); err != nil {
			log.Errorf("close output: %v", err)
		}
	}
}
