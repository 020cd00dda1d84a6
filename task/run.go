package task

import (
	"context"
	"flag"

	"github.com/tsinghua-fib-lab/lanesim/output"
)

var (
	heartBeatInterval = flag.Int("log.heartbeat_interval", 100, "心跳日志间隔步数")
)

// Run 运行
// 功能：构建场景后按配置选择实时或批量模式推进仿真，结束后关闭输出
// 参数：c-取消时提前结束
// 返回：场景构建错误或c的取消原因
// 算法说明：
// 1. 实时模式：交通引擎在独立goroutine中按墙上时钟推进，时间缩放系数由实际帧间隔换算，到达总步数后结束
// 2. 批量模式：以固定步长尽快推进，每步时间缩放系数为 interval / idealFrameMs
// 3. 两种模式每步结束后都输出一帧并按间隔打印心跳日志
func (ctx *Context) Run(c context.Context) error {
	defer ctx.Close()
	if err := ctx.Init(); err != nil {
		return err
	}
	log.Infof("job %s run %s starts at step %d (realtime %v)",
		ctx.job, ctx.runID, ctx.clock.InternalStep, ctx.runtimeConfig.C.Realtime)
	var err error
	if ctx.runtimeConfig.C.Realtime {
		err = ctx.runRealtime(c)
	} else {
		err = ctx.runBatch(c)
	}
	log.Infof("engine complete at step %d (%v)", ctx.clock.InternalStep, ctx.clock)
	return err
}

func (ctx *Context) runBatch(c context.Context) error {
	for !ctx.clock.Done() {
		if err := c.Err(); err != nil {
			return err
		}
		ctx.engine.Tick(ctx.clock.Step())
		ctx.afterStep()
	}
	return nil
}

func (ctx *Context) runRealtime(c context.Context) error {
	loopCtx, cancel := context.WithCancel(c)
	defer cancel()
	ctx.cancel = cancel
	ctx.engine.Start(loopCtx)
	<-ctx.engine.Done()
	ctx.engine.Stop()
	if ctx.clock.Done() {
		return nil
	}
	return c.Err()
}

// afterStep 每步结束后的处理：心跳日志、帧输出、实时模式下的结束判定
func (ctx *Context) afterStep() {
	step := ctx.clock.InternalStep
	if *heartBeatInterval > 0 && step%int32(*heartBeatInterval) == 0 {
		log.Infof("STEP: %d(%v)", step, ctx.clock)
	}
	if ctx.sink != nil {
		f := output.Frame{
			RunID: ctx.runID,
			Step:  step,
			T:     ctx.clock.T,
			Cars:  ctx.engine.Snapshot(),
		}
		if err := ctx.sink.Publish(context.Background(), f); err != nil {
			log.Errorf("publish frame %d: %v", step, err)
		}
	}
	if ctx.cancel != nil && ctx.clock.Done() {
		ctx.cancel()
	}
}
