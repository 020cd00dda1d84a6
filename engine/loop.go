package engine

import (
	"context"
	"time"
)

// Start 启动实时循环
// 功能：在独立的goroutine中按帧间隔调用Tick，时间缩放系数由实际经过的时间换算
// 说明：已在运行时忽略；ctx取消或调用Stop后循环退出
func (e *Engine) Start(ctx context.Context) {
	e.loopMtx.Lock()
	defer e.loopMtx.Unlock()
	if e.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	go e.loop(ctx, e.done)
	log.Infof("engine started, interval %v", e.interval)
}

// Stop 停止实时循环并等待其退出，可重复调用
func (e *Engine) Stop() {
	e.loopMtx.Lock()
	defer e.loopMtx.Unlock()
	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done
	e.cancel = nil
	e.done = nil
	log.Infof("engine stopped after %d steps", e.Steps())
}

// Running 实时循环是否在运行
func (e *Engine) Running() bool {
	e.loopMtx.Lock()
	defer e.loopMtx.Unlock()
	return e.cancel != nil
}

// Done 实时循环退出时关闭的channel，未运行时返回nil
func (e *Engine) Done() <-chan struct{} {
	e.loopMtx.Lock()
	defer e.loopMtx.Unlock()
	return e.done
}

func (e *Engine) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			scale := e.clock.Advance(now.Sub(last))
			last = now
			e.Tick(scale)
			if e.afterTick != nil {
				e.afterTick(scale)
			}
		}
	}
}
