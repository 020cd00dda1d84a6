// 随机数引擎，包装了golang.org/x/exp/rand，提供了一些常用的随机数生成方法
package randengine

import (
	"flag"
	"sync"

	"golang.org/x/exp/rand"
)

var (
	seedOffset = flag.Uint64("rand.seed_offset", 0, "seed offset") // 种子偏移量，用于调整随机数生成
)

// Engine 随机数引擎
// 功能：提供线程安全的随机数生成
// 说明：基于golang.org/x/exp/rand库
type Engine struct {
	*rand.Rand            // 底层随机数生成器
	mtx        sync.Mutex // 互斥锁，用于线程安全操作
}

// New 创建随机数引擎
// 参数：seed-随机数种子
// 返回：随机数引擎指针
// 说明：种子偏移量允许在不修改场景的情况下调整随机数序列
func New(seed uint64) *Engine {
	return &Engine{Rand: rand.New(rand.NewSource(seed + *seedOffset))}
}

// Float64Safe 随机生成[0.0, 1.0)范围内的浮点数（线程安全）
func (e *Engine) Float64Safe() float64 {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return e.Float64()
}

// Jitter 对v施加均匀分布的随机扰动（线程安全）
// 参数：v-基准值，ratio-扰动比例
// 返回：[v*(1-ratio), v*(1+ratio))范围内的值，ratio<=0时原样返回
func (e *Engine) Jitter(v, ratio float64) float64 {
	if ratio <= 0 {
		return v
	}
	return v * (1 + ratio*(2*e.Float64Safe()-1))
}
