// 缓动函数，输入输出均在[0, 1]区间
package easing

import "github.com/samber/lo"

// EaseInOutQuad 二次缓入缓出
// 功能：变道插值时平滑过渡横向偏移
// 参数：t-进度，超出[0, 1]的部分会被截断
func EaseInOutQuad(t float64) float64 {
	t = lo.Clamp(t, 0, 1)
	if t < 0.5 {
		return 2 * t * t
	}
	return 1 - (-2*t+2)*(-2*t+2)/2
}

// EaseOutQuad 二次缓出
// 功能：制动窗口内的目标速度比例，越靠近障碍物下降越快
// 参数：t-进度，超出[0, 1]的部分会被截断
func EaseOutQuad(t float64) float64 {
	t = lo.Clamp(t, 0, 1)
	return 1 - (1-t)*(1-t)
}
