// 补充geometry.Point缺少的二维向量运算（Z分量保持为0）
package vec

import (
	"math"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/samber/lo"
)

const (
	eps = 1e-9 // 判定零向量的阈值
)

// New 构造二维点
func New(x, y float64) geometry.Point {
	return geometry.Point{X: x, Y: y}
}

// Perp 逆时针旋转90°得到的法向量
func Perp(a geometry.Point) geometry.Point {
	return geometry.Point{X: -a.Y, Y: a.X}
}

// FromAngle 单位方向向量
func FromAngle(angle float64) geometry.Point {
	sin, cos := math.Sincos(angle)
	return geometry.Point{X: cos, Y: sin}
}

// Heading 计算从from指向to的方向角
// 功能：计算atan2方向角，用于车辆朝向
// 返回：方向角（弧度），ok为false表示两点重合、方向无定义
func Heading(from, to geometry.Point) (angle float64, ok bool) {
	d := to.Sub(from)
	if d.Length2D() < eps || math.IsNaN(d.X) || math.IsNaN(d.Y) {
		return 0, false
	}
	return math.Atan2(d.Y, d.X), true
}

// Angle 两向量之间的夹角
// 功能：计算向量a与b的夹角
// 返回：[0, π]内的夹角；任一向量为零向量时返回0
func Angle(a, b geometry.Point) float64 {
	mag := a.Length2D() * b.Length2D()
	if mag < eps {
		return 0
	}
	cosine := a.Dot2D(b) / mag
	// 浮点误差可能使cos略微超出[-1, 1]
	cosine = lo.Clamp(cosine, -1, 1)
	return math.Acos(cosine)
}
