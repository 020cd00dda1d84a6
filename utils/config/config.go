package config

import (
	"math"
)

// IdealFrameMs 物理量的基准帧间隔（60fps）
const IdealFrameMs = 1000. / 60

// Params 仿真调参常量
// 功能：集中存放车辆运动、变道、路口通行相关的全部阈值
// 说明：距离单位为像素，速度单位为像素/帧（60fps基准），默认值见DefaultParams
type Params struct {
	LaneGap   float64 `yaml:"lane_gap,omitempty"`   // 车道间隙
	CarWidth  float64 `yaml:"car_width,omitempty"`  // 车长（沿行进方向）
	CarHeight float64 `yaml:"car_height,omitempty"` // 车宽

	BrakingDistance          float64 `yaml:"braking_distance,omitempty"`           // 减速窗口
	StopDistance             float64 `yaml:"stop_distance,omitempty"`              // 跟车停车距离
	MinStopDistance          float64 `yaml:"min_stop_distance,omitempty"`          // 路口停止线停车距离
	IntersectionRegisterDist float64 `yaml:"intersection_register_dist,omitempty"` // 距停止线多近时加入路口队列

	Acceleration           float64 `yaml:"acceleration,omitempty"`             // 加速度
	LaneChangeAcceleration float64 `yaml:"lane_change_acceleration,omitempty"` // 变道中的加速度
	BrakeCapacity          float64 `yaml:"brake_capacity,omitempty"`           // 制动能力
	MinSpeed               float64 `yaml:"min_speed,omitempty"`                // 低于该速度视为停稳

	LaneChangeStartDist     float64 `yaml:"lane_change_start_dist,omitempty"`     // 前方障碍物在该距离内时考虑变道
	LaneChangeTriggerSpeed  float64 `yaml:"lane_change_trigger_speed,omitempty"`  // 触发变道的速度下限
	LaneChangeSpeedScale    float64 `yaml:"lane_change_speed_scale,omitempty"`    // 前车速度放大系数
	MinLaneChangeSteps      float64 `yaml:"min_lane_change_steps,omitempty"`      // 变道插值最少步数
	MaxLaneChangeSteps      float64 `yaml:"max_lane_change_steps,omitempty"`      // 无障碍物时的变道距离预算
	LaneChangeDistScale     float64 `yaml:"lane_change_dist_scale,omitempty"`     // 变道步数相对距离预算的放大系数
	LaneChangeObstacleScale float64 `yaml:"lane_change_obstacle_scale,omitempty"` // 距前方障碍物的可用比例
	LaneChangeMinDist       float64 `yaml:"lane_change_min_dist,omitempty"`       // 与后方车辆的最小并线间隙
	LaneChangeMinFrontDist  float64 `yaml:"lane_change_min_front_dist,omitempty"` // 与前方车辆的最小并线间隙
	SpeedUpCutoffRotation   float64 `yaml:"speed_up_cutoff_rotation,omitempty"`   // 判定并线对象在后方的角度范围
	MergeSlowDownScale      float64 `yaml:"merge_slow_down_scale,omitempty"`      // 让行时的速度比例
	MergeSpeedUpScale       float64 `yaml:"merge_speed_up_scale,omitempty"`       // 抢行时的速度比例

	TrafficLightSpeedLimit float64 `yaml:"traffic_light_speed_limit,omitempty"` // 信号灯路口限速
	StopSignSpeedLimit     float64 `yaml:"stop_sign_speed_limit,omitempty"`     // 停车让行路口限速
	TurnSpeedLimit         float64 `yaml:"turn_speed_limit,omitempty"`          // 转弯路径限速
}

// DefaultParams 默认调参常量
func DefaultParams() Params {
	minDist := 2 * math.Sqrt(50*50+33*33) / 2
	return Params{
		LaneGap:   8,
		CarWidth:  50,
		CarHeight: 25,

		BrakingDistance:          170,
		StopDistance:             80,
		MinStopDistance:          25,
		IntersectionRegisterDist: 75,

		Acceleration:           0.05,
		LaneChangeAcceleration: 0.02,
		BrakeCapacity:          0.1,
		MinSpeed:               0.02,

		LaneChangeStartDist:     150,
		LaneChangeTriggerSpeed:  3,
		LaneChangeSpeedScale:    1.2,
		MinLaneChangeSteps:      200,
		MaxLaneChangeSteps:      400,
		LaneChangeDistScale:     1.15,
		LaneChangeObstacleScale: 0.8,
		LaneChangeMinDist:       minDist,
		LaneChangeMinFrontDist:  minDist * 3,
		SpeedUpCutoffRotation:   math.Pi / 3,
		MergeSlowDownScale:      0.8,
		MergeSpeedUpScale:       1.2,

		TrafficLightSpeedLimit: 5,
		StopSignSpeedLimit:     3,
		TurnSpeedLimit:         4,
	}
}

// Merge 用override中的非零字段覆盖当前参数
// 参数：override-覆盖项，nil表示不覆盖
// 返回：合并后的参数
func (p Params) Merge(override *Params) Params {
	if override == nil {
		return p
	}
	pick := func(dst *float64, v float64) {
		if v != 0 {
			*dst = v
		}
	}
	pick(&p.LaneGap, override.LaneGap)
	pick(&p.CarWidth, override.CarWidth)
	pick(&p.CarHeight, override.CarHeight)
	pick(&p.BrakingDistance, override.BrakingDistance)
	pick(&p.StopDistance, override.StopDistance)
	pick(&p.MinStopDistance, override.MinStopDistance)
	pick(&p.IntersectionRegisterDist, override.IntersectionRegisterDist)
	pick(&p.Acceleration, override.Acceleration)
	pick(&p.LaneChangeAcceleration, override.LaneChangeAcceleration)
	pick(&p.BrakeCapacity, override.BrakeCapacity)
	pick(&p.MinSpeed, override.MinSpeed)
	pick(&p.LaneChangeStartDist, override.LaneChangeStartDist)
	pick(&p.LaneChangeTriggerSpeed, override.LaneChangeTriggerSpeed)
	pick(&p.LaneChangeSpeedScale, override.LaneChangeSpeedScale)
	pick(&p.MinLaneChangeSteps, override.MinLaneChangeSteps)
	pick(&p.MaxLaneChangeSteps, override.MaxLaneChangeSteps)
	pick(&p.LaneChangeDistScale, override.LaneChangeDistScale)
	pick(&p.LaneChangeObstacleScale, override.LaneChangeObstacleScale)
	pick(&p.LaneChangeMinDist, override.LaneChangeMinDist)
	pick(&p.LaneChangeMinFrontDist, override.LaneChangeMinFrontDist)
	pick(&p.SpeedUpCutoffRotation, override.SpeedUpCutoffRotation)
	pick(&p.MergeSlowDownScale, override.MergeSlowDownScale)
	pick(&p.MergeSpeedUpScale, override.MergeSpeedUpScale)
	pick(&p.TrafficLightSpeedLimit, override.TrafficLightSpeedLimit)
	pick(&p.StopSignSpeedLimit, override.StopSignSpeedLimit)
	pick(&p.TurnSpeedLimit, override.TurnSpeedLimit)
	return p
}

// RuntimeConfig 运行时配置
// 功能：存储仿真运行时的配置信息，包含合并默认值后的调参常量
// 说明：将YAML配置转换为运行时可用的配置对象
type RuntimeConfig struct {
	All    Config  // 全部配置
	C      Control // 全局控制配置
	Params Params  // 生效的调参常量
}

// NewRuntimeConfig 根据配置初始化运行时配置
// 功能：创建运行时配置对象并补全默认值
// 参数：config-原始配置对象
// 返回：初始化的运行时配置指针
// 算法说明：
// 1. 帧间隔未指定时使用60fps基准
// 2. 调参常量以DefaultParams为底，覆盖配置中的非零项
func NewRuntimeConfig(config Config) *RuntimeConfig {
	rc := &RuntimeConfig{}

	rc.All = config
	rc.C = config.Control
	if rc.C.Step.Interval <= 0 {
		rc.C.Step.Interval = IdealFrameMs
	}
	rc.Params = DefaultParams().Merge(config.Control.Params)

	return rc
}
