package output

import (
	"context"
	"encoding/json"

	"github.com/tsinghua-fib-lab/lanesim/engine"
)

// Frame 一步的全部车辆状态
type Frame struct {
	RunID string            `json:"run_id" bson:"run_id"` // 本次运行的唯一标识
	Step  int32             `json:"step" bson:"step"`
	T     float64           `json:"t" bson:"t"` // 仿真时间（毫秒）
	Cars  []engine.CarState `json:"cars" bson:"cars"`
}

// Encode 编码为JSON
func (f Frame) Encode() ([]byte, error) {
	return json.Marshal(f)
}

// DecodeFrame 从JSON解码
func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	err := json.Unmarshal(data, &f)
	return f, err
}

// Sink 帧数据的输出目标
// 说明：输出只导出状态，不影响仿真
type Sink interface {
	Publish(ctx context.Context, f Frame) error
	Close(ctx context.Context) error
}

// Recorder 在内存中保存全部帧
type Recorder struct {
	Frames []Frame
}

func (r *Recorder) Publish(_ context.Context, f Frame) error {
	r.Frames = append(r.Frames, f)
	return nil
}

func (r *Recorder) Close(context.Context) error {
	return nil
}
