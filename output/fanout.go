package output

import "context"

// Fanout 将帧数据依次交给多个输出
// 说明：单个输出失败只记录日志，不影响其他输出与仿真
type Fanout []Sink

func (f Fanout) Publish(ctx context.Context, frame Frame) error {
	for _, s := range f {
		if err := s.Publish(ctx, frame); err != nil {
			log.Errorf("publish frame %d: %v", frame.Step, err)
		}
	}
	return nil
}

func (f Fanout) Close(ctx context.Context) error {
	var first error
	for _, s := range f {
		if err := s.Close(ctx); err != nil {
			log.Errorf("close sink: %v", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}
