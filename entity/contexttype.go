package entity

import (
	"github.com/tsinghua-fib-lab/lanesim/clock"
	"github.com/tsinghua-fib-lab/lanesim/utils/config"
)

type ITaskContext interface {
	Clock() *clock.Clock
	RoadManager() IRoadManager
	JunctionManager() IJunctionManager
	RuntimeConfig() *config.RuntimeConfig
}
