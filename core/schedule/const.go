// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package schedule

import (
	"time"

	"github.com/yandex/trickle/core"
)

// ConstConfig is a schedule of Ops operations per second.
// Number of operations is Count, or derived from Duration, if Count is zero.
// Schedule is endless, if both are zero.
type ConstConfig struct {
	Ops      float64       `config:"ops" validate:"gt=0"`
	Count    int64         `config:"count" validate:"min=0"`
	Duration time.Duration `config:"duration"`
}

func NewConstConf(conf ConstConfig) core.Schedule {
	n := conf.Count
	duration := conf.Duration
	switch {
	case n == 0 && duration == 0:
		n = Endless
	case n == 0:
		n = int64(conf.Ops * duration.Seconds())
	default:
		duration = time.Duration(float64(n) * float64(time.Second) / conf.Ops)
	}
	return NewDoAtSchedule(duration, n, constDoAt(conf.Ops))
}

// NewConst returns schedule of n operations performed every interval.
// First operation is performed at start.
func NewConst(interval time.Duration, n int64) core.Schedule {
	return NewDoAtSchedule(time.Duration(n)*interval, n, func(i int64) time.Duration {
		return time.Duration(i-1) * interval
	})
}

func constDoAt(ops float64) DoAt {
	return func(i int64) time.Duration {
		return time.Duration(float64(i-1) * 1e9 / ops)
	}
}
