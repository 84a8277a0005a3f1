// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package aggregator

import (
	"fmt"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/yandex/trickle/core"
)

// Segment samples are rare, so queue holds a few minutes of samples of hundreds of streams.
const DefaultSampleQueueSize = 64 * 1024

type ReporterConfig struct {
	// SampleQueueSize is max number of reported samples waiting for Run.
	// Samples reported to full queue are dropped.
	SampleQueueSize int `config:"sample-queue-size" validate:"min=1"`
}

func DefaultReporterConfig() ReporterConfig {
	return ReporterConfig{SampleQueueSize: DefaultSampleQueueSize}
}

// Reporter is Report half of aggregator: never blocking sample queue.
// Aggregator embeds it and reads Incoming in Run.
type Reporter struct {
	Incoming chan core.Sample
	dropped  atomic.Int64
}

func NewReporter(conf ReporterConfig) *Reporter {
	return &Reporter{Incoming: make(chan core.Sample, conf.SampleQueueSize)}
}

func (r *Reporter) Report(s core.Sample) {
	select {
	case r.Incoming <- s:
		return
	default:
	}
	if r.dropped.Inc() == 1 {
		// Aggregator logger is known only in Run, that may be not called yet.
		zap.L().Warn("Sample queue overflow, samples are dropped. Count is reported on aggregator finish")
	}
}

// DroppedErr returns *DroppedError, if any sample was dropped.
func (r *Reporter) DroppedErr() error {
	if n := r.dropped.Load(); n > 0 {
		return &DroppedError{Count: n}
	}
	return nil
}

type DroppedError struct {
	Count int64
}

func (e *DroppedError) Error() string {
	return fmt.Sprintf("%d samples were dropped", e.Count)
}
