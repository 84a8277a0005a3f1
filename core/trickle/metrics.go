// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package trickle

import (
	"github.com/yandex/trickle/lib/monitoring"
)

// Metrics are shared between all sessions of process.
type Metrics struct {
	SegmentsStarted  *monitoring.Counter
	SegmentsFinished *monitoring.Counter
	SegmentErrors    *monitoring.Counter
	PreconnectErrors *monitoring.Counter
	Bytes            *monitoring.Counter
}

// NewMetrics returns metrics registered in passed set.
func NewMetrics(set *monitoring.Set) Metrics {
	return Metrics{
		SegmentsStarted:  set.Counter("SegmentsStarted"),
		SegmentsFinished: set.Counter("SegmentsFinished"),
		SegmentErrors:    set.Counter("SegmentErrors"),
		PreconnectErrors: set.Counter("PreconnectErrors"),
		Bytes:            set.Counter("Bytes"),
	}
}

// withDefaults fills nil counters with unpublished ones.
func (m Metrics) withDefaults() Metrics {
	for _, c := range []**monitoring.Counter{
		&m.SegmentsStarted,
		&m.SegmentsFinished,
		&m.SegmentErrors,
		&m.PreconnectErrors,
		&m.Bytes,
	} {
		if *c == nil {
			*c = &monitoring.Counter{}
		}
	}
	return m
}
