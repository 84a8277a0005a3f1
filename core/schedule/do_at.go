// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package schedule

import (
	"sync"
	"time"

	"github.com/yandex/trickle/core"
)

// DoAt returns offset of i'th operation from schedule start. Operations are numbered from 1.
type DoAt func(i int64) time.Duration

// Endless is operation count of schedule that never finishes.
const Endless = -1

// NewDoAtSchedule returns schedule of n operations, that finishes after duration.
// If n is Endless, duration is ignored.
func NewDoAtSchedule(duration time.Duration, n int64, doAt DoAt) core.Schedule {
	return &doAtSchedule{duration: duration, n: n, doAt: doAt}
}

type doAtSchedule struct {
	duration time.Duration
	n        int64
	doAt     DoAt

	mu      sync.Mutex
	started bool
	start   time.Time
	issued  int64
}

func (s *doAtSchedule) Start(startAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		panic("schedule is already started")
	}
	s.started = true
	s.start = startAt
}

func (s *doAtSchedule) Next() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		s.started = true
		s.start = time.Now()
	}
	if s.n != Endless && s.issued >= s.n {
		return s.start.Add(s.duration), false
	}
	s.issued++
	return s.start.Add(s.doAt(s.issued)), true
}

func (s *doAtSchedule) Left() int {
	if s.n == Endless {
		return -1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.n - s.issued)
}
