// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/yandex/trickle/core"
)

// drain returns operation offsets from start.
func drain(t *testing.T, s core.Schedule, start time.Time) []time.Duration {
	var offsets []time.Duration
	for {
		left := s.Left()
		x, ok := s.Next()
		if !ok {
			assert.Zero(t, s.Left())
			return offsets
		}
		if left >= 0 {
			assert.Equal(t, left-1, s.Left())
		}
		offsets = append(offsets, x.Sub(start))
	}
}

func TestDoAt(t *testing.T) {
	t.Run("unstarted", func(t *testing.T) {
		testee := NewConst(time.Hour, 1)
		start := time.Now()
		x1, ok := testee.Next()
		threshold := time.Since(start)

		assert.True(t, ok)
		assert.WithinDuration(t, start, x1, threshold)

		x2, ok := testee.Next()
		assert.False(t, ok)
		assert.Equal(t, x1.Add(time.Hour), x2)
	})

	t.Run("start twice panics", func(t *testing.T) {
		testee := NewConst(time.Second, 1)
		testee.Start(time.Now())
		assert.Panics(t, func() { testee.Start(time.Now()) })
	})

	t.Run("endless", func(t *testing.T) {
		testee := NewDoAtSchedule(0, Endless, func(i int64) time.Duration {
			return time.Duration(i) * time.Millisecond
		})
		start := time.Now()
		testee.Start(start)
		for i := int64(1); i <= 1000; i++ {
			x, ok := testee.Next()
			assert.True(t, ok)
			assert.Equal(t, start.Add(time.Duration(i)*time.Millisecond), x)
		}
		assert.Equal(t, -1, testee.Left())
	})
}

func TestConst(t *testing.T) {
	tests := []struct {
		name     string
		conf     ConstConfig
		expected []time.Duration
	}{
		{
			name:     "count",
			conf:     ConstConfig{Ops: 2, Count: 3},
			expected: []time.Duration{0, 500 * time.Millisecond, time.Second},
		},
		{
			name:     "duration",
			conf:     ConstConfig{Ops: 4, Duration: time.Second},
			expected: []time.Duration{0, 250 * time.Millisecond, 500 * time.Millisecond, 750 * time.Millisecond},
		},
		{
			name: "duration shorter than interval",
			conf: ConstConfig{Ops: 1, Duration: 500 * time.Millisecond},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testee := NewConstConf(tt.conf)
			start := time.Now()
			testee.Start(start)
			assert.Equal(t, tt.expected, drain(t, testee, start))
		})
	}
}

func TestConstInterval(t *testing.T) {
	testee := NewConst(2*time.Second, 3)
	start := time.Now()
	testee.Start(start)
	assert.Equal(t, 3, testee.Left())
	assert.Equal(t, []time.Duration{0, 2 * time.Second, 4 * time.Second}, drain(t, testee, start))
	x, ok := testee.Next()
	assert.False(t, ok)
	assert.Equal(t, start.Add(6*time.Second), x)
}

func TestConstEndless(t *testing.T) {
	testee := NewConstConf(ConstConfig{Ops: 10})
	start := time.Now()
	testee.Start(start)
	assert.Equal(t, -1, testee.Left())
	for i := 0; i < 100; i++ {
		x, ok := testee.Next()
		assert.True(t, ok)
		assert.Equal(t, start.Add(time.Duration(i)*100*time.Millisecond), x)
	}
}
