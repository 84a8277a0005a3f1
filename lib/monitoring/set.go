// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package monitoring

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Set is named group of counters, that can be reported together.
type Set struct {
	prefix  string
	publish bool

	mu       sync.Mutex
	names    []string
	counters map[string]*Counter
}

// NewSet returns set which counters are published to expvar as prefix_name.
func NewSet(prefix string) *Set {
	return &Set{prefix: prefix, publish: true, counters: map[string]*Counter{}}
}

// NewLocalSet returns set which counters are not published to expvar.
func NewLocalSet(prefix string) *Set {
	return &Set{prefix: prefix, counters: map[string]*Counter{}}
}

func (s *Set) Prefix() string { return s.prefix }

// Counter returns counter with passed name, creating it on first call.
func (s *Set) Counter(name string) *Counter {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.counters[name]; ok {
		return c
	}
	var c *Counter
	if s.publish {
		c = NewCounter(s.prefix + "_" + name)
	} else {
		c = &Counter{}
	}
	s.names = append(s.names, name)
	s.counters[name] = c
	return c
}

// Snapshot returns current counter values in creation order.
func (s *Set) Snapshot() []Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	values := make([]Value, len(s.names))
	for i, name := range s.names {
		values[i] = Value{Name: name, Value: s.counters[name].Get()}
	}
	return values
}

type Value struct {
	Name  string
	Value int64
}

// Report logs values of sets every interval, and once more on context cancel.
// Blocks until context cancel.
func Report(ctx context.Context, log *zap.Logger, interval time.Duration, sets ...*Set) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			report(log, sets)
		case <-ctx.Done():
			report(log, sets)
			return
		}
	}
}

func report(log *zap.Logger, sets []*Set) {
	for _, s := range sets {
		values := s.Snapshot()
		if len(values) == 0 {
			continue
		}
		fields := make([]zap.Field, 0, len(values))
		for _, v := range values {
			fields = append(fields, zap.Int64(v.Name, v.Value))
		}
		log.Info("Metrics", append(fields, zap.String("set", s.prefix))...)
	}
}
