// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package aggregator

import (
	"context"
	"sync"

	"github.com/yandex/trickle/core"
)

// NewDiscard returns aggregator for runs without samples output.
func NewDiscard() core.Aggregator { return discard{} }

type discard struct{}

func (discard) Report(core.Sample) {}

func (discard) Run(ctx context.Context, _ core.AggregatorDeps) error {
	<-ctx.Done()
	return nil
}

// Memory is aggregator that keeps all reported samples. Useful in tests.
type Memory struct {
	mu      sync.Mutex
	samples []core.Sample
}

var _ core.Aggregator = (*Memory)(nil)

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Report(s core.Sample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, s)
}

func (m *Memory) Run(ctx context.Context, _ core.AggregatorDeps) error {
	<-ctx.Done()
	return nil
}

// Samples returns copy of samples reported so far.
func (m *Memory) Samples() []core.Sample {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.Sample(nil), m.samples...)
}
