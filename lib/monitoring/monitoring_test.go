// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package monitoring

import (
	"context"
	"expvar"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewCounter(t *testing.T) {
	c := NewCounter("test_counter")
	c.Set(10)
	c.Add(4)
	c.Inc()
	assert.EqualValues(t, 15, c.Get())
	c.Add(-5)
	assert.Equal(t, "10", c.String())
	assert.Equal(t, "10", expvar.Get("test_counter").String())
}

func TestSet(t *testing.T) {
	s := NewSet("test_set")
	s.Counter("Segments").Add(3)
	s.Counter("Bytes").Add(100)
	s.Counter("Segments").Add(1)

	assert.Equal(t, []Value{{"Segments", 4}, {"Bytes", 100}}, s.Snapshot())
	assert.Equal(t, "4", expvar.Get("test_set_Segments").String())

	local := NewLocalSet("test_set")
	local.Counter("Segments").Add(1)
	assert.Equal(t, "4", expvar.Get("test_set_Segments").String())
}

func TestReport(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := NewLocalSet("pub")
	s.Counter("Segments").Add(2)
	NewLocalSet("empty")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	Report(ctx, zap.New(core), time.Hour, s, NewLocalSet("empty"))

	entries := logs.FilterMessage("Metrics").All()
	require.Len(t, entries, 1)
	assert.EqualValues(t, 2, entries[0].ContextMap()["Segments"])
	assert.Equal(t, "pub", entries[0].ContextMap()["set"])
}
