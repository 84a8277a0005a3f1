// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package monitoring

import (
	"expvar"
	"strconv"

	"go.uber.org/atomic"
)

// Counter is int64 expvar.Var, that may stay unpublished.
// Zero value is ready to use.
type Counter struct {
	value atomic.Int64
}

var _ expvar.Var = (*Counter)(nil)

// NewCounter returns counter published to expvar. Panics on duplicate name.
func NewCounter(name string) *Counter {
	c := &Counter{}
	expvar.Publish(name, c)
	return c
}

func (c *Counter) Inc() { c.value.Inc() }
func (c *Counter) Add(delta int64) { c.value.Add(delta) }
func (c *Counter) Set(value int64) { c.value.Store(value) }
func (c *Counter) Get() int64 { return c.value.Load() }
func (c *Counter) String() string { return strconv.FormatInt(c.Get(), 10) }
