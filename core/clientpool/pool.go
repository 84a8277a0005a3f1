// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

// Package clientpool shares a fixed set of connection pools between many sessions.
package clientpool

import (
	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

// New returns pool of size clients, created by newClient.
func New[T any](size int, newClient func() (T, error)) (*Pool[T], error) {
	if size <= 0 {
		return nil, errors.New("pool size must be greater than zero")
	}
	p := &Pool[T]{pool: make([]T, 0, size)}
	for i := 0; i < size; i++ {
		c, err := newClient()
		if err != nil {
			return nil, errors.WithMessagef(err, "client %d create failed", i)
		}
		p.pool = append(p.pool, c)
	}
	return p, nil
}

// Pool hands out clients round-robin. Goroutine safe.
type Pool[T any] struct {
	pool []T
	i    atomic.Uint64
}

func (p *Pool[T]) Next() T {
	i := p.i.Inc()
	return p.pool[int((i-1)%uint64(len(p.pool)))]
}

func (p *Pool[T]) Size() int {
	return len(p.pool)
}

// Each calls fn for every client. Used to release client resources.
func (p *Pool[T]) Each(fn func(T)) {
	for _, c := range p.pool {
		fn(c)
	}
}
