// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package coreutil

import (
	"context"
	"time"

	"github.com/yandex/trickle/core"
)

// Waiter paces a loop by schedule: every Wait returns at next scheduled time.
// Not safe for concurrent use.
type Waiter struct {
	sched core.Schedule

	// Lazy initialized.
	timer   *time.Timer
	lastNow time.Time
}

func NewWaiter(sched core.Schedule) *Waiter {
	return &Waiter{sched: sched}
}

// Wait waits for next waiter schedule event.
// Returns true, if event successfully waited, or false
// if context is done, or schedule finished.
func (w *Waiter) Wait(ctx context.Context) (ok bool) {
	select {
	case <-ctx.Done():
		return false
	default:
	}
	next, ok := w.sched.Next()
	if !ok {
		return false
	}
	// Loop is behind schedule: catch up without reading clock.
	if next.Before(w.lastNow) {
		return true
	}
	w.lastNow = time.Now()
	waitFor := next.Sub(w.lastNow)
	if waitFor <= 0 {
		return true
	}
	if w.timer == nil {
		w.timer = time.NewTimer(waitFor)
	} else {
		w.timer.Reset(waitFor)
	}
	select {
	case <-w.timer.C:
		return true
	case <-ctx.Done():
		if !w.timer.Stop() {
			<-w.timer.C
		}
		return false
	}
}

// IsFinished reports that context is done, or schedule has no operations left.
// Endless schedule is never finished by itself.
func (w *Waiter) IsFinished(ctx context.Context) (ok bool) {
	select {
	case <-ctx.Done():
		return true
	default:
		return w.sched.Left() == 0
	}
}

// Sleep waits for duration or context done. Returns false on context done.
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
