// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package testutil

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/mock"
	"go.uber.org/atomic"
)

// TestingT is satisfied by *testing.T and by retry attempt of RunFlaky.
type TestingT interface {
	mock.TestingT
}

const flakyAttempts = 5

// RunFlaky runs timing dependent test until it passes. Failures of all attempts
// but the last one are only logged.
func RunFlaky(t *testing.T, test func(t TestingT)) {
	for i := 1; i < flakyAttempts; i++ {
		var passed bool
		t.Run("Attempt_"+strconv.Itoa(i), func(t *testing.T) {
			passed = runAttempt(t, test)
		})
		if passed {
			return
		}
	}
	t.Run("Attempt_"+strconv.Itoa(flakyAttempts), func(t *testing.T) {
		test(t)
	})
}

func runAttempt(t *testing.T, test func(t TestingT)) (passed bool) {
	at := &attempt{t: t}
	defer func() {
		if r := recover(); r != nil && r != errFailNow {
			panic(r)
		}
		passed = !at.failed.Load()
		if !passed {
			t.Log("Attempt failed, retrying")
		}
	}()
	test(at)
	return
}

type failNow struct{}

var errFailNow = &failNow{}

// attempt logs failures instead of failing test.
type attempt struct {
	t      *testing.T
	failed atomic.Bool
}

var _ TestingT = &attempt{}

func (a *attempt) Logf(format string, args ...interface{}) {
	a.t.Helper()
	a.t.Logf(format, args...)
}

func (a *attempt) Errorf(format string, args ...interface{}) {
	a.t.Helper()
	a.t.Logf(format, args...)
	a.failed.Store(true)
}

// FailNow unwinds test function. Works only on goroutine that called RunFlaky.
func (a *attempt) FailNow() {
	a.failed.Store(true)
	panic(errFailNow)
}

func helperOf(t TestingT) func() {
	if h, ok := t.(interface{ Helper() }); ok {
		return h.Helper
	}
	return func() {}
}
