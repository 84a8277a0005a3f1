// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlakyPassed(t *testing.T) {
	var run int
	RunFlaky(t, func(t TestingT) {
		run++
		assert.True(t, run >= 3)
	})
	assert.Equal(t, 3, run)
}

func TestFlakyPanic(t *testing.T) {
	var run int
	RunFlaky(t, func(t TestingT) {
		run++
		require.True(t, run >= 3)
	})
	assert.Equal(t, 3, run)
}

func TestObservedLogger(t *testing.T) {
	log, logs := NewObservedLogger()
	log.Debug("Segment uploaded")
	log.Error("Segment upload failed")
	assert.Equal(t, 2, logs.Len())
	assert.Equal(t, 1, logs.FilterMessage("Segment upload failed").Len())
}
