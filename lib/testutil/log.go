// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package testutil

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func NewNullLogger() *zap.Logger {
	c, _ := observer.New(zap.InfoLevel)
	return zap.New(c)
}

// NewObservedLogger returns debug logger, which entries can be checked in test.
func NewObservedLogger() (*zap.Logger, *observer.ObservedLogs) {
	c, logs := observer.New(zap.DebugLevel)
	return zap.New(c), logs
}
