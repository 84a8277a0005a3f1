// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

// Package core defines extension points shared by trickle components:
// where samples go, where data comes from, and how operations are paced.
package core

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"
)

// Sample is report of one handled segment. Concrete type is defined by component.
type Sample interface{}

// Aggregator is routine that writes samples of all sessions to a sink in
// machine readable format, for future analysis.
// An Aggregator must be goroutine safe.
type Aggregator interface {
	// Run starts aggregator routine. Blocks until error or context cancel.
	// On context cancel all reported samples are handled, and nil is returned
	// if everything went well.
	Run(ctx context.Context, deps AggregatorDeps) error
	// Report passes sample to aggregator. Should be lightweight and not blocking,
	// so session is not slowed down. If sample can't be accepted without blocking,
	// it is thrown away, and Run returns error with number of dropped samples.
	// Report may be called before Run.
	Report(Sample)
}

type AggregatorDeps struct {
	Log *zap.Logger
}

// Schedule represents operation schedule. Schedule must be goroutine safe.
type Schedule interface {
	// Start starts schedule at passed time.
	// Start may be called once, before any Next call.
	// If Start was not called, schedule is started at first Next call.
	Start(startAt time.Time)
	// Next withdraws one operation token and returns next operation time and
	// ok equal true, when schedule is not finished.
	// If there is no operation tokens left, Next returns Schedule
	// finish time and ok equals false.
	Next() (ts time.Time, ok bool)
	// Left returns n >= 0 number operation token left, if it is known exactly.
	// Returns n < 0, if number of operation tokens is unknown.
	Left() int
}

// DataSource is opened for every read. Closing returned reader releases resources.
type DataSource interface {
	OpenSource() (io.ReadCloser, error)
}

// DataSink is opened for every write. Closing returned writer flushes data.
type DataSink interface {
	OpenSink() (io.WriteCloser, error)
}
