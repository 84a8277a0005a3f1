// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package trickle

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrEOS is returned by Subscriber.Next when no more segments will arrive.
	ErrEOS = errors.New("trickle: end of stream")
	// ErrStreamNotFound is returned by Subscriber.Next when relay doesn't know the stream.
	// It is end of stream too: errors.Is(ErrStreamNotFound, ErrEOS) is true.
	ErrStreamNotFound error = &endOfStreamError{"trickle: stream not found"}
	// ErrSegmentClosed is returned on write to closed segment.
	ErrSegmentClosed = errors.New("trickle: write to closed segment")
	// ErrClosed is returned on session use after Close.
	ErrClosed = errors.New("trickle: session closed")
	// ErrTooManyPreconnectErrors is returned by Subscriber.Next when relay
	// failed too many times in a row.
	ErrTooManyPreconnectErrors = errors.New("trickle: too many preconnect errors")

	errQueueShutdown = errors.New("trickle: segment connection is gone")
)

type endOfStreamError struct{ msg string }

func (e *endOfStreamError) Error() string { return e.msg }

func (e *endOfStreamError) Is(target error) bool { return target == ErrEOS }

// SequenceNonexistentError means that stream exists, but requested segment doesn't:
// it was evicted or is too far ahead. Latest is the leading edge reported by relay.
type SequenceNonexistentError struct {
	Seq    int
	Latest int
}

func (e *SequenceNonexistentError) Error() string {
	return fmt.Sprintf("trickle: segment %d doesn't exist, latest is %d", e.Seq, e.Latest)
}

// StatusError is unexpected relay response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("trickle: %s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}
