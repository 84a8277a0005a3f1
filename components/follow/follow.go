// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

// Package follow reads stream segments one by one until end of stream,
// jumping to the leading edge when subscriber falls behind relay.
package follow

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/yandex/trickle/core/coreutil"
	"github.com/yandex/trickle/core/trickle"
)

// LeadingEdgeDelay is pause before retry from the leading edge.
const LeadingEdgeDelay = 10 * time.Millisecond

// Subscriber is subset of *trickle.Subscriber used by Stream.
type Subscriber interface {
	Next(ctx context.Context) (*trickle.SegmentReader, error)
	SetSeq(seq int)
}

// HandleFunc handles one segment. Reader is closed after return.
type HandleFunc func(ctx context.Context, r *trickle.SegmentReader) error

// Stream passes every segment of sub to handle.
// Returns nil on end of stream or context cancel, and the first other error
// of subscriber or handle.
func Stream(ctx context.Context, sub Subscriber, log *zap.Logger, handle HandleFunc) error {
	for {
		r, err := sub.Next(ctx)
		if err != nil {
			var nonexistent *trickle.SequenceNonexistentError
			switch {
			case errors.Is(err, trickle.ErrStreamNotFound):
				log.Info("Stream not found")
				return nil
			case errors.Is(err, trickle.ErrEOS):
				log.Info("End of stream")
				return nil
			case errors.As(err, &nonexistent):
				log.Warn("Segment doesn't exist, jumping to leading edge",
					zap.Int("seq", nonexistent.Seq), zap.Int("latest", nonexistent.Latest))
				sub.SetSeq(nonexistent.Latest)
				if !coreutil.Sleep(ctx, LeadingEdgeDelay) {
					return nil
				}
				continue
			case ctx.Err() != nil:
				return nil
			}
			return err
		}
		err = handle(ctx, r)
		_ = r.Close()
		if err != nil {
			return errors.WithMessagef(err, "segment %d", r.Seq())
		}
	}
}
