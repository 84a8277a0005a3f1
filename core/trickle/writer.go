// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package trickle

import (
	"context"
	"io"

	"github.com/pkg/errors"
)

// SegmentWriter writes body of one published segment.
// Upload result is not reported to writer: relay errors are only logged.
// Close must be called on every exit path, usually with defer.
type SegmentWriter struct {
	seq    int
	queue  *chunkQueue
	cancel context.CancelFunc // Aborts upload request.
	done   chan struct{}      // Closed when upload finished.
}

var _ io.WriteCloser = (*SegmentWriter)(nil)

func (w *SegmentWriter) Seq() int { return w.seq }

// Write enqueues copy of p for upload. Blocks while chunk queue is full.
func (w *SegmentWriter) Write(p []byte) (int, error) {
	return w.WriteContext(context.Background(), p)
}

// WriteContext is Write that stops waiting for queue space on ctx done.
func (w *SegmentWriter) WriteContext(ctx context.Context, p []byte) (int, error) {
	if len(p) == 0 {
		if w.queue.Status() == QueueClosed {
			return 0, ErrSegmentClosed
		}
		return 0, nil
	}
	chunk := make([]byte, len(p))
	copy(chunk, p)
	err := w.queue.Put(ctx, chunk)
	switch {
	case err == nil:
	case err == errQueueShutdown:
		// Upload failed or finished. That is already logged; data is dropped.
	case err == ErrSegmentClosed:
		return 0, err
	default:
		return 0, errors.WithStack(err)
	}
	return len(p), nil
}

// Close finishes segment body. Repeated calls do nothing.
func (w *SegmentWriter) Close() error {
	w.queue.Close()
	return nil
}

// Done is closed when upload of segment finished, successfully or not.
func (w *SegmentWriter) Done() <-chan struct{} { return w.done }

// abort drops not yet written segment: body finished and request canceled.
func (w *SegmentWriter) abort() {
	w.queue.Close()
	w.cancel()
}
