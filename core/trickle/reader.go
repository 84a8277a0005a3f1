// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package trickle

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
)

// SegmentReader reads body of one subscribed segment.
// Close must be called on every exit path, usually with defer.
type SegmentReader struct {
	seq    int
	eos    bool
	r      *queueReader
	cancel context.CancelFunc // Aborts GET request.
	done   chan struct{}      // Closed when receive finished.

	closeOnce sync.Once
}

var _ io.ReadCloser = (*SegmentReader)(nil)

func newSegmentReader(seq int, eos bool, queueSize int, cancel context.CancelFunc) *SegmentReader {
	return &SegmentReader{
		seq:    seq,
		eos:    eos,
		r:      newQueueReader(context.Background(), newChunkQueue(queueSize)),
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

func (r *SegmentReader) Seq() int { return r.seq }

// EOS is true, if segment is the last one of stream.
func (r *SegmentReader) EOS() bool { return r.eos }

// Read reads segment data. Returns io.EOF at the end of segment, not stream.
func (r *SegmentReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if err == io.ErrClosedPipe {
		err = ErrSegmentClosed
	}
	return n, err
}

// Close releases segment connection. Repeated calls do nothing.
func (r *SegmentReader) Close() error {
	r.closeOnce.Do(func() {
		r.r.q.Shutdown()
		r.cancel()
		<-r.done
	})
	return nil
}

func (r *SegmentReader) queue() *chunkQueue { return r.r.q }

// receive copies body to chunk queue. Chunks are allocated per read,
// because reader may hold them.
func receive(ctx context.Context, body io.ReadCloser, q *chunkQueue, chunkSize int, onChunk func(n int)) error {
	defer body.Close()
	for {
		buf := make([]byte, chunkSize)
		n, err := body.Read(buf)
		if n > 0 {
			onChunk(n)
			if putErr := q.Put(ctx, buf[:n]); putErr != nil {
				if putErr == errQueueShutdown {
					// Reader is closed.
					return nil
				}
				putErr = errors.Wrap(putErr, "segment receive aborted")
				q.CloseWithError(putErr)
				return putErr
			}
		}
		if err == io.EOF {
			q.Close()
			return nil
		}
		if err != nil {
			err = errors.Wrap(err, "segment receive failed")
			q.CloseWithError(err)
			return err
		}
	}
}
