// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package trickle

import (
	"context"
	"io"
	"sync"
)

// QueueStatus is state of chunk queue.
type QueueStatus int

const (
	// QueueOpen accepts chunks.
	QueueOpen QueueStatus = iota
	// QueueClosed means producer put end marker. Buffered chunks still can be taken.
	QueueClosed
	// QueueShutdown means consumer is gone. Chunks put after shutdown are discarded.
	QueueShutdown
)

func (s QueueStatus) String() string {
	switch s {
	case QueueOpen:
		return "open"
	case QueueClosed:
		return "closed"
	case QueueShutdown:
		return "shutdown"
	}
	return "unknown"
}

// chunkQueue is bounded hand-off of chunks between application code and
// a goroutine serving one HTTP body. Put blocks while queue is full.
// Producer signals end of data with Close, consumer signals that it is
// not going to take chunks anymore with Shutdown.
type chunkQueue struct {
	chunks chan []byte

	closeOnce    sync.Once
	closed       chan struct{}
	shutdownOnce sync.Once
	shutdown     chan struct{}

	mu  sync.Mutex
	err error // Set by CloseWithError.
}

func newChunkQueue(size int) *chunkQueue {
	if size < 0 {
		size = 0
	}
	return &chunkQueue{
		chunks:   make(chan []byte, size),
		closed:   make(chan struct{}),
		shutdown: make(chan struct{}),
	}
}

func (q *chunkQueue) Status() QueueStatus {
	select {
	case <-q.shutdown:
		return QueueShutdown
	default:
	}
	select {
	case <-q.closed:
		return QueueClosed
	default:
	}
	return QueueOpen
}

// Put enqueues chunk. Returns ErrSegmentClosed after Close,
// errQueueShutdown if consumer is gone, or ctx error.
func (q *chunkQueue) Put(ctx context.Context, chunk []byte) error {
	select {
	case <-q.closed:
		return ErrSegmentClosed
	default:
	}
	select {
	case <-q.shutdown:
		return errQueueShutdown
	default:
	}
	select {
	case q.chunks <- chunk:
		return nil
	case <-q.shutdown:
		return errQueueShutdown
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close puts end marker. Returns false if queue was already closed.
func (q *chunkQueue) Close() (first bool) {
	q.closeOnce.Do(func() {
		first = true
		close(q.closed)
	})
	return
}

// CloseWithError puts end marker, after which Take returns err instead of io.EOF.
func (q *chunkQueue) CloseWithError(err error) {
	q.mu.Lock()
	if q.err == nil {
		q.err = err
	}
	q.mu.Unlock()
	q.Close()
}

func (q *chunkQueue) Shutdown() {
	q.shutdownOnce.Do(func() {
		close(q.shutdown)
	})
}

// Take blocks until next chunk is available. After end marker and all buffered chunks
// are taken, returns io.EOF or error passed to CloseWithError.
func (q *chunkQueue) Take(ctx context.Context) ([]byte, error) {
	select {
	case chunk := <-q.chunks:
		return chunk, nil
	case <-q.closed:
		// Chunks put before Close are still buffered.
		select {
		case chunk := <-q.chunks:
			return chunk, nil
		default:
			return nil, q.endErr()
		}
	case <-q.shutdown:
		return nil, io.ErrClosedPipe
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *chunkQueue) endErr() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	return io.EOF
}

// queueReader adapts chunkQueue consumer side to io.ReadCloser.
// Closing reader shuts queue down, so blocked producers are released.
type queueReader struct {
	ctx  context.Context
	q    *chunkQueue
	rest []byte
}

func newQueueReader(ctx context.Context, q *chunkQueue) *queueReader {
	return &queueReader{ctx: ctx, q: q}
}

func (r *queueReader) Read(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}
	for len(r.rest) == 0 {
		r.rest, err = r.q.Take(r.ctx)
		if err != nil {
			return 0, err
		}
	}
	n = copy(p, r.rest)
	r.rest = r.rest[n:]
	return n, nil
}

func (r *queueReader) Close() error {
	r.q.Shutdown()
	return nil
}

var _ io.ReadCloser = (*queueReader)(nil)
