// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package trickle

import (
	"context"
	"io"
	"net/http"
	"net/http/httptrace"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/yandex/trickle/lib/errutil"
)

// Publisher pushes stream to relay as ordered sequence of segments.
// Connection for the next segment is opened in background as soon as
// the current one is handed out, so segment boundaries don't wait for
// connection setup.
type Publisher struct {
	conf      PublisherConfig
	client    Client
	ownClient bool
	log       *zap.Logger
	metrics   Metrics

	// Uploads live until Close finishes. Preparations are canceled on Close start.
	ctx           context.Context
	cancel        context.CancelFunc
	prepareCtx    context.Context
	cancelPrepare context.CancelFunc
	uploads       sync.WaitGroup
	preparers     sync.WaitGroup
	closeOnce     sync.Once

	mu      sync.Mutex
	seq     int            // Sequence number of next segment to hand out.
	pending *SegmentWriter // Preconnected, not claimed segment. Has seq equal to p.seq.
	closed  bool
}

func NewPublisher(conf PublisherConfig, log *zap.Logger, m Metrics) (*Publisher, error) {
	client, err := NewClient(conf.Client)
	if err != nil {
		return nil, err
	}
	p := NewPublisherWithClient(conf, client, log, m)
	p.ownClient = true
	return p, nil
}

// NewPublisherWithClient returns session that uses shared client.
// Client idle connections are not closed on session Close.
func NewPublisherWithClient(conf PublisherConfig, client Client, log *zap.Logger, m Metrics) *Publisher {
	if conf.MimeType == "" {
		conf.MimeType = DefaultMimeType
	}
	ctx, cancel := context.WithCancel(context.Background())
	prepareCtx, cancelPrepare := context.WithCancel(ctx)
	return &Publisher{
		conf:          conf,
		client:        client,
		log:           log.With(zap.String("url", conf.URL)),
		metrics:       m.withDefaults(),
		ctx:           ctx,
		cancel:        cancel,
		prepareCtx:    prepareCtx,
		cancelPrepare: cancelPrepare,
	}
}

func (p *Publisher) URL() string { return p.conf.URL }

// Create announces stream on relay. Error means that stream can't be published.
func (p *Publisher) Create(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.conf.URL, http.NoBody)
	if err != nil {
		return errors.WithStack(err)
	}
	req.Header.Set(HeaderExpectContent, p.conf.MimeType)
	res, err := p.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "stream create failed")
	}
	if res.StatusCode != http.StatusOK {
		statusErr := newStatusError(req, res)
		p.log.Error("Stream create failed", zap.Int("status", res.StatusCode), zap.String("msg", statusErr.Body))
		return errors.WithStack(statusErr)
	}
	readErrorBody(res)
	p.log.Debug("Stream created")
	return nil
}

// Next returns writer of the following segment.
// Error is returned only if connection was not preconnected and synchronous
// connect failed. In that case sequence number is not consumed.
func (p *Publisher) Next(ctx context.Context) (*SegmentWriter, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	w := p.pending
	p.pending = nil
	if w != nil && w.queue.Status() == QueueShutdown {
		p.log.Warn("Preconnected segment is gone, reconnecting", zap.Int("seq", w.seq))
		w = nil
	}
	if w == nil {
		p.log.Info("No pending connection, connecting", zap.Int("seq", p.seq))
		var err error
		w, err = p.open(ctx, p.seq)
		if err != nil {
			return nil, errors.WithMessagef(err, "segment %d connect failed", p.seq)
		}
	}
	p.seq++
	p.preparers.Add(1)
	go p.preconnect(p.seq)
	return w, nil
}

// preconnect fills pending slot with connection for seq segment,
// if seq is still next to hand out and slot is empty.
func (p *Publisher) preconnect(seq int) {
	defer p.preparers.Done()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.pending != nil || p.seq != seq {
		return
	}
	w, err := p.open(p.prepareCtx, seq)
	if err != nil {
		p.metrics.PreconnectErrors.Inc()
		p.log.Error("Failed to preconnect next segment", zap.Int("seq", seq), zap.Error(err))
		return
	}
	p.pending = w
}

// open starts upload of seq segment and waits until request headers are sent.
// Should be called under lock.
func (p *Publisher) open(ctx context.Context, seq int) (*SegmentWriter, error) {
	url := SegmentURL(p.conf.URL, seq)
	reqCtx, cancel := context.WithCancel(p.ctx)
	queue := newChunkQueue(p.conf.ChunkQueueSize)
	w := &SegmentWriter{
		seq:    seq,
		queue:  queue,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	connected := make(chan error, 1)
	var connectedOnce sync.Once
	onConnect := func(err error) {
		connectedOnce.Do(func() { connected <- err })
	}
	trace := &httptrace.ClientTrace{
		WroteHeaders: func() { onConnect(nil) },
	}
	reqCtx = httptrace.WithClientTrace(reqCtx, trace)
	body := newQueueReader(reqCtx, queue)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, body)
	if err != nil {
		cancel()
		return nil, errors.WithStack(err)
	}
	req.ContentLength = -1 // Chunked. Also makes headers sent without waiting for first chunk.
	req.Header.Set("Content-Type", p.conf.MimeType)

	p.log.Debug("Connecting segment", zap.Int("seq", seq))
	p.uploads.Add(1)
	p.metrics.SegmentsStarted.Inc()
	go p.upload(req, w, onConnect)

	select {
	case err := <-connected:
		if err != nil {
			return nil, err
		}
		return w, nil
	case <-ctx.Done():
		w.abort()
		return nil, errors.WithStack(ctx.Err())
	}
}

func (p *Publisher) upload(req *http.Request, w *SegmentWriter, onConnect func(error)) {
	defer p.uploads.Done()
	defer close(w.done)
	defer w.cancel()
	defer w.queue.Shutdown()
	defer p.metrics.SegmentsFinished.Inc()
	log := p.log.With(zap.Int("seq", w.seq))

	counter := &countingReader{r: req.Body.(*queueReader)}
	req.Body = counter
	res, err := p.client.Do(req)
	if err != nil {
		onConnect(err)
		if errutil.IsCtxError(req.Context(), err) {
			log.Debug("Segment upload canceled", zap.Error(err))
			return
		}
		p.metrics.SegmentErrors.Inc()
		log.Error("Segment upload failed", zap.Error(err))
		return
	}
	onConnect(nil)
	p.metrics.Bytes.Add(counter.n.Load())
	if res.StatusCode != http.StatusOK {
		p.metrics.SegmentErrors.Inc()
		log.Error("Segment upload failed",
			zap.Int("status", res.StatusCode), zap.String("msg", readErrorBody(res)))
		return
	}
	_, _ = io.Copy(io.Discard, res.Body)
	res.Body.Close()
	log.Debug("Segment uploaded", zap.Int64("bytes", counter.n.Load()))
}

// Close finishes unclaimed preconnected segment without data, waits
// uploads, and tells relay that stream is over. Never fails: teardown
// errors are logged. Should be called after last claimed segment is closed.
func (p *Publisher) Close() error {
	p.closeOnce.Do(func() {
		p.log.Info("Closing stream")
		p.cancelPrepare()
		p.mu.Lock()
		p.closed = true
		pending := p.pending
		p.pending = nil
		p.mu.Unlock()
		if pending != nil {
			p.log.Debug("Closing pending segment", zap.Int("seq", pending.seq))
			_ = pending.Close()
		}
		p.preparers.Wait()
		p.uploads.Wait()
		p.delete()
		if p.ownClient {
			p.client.CloseIdleConnections()
		}
		p.cancel()
	})
	return nil
}

func (p *Publisher) delete() {
	req, err := http.NewRequestWithContext(p.ctx, http.MethodDelete, p.conf.URL, http.NoBody)
	if err != nil {
		p.log.Error("Stream delete request create failed", zap.Error(err))
		return
	}
	res, err := p.client.Do(req)
	if err != nil {
		p.log.Error("Stream delete failed", zap.Error(err))
		return
	}
	if res.StatusCode != http.StatusOK {
		p.log.Warn("Stream delete failed",
			zap.Int("status", res.StatusCode), zap.String("msg", readErrorBody(res)))
		return
	}
	readErrorBody(res)
}

// countingReader counts bytes read by transport.
// Transport may still read body after response is returned.
type countingReader struct {
	r *queueReader
	n atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}

func (c *countingReader) Close() error { return c.r.Close() }
