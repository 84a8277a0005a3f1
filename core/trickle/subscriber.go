// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package trickle

import (
	"context"
	"net/http"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Subscriber pulls stream from relay as ordered sequence of segments.
// GET of the next segment is issued in background as soon as the current
// one is handed out, so relay can answer as soon as segment is published.
type Subscriber struct {
	conf      SubscriberConfig
	client    Client
	ownClient bool
	log       *zap.Logger
	metrics   Metrics

	ctx       context.Context
	cancel    context.CancelFunc
	fetches   sync.WaitGroup
	closeOnce sync.Once

	nextMu sync.Mutex // Serializes Next calls.

	mu               sync.Mutex
	seq              int         // Sequence number of next segment to hand out.
	pending          *pendingGet // Prefetched, not claimed segment. Has seq equal to s.seq.
	preconnectErrors int         // Consecutive.
	eos              bool
	closed           bool
}

// pendingGet is GET request in flight. Result is available after done is closed.
type pendingGet struct {
	seq        int
	background bool
	cancel     context.CancelFunc
	done       chan struct{}
	res        *http.Response
	err        error
}

func NewSubscriber(conf SubscriberConfig, log *zap.Logger, m Metrics) (*Subscriber, error) {
	client, err := NewClient(conf.Client)
	if err != nil {
		return nil, err
	}
	s := NewSubscriberWithClient(conf, client, log, m)
	s.ownClient = true
	return s, nil
}

// NewSubscriberWithClient returns session that uses shared client.
// Client idle connections are not closed on session Close.
func NewSubscriberWithClient(conf SubscriberConfig, client Client, log *zap.Logger, m Metrics) *Subscriber {
	if conf.ChunkSize <= 0 {
		conf.ChunkSize = DefaultChunkSize
	}
	if conf.MaxPreconnectErrors <= 0 {
		conf.MaxPreconnectErrors = DefaultMaxPreconnectErrors
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Subscriber{
		conf:    conf,
		client:  client,
		log:     log.With(zap.String("url", conf.URL)),
		metrics: m.withDefaults(),
		ctx:     ctx,
		cancel:  cancel,
		seq:     conf.StartSeq,
	}
}

func (s *Subscriber) URL() string { return s.conf.URL }

// SetSeq makes Next fetch seq segment. Prefetched segment is dropped.
func (s *Subscriber) SetSeq(seq int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = seq
	if s.pending != nil {
		s.pending.discard()
		s.pending = nil
	}
}

// Next returns reader of the following segment. Blocks until relay starts
// to serve it. ErrEOS means that stream is finished.
func (s *Subscriber) Next(ctx context.Context) (*SegmentReader, error) {
	s.nextMu.Lock()
	defer s.nextMu.Unlock()

	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return nil, ErrClosed
	case s.eos:
		s.mu.Unlock()
		return nil, ErrEOS
	case s.preconnectErrors >= s.conf.MaxPreconnectErrors:
		s.log.Error("Hit max preconnect errors", zap.Int("seq", s.seq), zap.Int("errors", s.preconnectErrors))
		s.mu.Unlock()
		return nil, errors.WithStack(ErrTooManyPreconnectErrors)
	}
	g := s.pending
	s.pending = nil
	if g == nil {
		s.log.Debug("No preconnect, connecting", zap.Int("seq", s.seq))
		g = s.fetch(s.seq, false)
	}
	s.mu.Unlock()

	res, err := g.wait(ctx)
	if g.background && isRetryable(res, err) && ctx.Err() == nil {
		s.log.Warn("Preconnected segment failed, reconnecting", zap.Int("seq", g.seq), zap.Error(err))
		g.discard()
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, ErrClosed
		}
		g = s.fetch(g.seq, false)
		s.mu.Unlock()
		res, err = g.wait(ctx)
	}
	if err != nil {
		s.countError()
		return nil, err
	}
	r, err := s.handle(g, res)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.preconnectErrors = 0
	s.seq = r.seq + 1
	if r.eos || s.closed {
		s.eos = r.eos
		return r, nil
	}
	s.fetches.Add(1)
	go s.prepare(s.seq)
	return r, nil
}

func (s *Subscriber) countError() {
	s.mu.Lock()
	s.preconnectErrors++
	s.mu.Unlock()
}

// prepare issues GET for seq segment, if seq is still next to hand out and slot is empty.
func (s *Subscriber) prepare(seq int) {
	defer s.fetches.Done()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.eos || s.pending != nil || s.seq != seq {
		return
	}
	s.pending = s.fetch(seq, true)
}

// fetch starts GET of seq segment. Should be called under lock.
func (s *Subscriber) fetch(seq int, background bool) *pendingGet {
	ctx, cancel := context.WithCancel(s.ctx)
	g := &pendingGet{
		seq:        seq,
		background: background,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	url := SegmentURL(s.conf.URL, seq)
	s.fetches.Add(1)
	go func() {
		defer s.fetches.Done()
		defer close(g.done)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			g.err = errors.WithStack(err)
			return
		}
		g.res, err = s.client.Do(req)
		if err != nil {
			g.err = errors.Wrapf(err, "segment %d GET failed", seq)
			if background && ctx.Err() == nil {
				s.metrics.PreconnectErrors.Inc()
				s.log.Error("Failed to preconnect next segment", zap.Int("seq", seq), zap.Error(err))
			}
		}
	}()
	return g
}

func (g *pendingGet) wait(ctx context.Context) (*http.Response, error) {
	select {
	case <-g.done:
		return g.res, g.err
	case <-ctx.Done():
		g.discard()
		return nil, errors.WithStack(ctx.Err())
	}
}

// discard aborts request and releases response, if any.
func (g *pendingGet) discard() {
	g.cancel()
	go func() {
		<-g.done
		if g.res != nil {
			g.res.Body.Close()
		}
	}()
}

func isRetryable(res *http.Response, err error) bool {
	if err != nil {
		return true
	}
	return res.StatusCode >= http.StatusInternalServerError
}

// handle turns relay response into segment reader or protocol error.
func (s *Subscriber) handle(g *pendingGet, res *http.Response) (*SegmentReader, error) {
	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		readErrorBody(res)
		g.cancel()
		s.log.Info("Stream not found", zap.Int("seq", g.seq))
		return nil, ErrStreamNotFound
	case StatusSequenceNonexistent:
		readErrorBody(res)
		g.cancel()
		latest, _ := ParseLatest(res.Header)
		return nil, &SequenceNonexistentError{Seq: g.seq, Latest: latest}
	default:
		s.countError()
		statusErr := newStatusError(res.Request, res)
		g.cancel()
		s.metrics.SegmentErrors.Inc()
		s.log.Error("Segment GET failed", zap.Int("seq", g.seq),
			zap.Int("status", res.StatusCode), zap.String("msg", statusErr.Body))
		return nil, errors.WithStack(statusErr)
	}

	closed := IsClosed(res.Header)
	seq, ok := ParseSeq(res.Header)
	if !ok {
		seq = g.seq
	}
	if closed && (res.ContentLength == 0 || !ok) {
		readErrorBody(res)
		g.cancel()
		s.mu.Lock()
		s.eos = true
		s.mu.Unlock()
		s.log.Info("End of stream", zap.Int("seq", seq))
		return nil, ErrEOS
	}
	if seq < 0 {
		readErrorBody(res)
		g.cancel()
		s.countError()
		return nil, errors.Errorf("relay did not report sequence number of segment %d", g.seq)
	}

	r := newSegmentReader(seq, closed, s.conf.ChunkQueueSize, g.cancel)
	s.metrics.SegmentsStarted.Inc()
	log := s.log.With(zap.Int("seq", seq))
	go func() {
		defer close(r.done)
		defer s.metrics.SegmentsFinished.Inc()
		err := receive(s.ctx, res.Body, r.queue(), int(s.conf.ChunkSize), func(n int) {
			s.metrics.Bytes.Add(int64(n))
		})
		if err != nil && r.queue().Status() != QueueShutdown {
			s.metrics.SegmentErrors.Inc()
			log.Warn("Segment receive failed", zap.Error(err))
		}
	}()
	return r, nil
}

// Close aborts prefetched segment and releases connections.
// Should be called after last segment reader is closed.
func (s *Subscriber) Close() error {
	s.closeOnce.Do(func() {
		s.log.Info("Closing subscription")
		s.mu.Lock()
		s.closed = true
		pending := s.pending
		s.pending = nil
		s.mu.Unlock()
		if pending != nil {
			pending.discard()
		}
		s.cancel()
		s.fetches.Wait()
		if s.ownClient {
			s.client.CloseIdleConnections()
		}
	})
	return nil
}
