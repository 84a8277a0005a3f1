// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

// Package trickletest provides in-memory relay for tests of trickle sessions.
package trickletest

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/yandex/trickle/core/trickle"
)

// DefaultKeepSegments is number of the latest segments relay keeps for subscribers.
const DefaultKeepSegments = 5

// Request is record of request received by relay.
type Request struct {
	Method string
	Path   string
	Header http.Header
}

// Relay is http.Handler that speaks trickle protocol. Stream path is any
// path that doesn't end with number. Segments are kept in memory.
type Relay struct {
	// KeepSegments older than latest are served. Others get sequence nonexistent status.
	KeepSegments int
	// Autocreate allows to publish segments without stream create.
	Autocreate bool

	log *zap.Logger

	mu       sync.Mutex
	streams  map[string]*stream
	requests []Request
	failures map[string]failure // By segment path.
	deletes  map[string]int
}

func NewRelay(log *zap.Logger) *Relay {
	return &Relay{
		KeepSegments: DefaultKeepSegments,
		log:          log,
		streams:      map[string]*stream{},
		failures:     map[string]failure{},
		deletes:      map[string]int{},
	}
}

type failure struct {
	status int
	early  bool
}

// FailSegment makes relay drain publish of seq segment and answer with status.
func (r *Relay) FailSegment(stream string, seq int, status int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[trickle.SegmentURL(stream, seq)] = failure{status: status}
}

// RejectSegment makes relay answer with status as soon as publish of seq segment arrives.
func (r *Relay) RejectSegment(stream string, seq int, status int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[trickle.SegmentURL(stream, seq)] = failure{status: status, early: true}
}

// Requests returns copy of received requests in arrival order.
func (r *Relay) Requests() []Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Request(nil), r.requests...)
}

// Count returns number of received requests with passed method and path.
func (r *Relay) Count(method, path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int
	for _, req := range r.requests {
		if req.Method == method && req.Path == path {
			n++
		}
	}
	return n
}

// Opened checks that publish of segment has arrived. Body may be not finished yet.
func (r *Relay) Opened(stream string, seq int) bool {
	return r.Count(http.MethodPost, trickle.SegmentURL(stream, seq)) > 0
}

// Deletes returns number of DELETE requests for stream.
func (r *Relay) Deletes(stream string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deletes[stream]
}

// Segment returns data published as seq segment and whether publish is finished.
func (r *Relay) Segment(stream string, seq int) (data []byte, complete bool, ok bool) {
	s := r.stream(stream)
	if s == nil {
		return nil, false, false
	}
	seg := s.get(seq)
	if seg == nil {
		return nil, false, false
	}
	data, complete = seg.snapshot()
	return data, complete, true
}

// Close finishes all streams, so blocked subscribers return.
func (r *Relay) Close() {
	r.mu.Lock()
	streams := make([]*stream, 0, len(r.streams))
	for _, s := range r.streams {
		streams = append(streams, s)
	}
	r.mu.Unlock()
	for _, s := range streams {
		s.close()
	}
}

func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	r.requests = append(r.requests, Request{
		Method: req.Method,
		Path:   req.URL.Path,
		Header: req.Header.Clone(),
	})
	r.mu.Unlock()
	r.log.Debug("Request", zap.String("method", req.Method), zap.String("path", req.URL.Path))

	name, seq, isSegment := parsePath(req.URL.Path)
	switch {
	case req.Method == http.MethodPost && !isSegment:
		r.create(w, name)
	case req.Method == http.MethodPost:
		r.publish(w, req, name, seq)
	case req.Method == http.MethodGet && isSegment:
		r.subscribe(w, req, name, seq)
	case req.Method == http.MethodDelete && !isSegment:
		r.delete(w, name)
	default:
		http.Error(w, "unsupported request", http.StatusMethodNotAllowed)
	}
}

func parsePath(path string) (name string, seq int, isSegment bool) {
	path = strings.TrimSuffix(path, "/")
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return path, 0, false
	}
	seq, err := strconv.Atoi(path[i+1:])
	if err != nil {
		return path, 0, false
	}
	return path[:i], seq, true
}

func (r *Relay) stream(name string) *stream {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.streams[name]
}

func (r *Relay) create(w http.ResponseWriter, name string) {
	r.mu.Lock()
	if _, ok := r.streams[name]; !ok {
		r.streams[name] = newStream()
	}
	r.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (r *Relay) publish(w http.ResponseWriter, req *http.Request, name string, seq int) {
	r.mu.Lock()
	s := r.streams[name]
	if s == nil && r.Autocreate {
		s = newStream()
		r.streams[name] = s
	}
	fail, failed := r.failures[trickle.SegmentURL(name, seq)]
	r.mu.Unlock()
	if s == nil {
		drain(req)
		http.Error(w, "stream not found", http.StatusNotFound)
		return
	}
	if failed {
		if fail.early {
			r.reject(w, fail.status)
			return
		}
		drain(req)
		http.Error(w, "injected failure", fail.status)
		return
	}
	seg := s.open(seq, r.KeepSegments)
	defer seg.finish()
	buf := make([]byte, 32*1024)
	for {
		n, err := req.Body.Read(buf)
		if n > 0 {
			seg.write(buf[:n])
		}
		if err != nil {
			break
		}
	}
	w.WriteHeader(http.StatusOK)
}

// reject answers with status and drops connection without reading request body.
// Server would otherwise try to drain body before the response goes out.
func (r *Relay) reject(w http.ResponseWriter, status int) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		w.Header().Set("Connection", "close")
		http.Error(w, "injected failure", status)
		return
	}
	conn, buf, err := hj.Hijack()
	if err != nil {
		r.log.Error("Hijack failed", zap.Error(err))
		return
	}
	defer conn.Close()
	const msg = "injected failure\n"
	fmt.Fprintf(buf, "HTTP/1.1 %d %s\r\nConnection: close\r\nContent-Type: text/plain; charset=utf-8\r\nContent-Length: %d\r\n\r\n%s",
		status, http.StatusText(status), len(msg), msg)
	if err := buf.Flush(); err != nil {
		r.log.Debug("Reject write failed", zap.Error(err))
	}
}

func (r *Relay) subscribe(w http.ResponseWriter, req *http.Request, name string, seq int) {
	s := r.stream(name)
	if s == nil {
		http.Error(w, "stream not found", http.StatusNotFound)
		return
	}
	seg, seq, latest, closed := s.lookup(req.Context(), seq, r.KeepSegments)
	if req.Context().Err() != nil {
		return
	}
	switch {
	case closed:
		w.Header().Set(trickle.HeaderClosed, "terminated")
		w.Header().Set("Content-Length", "0")
		w.WriteHeader(http.StatusOK)
		return
	case seg == nil:
		w.Header().Set(trickle.HeaderLatest, strconv.Itoa(latest))
		http.Error(w, "sequence nonexistent", trickle.StatusSequenceNonexistent)
		return
	}
	w.Header().Set(trickle.HeaderSeq, strconv.Itoa(seq))
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}
	var pos int
	for {
		data, done, err := seg.read(req.Context(), pos)
		if err != nil {
			return
		}
		if len(data) > 0 {
			if _, err := w.Write(data); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
			pos += len(data)
		}
		if done && len(data) == 0 {
			return
		}
	}
}

func (r *Relay) delete(w http.ResponseWriter, name string) {
	r.mu.Lock()
	s := r.streams[name]
	r.deletes[name]++
	r.mu.Unlock()
	if s == nil {
		http.Error(w, "stream not found", http.StatusNotFound)
		return
	}
	s.close()
	w.WriteHeader(http.StatusOK)
}

func drain(req *http.Request) {
	buf := make([]byte, 32*1024)
	for {
		if _, err := req.Body.Read(buf); err != nil {
			return
		}
	}
}

type stream struct {
	mu       sync.Mutex
	segments map[int]*segment
	latest   int
	closed   bool
	wake     chan struct{} // Closed and replaced on every stream change.
}

func newStream() *stream {
	return &stream{
		segments: map[int]*segment{},
		latest:   -1,
		wake:     make(chan struct{}),
	}
}

func (s *stream) notify() {
	close(s.wake)
	s.wake = make(chan struct{})
}

func (s *stream) open(seq int, keep int) *segment {
	s.mu.Lock()
	defer s.mu.Unlock()
	seg := newSegment()
	s.segments[seq] = seg
	if seq > s.latest {
		s.latest = seq
	}
	for old := range s.segments {
		if old <= s.latest-keep {
			delete(s.segments, old)
		}
	}
	s.notify()
	return seg
}

func (s *stream) get(seq int) *segment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.segments[seq]
}

// lookup finds segment to serve. Waits for the next segment to be published.
// Published segments are served after stream close too.
func (s *stream) lookup(ctx context.Context, seq int, keep int) (seg *segment, servedSeq int, latest int, closed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		want := seq
		if want == trickle.LatestSeq {
			want = s.latest
			if want < 0 {
				want = 0
			}
		}
		if seg := s.segments[want]; seg != nil {
			return seg, want, s.latest, false
		}
		if s.closed {
			return nil, want, s.latest, true
		}
		if want > s.latest+1 || want <= s.latest-keep {
			return nil, want, s.latest, false
		}
		wake := s.wake
		s.mu.Unlock()
		select {
		case <-wake:
		case <-ctx.Done():
		}
		s.mu.Lock()
		if ctx.Err() != nil {
			return nil, want, s.latest, false
		}
	}
}

func (s *stream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for _, seg := range s.segments {
		seg.finish()
	}
	s.notify()
}

// segment is growing buffer. Readers follow writer without blocking it.
type segment struct {
	mu   sync.Mutex
	data []byte
	done bool
	wake chan struct{}
}

func newSegment() *segment {
	return &segment{wake: make(chan struct{})}
}

func (s *segment) write(p []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append(s.data, p...)
	close(s.wake)
	s.wake = make(chan struct{})
}

func (s *segment) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	close(s.wake)
	s.wake = make(chan struct{})
}

func (s *segment) snapshot() ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.data...), s.done
}

// read returns data after pos. Blocks until there is some, or segment is finished.
func (s *segment) read(ctx context.Context, pos int) ([]byte, bool, error) {
	for {
		s.mu.Lock()
		if pos < len(s.data) {
			data := append([]byte(nil), s.data[pos:]...)
			done := s.done
			s.mu.Unlock()
			return data, done, nil
		}
		if s.done {
			s.mu.Unlock()
			return nil, true, nil
		}
		wake := s.wake
		s.mu.Unlock()
		select {
		case <-wake:
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}
}
