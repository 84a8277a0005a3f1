// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package trickle_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/yandex/trickle/core/trickle"
)

func (f *fixture) newSubscriber(t *testing.T, startSeq int) *trickle.Subscriber {
	conf := trickle.DefaultSubscriberConfig()
	conf.URL = f.url()
	conf.StartSeq = startSeq
	sub, err := trickle.NewSubscriber(conf, f.log, trickle.Metrics{})
	require.NoError(t, err)
	t.Cleanup(func() { sub.Close() })
	return sub
}

func readSegment(t *testing.T, sub *trickle.Subscriber) (seq int, data string, err error) {
	r, err := sub.Next(context.Background())
	if err != nil {
		return 0, "", err
	}
	defer r.Close()
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	return r.Seq(), string(b), nil
}

func TestSubscriber_ReceivesPublishedSegments(t *testing.T) {
	f := newFixture(t)
	pub := f.newPublisher(t, trickle.Metrics{})
	require.NoError(t, pub.Create(context.Background()))
	sub := f.newSubscriber(t, 0)

	segments := []string{"AAA", "BBB", "CCC"}
	published := make(chan struct{})
	go func() {
		defer close(published)
		for _, data := range segments {
			publishSegment(t, pub, data)
		}
		pub.Close()
	}()

	var got []string
	for expectedSeq := 0; ; expectedSeq++ {
		seq, data, err := readSegment(t, sub)
		if err == trickle.ErrEOS {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, expectedSeq, seq)
		// Publisher finishes unclaimed preconnected segment with empty body.
		if data != "" {
			got = append(got, data)
		}
	}
	<-published
	assert.Equal(t, segments, got)

	_, err := sub.Next(context.Background())
	assert.Equal(t, trickle.ErrEOS, err)
}

func TestSubscriber_PreconnectsNextSegment(t *testing.T) {
	f := newFixture(t)
	pub := f.newPublisher(t, trickle.Metrics{})
	require.NoError(t, pub.Create(context.Background()))
	publishSegment(t, pub, "AAA")

	sub := f.newSubscriber(t, 0)
	seq, data, err := readSegment(t, sub)
	require.NoError(t, err)
	assert.Equal(t, 0, seq)
	assert.Equal(t, "AAA", data)
	assert.Eventually(t, func() bool {
		return f.relay.Count(http.MethodGet, trickle.SegmentURL(testStream, 1)) == 1
	}, waitTimeout, waitTick)

	publishSegment(t, pub, "BBB")
	seq, data, err = readSegment(t, sub)
	require.NoError(t, err)
	assert.Equal(t, 1, seq)
	assert.Equal(t, "BBB", data)
	assert.Equal(t, 1, f.relay.Count(http.MethodGet, trickle.SegmentURL(testStream, 1)))
	require.NoError(t, pub.Close())
}

func TestSubscriber_LatestSegment(t *testing.T) {
	f := newFixture(t)
	pub := f.newPublisher(t, trickle.Metrics{})
	require.NoError(t, pub.Create(context.Background()))
	for _, data := range []string{"AAA", "BBB", "CCC"} {
		publishSegment(t, pub, data)
	}
	// Wait until segment 2 upload finished, so it is latest.
	require.Eventually(t, func() bool {
		_, complete, _ := f.relay.Segment(testStream, 2)
		return complete
	}, waitTimeout, waitTick)

	sub := f.newSubscriber(t, trickle.LatestSeq)
	r, err := sub.Next(context.Background())
	require.NoError(t, err)
	// Preconnected segment 3 may already be opened by relay.
	if r.Seq() == 2 {
		data, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, "CCC", string(data))
	} else {
		assert.Equal(t, 3, r.Seq())
	}
	require.NoError(t, r.Close())
	require.NoError(t, pub.Close())
}

func TestSubscriber_StreamNotFound(t *testing.T) {
	f := newFixture(t)
	sub := f.newSubscriber(t, 0)
	_, err := sub.Next(context.Background())
	assert.Equal(t, trickle.ErrStreamNotFound, err)
	assert.True(t, errors.Is(err, trickle.ErrEOS))
}

func TestSubscriber_SequenceNonexistent(t *testing.T) {
	f := newFixture(t)
	f.relay.KeepSegments = 2
	pub := f.newPublisher(t, trickle.Metrics{})
	require.NoError(t, pub.Create(context.Background()))
	for _, data := range []string{"AAA", "BBB", "CCC", "DDD"} {
		publishSegment(t, pub, data)
	}
	require.Eventually(t, func() bool {
		_, complete, _ := f.relay.Segment(testStream, 3)
		return complete
	}, waitTimeout, waitTick)

	sub := f.newSubscriber(t, 0)
	_, err := sub.Next(context.Background())
	var nonexistent *trickle.SequenceNonexistentError
	require.True(t, errors.As(err, &nonexistent), "%v", err)
	assert.Equal(t, 0, nonexistent.Seq)
	assert.GreaterOrEqual(t, nonexistent.Latest, 3)

	sub.SetSeq(3)
	seq, data, err := readSegment(t, sub)
	require.NoError(t, err)
	assert.Equal(t, 3, seq)
	assert.Equal(t, "DDD", data)
	require.NoError(t, pub.Close())
}

func TestSubscriber_TooManyErrors(t *testing.T) {
	var gets atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		gets.Inc()
		http.Error(w, "relay is broken", http.StatusInternalServerError)
	}))
	defer server.Close()
	conf := trickle.DefaultSubscriberConfig()
	conf.URL = server.URL + testStream
	conf.MaxPreconnectErrors = 2
	sub, err := trickle.NewSubscriber(conf, zap.NewNop(), trickle.Metrics{})
	require.NoError(t, err)
	defer sub.Close()

	for i := 0; i < conf.MaxPreconnectErrors; i++ {
		_, err := sub.Next(context.Background())
		var statusErr *trickle.StatusError
		require.True(t, errors.As(err, &statusErr), "%v", err)
		assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	}
	_, err = sub.Next(context.Background())
	assert.True(t, errors.Is(err, trickle.ErrTooManyPreconnectErrors), "%v", err)
	assert.EqualValues(t, conf.MaxPreconnectErrors, gets.Load())
}

func TestSubscriber_Close(t *testing.T) {
	f := newFixture(t)
	pub := f.newPublisher(t, trickle.Metrics{})
	require.NoError(t, pub.Create(context.Background()))
	publishSegment(t, pub, "AAA")

	sub := f.newSubscriber(t, 0)
	r, err := sub.Next(context.Background())
	require.NoError(t, err)
	require.NoError(t, r.Close())
	_, err = r.Read(make([]byte, 1))
	assert.Equal(t, trickle.ErrSegmentClosed, err)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	_, err = sub.Next(context.Background())
	assert.Equal(t, trickle.ErrClosed, err)
	assert.Zero(t, f.relay.Deletes(testStream), "subscriber should not delete stream")
	require.NoError(t, pub.Close())
}

func TestSubscriber_CloseDuringPreconnectedNext(t *testing.T) {
	f := newFixture(t)
	pub := f.newPublisher(t, trickle.Metrics{})
	require.NoError(t, pub.Create(context.Background()))
	publishSegment(t, pub, "AAA")

	sub := f.newSubscriber(t, 0)
	_, _, err := readSegment(t, sub)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return f.relay.Count(http.MethodGet, trickle.SegmentURL(testStream, 1)) == 1
	}, waitTimeout, waitTick)

	next := make(chan error, 1)
	go func() {
		_, err := sub.Next(context.Background())
		next <- err
	}()
	// Let Next take preconnected request before close aborts it.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, sub.Close())
	select {
	case err := <-next:
		assert.Equal(t, trickle.ErrClosed, err)
	case <-time.After(waitTimeout):
		t.Fatal("Next should return after Close")
	}
	require.NoError(t, pub.Close())
}
