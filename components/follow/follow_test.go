// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package follow

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yandex/trickle/core/trickle"
	"github.com/yandex/trickle/core/trickle/trickletest"
	"github.com/yandex/trickle/lib/testutil"
)

const testStream = "/s1"

func startRelay(t *testing.T) (*trickletest.Relay, string) {
	relay := trickletest.NewRelay(zap.NewNop())
	server := httptest.NewServer(relay)
	t.Cleanup(func() {
		relay.Close()
		server.Close()
	})
	return relay, server.URL + testStream
}

func newPublisher(t *testing.T, url string) *trickle.Publisher {
	conf := trickle.DefaultPublisherConfig()
	conf.URL = url
	pub, err := trickle.NewPublisher(conf, zap.NewNop(), trickle.Metrics{})
	require.NoError(t, err)
	t.Cleanup(func() { pub.Close() })
	require.NoError(t, pub.Create(context.Background()))
	return pub
}

func newSubscriber(t *testing.T, url string) *trickle.Subscriber {
	conf := trickle.DefaultSubscriberConfig()
	conf.URL = url
	conf.StartSeq = 0
	sub, err := trickle.NewSubscriber(conf, zap.NewNop(), trickle.Metrics{})
	require.NoError(t, err)
	t.Cleanup(func() { sub.Close() })
	return sub
}

func publish(t *testing.T, pub *trickle.Publisher, data string) {
	w, err := pub.Next(context.Background())
	require.NoError(t, err)
	_, err = io.WriteString(w, data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestStream_UntilEOS(t *testing.T) {
	_, url := startRelay(t)
	pub := newPublisher(t, url)
	for _, data := range []string{"AAA", "BBB"} {
		publish(t, pub, data)
	}
	require.NoError(t, pub.Close())

	var got []string
	err := Stream(context.Background(), newSubscriber(t, url), zap.NewNop(), func(_ context.Context, r *trickle.SegmentReader) error {
		data, err := io.ReadAll(r)
		if len(data) > 0 {
			got = append(got, string(data))
		}
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB"}, got)
}

func TestStream_StreamNotFound(t *testing.T) {
	_, url := startRelay(t)
	err := Stream(context.Background(), newSubscriber(t, url), zap.NewNop(), func(context.Context, *trickle.SegmentReader) error {
		t.Fatal("no segments expected")
		return nil
	})
	assert.NoError(t, err)
}

func TestStream_HandleError(t *testing.T) {
	_, url := startRelay(t)
	pub := newPublisher(t, url)
	publish(t, pub, "AAA")

	failure := errors.New("disk full")
	err := Stream(context.Background(), newSubscriber(t, url), zap.NewNop(), func(context.Context, *trickle.SegmentReader) error {
		return failure
	})
	require.Error(t, err)
	assert.Equal(t, failure, errors.Cause(err))
	assert.Contains(t, err.Error(), "segment 0")
}

func TestStream_JumpsToLeadingEdge(t *testing.T) {
	relay, url := startRelay(t)
	relay.KeepSegments = 2
	pub := newPublisher(t, url)
	for _, data := range []string{"AAA", "BBB", "CCC", "DDD"} {
		publish(t, pub, data)
	}
	require.Eventually(t, func() bool {
		_, complete, _ := relay.Segment(testStream, 3)
		return complete
	}, 5*time.Second, 5*time.Millisecond)

	log, logs := testutil.NewObservedLogger()
	var seqs []int
	done := make(chan error)
	go func() {
		done <- Stream(context.Background(), newSubscriber(t, url), log, func(_ context.Context, r *trickle.SegmentReader) error {
			seqs = append(seqs, r.Seq())
			_, err := io.Copy(io.Discard, r)
			return err
		})
	}()
	require.Eventually(t, func() bool {
		return logs.FilterMessage("Segment doesn't exist, jumping to leading edge").Len() > 0
	}, 5*time.Second, 5*time.Millisecond)
	require.NoError(t, pub.Close())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("stream is not finished")
	}
	require.NotEmpty(t, seqs)
	assert.GreaterOrEqual(t, seqs[0], 3)
}

func TestStream_ContextCanceled(t *testing.T) {
	_, url := startRelay(t)
	newPublisher(t, url)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := Stream(ctx, newSubscriber(t, url), zap.NewNop(), func(context.Context, *trickle.SegmentReader) error {
		return nil
	})
	assert.NoError(t, err)
}
