// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package stress

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yandex/trickle/core/aggregator"
	"github.com/yandex/trickle/core/datasink"
	"github.com/yandex/trickle/core/datasource"
	"github.com/yandex/trickle/core/trickle"
	"github.com/yandex/trickle/core/trickle/trickletest"
	"github.com/yandex/trickle/lib/monitoring"
)

func samplesOf(t *testing.T, agg *aggregator.Memory) map[string]Entry {
	entries := map[string]Entry{}
	for _, s := range agg.Samples() {
		sample, ok := s.(Sample)
		require.True(t, ok, "%T", s)
		entries[sample.ID] = Entry{Time: sample.Time, SHA256: sample.SHA256}
	}
	return entries
}

func TestPublishSubscribe(t *testing.T) {
	relay := trickletest.NewRelay(zap.NewNop())
	relay.KeepSegments = 100
	server := httptest.NewServer(relay)
	defer server.Close()
	defer relay.Close()

	pubConf := DefaultPublishConfig()
	pubConf.URL = server.URL
	pubConf.Stream = "stress"
	pubConf.Count = 2
	pubConf.SharedClients = 1
	pubConf.Segments = 3
	pubConf.SegmentSize = 40
	pubConf.ChunkSize = 16
	pubConf.SegmentDuration = 10 * time.Millisecond
	pubConf.StartJitter = 5 * time.Millisecond
	pubConf.Create = true
	pubSet := monitoring.NewLocalSet("publisher")
	pubAgg := aggregator.NewMemory()
	err := NewPublishers(pubConf, zap.NewNop(), trickle.NewMetrics(pubSet), pubAgg).Run(context.Background())
	require.NoError(t, err)

	published := samplesOf(t, pubAgg)
	require.Len(t, published, 6)
	for _, id := range []string{"00-0000", "00-0002", "01-0001"} {
		assert.Contains(t, published, id)
	}
	data, complete, ok := relay.Segment("/stress_1", 2)
	require.True(t, ok)
	assert.True(t, complete)
	assert.Len(t, data, 32, "segment is whole number of chunks")
	sum := sha256.Sum256(data)
	assert.Equal(t, hex.EncodeToString(sum[:]), published["01-0002"].SHA256, "sample hash covers bytes relay received")
	assert.EqualValues(t, 6*32, pubSet.Counter("Bytes").Get())

	subConf := DefaultSubscribeConfig()
	subConf.URL = server.URL
	subConf.Stream = "stress"
	subConf.Count = 2
	subConf.StartSeq = 0
	subAgg := aggregator.NewMemory()
	err = NewSubscribers(subConf, zap.NewNop(), trickle.Metrics{}, subAgg).Run(context.Background())
	require.NoError(t, err)

	received := samplesOf(t, subAgg)
	report := Compare(received, published)
	assert.Empty(t, report.Missing)
	require.Len(t, report.Streams, 2)
	for _, s := range report.Streams {
		assert.Equal(t, 3, s.Count)
		assert.Empty(t, s.Mismatches)
		assert.Greater(t, s.Median, 0.0, "subscriber read after publisher finished")
	}
}

func TestPublishers_StreamCreateFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no capacity", http.StatusServiceUnavailable)
	}))
	defer server.Close()
	conf := DefaultPublishConfig()
	conf.URL = server.URL
	conf.Create = true
	conf.Stream = "stress"
	conf.Count = 1
	conf.StartJitter = 0
	conf.Segments = 1
	conf.SegmentDuration = 0
	err := NewPublishers(conf, zap.NewNop(), trickle.Metrics{}, aggregator.NewDiscard()).Run(context.Background())
	assert.Error(t, err)
}

func TestSubscribers_SamplesToJSONLines(t *testing.T) {
	sink := datasink.NewBuffer()
	aggConf := aggregator.DefaultJSONLinesAggregatorConfig()
	aggConf.Sink = sink
	agg := aggregator.NewJSONLinesAggregator(aggConf)
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	agg.Report(Sample{Time: ts, ID: "00-0000", SHA256: "aa", Bytes: 3})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, agg.Run(ctx, defaultDeps()))

	entries, err := ReadSamples(strings.NewReader(sink.String()))
	require.NoError(t, err)
	require.Contains(t, entries, "00-0000")
	assert.True(t, ts.Equal(entries["00-0000"].Time))
	assert.Equal(t, "aa", entries["00-0000"].SHA256)

	_, err = CompareSources(datasource.NewString(sink.String()), datasource.NewString("{broken\n"))
	assert.Error(t, err)
}
