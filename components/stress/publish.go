// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package stress

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math/rand"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yandex/trickle/core"
	"github.com/yandex/trickle/core/coreutil"
	"github.com/yandex/trickle/core/schedule"
	"github.com/yandex/trickle/core/trickle"
	"github.com/yandex/trickle/lib/errutil"
)

const (
	DefaultPublishers      = 25
	DefaultSegments        = 2000
	DefaultSegmentSize     = 588_576 * datasize.B
	DefaultChunkSize       = 16 * datasize.KB
	DefaultSegmentDuration = 2 * time.Second
	DefaultStartJitter     = 2 * time.Second
	PayloadMimeType        = "application/octet-stream"
)

type PublishConfig struct {
	CommonConfig `config:",squash"`
	Segments     int `config:"segments" validate:"min=1"`
	// SegmentSize is rounded down to whole number of chunks.
	SegmentSize datasize.ByteSize `config:"segment-size" validate:"min-size=1B"`
	ChunkSize   datasize.ByteSize `config:"chunk-size" validate:"min-size=1B"`
	// SegmentDuration is time segment chunks are spread over.
	SegmentDuration time.Duration `config:"segment-duration"`
	// StartJitter is maximum random delay of publisher start.
	StartJitter    time.Duration `config:"start-jitter"`
	ChunkQueueSize int           `config:"chunk-queue-size" validate:"min=0"`
	// Create announces streams before publish. Relay may create stream on first segment.
	Create bool `config:"create"`
}

func DefaultPublishConfig() PublishConfig {
	conf := PublishConfig{
		CommonConfig:    DefaultCommonConfig(),
		Segments:        DefaultSegments,
		SegmentSize:     DefaultSegmentSize,
		ChunkSize:       DefaultChunkSize,
		SegmentDuration: DefaultSegmentDuration,
		StartJitter:     DefaultStartJitter,
		ChunkQueueSize:  trickle.DefaultChunkQueueSize,
	}
	conf.Count = DefaultPublishers
	return conf
}

func (c PublishConfig) chunks() int {
	n := int(c.SegmentSize / c.ChunkSize)
	if n < 1 {
		return 1
	}
	return n
}

// Publishers publish Count streams of random payload concurrently.
// Every finished segment is reported to aggregator with its SHA-256.
type Publishers struct {
	conf    PublishConfig
	log     *zap.Logger
	metrics trickle.Metrics
	agg     core.Aggregator
}

func NewPublishers(conf PublishConfig, log *zap.Logger, m trickle.Metrics, agg core.Aggregator) *Publishers {
	return &Publishers{conf: conf, log: log, metrics: m, agg: agg}
}

// Run blocks until all publishers finish or context cancel.
// Returns the first publisher error, or aggregator error.
func (p *Publishers) Run(ctx context.Context) error {
	aggCtx, aggCancel := context.WithCancel(context.Background())
	defer aggCancel()
	aggErr := make(chan error, 1)
	go func() {
		aggErr <- p.agg.Run(aggCtx, core.AggregatorDeps{Log: p.log.Named("aggregator")})
	}()

	p.conf.warmUp(ctx, p.log)
	nextClient, release, err := p.conf.clients()
	if err != nil {
		aggCancel()
		return errutil.Join(err, <-aggErr)
	}
	defer release()

	chunks := p.conf.chunks()
	p.log.Info("Publishers started",
		zap.Int("count", p.conf.Count), zap.Int("segments", p.conf.Segments),
		zap.Int("chunks", chunks), zap.Stringer("chunk-size", p.conf.ChunkSize))
	var g errgroup.Group
	for i := 0; i < p.conf.Count; i++ {
		idx := i
		client := nextClient()
		g.Go(func() error {
			return p.publish(ctx, idx, client)
		})
	}
	err = g.Wait()
	p.log.Info("Publishers finished")
	aggCancel()
	return errutil.Join(err, <-aggErr)
}

func (p *Publishers) publish(ctx context.Context, idx int, client trickle.Client) error {
	conf := trickle.PublisherConfig{
		URL:            StreamURL(p.conf.URL, p.conf.Stream, idx),
		MimeType:       PayloadMimeType,
		ChunkQueueSize: p.conf.ChunkQueueSize,
		Client:         p.conf.Client,
	}
	log := p.log.With(zap.Int("idx", idx))
	pub := trickle.NewPublisherWithClient(conf, client, log, p.metrics)
	defer pub.Close()

	rnd := rand.New(rand.NewSource(time.Now().UnixNano() + int64(idx)))
	if p.conf.StartJitter > 0 {
		jitter := time.Duration(rnd.Int63n(int64(p.conf.StartJitter)))
		if !coreutil.Sleep(ctx, jitter) {
			return nil
		}
	}
	if p.conf.Create {
		if err := pub.Create(ctx); err != nil {
			return errors.WithMessagef(err, "stream %s", conf.URL)
		}
	}

	chunks := p.conf.chunks()
	interval := p.conf.SegmentDuration / time.Duration(chunks)
	chunk := make([]byte, p.conf.ChunkSize.Bytes())
	for i := 0; i < p.conf.Segments; i++ {
		w, err := pub.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error("Segment connect failed", zap.Error(err))
			return errors.WithMessagef(err, "stream %s", conf.URL)
		}
		hasher := sha256.New()
		var written int64
		waiter := coreutil.NewWaiter(schedule.NewConst(interval, int64(chunks)))
		for waiter.Wait(ctx) {
			_, _ = rnd.Read(chunk)
			n, err := w.WriteContext(ctx, chunk)
			_, _ = hasher.Write(chunk[:n])
			written += int64(n)
			if err != nil {
				break
			}
		}
		_ = w.Close()
		if ctx.Err() != nil {
			return nil
		}
		sample := Sample{
			Time:   time.Now(),
			ID:     SegmentID(idx, w.Seq()),
			SHA256: hex.EncodeToString(hasher.Sum(nil)),
			Bytes:  written,
		}
		p.agg.Report(sample)
		log.Debug("Segment published", zap.String("id", sample.ID), zap.String("sha256", sample.SHA256))
	}
	return nil
}
