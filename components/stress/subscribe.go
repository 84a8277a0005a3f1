// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package stress

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yandex/trickle/components/follow"
	"github.com/yandex/trickle/core"
	"github.com/yandex/trickle/core/trickle"
	"github.com/yandex/trickle/lib/errutil"
)

type SubscribeConfig struct {
	CommonConfig        `config:",squash"`
	StartSeq            int `config:"start-seq" validate:"min=-1"`
	ChunkQueueSize      int `config:"chunk-queue-size" validate:"min=0"`
	MaxPreconnectErrors int `config:"max-preconnect-errors" validate:"min=1"`
}

func DefaultSubscribeConfig() SubscribeConfig {
	return SubscribeConfig{
		CommonConfig:        DefaultCommonConfig(),
		StartSeq:            trickle.LatestSeq,
		ChunkQueueSize:      trickle.DefaultChunkQueueSize,
		MaxPreconnectErrors: trickle.DefaultMaxPreconnectErrors,
	}
}

// Subscribers read Count streams concurrently and report SHA-256 of every received segment.
type Subscribers struct {
	conf    SubscribeConfig
	log     *zap.Logger
	metrics trickle.Metrics
	agg     core.Aggregator
}

func NewSubscribers(conf SubscribeConfig, log *zap.Logger, m trickle.Metrics, agg core.Aggregator) *Subscribers {
	return &Subscribers{conf: conf, log: log, metrics: m, agg: agg}
}

// Run blocks until all streams end or context cancel.
func (s *Subscribers) Run(ctx context.Context) error {
	aggCtx, aggCancel := context.WithCancel(context.Background())
	defer aggCancel()
	aggErr := make(chan error, 1)
	go func() {
		aggErr <- s.agg.Run(aggCtx, core.AggregatorDeps{Log: s.log.Named("aggregator")})
	}()

	s.conf.warmUp(ctx, s.log)
	nextClient, release, err := s.conf.clients()
	if err != nil {
		aggCancel()
		return errutil.Join(err, <-aggErr)
	}
	defer release()

	var g errgroup.Group
	for i := 0; i < s.conf.Count; i++ {
		idx := i
		client := nextClient()
		g.Go(func() error {
			return s.subscribe(ctx, idx, client)
		})
	}
	err = g.Wait()
	s.log.Info("All subscribers completed")
	aggCancel()
	return errutil.Join(err, <-aggErr)
}

func (s *Subscribers) subscribe(ctx context.Context, idx int, client trickle.Client) error {
	conf := trickle.DefaultSubscriberConfig()
	conf.URL = StreamURL(s.conf.URL, s.conf.Stream, idx)
	conf.StartSeq = s.conf.StartSeq
	conf.ChunkQueueSize = s.conf.ChunkQueueSize
	conf.MaxPreconnectErrors = s.conf.MaxPreconnectErrors
	conf.Client = s.conf.Client
	log := s.log.With(zap.Int("idx", idx))
	sub := trickle.NewSubscriberWithClient(conf, client, log, s.metrics)
	defer sub.Close()

	err := follow.Stream(ctx, sub, log, func(_ context.Context, r *trickle.SegmentReader) error {
		hasher := sha256.New()
		n, err := io.Copy(hasher, r)
		if err != nil {
			return errors.WithMessage(err, "segment read failed")
		}
		sample := Sample{
			Time:   time.Now(),
			ID:     SegmentID(idx, r.Seq()),
			SHA256: hex.EncodeToString(hasher.Sum(nil)),
			Bytes:  n,
		}
		s.agg.Report(sample)
		log.Debug("Segment received", zap.String("id", sample.ID), zap.String("sha256", sample.SHA256))
		return nil
	})
	if err != nil {
		log.Error("Stream read failed", zap.Error(err))
	}
	return err
}
