// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

// Package repeater publishes the same still image as every segment at fixed
// frame rate, optionally reading some stream back at the same time.
package repeater

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yandex/trickle/components/follow"
	"github.com/yandex/trickle/core"
	"github.com/yandex/trickle/core/coreutil"
	"github.com/yandex/trickle/core/datasource"
	"github.com/yandex/trickle/core/schedule"
	"github.com/yandex/trickle/core/trickle"
)

const (
	DefaultFPS      = 30
	DefaultMimeType = "image/jpeg"
)

type Config struct {
	Publish trickle.PublisherConfig `config:"publish"`
	// Subscribe is read in parallel, if URL is set.
	Subscribe trickle.SubscriberConfig `config:"subscribe" validate:"-"`
	// Frames is schedule of published frames: Ops frames per second, Count frames total.
	// Zero Count and Duration publish frames until cancel.
	Frames schedule.ConstConfig `config:"frames"`
	Image  core.DataSource      `config:"-"`
}

func DefaultConfig() Config {
	conf := Config{
		Publish:   trickle.DefaultPublisherConfig(),
		Subscribe: trickle.DefaultSubscriberConfig(),
		Frames:    schedule.ConstConfig{Ops: DefaultFPS, Count: DefaultFPS},
	}
	conf.Publish.MimeType = DefaultMimeType
	conf.Subscribe.StartSeq = 0
	return conf
}

type Repeater struct {
	conf       Config
	log        *zap.Logger
	pubMetrics trickle.Metrics
	subMetrics trickle.Metrics
}

func New(conf Config, log *zap.Logger, pubMetrics, subMetrics trickle.Metrics) *Repeater {
	return &Repeater{conf: conf, log: log, pubMetrics: pubMetrics, subMetrics: subMetrics}
}

// Run publishes all frames, and waits for subscribed stream end, if any.
func (r *Repeater) Run(ctx context.Context) error {
	if r.conf.Image == nil {
		return errors.New("image source is not set")
	}
	image, err := datasource.ReadAll(r.conf.Image)
	if err != nil {
		return errors.WithMessage(err, "image read failed")
	}
	pub, err := trickle.NewPublisher(r.conf.Publish, r.log.Named("publisher"), r.pubMetrics)
	if err != nil {
		return err
	}
	if err := pub.Create(ctx); err != nil {
		_ = pub.Close()
		return err
	}
	var sub *trickle.Subscriber
	if r.conf.Subscribe.URL != "" {
		sub, err = trickle.NewSubscriber(r.conf.Subscribe, r.log.Named("subscriber"), r.subMetrics)
		if err != nil {
			_ = pub.Close()
			return err
		}
		defer sub.Close()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer pub.Close()
		return r.publish(ctx, pub, image)
	})
	if sub != nil {
		g.Go(func() error {
			return r.subscribe(ctx, sub)
		})
	}
	return g.Wait()
}

func (r *Repeater) publish(ctx context.Context, pub *trickle.Publisher, image []byte) error {
	waiter := coreutil.NewWaiter(schedule.NewConstConf(r.conf.Frames))
	var frames int
	for waiter.Wait(ctx) {
		w, err := pub.Next(ctx)
		if err != nil {
			// Sequence number is not consumed, so stream stays consistent.
			r.log.Error("Frame publish failed", zap.Error(err))
			return nil
		}
		_, err = w.WriteContext(ctx, image)
		_ = w.Close()
		if err != nil {
			r.log.Error("Frame write failed", zap.Int("seq", w.Seq()), zap.Error(err))
			return nil
		}
		frames++
	}
	r.log.Info("Frames published", zap.Int("frames", frames))
	return nil
}

func (r *Repeater) subscribe(ctx context.Context, sub *trickle.Subscriber) error {
	return follow.Stream(ctx, sub, r.log, func(_ context.Context, seg *trickle.SegmentReader) error {
		n, err := io.Copy(io.Discard, seg)
		if err != nil {
			return err
		}
		r.log.Info("Got segment", zap.Int("seq", seg.Seq()), zap.Int64("bytes", n))
		return nil
	})
}
