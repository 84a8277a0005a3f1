// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

// Package echo subscribes to a stream and publishes it back segment by segment.
package echo

import (
	"context"
	"io"

	"github.com/c2h5oh/datasize"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/yandex/trickle/components/follow"
	"github.com/yandex/trickle/core/trickle"
)

type Config struct {
	Subscribe trickle.SubscriberConfig `config:"subscribe"`
	Publish   trickle.PublisherConfig  `config:"publish"`
	// BufferSize is size of chunks copied from input segment to output one.
	BufferSize datasize.ByteSize `config:"buffer-size" validate:"min-size=1B"`
}

func DefaultConfig() Config {
	conf := Config{
		Subscribe:  trickle.DefaultSubscriberConfig(),
		Publish:    trickle.DefaultPublisherConfig(),
		BufferSize: 32 * datasize.KB,
	}
	conf.Subscribe.StartSeq = 0
	return conf
}

type Echo struct {
	conf Config
	log  *zap.Logger
	sub  *trickle.Subscriber
	pub  *trickle.Publisher
}

func New(conf Config, log *zap.Logger, subMetrics, pubMetrics trickle.Metrics) (*Echo, error) {
	sub, err := trickle.NewSubscriber(conf.Subscribe, log.Named("subscriber"), subMetrics)
	if err != nil {
		return nil, errors.WithMessage(err, "subscriber create failed")
	}
	pub, err := trickle.NewPublisher(conf.Publish, log.Named("publisher"), pubMetrics)
	if err != nil {
		_ = sub.Close()
		return nil, errors.WithMessage(err, "publisher create failed")
	}
	return &Echo{conf: conf, log: log, sub: sub, pub: pub}, nil
}

// Run copies input segments to output stream until input end or context cancel.
// Output stream is closed on return.
func (e *Echo) Run(ctx context.Context) error {
	defer func() {
		_ = e.sub.Close()
		_ = e.pub.Close()
	}()
	e.log.Info("Echo started",
		zap.String("from", e.sub.URL()), zap.String("to", e.pub.URL()))
	buf := make([]byte, e.conf.BufferSize.Bytes())
	var segments int
	err := follow.Stream(ctx, e.sub, e.log, func(ctx context.Context, r *trickle.SegmentReader) error {
		segments++
		return e.echo(ctx, r, buf)
	})
	e.log.Info("Echo finished", zap.Int("segments", segments))
	return err
}

func (e *Echo) echo(ctx context.Context, r *trickle.SegmentReader, buf []byte) error {
	w, err := e.pub.Next(ctx)
	if err != nil {
		return err
	}
	n, err := io.CopyBuffer(contextWriter{ctx, w}, r, buf)
	closeErr := w.Close()
	if err != nil {
		return errors.WithMessage(err, "segment copy failed")
	}
	e.log.Debug("Segment echoed",
		zap.Int("in", r.Seq()), zap.Int("out", w.Seq()), zap.Int64("bytes", n))
	return closeErr
}

// contextWriter makes write of blocked segment cancelable.
type contextWriter struct {
	ctx context.Context
	w   *trickle.SegmentWriter
}

func (cw contextWriter) Write(p []byte) (int, error) {
	return cw.w.WriteContext(cw.ctx, p)
}
