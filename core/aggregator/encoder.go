// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package aggregator

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/yandex/trickle/core"
	"github.com/yandex/trickle/lib/errutil"
)

// NewSampleEncoder creates encoder writing to w. onFlush is called on every
// write to w, that encoder does by itself, because of buffer overflow.
type NewSampleEncoder func(w io.Writer, onFlush func()) SampleEncoder

// SampleEncoder is buffered encoder of samples.
type SampleEncoder interface {
	Encode(s core.Sample) error
	// Flush writes buffered samples to wrapped io.Writer.
	Flush() error
}

type EncoderAggregatorConfig struct {
	Sink core.DataSink `config:"-"`
	// FlushInterval is max time encoded sample may stay in buffer. Zero disables periodic flush.
	FlushInterval  time.Duration  `config:"flush-interval"`
	ReporterConfig ReporterConfig `config:",squash"`
}

func DefaultEncoderAggregatorConfig() EncoderAggregatorConfig {
	return EncoderAggregatorConfig{
		FlushInterval:  time.Second,
		ReporterConfig: DefaultReporterConfig(),
	}
}

// NewEncoderAggregator returns aggregator that writes samples to conf.Sink with encoder.
// Samples reported before Run are written too.
func NewEncoderAggregator(newEncoder NewSampleEncoder, conf EncoderAggregatorConfig) core.Aggregator {
	return &sinkAggregator{
		Reporter:   NewReporter(conf.ReporterConfig),
		newEncoder: newEncoder,
		conf:       conf,
	}
}

type sinkAggregator struct {
	*Reporter
	newEncoder NewSampleEncoder
	conf       EncoderAggregatorConfig
}

func (a *sinkAggregator) Run(ctx context.Context, deps core.AggregatorDeps) (err error) {
	sink, err := a.conf.Sink.OpenSink()
	if err != nil {
		return err
	}
	var (
		written     int
		pending     int // Encoded since last flush.
		selfFlushed bool
	)
	enc := a.newEncoder(sink, func() { selfFlushed = true })
	defer func() {
		err = errutil.Join(err, errors.WithMessage(enc.Flush(), "final flush failed"))
		err = errutil.Join(err, sink.Close())
		err = errutil.Join(err, a.DroppedErr())
		deps.Log.Debug("Samples written", zap.Int("count", written), zap.Error(err))
	}()

	encode := func(s core.Sample) error {
		if err := enc.Encode(s); err != nil {
			return errors.WithMessage(err, "sample encode failed")
		}
		written++
		pending++
		return nil
	}

	var tick <-chan time.Time
	if a.conf.FlushInterval > 0 {
		ticker := time.NewTicker(a.conf.FlushInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case s := <-a.Incoming:
			if err := encode(s); err != nil {
				return err
			}
		case <-tick:
			if selfFlushed {
				// Encoder has written recently, most of pending samples are already in sink.
				selfFlushed = false
				continue
			}
			if pending == 0 {
				continue
			}
			if err := enc.Flush(); err != nil {
				return errors.WithMessage(err, "flush failed")
			}
			pending = 0
		case <-ctx.Done():
			return a.encodeQueued(encode)
		}
	}
}

// encodeQueued encodes samples that were reported before cancel.
func (a *sinkAggregator) encodeQueued(encode func(core.Sample) error) error {
	for {
		select {
		case s := <-a.Incoming:
			if err := encode(s); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}
