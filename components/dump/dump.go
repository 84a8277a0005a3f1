// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

// Package dump writes stream segments to separate files and/or a single pipe.
package dump

import (
	"context"
	"io"

	"github.com/c2h5oh/datasize"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/yandex/trickle/components/follow"
	"github.com/yandex/trickle/core"
	"github.com/yandex/trickle/core/datasink"
	"github.com/yandex/trickle/core/trickle"
	"github.com/yandex/trickle/lib/ioutil2"
)

type Config struct {
	Subscribe trickle.SubscriberConfig `config:"subscribe"`
	// Files enables writing of every segment to own file.
	Files      bool                        `config:"files"`
	Segments   datasink.SegmentFilesConfig `config:"segments"`
	BufferSize datasize.ByteSize           `config:"buffer-size" validate:"min-size=1B"`
	// Pipe is sink all segments are written to one after another. Optional.
	Pipe core.DataSink `config:"-"`
}

func DefaultConfig() Config {
	conf := Config{
		Subscribe:  trickle.DefaultSubscriberConfig(),
		Files:      true,
		Segments:   datasink.DefaultSegmentFilesConfig(),
		BufferSize: 32 * datasize.KB,
	}
	conf.Subscribe.StartSeq = 0
	return conf
}

type Dumper struct {
	conf  Config
	log   *zap.Logger
	files *datasink.SegmentFiles
	sub   *trickle.Subscriber
}

func New(fs afero.Fs, conf Config, log *zap.Logger, m trickle.Metrics) (*Dumper, error) {
	if !conf.Files && conf.Pipe == nil {
		return nil, errors.New("nothing to dump to: files are disabled and no pipe set")
	}
	sub, err := trickle.NewSubscriber(conf.Subscribe, log, m)
	if err != nil {
		return nil, err
	}
	return &Dumper{
		conf:  conf,
		log:   log,
		files: datasink.NewSegmentFiles(fs, conf.Segments),
		sub:   sub,
	}, nil
}

// Run dumps segments until stream end or context cancel.
func (d *Dumper) Run(ctx context.Context) (err error) {
	defer d.sub.Close()
	var pipe io.WriteCloser
	if d.conf.Pipe != nil {
		pipe, err = d.conf.Pipe.OpenSink()
		if err != nil {
			return errors.WithMessage(err, "pipe open failed")
		}
		defer func() {
			if closeErr := pipe.Close(); err == nil {
				err = closeErr
			}
		}()
	}
	buf := make([]byte, d.conf.BufferSize.Bytes())
	return follow.Stream(ctx, d.sub, d.log, func(ctx context.Context, r *trickle.SegmentReader) error {
		return d.dump(r, pipe, buf)
	})
}

func (d *Dumper) dump(r *trickle.SegmentReader, pipe io.WriteCloser, buf []byte) error {
	var outs []io.WriteCloser
	if d.conf.Files {
		f, err := d.files.OpenSegment(r.Seq())
		if err != nil {
			return errors.WithMessage(err, "segment file open failed")
		}
		outs = append(outs, f)
	}
	if pipe != nil {
		outs = append(outs, ioutil2.NopWriteCloser(pipe))
	}
	out := ioutil2.MultiWriteCloser(outs...)
	n, err := io.CopyBuffer(out, r, buf)
	closeErr := out.Close()
	if err != nil {
		return errors.WithMessage(err, "segment dump failed")
	}
	if closeErr != nil {
		return errors.WithStack(closeErr)
	}
	if d.conf.Files {
		d.log.Info("Segment written", zap.String("file", d.files.Name(r.Seq())), zap.Int64("bytes", n))
	} else {
		d.log.Debug("Segment written", zap.Int("seq", r.Seq()), zap.Int64("bytes", n))
	}
	return nil
}
