// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package aggregator

import (
	"bufio"
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/yandex/trickle/core"
	"github.com/yandex/trickle/lib/ioutil2"
)

const DefaultBufferSize = 32 * 1024

type JSONLineAggregatorConfig struct {
	EncoderAggregatorConfig `config:",squash"`
	JSONLineEncoderConfig   `config:",squash"`
}

type JSONLineEncoderConfig struct {
	// MarshalFloatWith6Digits makes float marshalling faster.
	MarshalFloatWith6Digits bool `config:"marshal-float-with-6-digits"`
	BufferSize              int  `config:"buffer-size" validate:"min=0"`
}

func DefaultJSONLinesAggregatorConfig() JSONLineAggregatorConfig {
	return JSONLineAggregatorConfig{
		EncoderAggregatorConfig: DefaultEncoderAggregatorConfig(),
		JSONLineEncoderConfig:   JSONLineEncoderConfig{BufferSize: DefaultBufferSize},
	}
}

// NewJSONLinesAggregator aggregates samples in JSON Lines format: each output line is a valid JSON value of one sample.
// See http://jsonlines.org/ for details.
func NewJSONLinesAggregator(conf JSONLineAggregatorConfig) core.Aggregator {
	var newEncoder NewSampleEncoder = func(w io.Writer, onFlush func()) SampleEncoder {
		flushed := ioutil2.WriterFunc(func(p []byte) (int, error) {
			onFlush()
			return w.Write(p)
		})
		return NewJSONEncoder(flushed, conf.JSONLineEncoderConfig)
	}
	return NewEncoderAggregator(newEncoder, conf.EncoderAggregatorConfig)
}

func NewJSONEncoder(w io.Writer, conf JSONLineEncoderConfig) SampleEncoder {
	api := jsoniter.Config{
		EscapeHTML:              false,
		MarshalFloatWith6Digits: conf.MarshalFloatWith6Digits,
	}.Froze()
	size := conf.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	buf := bufio.NewWriterSize(w, size)
	stream := jsoniter.NewStream(api, buf, size)
	return &jsonEncoder{stream, buf}
}

type jsonEncoder struct {
	*jsoniter.Stream
	buf *bufio.Writer
}

func (e *jsonEncoder) Encode(s core.Sample) error {
	e.WriteVal(s)
	e.WriteRaw("\n")
	return e.Error
}

func (e *jsonEncoder) Flush() error {
	err := e.Stream.Flush()
	if err != nil {
		return err
	}
	return e.buf.Flush()
}
