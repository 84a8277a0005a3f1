// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package datasink

import (
	"bytes"
	"io"
	"os"

	"github.com/spf13/afero"

	"github.com/yandex/trickle/core"
	"github.com/yandex/trickle/lib/ioutil2"
)

func NewStdout() core.DataSink {
	return hideCloseSink{os.Stdout}
}

func NewStderr() core.DataSink {
	return hideCloseSink{os.Stderr}
}

// NewWriter returns sink that writes to w and never closes it.
func NewWriter(w io.Writer) core.DataSink {
	return hideCloseSink{w}
}

type hideCloseSink struct{ w io.Writer }

func (s hideCloseSink) OpenSink() (io.WriteCloser, error) {
	return struct {
		io.Writer
		ioutil2.NopCloser
	}{Writer: s.w}, nil
}

type Buffer struct {
	bytes.Buffer
	ioutil2.NopCloser
}

var _ core.DataSink = &Buffer{}

func NewBuffer() *Buffer {
	return &Buffer{}
}

func (b *Buffer) OpenSink() (io.WriteCloser, error) {
	return b, nil
}

// Parse turns command line argument into sink: "-" or "stdout", "stderr", or file path.
func Parse(fs afero.Fs, arg string) core.DataSink {
	switch arg {
	case "", "-", "stdout":
		return NewStdout()
	case "stderr":
		return NewStderr()
	}
	return NewFile(fs, FileConfig{Path: arg})
}
