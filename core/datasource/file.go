// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package datasource

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/yandex/trickle/core"
	"github.com/yandex/trickle/lib/ioutil2"
)

type FileConfig struct {
	Path string `config:"path" validate:"required"`
}

func NewFile(fs afero.Fs, conf FileConfig) core.DataSource {
	return &fileSource{afero.Afero{Fs: fs}, conf}
}

type fileSource struct {
	fs   afero.Afero
	conf FileConfig
}

func (s *fileSource) OpenSource() (io.ReadCloser, error) {
	f, err := s.fs.Open(s.conf.Path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return f, nil
}

func NewStdin() core.DataSource {
	return NewReader(os.Stdin)
}

// NewReader returns source that returns r on every open and never closes it.
func NewReader(r io.Reader) core.DataSource {
	return readerSource{r}
}

type readerSource struct{ r io.Reader }

func (s readerSource) OpenSource() (io.ReadCloser, error) {
	return struct {
		io.Reader
		ioutil2.NopCloser
	}{Reader: s.r}, nil
}

func NewString(s string) core.DataSource {
	return stringSource(s)
}

type stringSource string

func (s stringSource) OpenSource() (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(string(s))), nil
}

// Parse turns command line argument into source: "-" or "stdin", or file path.
func Parse(fs afero.Fs, arg string) core.DataSource {
	switch arg {
	case "", "-", "stdin":
		return NewStdin()
	}
	return NewFile(fs, FileConfig{Path: arg})
}

// ReadAll reads whole source.
func ReadAll(s core.DataSource) ([]byte, error) {
	rc, err := s.OpenSource()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	return data, errors.WithStack(err)
}
