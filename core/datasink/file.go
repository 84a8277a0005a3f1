// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package datasink

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/yandex/trickle/core"
)

type FileConfig struct {
	Path string `config:"path" validate:"required"`
}

// NewFile returns sink that truncates file on every open.
func NewFile(fs afero.Fs, conf FileConfig) core.DataSink {
	return &fileSink{afero.Afero{Fs: fs}, conf}
}

type fileSink struct {
	fs   afero.Afero
	conf FileConfig
}

func (s *fileSink) OpenSink() (io.WriteCloser, error) {
	if dir := filepath.Dir(s.conf.Path); dir != "." {
		if err := s.fs.MkdirAll(dir, 0755); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	f, err := s.fs.OpenFile(s.conf.Path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	return f, errors.WithStack(err)
}

const DefaultSegmentPattern = "read-%d.ts"

type SegmentFilesConfig struct {
	Dir string `config:"dir"`
	// Pattern is fmt format of segment file name with one integer verb for sequence number.
	Pattern string `config:"pattern" validate:"required,seq-pattern"`
}

func DefaultSegmentFilesConfig() SegmentFilesConfig {
	return SegmentFilesConfig{Pattern: DefaultSegmentPattern}
}

// SegmentFiles opens separate file for every segment.
type SegmentFiles struct {
	fs   afero.Fs
	conf SegmentFilesConfig
}

func NewSegmentFiles(fs afero.Fs, conf SegmentFilesConfig) *SegmentFiles {
	return &SegmentFiles{fs: fs, conf: conf}
}

func (s *SegmentFiles) Name(seq int) string {
	return filepath.Join(s.conf.Dir, fmt.Sprintf(s.conf.Pattern, seq))
}

func (s *SegmentFiles) Sink(seq int) core.DataSink {
	return NewFile(s.fs, FileConfig{Path: s.Name(seq)})
}

func (s *SegmentFiles) OpenSegment(seq int) (io.WriteCloser, error) {
	return s.Sink(seq).OpenSink()
}
