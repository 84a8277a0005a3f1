// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package coretest

import (
	"io"

	"github.com/yandex/trickle/core"
)

// SinkFunc is core.DataSink opened by calling it.
type SinkFunc func() (io.WriteCloser, error)

func (f SinkFunc) OpenSink() (io.WriteCloser, error) { return f() }

var _ core.DataSink = SinkFunc(nil)
