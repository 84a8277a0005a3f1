// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package ioutil2

// WriterFunc is io.Writer implemented by function.
type WriterFunc func(p []byte) (int, error)

func (f WriterFunc) Write(p []byte) (int, error) { return f(p) }

// CloserFunc is io.Closer implemented by function.
type CloserFunc func() error

func (f CloserFunc) Close() error { return f() }
