// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package ioutil2

import "io"

// NopCloser may be embedded to any struct to implement io.Closer doing nothing on close.
type NopCloser struct{}

func (NopCloser) Close() error { return nil }

// NopWriteCloser returns io.WriteCloser that doesn't close w.
func NopWriteCloser(w io.Writer) io.WriteCloser {
	return struct {
		io.Writer
		NopCloser
	}{Writer: w}
}

// MultiWriteCloser writes to all writers and closes all of them.
// Close returns the first error.
func MultiWriteCloser(wcs ...io.WriteCloser) io.WriteCloser {
	writers := make([]io.Writer, len(wcs))
	for i, wc := range wcs {
		writers[i] = wc
	}
	return struct {
		io.Writer
		io.Closer
	}{
		Writer: io.MultiWriter(writers...),
		Closer: CloserFunc(func() (err error) {
			for _, wc := range wcs {
				if closeErr := wc.Close(); err == nil {
					err = closeErr
				}
			}
			return
		}),
	}
}
