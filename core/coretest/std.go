// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

// Package coretest contains assertions shared by core extension tests.
package coretest

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yandex/trickle/core"
)

const testdata = "abcd"

// AssertSinkEqualStdStream checks that sink writes to *expectedPtr std stream and doesn't close it.
func AssertSinkEqualStdStream(t *testing.T, expectedPtr **os.File, getSink func() core.DataSink) {
	temp := replaceStdStream(t, expectedPtr)

	wc, err := getSink().OpenSink()
	require.NoError(t, err)
	_, err = io.WriteString(wc, testdata)
	require.NoError(t, err)
	require.NoError(t, wc.Close())

	_, err = io.WriteString(temp, "!")
	require.NoError(t, err, "std stream should not be closed")
	_, _ = temp.Seek(0, io.SeekStart)
	data, _ := io.ReadAll(temp)
	assert.Equal(t, testdata+"!", string(data))
}

// AssertSourceEqualStdStream checks that source reads *expectedPtr std stream and doesn't close it.
func AssertSourceEqualStdStream(t *testing.T, expectedPtr **os.File, getSource func() core.DataSource) {
	temp := replaceStdStream(t, expectedPtr)
	_, err := io.WriteString(temp, testdata)
	require.NoError(t, err)
	_, _ = temp.Seek(0, io.SeekStart)

	rc, err := getSource().OpenSource()
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, testdata, string(data))
	require.NoError(t, rc.Close())

	_, err = temp.Seek(0, io.SeekStart)
	require.NoError(t, err, "std stream should not be closed")
}

func replaceStdStream(t *testing.T, ptr **os.File) *os.File {
	temp, err := os.CreateTemp(t.TempDir(), "std")
	require.NoError(t, err)
	backup := *ptr
	*ptr = temp
	t.Cleanup(func() {
		*ptr = backup
		_ = temp.Close()
	})
	return temp
}
