// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package testutil

import (
	"io"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ReadString(t TestingT, r io.Reader) string {
	helperOf(t)()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(data)
}

func ReadFileString(t TestingT, fs afero.Fs, name string) string {
	helperOf(t)()
	data, err := afero.ReadFile(fs, name)
	require.NoError(t, err)
	return string(data)
}

func AssertFileEqual(t TestingT, fs afero.Fs, name string, expected string) {
	helperOf(t)()
	assert.Equal(t, expected, ReadFileString(t, fs, name), "file %s", name)
}
