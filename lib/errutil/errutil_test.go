// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package errutil

import (
	"context"
	"errors"
	"fmt"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestJoin(t *testing.T) {
	upload := errors.New("segment upload failed")
	teardown := errors.New("stream delete failed")

	require.NoError(t, Join(nil, nil))
	require.Same(t, upload, Join(upload, nil))
	require.Same(t, teardown, Join(nil, teardown))

	joined := Join(upload, teardown)
	require.Equal(t, "2 errors occurred:\n\t* segment upload failed\n\t* stream delete failed\n\n", joined.Error())
	require.True(t, errors.Is(joined, teardown))

	again := Join(joined, errors.New("sink close failed"))
	require.Contains(t, again.Error(), "3 errors occurred")
}

func TestIsCtxError(t *testing.T) {
	canceledCtx, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name               string
		err                error
		wantCanceledCtx    bool
		wantNotCanceledCtx bool
	}{
		{
			name:               "nil error",
			wantCanceledCtx:    true,
			wantNotCanceledCtx: true,
		},
		{
			name:            "context error",
			err:             context.Canceled,
			wantCanceledCtx: true,
		},
		{
			name:            "caused by context error",
			err:             pkgerrors.Wrap(context.Canceled, "segment upload"),
			wantCanceledCtx: true,
		},
		{
			name:            "wrapped by fmt",
			err:             fmt.Errorf("segment upload: %w", context.Canceled),
			wantCanceledCtx: true,
		},
		{
			name: "usual error",
			err:  errors.New("connection reset"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.wantCanceledCtx, IsCtxError(canceledCtx, tt.err))
			require.Equal(t, tt.wantNotCanceledCtx, IsCtxError(context.Background(), tt.err))
		})
	}
}
