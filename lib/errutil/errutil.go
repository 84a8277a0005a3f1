// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package errutil

import (
	"context"
	"errors"

	"github.com/hashicorp/go-multierror"
	pkgerrors "github.com/pkg/errors"
)

type StackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// Join returns nil if both errors are nil, the non-nil one if only one is,
// and multierror otherwise.
func Join(err1, err2 error) error {
	switch {
	case err1 == nil:
		return err2
	case err2 == nil:
		return err1
	default:
		return multierror.Append(err1, err2)
	}
}

// IsCtxError checks that err is nothing to report: nil, or caused by ctx cancel.
func IsCtxError(ctx context.Context, err error) bool {
	if err == nil {
		return true
	}
	ctxErr := ctx.Err()
	if ctxErr == nil {
		return false
	}
	return errors.Is(err, ctxErr) || pkgerrors.Cause(err) == ctxErr
}
