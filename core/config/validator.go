// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/c2h5oh/datasize"
	"github.com/pkg/errors"
	"gopkg.in/bluesuncorp/validator.v9"

	"github.com/yandex/trickle/lib/zaputil"
)

// Custom validation tags. Bound tags take parameter: `validate:"min-time=1s,max-size=1MB"`.
var validations = map[string]validator.Func{
	"min-time": durationBound(func(actual, bound time.Duration) bool { return actual >= bound }),
	"max-time": durationBound(func(actual, bound time.Duration) bool { return actual <= bound }),
	"min-size": sizeBound(func(actual, bound datasize.ByteSize) bool { return actual >= bound }),
	"max-size": sizeBound(func(actual, bound datasize.ByteSize) bool { return actual <= bound }),

	"endpoint":    stringValidation(IsEndpoint),
	"stream-url":  stringValidation(IsStreamURL),
	"seq-pattern": stringValidation(IsSeqPattern),
	"log-format":  stringValidation(zaputil.IsFormat),
}

var defaultValidator = newValidator()

// Validate checks `validate:""` tags of struct value, including nested structs.
func Validate(value interface{}) error {
	return errors.WithStack(defaultValidator.Struct(value))
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("validate")
	for tag, fn := range validations {
		err := v.RegisterValidation(tag, fn)
		if err != nil {
			panic(err)
		}
	}
	return v
}

func stringValidation(valid func(string) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		s, ok := fl.Field().Interface().(string)
		return ok && valid(s)
	}
}

func durationBound(cmp func(actual, bound time.Duration) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		bound, err := time.ParseDuration(fl.Param())
		if err != nil {
			return false
		}
		actual, ok := fl.Field().Interface().(time.Duration)
		return ok && cmp(actual, bound)
	}
}

func sizeBound(cmp func(actual, bound datasize.ByteSize) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		var bound datasize.ByteSize
		if err := bound.UnmarshalText([]byte(fl.Param())); err != nil {
			return false
		}
		actual, ok := fl.Field().Interface().(datasize.ByteSize)
		return ok && cmp(actual, bound)
	}
}

// IsEndpoint accepts "host:port" or ":port".
func IsEndpoint(s string) bool {
	host, port, err := net.SplitHostPort(s)
	return err == nil &&
		(host == "" || govalidator.IsHost(host)) &&
		govalidator.IsPort(port)
}

// IsStreamURL accepts absolute http or https URL without query and fragment.
// Segment URLs are built by appending sequence number to its path.
func IsStreamURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.RawQuery == "" && u.Fragment == "" && !strings.HasSuffix(s, "?")
}

// IsSeqPattern accepts fmt format with exactly one integer verb, and no other verbs.
func IsSeqPattern(s string) bool {
	if strings.Count(strings.ReplaceAll(s, "%%", ""), "%") != 1 {
		return false
	}
	formatted := fmt.Sprintf(s, 42)
	return !strings.Contains(formatted, "%!") && strings.Contains(formatted, "42")
}
