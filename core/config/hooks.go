// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"reflect"
	"regexp"
	"strings"

	"github.com/asaskevich/govalidator"
	"github.com/c2h5oh/datasize"
	"github.com/facebookgo/stack"
	"github.com/facebookgo/stackerr"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap/zapcore"
)

// Debug enables decode tracing to stdout. Set by TRICKLE_CONFIG_DEBUG env.
var Debug = os.Getenv("TRICKLE_CONFIG_DEBUG") != ""

var InvalidURLError = errors.New("string is not valid URL")

var (
	// StringToURLHook converts string to url.URL or *url.URL.
	StringToURLHook = stringHook(parseURL, reflect.TypeOf(&url.URL{}), reflect.TypeOf(url.URL{}))
	// StringToDataSizeHook converts string like "16KB" to datasize.ByteSize.
	StringToDataSizeHook = stringHook(parseDataSize, reflect.TypeOf(datasize.B))
	// StringToLevelHook converts string like "debug" to zapcore.Level.
	StringToLevelHook = stringHook(parseLevel, reflect.TypeOf(zapcore.InfoLevel))
)

// stringHook returns hook converting strings to one of types by parse.
func stringHook(parse func(s string, to reflect.Type) (interface{}, error), types ...reflect.Type) mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		for _, typ := range types {
			if t == typ {
				return parse(data.(string), t)
			}
		}
		return data, nil
	}
}

func parseURL(s string, to reflect.Type) (interface{}, error) {
	// govalidator is stricter than url.Parse: requires host, rejects spaces.
	if !govalidator.IsURL(s) {
		return nil, stackerr.Wrap(InvalidURLError)
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, stackerr.Wrap(err)
	}
	if to.Kind() == reflect.Ptr {
		return u, nil
	}
	return *u, nil
}

func parseDataSize(s string, _ reflect.Type) (interface{}, error) {
	var size datasize.ByteSize
	err := size.UnmarshalText([]byte(s))
	return size, stackerr.Wrap(err)
}

func parseLevel(s string, _ reflect.Type) (interface{}, error) {
	var level zapcore.Level
	err := level.UnmarshalText([]byte(s))
	return level, stackerr.Wrap(err)
}

var envVariable = regexp.MustCompile(`\$\{env:([A-Za-z_][A-Za-z0-9_]*)\}`)

// VariableInjectHook replaces ${env:NAME} in strings with NAME environment variable value.
// Unset variable is an error.
func VariableInjectHook(f reflect.Type, _ reflect.Type, data interface{}) (interface{}, error) {
	if f.Kind() != reflect.String {
		return data, nil
	}
	var missing []string
	injected := envVariable.ReplaceAllStringFunc(data.(string), func(match string) string {
		name := envVariable.FindStringSubmatch(match)[1]
		value, ok := os.LookupEnv(name)
		if !ok {
			missing = append(missing, name)
		}
		return value
	})
	if len(missing) > 0 {
		return nil, stackerr.Newf("environment variables are not set: %s", strings.Join(missing, ", "))
	}
	return injected, nil
}

// DebugHook prints every decoded value, indented by nesting depth.
func DebugHook(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
	if !Debug {
		return data, nil
	}
	var depth int
	for _, frame := range stack.Callers(2) {
		if frame.Name == "(*Decoder).decode" {
			depth++
		}
	}
	fmt.Printf("%s%s from %s: %v\n", strings.Repeat("  ", depth), t, f, data)
	return data, nil
}
