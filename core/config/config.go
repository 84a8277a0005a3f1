// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

// Package config decodes and validates component configs.
// Configs are decoded from map[string]interface{} produced by viper,
// using `config:""` field tags.
package config

import (
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

const TagName = "config"

// decodeHook is applied to every value before it is assigned to field.
// Env variables are injected first, so injected strings are converted too.
var decodeHook = mapstructure.ComposeDecodeHookFunc(
	VariableInjectHook,
	DebugHook,
	StringToLevelHook,
	mapstructure.StringToTimeDurationHookFunc(),
	StringToURLHook,
	StringToDataSizeHook,
)

// Decode decodes conf into result, that is pointer to config struct
// filled with defaults. Values absent in conf leave defaults untouched.
// Unknown keys and values of wrong type are errors.
func Decode(conf interface{}, result interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     TagName,
		DecodeHook:  decodeHook,
		ErrorUnused: true,
		Result:      result,
	})
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(decoder.Decode(conf))
}

func DecodeAndValidate(conf interface{}, result interface{}) error {
	if err := Decode(conf, result); err != nil {
		return err
	}
	return Validate(result)
}
