// Copyright (c) 2024 Yandex LLC. All rights reserved.
// Use of this source code is governed by a MPL 2.0
// license that can be found in the LICENSE file.

package config

import (
	"encoding"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Encode returns config map of struct value, that can be decoded back into equal value.
// Used to print example configs.
func Encode(value interface{}) (map[string]interface{}, error) {
	v := reflect.Indirect(reflect.ValueOf(value))
	if v.Kind() != reflect.Struct {
		return nil, errors.Errorf("struct expected, got %T", value)
	}
	out := map[string]interface{}{}
	encodeStruct(v, out)
	return out, nil
}

func encodeStruct(v reflect.Value, out map[string]interface{}) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			continue
		}
		name, opts, _ := strings.Cut(field.Tag.Get(TagName), ",")
		if name == "-" {
			continue
		}
		fv := v.Field(i)
		if opts == "squash" {
			encodeStruct(fv, out)
			continue
		}
		if name == "" {
			name = field.Name
		}
		if encoded, ok := encodeValue(fv); ok {
			out[name] = encoded
		}
	}
}

func encodeValue(v reflect.Value) (interface{}, bool) {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, false
		}
	}
	switch val := v.Interface().(type) {
	case time.Duration:
		return val.String(), true
	case encoding.TextMarshaler:
		text, err := val.MarshalText()
		if err == nil {
			return string(text), true
		}
	case fmt.Stringer:
		if v.Kind() == reflect.Ptr {
			return val.String(), true
		}
	}
	v = reflect.Indirect(v)
	if v.Kind() == reflect.Struct {
		nested := map[string]interface{}{}
		encodeStruct(v, nested)
		return nested, true
	}
	return v.Interface(), true
}
