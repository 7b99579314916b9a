/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package viperutil

import (
	"os"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnhancedExactUnmarshal decodes the value under key into output, a pointer.
// Besides weakly typed input it accepts durations as strings ("30s"),
// string lists as "[a, b]" and strings as {file: path} references.
func EnhancedExactUnmarshal(v *viper.Viper, key string, output interface{}) error {
	if t := reflect.TypeOf(output); t == nil || t.Kind() != reflect.Ptr {
		return errors.Errorf("cannot unmarshal [%s] into a non pointer [%T]", key, output)
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           output,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			bracketedListHook,
			fileReferenceHook,
		),
	})
	if err != nil {
		return errors.Wrap(err, "failed creating decoder")
	}
	return errors.Wrapf(decoder.Decode(v.Get(key)), "failed decoding [%s]", key)
}

// bracketedListHook turns env style lists such as "[alice, bob]" into string slices
func bracketedListHook(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
	if f.Kind() != reflect.String || t.Kind() != reflect.Slice {
		return data, nil
	}
	raw := strings.TrimSpace(data.(string))
	if !strings.HasPrefix(raw, "[") || !strings.HasSuffix(raw, "]") || len(raw) < 2 {
		return data, nil
	}
	items := strings.Split(raw[1:len(raw)-1], ",")
	for i := range items {
		items[i] = strings.TrimSpace(items[i])
	}
	return items, nil
}

// fileReferenceHook replaces a {file: path} map with the content of path when a string is expected
func fileReferenceHook(f reflect.Kind, t reflect.Kind, data interface{}) (interface{}, error) {
	if f != reflect.Map || t != reflect.String {
		return data, nil
	}
	m, ok := data.(map[string]interface{})
	if !ok {
		return data, nil
	}
	ref, ok := m["file"]
	if !ok {
		return data, nil
	}
	path, ok := ref.(string)
	if !ok || len(path) == 0 {
		return nil, errors.Errorf("invalid file reference [%v]", ref)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed reading [%s]", path)
	}
	return string(raw), nil
}
