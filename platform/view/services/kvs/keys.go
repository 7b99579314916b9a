/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package kvs

import (
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// A composite key is namespace, object type and attributes, each followed by separator.
// Keys sharing a prefix of attributes are contiguous, a range scan up to the prefix
// followed by maxRune visits them all.
const (
	compositeKeyNamespace = "\x00"
	separator             = rune(0)
	maxRune               = utf8.MaxRune
)

func CreateCompositeKey(objectType string, attributes []string) (string, error) {
	var sb strings.Builder
	sb.WriteString(compositeKeyNamespace)
	for _, component := range append([]string{objectType}, attributes...) {
		if err := validateComponent(component); err != nil {
			return "", err
		}
		sb.WriteString(component)
		sb.WriteRune(separator)
	}
	return sb.String(), nil
}

func CreateCompositeKeyOrPanic(objectType string, attributes []string) string {
	k, err := CreateCompositeKey(objectType, attributes)
	if err != nil {
		panic(err)
	}
	return k
}

// CreateRangeKeysForPartialCompositeKey returns the scan range covering every key
// whose leading attributes are the passed ones
func CreateRangeKeysForPartialCompositeKey(objectType string, attributes []string) (string, string, error) {
	prefix, err := CreateCompositeKey(objectType, attributes)
	if err != nil {
		return "", "", err
	}
	return prefix, prefix + string(maxRune), nil
}

// SplitCompositeKey returns the object type and the attributes of a composite key
func SplitCompositeKey(compositeKey string) (string, []string, error) {
	if !strings.HasPrefix(compositeKey, compositeKeyNamespace) || !strings.HasSuffix(compositeKey, string(separator)) || len(compositeKey) < 2 {
		return "", nil, errors.Errorf("[%s] is not a composite key", compositeKey)
	}
	components := strings.Split(compositeKey[1:len(compositeKey)-1], string(separator))
	return components[0], components[1:], nil
}

func validateComponent(s string) error {
	if !utf8.ValidString(s) {
		return errors.Errorf("not a valid utf8 string: [%x]", s)
	}
	if i := strings.IndexFunc(s, func(r rune) bool { return r == separator || r == maxRune }); i >= 0 {
		return errors.Errorf("composite key component [%q] contains a reserved rune at position [%d]", s, i)
	}
	return nil
}
