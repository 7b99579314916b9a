/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package errors

import (
	"reflect"

	"github.com/pkg/errors"
)

// HasType recursively checks errors wrapped using Wrapf until it detects the target error type
func HasType(source, target error) bool {
	if source == nil || target == nil {
		return false
	}
	t := reflect.TypeOf(target)
	for err := source; err != nil; err = errors.Unwrap(err) {
		if reflect.TypeOf(err) == t {
			return true
		}
	}
	return false
}

// HasCause recursively checks errors wrapped using Wrapf until it detects the target error
func HasCause(source, target error) bool {
	return source != nil && target != nil && errors.Is(source, target)
}

// HasAnyCause returns true if source wraps at least one of the targets
func HasAnyCause(source error, targets ...error) bool {
	for _, target := range targets {
		if HasCause(source, target) {
			return true
		}
	}
	return false
}

// Wrapf wraps an error in a way compatible with HasCause
func Wrapf(err error, format string, args ...any) error {
	return errors.Wrapf(err, format, args...)
}

func Errorf(format string, args ...any) error {
	return errors.Errorf(format, args...)
}
