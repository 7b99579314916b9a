/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package assert

import (
	"fmt"

	"github.com/stretchr/testify/assert"
)

// panicker turns a failed assertion into a panic, which the view manager
// reports back to the caller of the view as an error.
// Functions passed among msgAndArgs are invoked before panicking.
type panicker struct {
	releasers []func()
}

func (p *panicker) Errorf(format string, args ...interface{}) {
	for _, release := range p.releasers {
		release()
	}
	panic(fmt.Sprintf(format, args...))
}

func NotNil(object interface{}, msgAndArgs ...interface{}) {
	p, ma := newPanicker(msgAndArgs...)
	assert.NotNil(p, object, ma...)
}

// NoError checks that the passed error is nil, it panics otherwise
func NoError(err error, msgAndArgs ...interface{}) {
	p, ma := newPanicker(msgAndArgs...)
	assert.NoError(p, err, ma...)
}

// Equal checks that actual is as expected, it panics otherwise
func Equal(expected, actual interface{}, msgAndArgs ...interface{}) {
	p, ma := newPanicker(msgAndArgs...)
	assert.Equal(p, expected, actual, ma...)
}

func True(value bool, msgAndArgs ...interface{}) {
	p, ma := newPanicker(msgAndArgs...)
	assert.True(p, value, ma...)
}

func Fail(failureMessage string, msgAndArgs ...interface{}) {
	p, ma := newPanicker(msgAndArgs...)
	assert.Fail(p, failureMessage, ma...)
}

func newPanicker(msgAndArgs ...interface{}) (*panicker, []interface{}) {
	p := &panicker{}
	var output []interface{}
	for _, arg := range msgAndArgs {
		if release, ok := arg.(func()); ok {
			p.releasers = append(p.releasers, release)
			continue
		}
		output = append(output, arg)
	}
	return p, output
}
