/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package utils

import (
	"math/rand"
	"time"

	"github.com/hyperledger-labs/iou-smart-client/platform/common/services/logging"
	"github.com/pkg/errors"
)

var logger = logging.MustGetLogger("utils.retry")

var ErrMaxRetriesExceeded = errors.New("maximum number of retries exceeded")

// RetryRunner calls a function until it reports completion or the attempts are over
type RetryRunner interface {
	Run(func() error) error
	RunWithErrors(runner func() (bool, error)) error
}

type retryRunner struct {
	maxTimes int
	// first returns the delay after the first failed attempt
	first      func() time.Duration
	expBackoff bool
}

// NewRetryRunner waits delay between attempts, doubling it every time with expBackoff
func NewRetryRunner(maxTimes int, delay time.Duration, expBackoff bool) *retryRunner {
	return &retryRunner{
		maxTimes:   maxTimes,
		first:      func() time.Duration { return delay },
		expBackoff: expBackoff,
	}
}

// NewProbabilisticRetryRunner draws the first delay uniformly in [1, interval] milliseconds,
// so that competing writers retrying the same key spread out
func NewProbabilisticRetryRunner(maxTimes int, interval int64, expBackoff bool) *retryRunner {
	return &retryRunner{
		maxTimes:   maxTimes,
		first:      func() time.Duration { return time.Duration(rand.Int63n(interval)+1) * time.Millisecond },
		expBackoff: expBackoff,
	}
}

func (f *retryRunner) Run(runner func() error) error {
	return f.RunWithErrors(func() (bool, error) {
		err := runner()
		return err == nil, err
	})
}

// RunWithErrors stops at the first attempt returning true and returns its error.
// After maxTimes attempts the last error, or ErrMaxRetriesExceeded, is returned.
func (f *retryRunner) RunWithErrors(runner func() (bool, error)) error {
	var last error
	delay := f.first()
	for attempt := 1; attempt <= f.maxTimes; attempt++ {
		done, err := runner()
		if done {
			return err
		}
		if err != nil {
			last = err
		}
		if attempt == f.maxTimes {
			break
		}
		logger.Debugf("attempt [%d/%d] failed, retrying in [%s]: %v", attempt, f.maxTimes, delay, last)
		time.Sleep(delay)
		if f.expBackoff {
			delay *= 2
		}
	}
	if last == nil {
		return ErrMaxRetriesExceeded
	}
	return errors.WithMessagef(last, "giving up after [%d] attempts", f.maxTimes)
}
