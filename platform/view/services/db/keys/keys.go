/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package keys

import (
	"regexp"

	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/db/driver"
	"github.com/pkg/errors"
)

var nsRegexp = regexp.MustCompile("^[a-zA-Z0-9._-]{1,128}$")

const NamespaceSeparator = "\u0000"

func ValidateNs(ns string) error {
	if !nsRegexp.MatchString(ns) {
		return errors.Errorf("namespace '%s' is invalid", ns)
	}
	return nil
}

// DummyIterator iterates over a precomputed slice of reads
type DummyIterator struct {
	idx   int
	Items []*driver.Read
}

func (r *DummyIterator) Next() (*driver.Read, error) {
	if r.Items == nil || r.idx == len(r.Items) {
		return nil, nil
	}
	r.idx++
	return r.Items[r.idx-1], nil
}

func (r *DummyIterator) Close() {}
