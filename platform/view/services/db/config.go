/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package db

import (
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/db/driver"
	"github.com/pkg/errors"
)

// Config is the part of the configuration the driver options are read from
type Config interface {
	IsSet(key string) bool
	UnmarshalKey(key string, rawVal interface{}) error
	// TranslatePath resolves a path relative to the configuration file
	TranslatePath(path string) string
}

// LoadOpts reads the driver options stored under key. Unset options are zero.
func LoadOpts(c Config, key string) (driver.Opts, error) {
	opts := driver.Opts{}
	if !c.IsSet(key) {
		return opts, nil
	}
	if err := c.UnmarshalKey(key, &opts); err != nil {
		return opts, errors.WithMessagef(err, "failed loading persistence options [%s]", key)
	}
	if len(opts.Path) != 0 {
		opts.Path = c.TranslatePath(opts.Path)
	}
	return opts, nil
}
