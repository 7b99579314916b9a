/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package sqlite

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/db/driver"
)

const (
	Persistence driver.PersistenceType = "sqlite"

	defaultMaxOpenConns = 10
	defaultTable        = "kvs"
)

func NewNamedDriver(opts driver.Opts) driver.NamedDriver {
	return driver.NamedDriver{Name: Persistence, Driver: NewDriver(opts)}
}

// Driver opens one table per name. With a Path, all tables live in Path/iou.sqlite,
// otherwise in the configured DataSource.
type Driver struct {
	opts driver.Opts
}

func NewDriver(opts driver.Opts) *Driver {
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = defaultMaxOpenConns
	}
	return &Driver{opts: opts}
}

func (d *Driver) New(name string) (driver.Persistence, error) {
	dataSource := d.opts.DataSource
	if len(dataSource) == 0 {
		if len(d.opts.Path) == 0 {
			return nil, errors.New("missing data source")
		}
		if err := os.MkdirAll(d.opts.Path, 0o755); err != nil {
			return nil, fmt.Errorf("failed creating directory [%s]: %w", d.opts.Path, err)
		}
		dataSource = "file:" + filepath.Join(d.opts.Path, "iou.sqlite")
	}
	return NewUnversioned(dataSource, d.opts.MaxOpenConns, d.opts.SkipPragmas, TableName(name))
}

// TableName turns a store name into a valid table name
func TableName(name string) string {
	if len(name) == 0 {
		return defaultTable
	}
	var b strings.Builder
	b.WriteString(defaultTable + "_")
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}
