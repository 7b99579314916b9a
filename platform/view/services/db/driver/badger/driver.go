/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package badger

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/db/driver"
	"github.com/pkg/errors"
)

const Persistence driver.PersistenceType = "badger"

func NewNamedDriver(opts driver.Opts) driver.NamedDriver {
	return driver.NamedDriver{Name: Persistence, Driver: NewDriver(opts)}
}

// Driver opens one badger database per name under the configured path.
// Badger locks its directory, so databases are shared by name.
type Driver struct {
	opts driver.Opts

	mutex sync.Mutex
	dbs   map[string]*DB
}

func NewDriver(opts driver.Opts) *Driver {
	return &Driver{opts: opts, dbs: map[string]*DB{}}
}

func (d *Driver) New(name string) (driver.Persistence, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if db, ok := d.dbs[name]; ok && !db.db.IsClosed() {
		return db, nil
	}
	path := ""
	if len(d.opts.Path) != 0 {
		path = filepath.Join(d.opts.Path, name)
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, errors.Wrapf(err, "failed creating directory [%s]", path)
		}
	}
	logger.Infof("opening badger at [%s]", path)
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	d.dbs[name] = db
	return db, nil
}
