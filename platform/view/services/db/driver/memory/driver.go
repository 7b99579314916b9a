/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mem

import (
	"sync"

	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/db/driver"
)

const Persistence driver.PersistenceType = "memory"

func NewNamedDriver() driver.NamedDriver {
	return driver.NamedDriver{Name: Persistence, Driver: NewDriver()}
}

// Driver hands out one in-memory store per name, the same name returns the same store
type Driver struct {
	mutex sync.Mutex
	dbs   map[string]*DB
}

func NewDriver() *Driver {
	return &Driver{dbs: map[string]*DB{}}
}

func (d *Driver) New(name string) (driver.Persistence, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if db, ok := d.dbs[name]; ok && !db.isClosed() {
		return db, nil
	}
	db := New()
	d.dbs[name] = db
	return db, nil
}
