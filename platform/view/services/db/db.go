/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package db

import (
	"github.com/hyperledger-labs/iou-smart-client/platform/common/services/logging"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/db/driver"
	"github.com/pkg/errors"
)

var logger = logging.MustGetLogger("view.db")

// Drivers selects a driver by persistence type among the ones passed at startup
type Drivers struct {
	drivers map[driver.PersistenceType]driver.Driver
}

func NewDrivers(drivers ...driver.NamedDriver) *Drivers {
	m := make(map[driver.PersistenceType]driver.Driver, len(drivers))
	for _, d := range drivers {
		m[d.Name] = d.Driver
	}
	return &Drivers{drivers: m}
}

// Open returns the store with the passed name using the driver registered for the passed type
func (d *Drivers) Open(persistenceType driver.PersistenceType, name string) (driver.Persistence, error) {
	dr, ok := d.drivers[persistenceType]
	if !ok {
		return nil, errors.Errorf("invalid persistence type [%s]", persistenceType)
	}
	logger.Debugf("opening [%s] store [%s]", persistenceType, name)
	p, err := dr.New(name)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed opening [%s] store [%s]", persistenceType, name)
	}
	return p, nil
}
