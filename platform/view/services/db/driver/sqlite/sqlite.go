/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/hyperledger-labs/iou-smart-client/platform/common/services/logging"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/db/driver"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/db/keys"
	"github.com/pkg/errors"
	"modernc.org/sqlite"
)

const sqlitePragmas = `
	PRAGMA journal_mode = WAL;
	PRAGMA busy_timeout = 5000;
	PRAGMA synchronous = NORMAL;
	PRAGMA cache_size = 1000000000;
	PRAGMA temp_store = memory;`

const driverName = "sqlite"

var logger = logging.MustGetLogger("view.db.driver.sqlite")

// Unversioned stores every namespace of a data source in one table
type Unversioned struct {
	readDB  *sql.DB
	writeDB *sql.DB
	table   string
}

// NewUnversioned opens the passed data source and creates the table if missing
func NewUnversioned(dataSource string, maxOpenConns int, skipPragmas bool, table string) (*Unversioned, error) {
	readDB, writeDB, err := openDB(dataSource, maxOpenConns, skipPragmas)
	if err != nil {
		return nil, fmt.Errorf("error opening db: %w", err)
	}
	db := &Unversioned{readDB: readDB, writeDB: writeDB, table: table}
	if err := db.CreateSchema(); err != nil {
		return nil, err
	}
	return db, nil
}

func (db *Unversioned) SetState(ns, key string, val []byte) error {
	return db.exec(func(tx *sql.Tx) error { return db.setState(tx, ns, key, val) })
}

func (db *Unversioned) DeleteState(ns, key string) error {
	return db.exec(func(tx *sql.Tx) error { return db.deleteState(tx, ns, key) })
}

func (db *Unversioned) GetState(ns, key string) ([]byte, error) {
	var val []byte

	query := fmt.Sprintf("SELECT val FROM %s WHERE ns = $1 AND pkey = $2", db.table)
	logger.Debug(query, ns, key)

	row := db.readDB.QueryRow(query, ns, []byte(key))
	if err := row.Scan(&val); err != nil {
		if err == sql.ErrNoRows {
			logger.Debugf("not found: [%s:%s]", ns, key)
			return nil, nil
		}
		return nil, fmt.Errorf("error querying db: %w", err)
	}
	return val, nil
}

func (db *Unversioned) GetStateSetIterator(ns string, ids ...string) (driver.ResultsIterator, error) {
	reads := make([]*driver.Read, len(ids))
	for i, key := range ids {
		raw, err := db.GetState(ns, key)
		if err != nil {
			return nil, err
		}
		reads[i] = &driver.Read{Key: key, Raw: raw}
	}
	return &keys.DummyIterator{Items: reads}, nil
}

func (db *Unversioned) GetStateRangeScanIterator(ns string, startKey string, endKey string) (driver.ResultsIterator, error) {
	where, args := rangeWhere(ns, startKey, endKey)
	query := fmt.Sprintf("SELECT pkey, val FROM %s WHERE ns = $1 %s ORDER BY pkey;", db.table, where)
	logger.Debug(query, ns, startKey, endKey)

	rows, err := db.readDB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	return &readIterator{rows: rows}, nil
}

func (db *Unversioned) NewWriteTransaction() (driver.WriteTransaction, error) {
	tx, err := db.writeDB.Begin()
	if err != nil {
		return nil, errors.Wrap(err, "failed starting a transaction")
	}
	return &WriteTransaction{db: db, tx: tx}, nil
}

func (db *Unversioned) Close() error {
	if err := db.readDB.Close(); err != nil {
		return errors.Wrap(err, "failed closing sqlite")
	}
	return errors.Wrap(db.writeDB.Close(), "failed closing sqlite")
}

func (db *Unversioned) CreateSchema() error {
	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		ns TEXT NOT NULL,
		pkey BLOB NOT NULL,
		val BLOB NOT NULL DEFAULT '',
		PRIMARY KEY (pkey, ns)
	);`, db.table)

	logger.Debug(query)
	if _, err := db.writeDB.Exec(query); err != nil {
		return fmt.Errorf("can't create table: %w", err)
	}
	return nil
}

func (db *Unversioned) exec(f func(tx *sql.Tx) error) error {
	tx, err := db.writeDB.Begin()
	if err != nil {
		return errors.Wrap(err, "failed starting a transaction")
	}
	if err := f(tx); err != nil {
		if err2 := tx.Rollback(); err2 != nil {
			logger.Debugf("failed rollback [%s]", err2)
		}
		return err
	}
	return tx.Commit()
}

func (db *Unversioned) setState(tx *sql.Tx, ns, key string, val []byte) error {
	if len(val) == 0 {
		logger.Warnf("set key [%s:%s] to nil value, will be deleted instead", ns, key)
		return db.deleteState(tx, ns, key)
	}
	logger.Debugf("set state [%s,%s]", ns, key)

	query := fmt.Sprintf("INSERT INTO %s (ns, pkey, val) VALUES ($1, $2, $3) ON CONFLICT (pkey, ns) DO UPDATE SET val = excluded.val", db.table)
	if _, err := tx.Exec(query, ns, []byte(key), append([]byte(nil), val...)); err != nil {
		return errors.Wrapf(wrapError(err), "could not set val for key [%s]", key)
	}
	return nil
}

func (db *Unversioned) deleteState(tx *sql.Tx, ns, key string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE ns = $1 AND pkey = $2", db.table)
	logger.Debug(query, ns, key)
	if _, err := tx.Exec(query, ns, []byte(key)); err != nil {
		return errors.Wrapf(wrapError(err), "could not delete val for key [%s]", key)
	}
	return nil
}

type WriteTransaction struct {
	db *Unversioned
	tx *sql.Tx
}

func (w *WriteTransaction) SetState(namespace, key string, value []byte) error {
	return w.db.setState(w.tx, namespace, key, value)
}

func (w *WriteTransaction) DeleteState(namespace, key string) error {
	return w.db.deleteState(w.tx, namespace, key)
}

func (w *WriteTransaction) Commit() error {
	if err := w.tx.Commit(); err != nil {
		return errors.Wrap(wrapError(err), "could not commit transaction")
	}
	return nil
}

func (w *WriteTransaction) Discard() error {
	if err := w.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return err
	}
	return nil
}

// rangeWhere excludes the endKey, as badger does
func rangeWhere(ns, startKey, endKey string) (string, []interface{}) {
	where := ""
	args := []interface{}{ns}

	if startKey != "" && endKey != "" {
		where = "AND pkey >= $2 AND pkey < $3"
		args = []interface{}{ns, []byte(startKey), []byte(endKey)}
	} else if startKey != "" {
		where = "AND pkey >= $2"
		args = []interface{}{ns, []byte(startKey)}
	} else if endKey != "" {
		where = "AND pkey < $2"
		args = []interface{}{ns, []byte(endKey)}
	}
	return where, args
}

type readIterator struct {
	rows *sql.Rows
}

func (t *readIterator) Close() {
	if err := t.rows.Close(); err != nil {
		logger.Debugf("failed closing rows [%s]", err)
	}
}

func (t *readIterator) Next() (*driver.Read, error) {
	if !t.rows.Next() {
		return nil, t.rows.Err()
	}
	var key []byte
	var r driver.Read
	if err := t.rows.Scan(&key, &r.Raw); err != nil {
		return nil, err
	}
	r.Key = string(key)
	return &r, nil
}

func openDB(dataSourceName string, maxOpenConns int, skipPragmas bool) (readDB *sql.DB, writeDB *sql.DB, err error) {
	readDB, err = sql.Open(driverName, dataSourceName)
	if err != nil {
		logger.Error(err)
		if strings.Contains(err.Error(), "out of memory (14)") {
			return nil, nil, fmt.Errorf("can't open %s database, does the folder exist?: %w", driverName, err)
		}
		return nil, nil, fmt.Errorf("can't open %s database: %w", driverName, err)
	}
	readDB.SetMaxOpenConns(maxOpenConns)
	if err = readDB.Ping(); err != nil {
		return nil, nil, err
	}
	logger.Infof("connected to [%s] for reads, max open connections: %d", driverName, maxOpenConns)

	// sqlite can handle concurrent reads in WAL mode if the writes are throttled in 1 connection
	writeDB, err = sql.Open(driverName, dataSourceName)
	if err != nil {
		logger.Error(err)
		return nil, nil, fmt.Errorf("can't open sql database: %w", err)
	}
	writeDB.SetMaxOpenConns(1)
	if err = writeDB.Ping(); err != nil {
		return nil, nil, err
	}
	if skipPragmas {
		if !strings.Contains(dataSourceName, "WAL") {
			logger.Warn("skipping default pragmas. Set at least ?_pragma=journal_mode(WAL) or similar in the dataSource to prevent SQLITE_BUSY errors")
		}
	} else {
		logger.Debug(sqlitePragmas)
		if _, err = readDB.Exec(sqlitePragmas); err != nil {
			return nil, nil, fmt.Errorf("error setting pragmas: %w", err)
		}
		if _, err = writeDB.Exec(sqlitePragmas); err != nil {
			return nil, nil, fmt.Errorf("error setting pragmas: %w", err)
		}
	}
	logger.Infof("connected to [%s] for writes, max open connections: 1", driverName)

	return readDB, writeDB, nil
}

func wrapError(err error) error {
	if e, ok := err.(*sqlite.Error); ok {
		switch e.Code() {
		case 1555, 2067:
			return errors.Wrap(driver.UniqueKeyViolation, e.Error())
		default:
			logger.Warnf("unmapped sqlite error with code [%d]", e.Code())
		}
	}
	return err
}
