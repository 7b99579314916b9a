/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/pkg/errors"
)

// valueLog is the part of *badger.DB the collector needs
type valueLog interface {
	IsClosed() bool
	RunValueLogGC(discardRatio float64) error
}

// collectValueLog rewrites the value log files of db every interval until ctx is done or db is closed
func collectValueLog(ctx context.Context, db valueLog, interval time.Duration, discardRatio float64) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if db.IsClosed() {
			return
		}
		err := db.RunValueLogGC(discardRatio)
		switch {
		case err == nil, errors.Is(err, badger.ErrNoRewrite):
		case errors.Is(err, badger.ErrRejected):
			logger.Warnf("value log collection rejected")
		default:
			logger.Warnf("value log collection failed: %s", err)
		}
	}
}
