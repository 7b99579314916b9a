/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package notary

import "github.com/hyperledger-labs/iou-smart-client/platform/view/services/metrics"

type Metrics struct {
	Notarised metrics.Counter
	Conflicts metrics.Counter
}

func newMetrics(p metrics.Provider) *Metrics {
	return &Metrics{
		Notarised: p.NewCounter(metrics.CounterOpts{
			Subsystem: "notary",
			Name:      "notarised",
			Help:      "The number of transactions notarised",
		}),
		Conflicts: p.NewCounter(metrics.CounterOpts{
			Subsystem: "notary",
			Name:      "conflicts",
			Help:      "The number of transactions rejected for consuming already consumed states",
		}),
	}
}
