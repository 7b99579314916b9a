/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package tracker

import "github.com/hyperledger-labs/iou-smart-client/platform/view/services/metrics"

const (
	IntentLabel = "intent"
	RoleLabel   = "role"
)

type Metrics struct {
	Started   metrics.Counter
	Committed metrics.Counter
	Aborted   metrics.Counter
}

func newMetrics(p metrics.Provider) *Metrics {
	return &Metrics{
		Started: p.NewCounter(metrics.CounterOpts{
			Subsystem:  "flows",
			Name:       "started",
			Help:       "The number of protocol instances started",
			LabelNames: []string{IntentLabel, RoleLabel},
		}),
		Committed: p.NewCounter(metrics.CounterOpts{
			Subsystem:  "flows",
			Name:       "committed",
			Help:       "The number of protocol instances committed",
			LabelNames: []string{IntentLabel, RoleLabel},
		}),
		Aborted: p.NewCounter(metrics.CounterOpts{
			Subsystem:  "flows",
			Name:       "aborted",
			Help:       "The number of protocol instances aborted",
			LabelNames: []string{IntentLabel, RoleLabel},
		}),
	}
}
