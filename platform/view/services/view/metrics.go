/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package view

import "github.com/hyperledger-labs/iou-smart-client/platform/view/services/metrics"

type Metrics struct {
	Contexts metrics.Gauge
	Views    metrics.Counter
}

func newMetrics(p metrics.Provider) *Metrics {
	return &Metrics{
		Contexts: p.NewGauge(metrics.GaugeOpts{
			Subsystem: "view",
			Name:      "contexts",
			Help:      "The number of open view contexts",
		}),
		Views: p.NewCounter(metrics.CounterOpts{
			Subsystem:  "view",
			Name:       "calls",
			Help:       "The number of views run to completion",
			LabelNames: []string{ViewLabel, SuccessLabel},
		}),
	}
}
