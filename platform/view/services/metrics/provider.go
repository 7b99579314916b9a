/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package metrics

// Provider creates the metrics a component reports
type Provider interface {
	// NewCounter creates a new instance of a Counter.
	NewCounter(CounterOpts) Counter
	// NewGauge creates a new instance of a Gauge.
	NewGauge(GaugeOpts) Gauge
	// NewHistogram creates a new instance of a Histogram.
	NewHistogram(HistogramOpts) Histogram
}

// Counter is a monotonically increasing value.
// With takes alternating label names and values.
type Counter interface {
	With(labelValues ...string) Counter
	Add(delta float64)
}

// Gauge is a value that can go up and down
type Gauge interface {
	With(labelValues ...string) Gauge
	Add(delta float64)
	Set(value float64)
}

// Histogram samples observations into buckets
type Histogram interface {
	With(labelValues ...string) Histogram
	Observe(value float64)
}

type CounterOpts struct {
	Namespace  string
	Subsystem  string
	Name       string
	Help       string
	LabelNames []string
}

type GaugeOpts struct {
	Namespace  string
	Subsystem  string
	Name       string
	Help       string
	LabelNames []string
}

type HistogramOpts struct {
	Namespace  string
	Subsystem  string
	Name       string
	Help       string
	Buckets    []float64
	LabelNames []string
}
