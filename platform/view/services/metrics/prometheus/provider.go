/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package prometheus

import (
	"net/http"

	"github.com/hyperledger-labs/iou-smart-client/platform/common/services/logging"
	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/metrics"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var logger = logging.MustGetLogger("view.metrics.prometheus")

// Provider registers its metrics with a private registry.
// Several nodes can therefore live in the same process.
type Provider struct {
	namespace string
	registry  *prom.Registry
}

// NewProvider returns a provider whose metrics default to the passed namespace
func NewProvider(namespace string) *Provider {
	return &Provider{namespace: namespace, registry: prom.NewRegistry()}
}

// Handler exposes the metrics of this provider in the prometheus text format
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Gatherer returns the registry backing this provider
func (p *Provider) Gatherer() prom.Gatherer {
	return p.registry
}

func (p *Provider) NewCounter(o metrics.CounterOpts) metrics.Counter {
	cv := prom.NewCounterVec(prom.CounterOpts{
		Namespace: p.ns(o.Namespace),
		Subsystem: o.Subsystem,
		Name:      o.Name,
		Help:      o.Help,
	}, o.LabelNames)
	cv = register(p.registry, cv)
	return &Counter{cv: cv, labels: prom.Labels{}}
}

func (p *Provider) NewGauge(o metrics.GaugeOpts) metrics.Gauge {
	gv := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: p.ns(o.Namespace),
		Subsystem: o.Subsystem,
		Name:      o.Name,
		Help:      o.Help,
	}, o.LabelNames)
	gv = register(p.registry, gv)
	return &Gauge{gv: gv, labels: prom.Labels{}}
}

func (p *Provider) NewHistogram(o metrics.HistogramOpts) metrics.Histogram {
	hv := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: p.ns(o.Namespace),
		Subsystem: o.Subsystem,
		Name:      o.Name,
		Help:      o.Help,
		Buckets:   o.Buckets,
	}, o.LabelNames)
	hv = register(p.registry, hv)
	return &Histogram{hv: hv, labels: prom.Labels{}}
}

func (p *Provider) ns(namespace string) string {
	if len(namespace) == 0 {
		return p.namespace
	}
	return namespace
}

// register returns the collector already registered under the same descriptor, if any
func register[C prom.Collector](r *prom.Registry, c C) C {
	if err := r.Register(c); err != nil {
		if are, ok := err.(prom.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		logger.Errorf("failed registering collector: %s", err)
	}
	return c
}

func with(labels prom.Labels, labelValues []string) prom.Labels {
	if len(labelValues)%2 != 0 {
		labelValues = append(labelValues, "unknown")
	}
	res := make(prom.Labels, len(labels)+len(labelValues)/2)
	for k, v := range labels {
		res[k] = v
	}
	for i := 0; i < len(labelValues); i += 2 {
		res[labelValues[i]] = labelValues[i+1]
	}
	return res
}

type Counter struct {
	cv     *prom.CounterVec
	labels prom.Labels
}

func (c *Counter) With(labelValues ...string) metrics.Counter {
	return &Counter{cv: c.cv, labels: with(c.labels, labelValues)}
}

func (c *Counter) Add(delta float64) {
	c.cv.With(c.labels).Add(delta)
}

type Gauge struct {
	gv     *prom.GaugeVec
	labels prom.Labels
}

func (g *Gauge) With(labelValues ...string) metrics.Gauge {
	return &Gauge{gv: g.gv, labels: with(g.labels, labelValues)}
}

func (g *Gauge) Add(delta float64) {
	g.gv.With(g.labels).Add(delta)
}

func (g *Gauge) Set(value float64) {
	g.gv.With(g.labels).Set(value)
}

type Histogram struct {
	hv     *prom.HistogramVec
	labels prom.Labels
}

func (h *Histogram) With(labelValues ...string) metrics.Histogram {
	return &Histogram{hv: h.hv, labels: with(h.labels, labelValues)}
}

func (h *Histogram) Observe(value float64) {
	h.hv.With(h.labels).Observe(value)
}
