/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package tracing

import (
	"context"
	"fmt"

	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/embedded"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	NoneProvider   = "none"
	GlobalProvider = "global"
)

const labelNamesKey = "label_names"

type LabelName = string

type (
	SpanStartOption = trace.SpanStartOption
	SpanEndOption   = trace.SpanEndOption
	KeyValue        = attribute.KeyValue
)

var (
	WithAttributes = trace.WithAttributes
	Bool           = attribute.Bool
	String         = attribute.String
)

// WithLabelNames declares the span attributes that become metric labels
func WithLabelNames(names ...LabelName) trace.TracerOption {
	return trace.WithInstrumentationAttributes(attribute.StringSlice(labelNamesKey, names))
}

// BackingProvider returns the otel provider named by kind.
// "global" selects the provider installed with otel.SetTracerProvider, anything else a noop provider.
func BackingProvider(kind string) trace.TracerProvider {
	if kind == GlobalProvider {
		return otel.GetTracerProvider()
	}
	return noop.NewTracerProvider()
}

// NewTracerProvider wraps a backing provider so that every span is also
// counted and timed through the passed metrics provider
func NewTracerProvider(backing trace.TracerProvider, mp metrics.Provider) trace.TracerProvider {
	return &tracerProvider{backing: backing, metrics: mp}
}

type tracerProvider struct {
	embedded.TracerProvider

	backing trace.TracerProvider
	metrics metrics.Provider
}

func (p *tracerProvider) Tracer(name string, options ...trace.TracerOption) trace.Tracer {
	c := trace.NewTracerConfig(options...)
	var labelNames []LabelName
	attrs := c.InstrumentationAttributes()
	if v, ok := attrs.Value(labelNamesKey); ok {
		labelNames = v.AsStringSlice()
	}
	return &tracer{
		backing:    p.backing.Tracer(name, options...),
		labelNames: labelNames,
		operations: p.metrics.NewCounter(metrics.CounterOpts{
			Subsystem:  "tracing",
			Name:       fmt.Sprintf("%s_operations", name),
			Help:       fmt.Sprintf("Counter of '%s' operations", name),
			LabelNames: labelNames,
		}),
		duration: p.metrics.NewHistogram(metrics.HistogramOpts{
			Subsystem:  "tracing",
			Name:       fmt.Sprintf("%s_duration", name),
			Help:       fmt.Sprintf("Histogram for the duration of '%s' operations", name),
			LabelNames: labelNames,
		}),
	}
}

type tracer struct {
	embedded.Tracer

	backing    trace.Tracer
	labelNames []LabelName
	operations metrics.Counter
	duration   metrics.Histogram
}

func (t *tracer) Start(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	newCtx, backingSpan := t.backing.Start(ctx, spanName, opts...)
	return newCtx, newSpan(backingSpan, t.labelNames, t.operations, t.duration, opts...)
}
