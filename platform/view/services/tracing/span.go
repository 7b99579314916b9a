/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package tracing

import (
	"time"

	"github.com/hyperledger-labs/iou-smart-client/platform/view/services/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// labels keeps the last value seen for every declared label name
type labels struct {
	names  []string
	values map[string]string
}

func newLabels(names []string) *labels {
	l := &labels{names: names, values: make(map[string]string, len(names))}
	for _, n := range names {
		l.values[n] = ""
	}
	return l
}

func (l *labels) append(kvs ...attribute.KeyValue) {
	for _, kv := range kvs {
		if _, ok := l.values[string(kv.Key)]; ok && kv.Valid() {
			l.values[string(kv.Key)] = kv.Value.Emit()
		}
	}
}

func (l *labels) pairs() []string {
	r := make([]string, 0, 2*len(l.names))
	for _, n := range l.names {
		r = append(r, n, l.values[n])
	}
	return r
}

type span struct {
	trace.Span

	labels     *labels
	start      time.Time
	operations metrics.Counter
	duration   metrics.Histogram
}

func newSpan(backing trace.Span, labelNames []LabelName, operations metrics.Counter, duration metrics.Histogram, opts ...SpanStartOption) *span {
	c := trace.NewSpanStartConfig(opts...)
	s := &span{
		Span:       backing,
		labels:     newLabels(labelNames),
		start:      time.Now(),
		operations: operations,
		duration:   duration,
	}
	s.labels.append(c.Attributes()...)
	return s
}

func (s *span) End(options ...SpanEndOption) {
	s.Span.End(options...)

	ls := s.labels.pairs()
	s.operations.With(ls...).Add(1)
	s.duration.With(ls...).Observe(time.Since(s.start).Seconds())
}

func (s *span) SetAttributes(kv ...KeyValue) {
	s.Span.SetAttributes(kv...)
	s.labels.append(kv...)
}
