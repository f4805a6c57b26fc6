// Copyright 2019 eBay Inc.
// Primary authors: Simon Fell, Diego Ongaro,
//                  Raymond Kroeker, and Sathish Kandasamy.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tracing wires up an OpenTracing tracer backed by Jaeger and lets
// callers observe span durations into prometheus metrics.
package tracing

import (
	"fmt"
	"io"
	"strings"
	"time"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/prometheus/client_golang/prometheus"
	jaeger "github.com/uber/jaeger-client-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"
)

// Metric is the subset of a prometheus summary/histogram that UpdateMetric
// needs: something observable that can also describe itself.
type Metric interface {
	prometheus.Metric
	Observe(float64)
}

// updateMetricTagKey is the span tag UpdateMetric communicates through; the
// contribObserver picks it up when the span finishes.
const updateMetricTagKey = "treeline.metric"

// New installs a global Jaeger-backed tracer reporting to the given collector
// host ("" disables reporting but still records span durations into metrics).
// The returned closer flushes and stops the tracer.
func New(serviceName, collectorHost string) (io.Closer, error) {
	cfg := jaegercfg.Configuration{
		ServiceName: serviceName,
		Sampler: &jaegercfg.SamplerConfig{
			Type:  jaeger.SamplerTypeConst,
			Param: 1,
		},
	}
	if collectorHost != "" {
		cfg.Reporter = &jaegercfg.ReporterConfig{
			LocalAgentHostPort: collectorHost,
		}
	}
	tracer, closer, err := cfg.NewTracer(jaegercfg.ContribObserver(&contribObserver{}))
	if err != nil {
		return nil, fmt.Errorf("tracing: unable to create tracer: %v", err)
	}
	opentracing.SetGlobalTracer(tracer)
	return closer, nil
}

// UpdateMetric arranges for the span's duration, in seconds, to be observed
// into the given metric when the span finishes.
func UpdateMetric(span opentracing.Span, metric Metric) {
	span.SetTag(updateMetricTagKey, stringableMetric{metric})
}

// stringableMetric wraps a Metric so that the tag value renders as the
// metric's fully-qualified name rather than a struct dump.
type stringableMetric struct {
	Metric
}

func (s stringableMetric) String() string {
	// Desc().String() renders as Desc{fqName: "ns_sub_name", help: ...}.
	desc := s.Desc().String()
	const marker = `fqName: "`
	start := strings.Index(desc, marker)
	if start < 0 {
		return desc
	}
	start += len(marker)
	end := strings.IndexByte(desc[start:], '"')
	if end < 0 {
		return desc
	}
	return desc[start : start+end]
}

// contribObserver watches every span for the UpdateMetric tag.
type contribObserver struct{}

func (contribObserver) OnStartSpan(_ opentracing.Span, _ string,
	options opentracing.StartSpanOptions) (jaeger.ContribSpanObserver, bool) {
	start := options.StartTime
	if start.IsZero() {
		start = time.Now()
	}
	return &spanObserver{start: start}, true
}

type spanObserver struct {
	start  time.Time
	metric Metric
}

func (obs *spanObserver) OnSetOperationName(string) {}

func (obs *spanObserver) OnSetTag(key string, value interface{}) {
	if key != updateMetricTagKey {
		return
	}
	if m, ok := value.(stringableMetric); ok {
		obs.metric = m.Metric
	}
}

func (obs *spanObserver) OnFinish(options opentracing.FinishOptions) {
	if obs.metric == nil {
		return
	}
	finish := options.FinishTime
	if finish.IsZero() {
		finish = time.Now()
	}
	obs.metric.Observe(finish.Sub(obs.start).Seconds())
}
