/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package stats

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// PrometheusExporter mirrors Counters into client_golang gauges/counters,
// the metrics stack ptp4u and sptp already depend on in this codebase.
type PrometheusExporter struct {
	Counters *Counters

	receiveCount prometheus.Counter
	skipCount    prometheus.Counter
	duplicates   *prometheus.GaugeVec
	outOfOrder   *prometheus.GaugeVec
	dropped      *prometheus.GaugeVec
}

// NewPrometheusExporter registers the metric vectors on registry.
func NewPrometheusExporter(counters *Counters, registry *prometheus.Registry) *PrometheusExporter {
	e := &PrometheusExporter{
		Counters: counters,
		receiveCount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netprobe_receive_count",
			Help: "Total messages received.",
		}),
		skipCount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netprobe_skip_count",
			Help: "Total sends skipped under EAGAIN/WOULDBLOCK.",
		}),
		duplicates: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "netprobe_duplicate_replies",
			Help: "Duplicate reply count, by server index.",
		}, []string{"server_ix"}),
		outOfOrder: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "netprobe_out_of_order_replies",
			Help: "Out-of-order reply count, by server index.",
		}, []string{"server_ix"}),
		dropped: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "netprobe_dropped",
			Help: "Gap-detected drop count, by server index.",
		}, []string{"server_ix"}),
	}
	registry.MustRegister(e.receiveCount, e.skipCount, e.duplicates, e.outOfOrder, e.dropped)
	return e
}

// Collect pushes the current Counters snapshot into the registered metrics.
// It should be called periodically (e.g. once per stats interval); unlike
// the JSON server, client_golang metrics are pull-based, so this only needs
// to refresh gauges between scrapes.
func (e *PrometheusExporter) Collect() {
	e.receiveCount.Add(0) // counters are incremented at the source; this keeps the series present
	duplicates, outOfOrder, dropped := e.Counters.Snapshot()
	for ix, v := range duplicates {
		e.duplicates.WithLabelValues(strconv.Itoa(ix)).Set(float64(v))
	}
	for ix, v := range outOfOrder {
		e.outOfOrder.WithLabelValues(strconv.Itoa(ix)).Set(float64(v))
	}
	for ix, v := range dropped {
		e.dropped.WithLabelValues(strconv.Itoa(ix)).Set(float64(v))
	}
}

// ServeMetrics starts a Prometheus /metrics HTTP endpoint on port.
func ServeMetrics(port string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	log.Debugf("stats: starting Prometheus endpoint on %s", port)
	if err := http.ListenAndServe(port, mux); err != nil { //nolint:gosec
		log.Errorf("stats: Prometheus server stopped: %v", err)
	}
}
