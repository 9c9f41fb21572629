// SPDX-License-Identifier: GPL-3.0-or-later

// Package promstats exports the traffic counters of a [*netsock.Network]
// as Prometheus metrics.
package promstats

import (
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/rbmk-project/dualstack/netsock"
)

const (
	// directionKey is the label distinguishing sent and received traffic.
	directionKey = "direction"

	directionSent = "sent"
	directionRecv = "recv"
)

// Source provides traffic counters (e.g., [*netsock.Stats]).
type Source interface {
	Snapshot() netsock.StatsSnapshot
}

var _ Source = &netsock.Stats{}

// Collector implements [prometheus.Collector] by reading a
// [Source] each time the metrics are collected.
type Collector struct {
	bytes   *prometheus.CounterVec
	last    netsock.StatsSnapshot
	mu      sync.Mutex
	packets *prometheus.CounterVec
	src     Source
}

var _ prometheus.Collector = &Collector{}

// NewCollector creates a [*Collector] exporting `<namespace>_net_bytes_total`
// and `<namespace>_net_packets_total` labeled by direction.
func NewCollector(src Source, namespace string) *Collector {
	return &Collector{
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "net",
			Name:      "bytes_total",
			Help:      "Bytes exchanged by the dual-stack sockets.",
		}, []string{directionKey}),
		packets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "net",
			Name:      "packets_total",
			Help:      "Packets exchanged by the dual-stack sockets.",
		}, []string{directionKey}),
		src: src,
	}
}

// increase returns the amount by which a counter that never
// resets grew from "from" to "to".
func increase(from, to uint64) uint64 {
	if to >= from {
		return to - from
	}
	return to
}

// update moves the counters forward to the current snapshot.
func (c *Collector) update() {
	c.mu.Lock()
	defer c.mu.Unlock()
	current := c.src.Snapshot()
	c.bytes.WithLabelValues(directionSent).Add(float64(increase(c.last.SentBytes, current.SentBytes)))
	c.bytes.WithLabelValues(directionRecv).Add(float64(increase(c.last.RecvBytes, current.RecvBytes)))
	c.packets.WithLabelValues(directionSent).Add(float64(increase(c.last.SentPackets, current.SentPackets)))
	c.packets.WithLabelValues(directionRecv).Add(float64(increase(c.last.RecvPackets, current.RecvPackets)))
	c.last = current
}

// Describe is part of the implementation of prometheus.Collector.
func (c *Collector) Describe(descCh chan<- *prometheus.Desc) {
	c.bytes.Describe(descCh)
	c.packets.Describe(descCh)
}

// Collect is part of the implementation of prometheus.Collector.
func (c *Collector) Collect(metricCh chan<- prometheus.Metric) {
	c.update()
	c.bytes.Collect(metricCh)
	c.packets.Collect(metricCh)
}

// Handler returns an [http.Handler] writing the metrics
// gathered from the given gatherer in text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mfs, err := gatherer.Gather()
		if err != nil {
			http.Error(w, fmt.Sprintf("could not gather metrics: %s", err), http.StatusInternalServerError)
			return
		}
		format := expfmt.NewFormat(expfmt.TypeTextPlain)
		w.Header().Set("Content-Type", string(format))
		// the status line is gone once encoding starts
		_ = writeMetrics(w, mfs, format)
	})
}

// writeMetrics encodes the gathered metrics.
func writeMetrics(w io.Writer, mfs []*dto.MetricFamily, format expfmt.Format) error {
	enc := expfmt.NewEncoder(w, format)
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("could not encode metric %s: %w", mf.GetName(), err)
		}
	}
	if closer, ok := enc.(expfmt.Closer); ok {
		return closer.Close()
	}
	return nil
}
