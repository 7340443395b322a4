// Package metrics exposes a picoNet connection's reliability-layer
// counters as a prometheus.Collector, grounded on
// runZeroInc-sockstats/pkg/exporter/exporter.go's TCPInfoCollector
// (SPEC_FULL.md §10).
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ConnectionCollector reports live counters for one connection: RTT,
// packets sent/received/retransmitted, and duplicates suppressed by
// the dedup window.
type ConnectionCollector struct {
	label string

	sent         uint64
	received     uint64
	retransmitted uint64
	duplicates   uint64
	rttMicros    int64

	sentDesc         *prometheus.Desc
	receivedDesc     *prometheus.Desc
	retransmittedDesc *prometheus.Desc
	duplicatesDesc   *prometheus.Desc
	rttDesc          *prometheus.Desc
}

// NewConnectionCollector builds a collector labeled by a connection
// identifier (e.g. an xid-generated connection id).
func NewConnectionCollector(label string) *ConnectionCollector {
	constLabels := prometheus.Labels{"connection": label}
	return &ConnectionCollector{
		label:             label,
		sentDesc:          prometheus.NewDesc("piconet_packets_sent_total", "Packets sent on this connection.", nil, constLabels),
		receivedDesc:      prometheus.NewDesc("piconet_packets_received_total", "Distinct packets delivered to the application.", nil, constLabels),
		retransmittedDesc: prometheus.NewDesc("piconet_packets_retransmitted_total", "Packets resent after exceeding the retransmit threshold.", nil, constLabels),
		duplicatesDesc:    prometheus.NewDesc("piconet_duplicates_dropped_total", "Duplicate sequences suppressed by the dedup window.", nil, constLabels),
		rttDesc:           prometheus.NewDesc("piconet_rtt_seconds", "Current smoothed RTT estimate.", nil, constLabels),
	}
}

func (c *ConnectionCollector) IncSent()              { atomic.AddUint64(&c.sent, 1) }
func (c *ConnectionCollector) IncReceived()           { atomic.AddUint64(&c.received, 1) }
func (c *ConnectionCollector) IncRetransmitted()      { atomic.AddUint64(&c.retransmitted, 1) }
func (c *ConnectionCollector) IncDuplicateDropped()   { atomic.AddUint64(&c.duplicates, 1) }
func (c *ConnectionCollector) ObserveRTT(d time.Duration) {
	atomic.StoreInt64(&c.rttMicros, d.Microseconds())
}

// Describe implements prometheus.Collector.
func (c *ConnectionCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sentDesc
	ch <- c.receivedDesc
	ch <- c.retransmittedDesc
	ch <- c.duplicatesDesc
	ch <- c.rttDesc
}

// Collect implements prometheus.Collector.
func (c *ConnectionCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.sentDesc, prometheus.CounterValue, float64(atomic.LoadUint64(&c.sent)))
	ch <- prometheus.MustNewConstMetric(c.receivedDesc, prometheus.CounterValue, float64(atomic.LoadUint64(&c.received)))
	ch <- prometheus.MustNewConstMetric(c.retransmittedDesc, prometheus.CounterValue, float64(atomic.LoadUint64(&c.retransmitted)))
	ch <- prometheus.MustNewConstMetric(c.duplicatesDesc, prometheus.CounterValue, float64(atomic.LoadUint64(&c.duplicates)))
	ch <- prometheus.MustNewConstMetric(c.rttDesc, prometheus.GaugeValue, float64(atomic.LoadInt64(&c.rttMicros))/1e6)
}
