package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const MetricsPrefix = "hass_collector_"

type Metrics struct {
	eventsProcessed     *prometheus.CounterVec
	sinkLatency         prometheus.Histogram
	queueDepth          prometheus.Gauge
	refreshLatency      prometheus.Histogram
	refreshFailures     prometheus.Counter
	consecutiveFailures prometheus.Gauge
	registrySize        *prometheus.GaugeVec
}

func NewMetrics(prefix string, registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		eventsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "events_processed",
			Help: "Number of events taken off the queue grouped by how processing ended",
		}, []string{"outcome"}),
		sinkLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    prefix + "sink_write_latency_seconds",
			Help:    "Latency of single point writes to the sink in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "queue_depth",
			Help: "Number of raw messages waiting for a worker",
		}),
		refreshLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    prefix + "metadata_refresh_latency_seconds",
			Help:    "Metadata refresh latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
		}),
		refreshFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: prefix + "metadata_refresh_failures",
			Help: "Number of failed metadata refreshes",
		}),
		consecutiveFailures: factory.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "metadata_consecutive_failures",
			Help: "Number of metadata refreshes that have failed since the last success",
		}),
		registrySize: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: prefix + "metadata_registry_size",
			Help: "Number of records in the published metadata snapshot grouped by record type",
		}, []string{"type"}),
	}
}

var m = NewMetrics(MetricsPrefix, prometheus.DefaultRegisterer)

func Get() *Metrics {
	return m
}

func (m *Metrics) RecordOutcome(outcome string) {
	m.eventsProcessed.With(map[string]string{"outcome": outcome}).Inc()
}

func (m *Metrics) ObserveSinkWrite(taken time.Duration) {
	m.sinkLatency.Observe(taken.Seconds())
}

func (m *Metrics) SetQueueDepth(depth int) {
	m.queueDepth.Set(float64(depth))
}

func (m *Metrics) RecordRefresh(taken time.Duration, err error) {
	m.refreshLatency.Observe(taken.Seconds())
	if err != nil {
		m.refreshFailures.Inc()
	}
}

func (m *Metrics) SetConsecutiveFailures(n int) {
	m.consecutiveFailures.Set(float64(n))
}

func (m *Metrics) SetRegistrySize(entities, devices, areas int) {
	m.registrySize.With(map[string]string{"type": "entity"}).Set(float64(entities))
	m.registrySize.With(map[string]string{"type": "device"}).Set(float64(devices))
	m.registrySize.With(map[string]string{"type": "area"}).Set(float64(areas))
}
