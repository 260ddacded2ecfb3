package spanz

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes a tracer's counters as a prometheus.Collector.
//
//	reg.MustRegister(spanz.NewMetrics(tracer))
type Metrics struct {
	tracer   *Tracer
	live     *prometheus.Desc
	finished *prometheus.Desc
	dropped  *prometheus.Desc
}

// NewMetrics creates a collector reading t's Stats on every scrape.
func NewMetrics(t *Tracer) *Metrics {
	return &Metrics{
		tracer: t,
		live: prometheus.NewDesc("spanz_spans_live",
			"Spans currently held in the registry.", nil, nil),
		finished: prometheus.NewDesc("spanz_spans_finished_total",
			"Spans finalized since the tracer was created.", nil, nil),
		dropped: prometheus.NewDesc("spanz_spans_dropped_total",
			"Finished spans rejected by their sink.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.live
	ch <- m.finished
	ch <- m.dropped
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	stats := m.tracer.Stats()
	ch <- prometheus.MustNewConstMetric(m.live, prometheus.GaugeValue, float64(stats.Live))
	ch <- prometheus.MustNewConstMetric(m.finished, prometheus.CounterValue, float64(stats.Finished))
	ch <- prometheus.MustNewConstMetric(m.dropped, prometheus.CounterValue, float64(stats.Dropped))
}
