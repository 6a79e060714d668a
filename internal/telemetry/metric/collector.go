package metric

import "github.com/prometheus/client_golang/prometheus"

// Stats is a point-in-time view of in-memory state.
type Stats struct {
	Leaves      int
	Sections    map[string]int
	LogBytes    int64
	LogSegments int
}

// StatsFunc returns current stats. It is called on every scrape.
type StatsFunc func() Stats

// Collector exposes Stats as gauges sampled at scrape time.
type Collector struct {
	stats StatsFunc

	leaves   *prometheus.Desc
	sections *prometheus.Desc
	logBytes *prometheus.Desc
	segments *prometheus.Desc
}

// NewCollector creates a collector reading from fn.
func NewCollector(fn StatsFunc) *Collector {
	return &Collector{
		stats:    fn,
		leaves:   prometheus.NewDesc(Namespace+"_tree_leaves", "Leaves in the metadata tree.", nil, nil),
		sections: prometheus.NewDesc(Namespace+"_section_entries", "Entries held by each checkpoint section.", []string{"section"}, nil),
		logBytes: prometheus.NewDesc(Namespace+"_log_bytes", "Bytes in log segments on disk.", nil, nil),
		segments: prometheus.NewDesc(Namespace+"_log_segments", "Log segments on disk.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.leaves
	ch <- c.sections
	ch <- c.logBytes
	ch <- c.segments
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()
	ch <- prometheus.MustNewConstMetric(c.leaves, prometheus.GaugeValue, float64(s.Leaves))
	for name, n := range s.Sections {
		ch <- prometheus.MustNewConstMetric(c.sections, prometheus.GaugeValue, float64(n), name)
	}
	ch <- prometheus.MustNewConstMetric(c.logBytes, prometheus.GaugeValue, float64(s.LogBytes))
	ch <- prometheus.MustNewConstMetric(c.segments, prometheus.GaugeValue, float64(s.LogSegments))
}
