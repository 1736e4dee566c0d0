package fixedpeers

import (
	"time"

	"github.com/dashpay/fixedpeers/build"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "fixedpeers"

// runMetrics holds the gauges describing a single run. The private registry
// is only ever written to a textfile for the node exporter.
type runMetrics struct {
	registry *prometheus.Registry

	directoryPeers   prometheus.Gauge
	directorySkipped prometheus.Gauge
	validation       *prometheus.GaugeVec
	selected         prometheus.Gauge
	listSize         prometheus.Gauge
	lastRun          prometheus.Gauge
}

func newRunMetrics() *runMetrics {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      name,
			Help:      help,
		})
	}

	m := &runMetrics{
		registry: prometheus.NewRegistry(),
		directoryPeers: gauge(
			"directory_peers",
			"Number of masternodes loaded from the directory.",
		),
		directorySkipped: gauge(
			"directory_skipped",
			"Number of directory entries without an IPv4 address.",
		),
		validation: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "validated_peers",
				Help:      "Previously listed peers by verdict.",
			},
			[]string{"verdict"},
		),
		selected: gauge(
			"selected_peers",
			"Number of peers newly selected for the list.",
		),
		listSize: gauge(
			"list_size",
			"Number of peers in the resulting fixed list.",
		),
		lastRun: gauge(
			"last_run_timestamp_seconds",
			"Unix time of the last completed run.",
		),
	}

	versionGauge := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "version",
			Help:      "Version of the fixed peer list tool.",
		},
		[]string{"version", "commit"},
	)
	versionGauge.WithLabelValues(build.Version(), build.Commit).Set(1)

	m.registry.MustRegister(
		m.directoryPeers, m.directorySkipped, m.validation, m.selected,
		m.listSize, m.lastRun, versionGauge,
	)

	return m
}

// observe records the outcome of a run.
func (m *runMetrics) observe(s *RunSummary, now time.Time) {
	m.directoryPeers.Set(float64(s.Load.Loaded))
	m.directorySkipped.Set(float64(s.Load.Skipped))
	m.validation.WithLabelValues("passed").Set(float64(len(s.Validated)))
	m.validation.WithLabelValues("failed").Set(float64(s.Failed))
	m.selected.Set(float64(len(s.Selected)))
	m.listSize.Set(float64(len(s.Peers)))
	m.lastRun.Set(float64(now.Unix()))
}

// writeTextfile atomically writes the metrics to path.
func (m *runMetrics) writeTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
