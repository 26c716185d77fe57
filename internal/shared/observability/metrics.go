package observability

import (
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParsingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "svorder_parsing_seconds",
		Help:    "Time spent parsing a source file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"frontend"})

	FilesParsedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "svorder_files_parsed_total",
		Help: "Total number of source files parsed, cache hits excluded.",
	})

	ParseCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "svorder_parse_cache_hits_total",
		Help: "Total number of parse results reused from the content cache.",
	})

	ParseFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "svorder_parse_failures_total",
		Help: "Total number of files that failed to parse.",
	})

	GraphNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "svorder_graph_nodes_total",
		Help: "Number of files in the last resolved graph.",
	})

	GraphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "svorder_graph_edges_total",
		Help: "Number of dependency edges in the last resolved graph.",
	})

	SuppressedEdgesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "svorder_suppressed_edges_total",
		Help: "Total number of module edges skipped by the package priority rule.",
	})

	OmittedFiles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "svorder_omitted_files",
		Help: "Number of files left out of the last order because no root reaches them.",
	})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "svorder_analysis_seconds",
		Help:    "Time spent in each pipeline stage.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "svorder_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	RebuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "svorder_rebuilds_total",
		Help: "Total number of watch-mode reruns by outcome.",
	}, []string{"result"})
)

// WriteTextfile writes every registered metric to path in the Prometheus
// text exposition format.
func WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
