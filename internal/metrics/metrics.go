package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PipelineRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "pipeline_runs_total", Help: "Backtest pipeline runs by outcome"},
		[]string{"pair", "outcome"},
	)
	StageErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "stage_errors_total", Help: "Pipeline failures by originating stage"},
		[]string{"stage"},
	)
	HistoryFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "history_fetch_total", Help: "Price history requests"},
		[]string{"provider", "outcome"},
	)
	ReportsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "reports_published_total", Help: "Run reports delivered to sinks"},
		[]string{"sink"},
	)
	PipelineDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "pipeline_duration_seconds", Help: "Wall time of a single pair run", Buckets: prometheus.DefBuckets},
	)
)

func init() {
	prometheus.MustRegister(PipelineRuns, StageErrors, HistoryFetches, ReportsPublished, PipelineDuration)
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
