package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/max0ne/fluent-plugin-google-cloud/internal/logging"
)

var (
	RecordsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gkefilter",
		Name:      "records_total",
		Help:      "Records passed through the gke filter, by mode.",
	}, []string{"mode"})

	MalformedRecordsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gkefilter",
		Name:      "malformed_records_total",
		Help:      "Records that were not a field map and were passed through unchanged.",
	}, []string{"mode"})

	InsertIDsGenerated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gkefilter",
		Name:      "insert_ids_generated_total",
		Help:      "Insert IDs assigned to records that did not carry one.",
	})

	MessagesTrimmed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gkefilter",
		Name:      "messages_trimmed_total",
		Help:      "Messages truncated to fit the backend entry size limit.",
	})

	MalformedTags = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gkefilter",
		Name:      "malformed_tags_total",
		Help:      "Tags that did not match the container log tag layout.",
	})

	PipelineEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gkefilter",
		Name:      "pipeline_events_total",
		Help:      "Events handled by pipeline stages, by stage and result.",
	}, []string{"stage", "result"})
)

func init() {
	prometheus.MustRegister(
		RecordsTotal,
		MalformedRecordsTotal,
		InsertIDsGenerated,
		MessagesTrimmed,
		MalformedTags,
		PipelineEvents,
	)
}

// Expose serves /metrics on addr in the background. An empty addr disables it.
func Expose(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logging.L().Error("metrics listener stopped", "addr", addr, "err", err)
		}
	}()
}
