package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	geoRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geomigrate",
		Name:      "rows_total",
		Help:      "Total number of rows processed broken down by phase and outcome (skip reason for skipped rows).",
	}, []string{"phase", "outcome"})

	geoPhaseErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geomigrate",
		Name:      "phase_errors_total",
		Help:      "Total number of read or batch-write failures broken down by phase.",
	}, []string{"phase"})

	geoLinksInserted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "geomigrate",
		Name:      "links_inserted_total",
		Help:      "Total number of geography-location links inserted.",
	})
)

func recordRow(phase Phase, outcome string) {
	if outcome == "" {
		outcome = "other"
	}
	geoRows.WithLabelValues(string(phase), outcome).Inc()
}

func recordPhaseError(phase Phase) {
	geoPhaseErrors.WithLabelValues(string(phase)).Inc()
}

func recordLinkInserted() {
	geoLinksInserted.Inc()
}
