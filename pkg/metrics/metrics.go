package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	IngestionStarted = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "docvault", Name: "ingestion_started_total", Help: "Number of ingestion processes created."},
	)
	IngestionFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docvault", Name: "ingestion_finished_total", Help: "Number of ingestion processes reaching a terminal state, by outcome."},
		[]string{"outcome"},
	)
	IngestionCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "docvault", Name: "ingestion_cancelled_total", Help: "Number of ingestion processes cancelled by a user."},
	)
	DocumentsUploaded = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "docvault", Name: "documents_uploaded_total", Help: "Number of documents uploaded."},
	)
	DocumentsDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "docvault", Name: "documents_deleted_total", Help: "Number of documents deleted."},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docvault", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docvault", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(IngestionStarted)
	reg.MustRegister(IngestionFinished)
	reg.MustRegister(IngestionCancelled)
	reg.MustRegister(DocumentsUploaded)
	reg.MustRegister(DocumentsDeleted)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}
