package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RecordOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "healthapi", Name: "record_operations_total", Help: "Completed medical record lifecycle operations by kind."},
		[]string{"op"},
	)
	OrphanedBlobs = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "healthapi", Name: "orphaned_blobs_total", Help: "Blobs left behind in the object store after a failed replace or delete."},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "healthapi", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "healthapi", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RecordOperations)
	reg.MustRegister(OrphanedBlobs)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}
