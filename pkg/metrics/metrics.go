package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "coupon"

var (
	validations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "validations_total",
		Help:      "Coupon validity checks by outcome reason.",
	}, []string{"reason"})

	redemptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "redemptions_total",
		Help:      "Redemption attempts by final result.",
	}, []string{"result"})

	conflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "redemption_conflicts_total",
		Help:      "Conditional writes that lost a race and were revalidated.",
	})

	discountGranted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "discount_granted_total",
		Help:      "Sum of committed discount amounts.",
	})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)

const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultConflict = "conflict"
	ResultError    = "error"
)

// ObserveValidation counts one validity check. An empty reason means valid.
func ObserveValidation(reason string) {
	if reason == "" {
		reason = "valid"
	}
	validations.WithLabelValues(reason).Inc()
}

func ObserveRedemption(result string, discount float64) {
	redemptions.WithLabelValues(result).Inc()
	if result == ResultSuccess && discount > 0 {
		discountGranted.Add(discount)
	}
}

func ObserveConflict() {
	conflicts.Inc()
}

func ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
