package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the counters exported on /metrics
type Metrics struct {
	noncesIssued prometheus.Counter
	rateLimited  prometheus.Counter
	signIns      *prometheus.CounterVec
	logouts      prometheus.Counter
}

// NewMetrics registers the auth counters with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		noncesIssued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "solgate",
			Name:      "nonces_issued_total",
			Help:      "Sign-in nonces handed out.",
		}),
		rateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "solgate",
			Name:      "nonce_requests_rate_limited_total",
			Help:      "Nonce requests refused by the per-client limiter.",
		}),
		signIns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "solgate",
			Name:      "sign_ins_total",
			Help:      "Sign-in verifications by result.",
		}, []string{"result"}),
		logouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "solgate",
			Name:      "logouts_total",
			Help:      "Sessions ended through logout.",
		}),
	}
}
