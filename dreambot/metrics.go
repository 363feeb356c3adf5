package dreambot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var triggersCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "dreambot_triggers_total",
	Help: "Trigger posts handled, by outcome",
}, []string{"result"})

var opsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "dreambot_ops_skipped_total",
	Help: "Post create ops which were not processed, by reason",
}, []string{"reason"})

var triggerDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "dreambot_trigger_duration_seconds",
	Help:    "Time from trigger to posted reply",
	Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
})
