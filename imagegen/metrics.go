package imagegen

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var generationsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "imagegen_requests_total",
	Help: "Image generation calls, by result",
}, []string{"result"})

var generationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "imagegen_request_duration_seconds",
	Help:    "Duration of successful image generation calls",
	Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
})
