package firehose

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventsFromStreamCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "firehose_stream_events_received_total",
	Help: "Total number of frames received from the stream",
}, []string{"remote_addr"})

var bytesFromStreamCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "firehose_stream_bytes_total",
	Help: "Total bytes received from the stream",
}, []string{"remote_addr"})

var framesSkippedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "firehose_frames_skipped_total",
	Help: "Frames which were not dispatched, by reason",
}, []string{"reason"})

var lastSeqGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "firehose_last_seq",
	Help: "Sequence number of the most recent commit received",
})

var reconnectsCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "firehose_reconnects_total",
	Help: "Number of times the stream subscription was re-dialed",
})

var workItemsAdded = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "firehose_scheduler_work_items_added_total",
	Help: "Total number of work items added to the consumer pool",
}, []string{"pool", "scheduler_type"})

var workItemsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "firehose_scheduler_work_items_processed_total",
	Help: "Total number of work items processed by the consumer pool",
}, []string{"pool", "scheduler_type"})

var workersActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "firehose_scheduler_workers_active",
	Help: "Number of workers currently active",
}, []string{"pool", "scheduler_type"})
