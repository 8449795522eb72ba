package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricSessionsActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gdweb_relay_sessions_active",
		Help: "Connected relay sessions",
	}, []string{"role"})

	metricRoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gdweb_relay_rooms_active",
		Help: "Rooms with at least one member",
	})

	metricFramesRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gdweb_relay_frames_relayed_total",
		Help: "Frames enqueued to recipients",
	}, []string{"role"})

	metricFramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gdweb_relay_frames_dropped_total",
		Help: "Frames not delivered because the recipient queue was full",
	})

	metricSessionsKicked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gdweb_relay_sessions_kicked_total",
		Help: "Sessions closed by the back-pressure policy",
	})

	metricProtocolErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gdweb_relay_protocol_errors_total",
		Help: "Inbound frames answered with an error frame",
	}, []string{"code"})

	metricRemoteFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gdweb_relay_remote_frames_total",
		Help: "Frames received from other instances over the bus",
	})

	metricPreviewsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gdweb_previews_evicted_total",
		Help: "Previews removed after their ttl",
	})
)
