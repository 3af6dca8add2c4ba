// Package metrics exposes Prometheus counters for the shell client.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	framesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wsshell_frames_received_total",
			Help: "Inbound frames by classification",
		},
		[]string{"kind"},
	)

	envelopesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wsshell_envelopes_received_total",
			Help: "Inbound control envelopes by type",
		},
		[]string{"type"},
	)

	bytesUploaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wsshell_upload_bytes_total",
			Help: "Payload bytes sent for uploads",
		},
	)

	bytesDownloaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wsshell_download_bytes_total",
			Help: "Bytes of finished downloads",
		},
	)

	transfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wsshell_transfers_total",
			Help: "Finished transfers by direction and status",
		},
		[]string{"direction", "status"},
	)

	activeTransfers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wsshell_transfers_active",
			Help: "Transfers currently in flight",
		},
		[]string{"direction"},
	)

	connectionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wsshell_connection_state",
			Help: "0 connecting, 1 open, 2 closed, 3 failed",
		},
	)
)

func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordFrame(kind string) {
	framesReceived.WithLabelValues(kind).Inc()
}

func RecordEnvelope(tag string) {
	envelopesReceived.WithLabelValues(tag).Inc()
}

func RecordUploadBytes(n int) {
	bytesUploaded.Add(float64(n))
}

func RecordDownloadBytes(n int64) {
	bytesDownloaded.Add(float64(n))
}

func TransferStarted(direction string) {
	activeTransfers.WithLabelValues(direction).Inc()
}

func TransferFinished(direction, status string) {
	activeTransfers.WithLabelValues(direction).Dec()
	transfersTotal.WithLabelValues(direction, status).Inc()
}

func SetConnectionState(state int) {
	connectionState.Set(float64(state))
}
