// Package metrics exposes pipeline counters on the default Prometheus
// registry. All counters are process-wide; serve mode may run several
// pipelines but they feed the same stream-health totals.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BytesRead = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ts2cast_bytes_read_total",
		Help: "Transport stream bytes read from the input",
	})
	BytesWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ts2cast_bytes_written_total",
		Help: "Audio and metadata bytes written to the output",
	})
	SyncLosses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ts2cast_sync_losses_total",
		Help: "Times the 188-byte packet framing had to resynchronise",
	})
	ContinuityErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ts2cast_continuity_errors_total",
		Help: "TS continuity counter discontinuities",
	})
	CRCErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ts2cast_section_crc_errors_total",
		Help: "DVB sections dropped because of a CRC-32 mismatch",
	})
	Sections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ts2cast_sections_total",
		Help: "CRC-valid DVB sections delivered to table handlers",
	}, []string{"table"})
	RDSMessages = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ts2cast_rds_messages_total",
		Help: "CRC-valid RDS messages recovered from audio frame padding",
	})
	TitleUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ts2cast_title_updates_total",
		Help: "Stream title changes (EIT or RDS)",
	})
)

func init() {
	prometheus.MustRegister(
		BytesRead,
		BytesWritten,
		SyncLosses,
		ContinuityErrors,
		CRCErrors,
		Sections,
		RDSMessages,
		TitleUpdates,
	)
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
