package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	SubmissionsTotal      *prometheus.CounterVec
	AdmissionsTotal       *prometheus.CounterVec
	InvoicesIssuedTotal   prometheus.Counter
	PaymentsExpiredTotal  prometheus.Counter
	ReceiptsRejectedTotal *prometheus.CounterVec
	PendingEntries        prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		SubmissionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "zapgate_submissions_total",
			Help: "Total listing submissions by outcome",
		}, []string{"outcome"}),
		AdmissionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "zapgate_admissions_total",
			Help: "Total admitted listings by path (trusted or paid)",
		}, []string{"path"}),
		InvoicesIssuedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "zapgate_invoices_issued_total",
			Help: "Total Lightning invoices issued for pending entries",
		}),
		PaymentsExpiredTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "zapgate_payments_expired_total",
			Help: "Total pending entries reclaimed after payment timeout",
		}),
		ReceiptsRejectedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "zapgate_receipts_rejected_total",
			Help: "Total zap receipts rejected by validation, by reason",
		}, []string{"reason"}),
		PendingEntries: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "zapgate_pending_entries",
			Help: "Current number of entries awaiting payment",
		}),
	}
}

func (m *Metrics) RecordSubmission(outcome string) {
	m.SubmissionsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordAdmission(path string) {
	m.AdmissionsTotal.WithLabelValues(path).Inc()
}

func (m *Metrics) RecordInvoiceIssued() {
	m.InvoicesIssuedTotal.Inc()
}

func (m *Metrics) RecordPaymentExpired() {
	m.PaymentsExpiredTotal.Inc()
}

func (m *Metrics) RecordReceiptRejected(reason string) {
	m.ReceiptsRejectedTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetPendingEntries(count int) {
	m.PendingEntries.Set(float64(count))
}
