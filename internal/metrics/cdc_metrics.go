package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	cdcMetricsOnce sync.Once

	cdcCreateTotal       *prometheus.CounterVec
	documentReplaceTotal *prometheus.CounterVec
	loadImportDuration   *prometheus.HistogramVec
	loadImportTotal      *prometheus.CounterVec
	loadRecordsTotal     *prometheus.CounterVec
)

func initializeCdcMetrics() {
	cdcMetricsOnce.Do(func() {
		cdcCreateTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cdc_create_total",
				Help: "Total number of collection creation attempts",
			},
			[]string{"result"},
		)

		documentReplaceTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cdc_document_replace_total",
				Help: "Total number of revision-checked document replaces",
			},
			[]string{"result"},
		)

		loadImportDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cdc_load_import_duration_seconds",
				Help:    "Time spent importing load record batches",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status"},
		)

		loadImportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cdc_load_import_total",
				Help: "Total number of load import operations",
			},
			[]string{"status"},
		)

		loadRecordsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cdc_load_records_total",
				Help: "Total number of load records by outcome",
			},
			[]string{"outcome"},
		)

		prometheus.MustRegister(
			cdcCreateTotal,
			documentReplaceTotal,
			loadImportDuration,
			loadImportTotal,
			loadRecordsTotal,
		)
	})
}

// RecordCdcCreate records the outcome of a collection creation attempt.
func RecordCdcCreate(result string) {
	if !businessMetricsEnabled() {
		return
	}
	initializeCdcMetrics()
	cdcCreateTotal.WithLabelValues(result).Inc()
}

// RecordDocumentReplace records the outcome of a document replace.
func RecordDocumentReplace(result string) {
	if !businessMetricsEnabled() {
		return
	}
	initializeCdcMetrics()
	documentReplaceTotal.WithLabelValues(result).Inc()
}

// RecordLoadImport records one load import batch.
func RecordLoadImport(startTime time.Time, status string, total, inserted, rejected int) {
	if !businessMetricsEnabled() {
		return
	}
	initializeCdcMetrics()

	loadImportDuration.WithLabelValues(status).Observe(time.Since(startTime).Seconds())
	loadImportTotal.WithLabelValues(status).Inc()
	loadRecordsTotal.WithLabelValues("processed").Add(float64(total))
	loadRecordsTotal.WithLabelValues("inserted").Add(float64(inserted))
	if rejected > 0 {
		loadRecordsTotal.WithLabelValues("rejected").Add(float64(rejected))
	}
}
