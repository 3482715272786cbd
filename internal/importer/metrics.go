package importer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// rowsParsed counts previewed data rows by validation result.
	rowsParsed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "importer_rows_parsed_total",
		Help: "Total number of data rows parsed during import preview by result",
	}, []string{"result"}) // result: valid, invalid

	// submissions counts submit attempts by outcome.
	submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "importer_submissions_total",
		Help: "Total number of import submissions by result",
	}, []string{"result"}) // result: success, failed, rejected

	productsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "importer_products_accepted_total",
		Help: "Total number of products accepted by the catalog",
	})

	productsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "importer_products_rejected_total",
		Help: "Total number of submitted products the catalog did not accept",
	})

	submitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "importer_submit_duration_seconds",
		Help:    "Time taken by the catalog bulk-create call",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})
)

func recordPreview(valid, invalid int) {
	rowsParsed.WithLabelValues("valid").Add(float64(valid))
	rowsParsed.WithLabelValues("invalid").Add(float64(invalid))
}
