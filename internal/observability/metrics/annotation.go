// Package metrics provides Prometheus metric collectors for the annotation subsystem
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// AnnotationMetrics contains Prometheus metrics for assignment and submission operations
type AnnotationMetrics struct {
	assignOperationsTotal *prometheus.CounterVec
	submissionsTotal      *prometheus.CounterVec
	importsTotal          prometheus.Counter
	importedItemsTotal    prometheus.Counter
	errorsTotal           *prometheus.CounterVec

	operationDuration *prometheus.HistogramVec

	datasetCompletionGauge *prometheus.GaugeVec
}

// NewAnnotationMetrics creates a new AnnotationMetrics instance registered on registry.
func NewAnnotationMetrics(registry *prometheus.Registry) (*AnnotationMetrics, error) {
	m := &AnnotationMetrics{
		assignOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tagwise_assign_operations_total",
				Help: "Total number of annotator assignment operations",
			},
			[]string{"operation", "status"},
		),
		submissionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tagwise_submissions_total",
				Help: "Total number of annotation submissions",
			},
			[]string{"status"},
		),
		importsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tagwise_dataset_imports_total",
				Help: "Total number of dataset imports",
			},
		),
		importedItemsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tagwise_imported_items_total",
				Help: "Total number of items created by dataset imports",
			},
		),
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tagwise_errors_total",
				Help: "Total number of errors by category",
			},
			[]string{"category"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tagwise_operation_duration_seconds",
				Help:    "Duration of core operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		datasetCompletionGauge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tagwise_dataset_completion_percent",
				Help: "Dataset completion percentage as last computed",
			},
			[]string{"dataset_id"},
		),
	}

	collectors := []prometheus.Collector{
		m.assignOperationsTotal,
		m.submissionsTotal,
		m.importsTotal,
		m.importedItemsTotal,
		m.errorsTotal,
		m.operationDuration,
		m.datasetCompletionGauge,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// RecordAssignOperation records an assign/unassign/add operation outcome.
func (m *AnnotationMetrics) RecordAssignOperation(operation, status string) {
	m.assignOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordSubmission records a submission outcome.
func (m *AnnotationMetrics) RecordSubmission(status string) {
	m.submissionsTotal.WithLabelValues(status).Inc()
}

// RecordImport records a completed dataset import and its item count.
func (m *AnnotationMetrics) RecordImport(itemCount int) {
	m.importsTotal.Inc()
	m.importedItemsTotal.Add(float64(itemCount))
}

// RecordError records an error by category.
func (m *AnnotationMetrics) RecordError(category string) {
	m.errorsTotal.WithLabelValues(category).Inc()
}

// RecordOperationDuration records the duration of a named operation.
func (m *AnnotationMetrics) RecordOperationDuration(operation string, seconds float64) {
	m.operationDuration.WithLabelValues(operation).Observe(seconds)
}

// SetDatasetCompletion updates the completion gauge for a dataset.
func (m *AnnotationMetrics) SetDatasetCompletion(datasetID uint, percent float64) {
	m.datasetCompletionGauge.WithLabelValues(strconv.FormatUint(uint64(datasetID), 10)).Set(percent)
}

// ForgetDataset drops the completion gauge series for a deleted dataset.
func (m *AnnotationMetrics) ForgetDataset(datasetID uint) {
	m.datasetCompletionGauge.DeleteLabelValues(strconv.FormatUint(uint64(datasetID), 10))
}
