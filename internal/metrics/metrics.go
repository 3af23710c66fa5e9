// Package metrics provides Prometheus counters for scheduling activity.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/conorfennell/repaso/internal/domain"
)

// Card origins.
const (
	OriginManual = "manual"
	OriginImport = "import"
)

// Selection results.
const (
	SelectionHit   = "card"
	SelectionEmpty = "empty"
)

// Metrics contains the scheduler counters. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	reviewsTotal         *prometheus.CounterVec
	gradesTotal          *prometheus.CounterVec
	cardsCreatedTotal    *prometheus.CounterVec
	quotaRejectionsTotal prometheus.Counter
	selectionsTotal      *prometheus.CounterVec
	sourceSyncsTotal     *prometheus.CounterVec
}

// New creates the counters and registers them on registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.reviewsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repaso_reviews_total",
			Help: "Total number of graded reviews by phase transition",
		},
		[]string{"phase_before", "phase_after"},
	)

	m.gradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repaso_grades_total",
			Help: "Total number of reviews by base grade",
		},
		[]string{"grade"}, // 0..5
	)

	m.cardsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repaso_cards_created_total",
			Help: "Total number of cards created",
		},
		[]string{"origin"}, // manual, import
	)

	m.quotaRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "repaso_quota_rejections_total",
			Help: "Total number of new cards refused by the daily quota",
		},
	)

	m.selectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repaso_selections_total",
			Help: "Total number of next-card selections",
		},
		[]string{"result"}, // card, empty
	)

	m.sourceSyncsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repaso_source_syncs_total",
			Help: "Total number of deck source synchronisations",
		},
		[]string{"type", "status"}, // type: local, git; status: success, error
	)
}

// Registry returns the registry the counters live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Describe implements the Collector interface
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.reviewsTotal.Describe(ch)
	m.gradesTotal.Describe(ch)
	m.cardsCreatedTotal.Describe(ch)
	m.quotaRejectionsTotal.Describe(ch)
	m.selectionsTotal.Describe(ch)
	m.sourceSyncsTotal.Describe(ch)
}

// Collect implements the Collector interface
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.reviewsTotal.Collect(ch)
	m.gradesTotal.Collect(ch)
	m.cardsCreatedTotal.Collect(ch)
	m.quotaRejectionsTotal.Collect(ch)
	m.selectionsTotal.Collect(ch)
	m.sourceSyncsTotal.Collect(ch)
}

// RecordReview counts one graded review.
func (m *Metrics) RecordReview(baseGrade int, before, after domain.Phase) {
	if m == nil {
		return
	}
	m.reviewsTotal.WithLabelValues(strconv.Itoa(int(before)), strconv.Itoa(int(after))).Inc()
	m.gradesTotal.WithLabelValues(strconv.Itoa(baseGrade)).Inc()
}

func (m *Metrics) RecordCardCreated(origin string) {
	if m == nil {
		return
	}
	m.cardsCreatedTotal.WithLabelValues(origin).Inc()
}

func (m *Metrics) RecordQuotaRejection() {
	if m == nil {
		return
	}
	m.quotaRejectionsTotal.Inc()
}

func (m *Metrics) RecordSelection(found bool) {
	if m == nil {
		return
	}
	result := SelectionEmpty
	if found {
		result = SelectionHit
	}
	m.selectionsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordSourceSync(sourceType string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.sourceSyncsTotal.WithLabelValues(sourceType, status).Inc()
}
