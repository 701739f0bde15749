package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the instruments recorded by the matching and lifecycle
// code. A nil *Metrics is valid and records nothing.
type Metrics struct {
	MatchingRuns      *prometheus.CounterVec
	MatchingDuration  prometheus.Histogram
	MatchResults      prometheus.Histogram
	CandidatesScored  prometheus.Counter
	Notifications     *prometheus.CounterVec
	StatusTransitions *prometheus.CounterVec
	StoreErrors       *prometheus.CounterVec
}

// New registers all instruments on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		MatchingRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "volunteermatch_matching_runs_total",
				Help: "Matching runs by outcome",
			},
			[]string{"outcome"},
		),
		MatchingDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "volunteermatch_matching_duration_seconds",
			Help:    "Duration of a full matching run",
			Buckets: prometheus.DefBuckets,
		}),
		MatchResults: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "volunteermatch_match_results",
			Help:    "Number of candidates kept per matching run",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}),
		CandidatesScored: f.NewCounter(prometheus.CounterOpts{
			Name: "volunteermatch_candidates_scored_total",
			Help: "Candidates scored across all runs",
		}),
		Notifications: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "volunteermatch_notifications_total",
				Help: "Notifications sent by type and outcome",
			},
			[]string{"type", "outcome"},
		),
		StatusTransitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "volunteermatch_status_transitions_total",
				Help: "Job request status changes",
			},
			[]string{"from", "to"},
		),
		StoreErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "volunteermatch_store_errors_total",
				Help: "Failed operations by error kind",
			},
			[]string{"kind"},
		),
	}
}

func (m *Metrics) ObserveMatching(started time.Time, scored, kept int, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.MatchingRuns.WithLabelValues(outcome).Inc()
	m.MatchingDuration.Observe(time.Since(started).Seconds())
	if err == nil {
		m.CandidatesScored.Add(float64(scored))
		m.MatchResults.Observe(float64(kept))
	}
}

func (m *Metrics) Notification(typ string, err error) {
	if m == nil {
		return
	}
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	m.Notifications.WithLabelValues(typ, outcome).Inc()
}

func (m *Metrics) StatusTransition(from, to string) {
	if m == nil {
		return
	}
	m.StatusTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) StoreError(kind string) {
	if m == nil {
		return
	}
	m.StoreErrors.WithLabelValues(kind).Inc()
}
