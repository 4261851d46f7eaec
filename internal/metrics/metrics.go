package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Submission outcomes recorded on AttemptsSubmitted.
const (
	OutcomeScored   = "scored"
	OutcomeReplayed = "replayed"
	OutcomeRejected = "rejected"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	AttemptsStarted   prometheus.Counter
	AnswersLogged     prometheus.Counter
	AttemptsSubmitted *prometheus.CounterVec
	AntiCheatEvents   *prometheus.CounterVec
	AntiCheatFailures prometheus.Counter
	RequestCounter    *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
}

// New builds the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AttemptsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_attempts_started_total",
			Help: "Total number of quiz attempts started",
		}),
		AnswersLogged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_answers_logged_total",
			Help: "Total number of answers logged for in-progress attempts",
		}),
		AttemptsSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_attempts_submitted_total",
				Help: "Total number of submit calls by outcome",
			},
			[]string{"outcome"},
		),
		AntiCheatEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_anticheat_events_total",
				Help: "Total number of anti-cheat events recorded by type",
			},
			[]string{"type"},
		),
		AntiCheatFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_anticheat_record_failures_total",
			Help: "Anti-cheat events dropped because the log could not persist them",
		}),
		RequestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"method", "endpoint"},
		),
	}
	reg.MustRegister(
		m.AttemptsStarted,
		m.AnswersLogged,
		m.AttemptsSubmitted,
		m.AntiCheatEvents,
		m.AntiCheatFailures,
		m.RequestCounter,
		m.RequestDuration,
	)
	return m
}

func (m *Metrics) AttemptStarted() {
	if m == nil {
		return
	}
	m.AttemptsStarted.Inc()
}

func (m *Metrics) AnswerLogged() {
	if m == nil {
		return
	}
	m.AnswersLogged.Inc()
}

func (m *Metrics) Submitted(outcome string) {
	if m == nil {
		return
	}
	m.AttemptsSubmitted.WithLabelValues(outcome).Inc()
}

func (m *Metrics) EventRecorded(eventType string) {
	if m == nil {
		return
	}
	m.AntiCheatEvents.WithLabelValues(eventType).Inc()
}

func (m *Metrics) EventDropped() {
	if m == nil {
		return
	}
	m.AntiCheatFailures.Inc()
}
