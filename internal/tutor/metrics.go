package tutor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricSuccesses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tutor_successes_total",
		Help: "Debounced teaching successes",
	})

	metricMasteries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tutor_masteries_total",
		Help: "Symbols mastered in teaching mode",
	})

	metricStruggle = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tutor_struggle_feedback_total",
		Help: "Automatic struggle hints spoken",
	})

	metricIntents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tutor_intents_total",
		Help: "Aggregated utterances by classified intent",
	}, []string{"intent"})

	metricBargeIn = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tutor_barge_in_total",
		Help: "System utterances interrupted by user speech",
	})

	metricSpeechRefused = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tutor_speech_refused_total",
		Help: "Speak requests refused because the user held the floor",
	})

	metricModeTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tutor_mode_transitions_total",
		Help: "Session mode transitions",
	}, []string{"from", "to"})

	metricQuizFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tutor_quiz_finished_total",
		Help: "Quizzes finished by outcome (complete, stopped)",
	}, []string{"outcome"})

	metricQuizScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tutor_quiz_score_percent",
		Help:    "Final quiz score over graded symbols",
		Buckets: prometheus.LinearBuckets(0, 12.5, 9),
	})

	metricHandlerPanics = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tutor_handler_panics_total",
		Help: "Recovered panics while handling a session event",
	})

	gaugeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tutor_sessions_active",
		Help: "Running session orchestrators",
	})
)
