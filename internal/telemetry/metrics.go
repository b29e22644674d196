package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "trivia"

var (
	// GamesCreated counts games registered with the game service.
	GamesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "games_created_total",
		Help:      "Number of games created.",
	})

	// GamesEnded counts ended games by outcome (completed, aborted).
	GamesEnded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "games_ended_total",
		Help:      "Number of games ended, by status.",
	}, []string{"status"})

	// AnswersChecked counts committed answers by correctness.
	AnswersChecked = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "answers_checked_total",
		Help:      "Number of committed answers, by difficulty and correctness.",
	}, []string{"difficulty", "correct"})

	// GameOperationErrors counts failed game operations by operation and error code.
	GameOperationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "game_operation_errors_total",
		Help:      "Number of failed game operations.",
	}, []string{"operation", "code"})

	// UpstreamDuration observes calls to the trivia question API.
	UpstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upstream_request_duration_seconds",
		Help:      "Latency of trivia question API requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"upstream", "result"})

	// ToolCalls counts voice tool invocations.
	ToolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tool_calls_total",
		Help:      "Number of voice tool calls, by tool and result.",
	}, []string{"tool", "result"})

	// EventHandlerFailures counts event handlers that returned an error or panicked.
	EventHandlerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "event_handler_failures_total",
		Help:      "Number of failed event handler invocations.",
	}, []string{"event"})
)
